package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	yaml "go.yaml.in/yaml/v3"
)

var envRefPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv replaces ${NAME} references with the environment value.
// Undefined variables expand to the empty string.
func ExpandEnv(content []byte) []byte {
	return envRefPattern.ReplaceAllFunc(content, func(m []byte) []byte {
		name := envRefPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Parse decodes a config document. Unknown keys are rejected so typos fail
// loudly instead of silently defaulting.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(data)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}
