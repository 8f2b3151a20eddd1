package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
telegram:
  token: "${RELAYBOT_TG_TOKEN}"
  rate_per_sec: 20
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: data/relaybot.db
  busy_timeout: 5s
ai:
  token_budget: 8000
ai_providers:
  openai:
    api_key: "${RELAYBOT_OPENAI_KEY}"
    models: [gpt-4o-mini]
  groq:
    api_key: gq-inline
    base_url: https://api.groq.com/openai/v1
ai_routing:
  summary:
    provider: openai
    model: gpt-4o-mini
workspace_overrides:
  "42":
    summary:
      provider: groq
      model: llama-3.1-8b-instant
ai_fallback:
  summary:
    - provider: groq
      model: llama-3.1-8b-instant
notifier:
  max_inflight: 2
  cooldown: 1500ms
reminders:
  enabled: true
  interval: 10m
  lookahead: 48h
`

func TestParse(t *testing.T) {
	t.Setenv("RELAYBOT_TG_TOKEN", "123:abc")
	t.Setenv("RELAYBOT_OPENAI_KEY", "sk-test")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q, env reference not expanded", cfg.Telegram.Token)
	}
	if cfg.AIProviders["openai"].APIKey != "sk-test" {
		t.Fatalf("api_key = %q", cfg.AIProviders["openai"].APIKey)
	}
	if cfg.AIProviders["groq"].BaseURL != "https://api.groq.com/openai/v1" {
		t.Fatalf("base_url = %q", cfg.AIProviders["groq"].BaseURL)
	}
	if got := cfg.AIRouting["summary"]; got.Provider != "openai" || got.Model != "gpt-4o-mini" {
		t.Fatalf("routing = %+v", got)
	}
	if got := cfg.WorkspaceOverrides["42"]["summary"]; got.Provider != "groq" {
		t.Fatalf("workspace override = %+v", got)
	}
	if len(cfg.AIFallback["summary"]) != 1 {
		t.Fatalf("fallback = %+v", cfg.AIFallback["summary"])
	}
	if cfg.AI.TokenBudget != 8000 {
		t.Fatalf("token_budget = %d", cfg.AI.TokenBudget)
	}
	if cfg.Notifier.MaxInflight != 2 || cfg.Notifier.Cooldown != "1500ms" {
		t.Fatalf("notifier = %+v", cfg.Notifier)
	}
	if !cfg.Reminders.Enabled || cfg.Reminders.Lookahead != "48h" {
		t.Fatalf("reminders = %+v", cfg.Reminders)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("telegram:\n  tokn: oops\n"))
	if err == nil {
		t.Fatal("Parse accepted a misspelled key")
	}
}

func TestExpandEnvUndefinedIsEmpty(t *testing.T) {
	os.Unsetenv("RELAYBOT_DOES_NOT_EXIST")
	got := ExpandEnv([]byte("token: ${RELAYBOT_DOES_NOT_EXIST}!"))
	if string(got) != "token: !" {
		t.Fatalf("got %q", got)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("RELAYBOT_TG_TOKEN", "tok")
	t.Setenv("RELAYBOT_OPENAI_KEY", "key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "data/relaybot.db" {
		t.Fatalf("storage path = %q", cfg.Storage.Path)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("notifier.cooldown", "1500ms")
	if err != nil {
		t.Fatalf("ParseDurationField: %v", err)
	}
	if d.Milliseconds() != 1500 {
		t.Fatalf("d = %v", d)
	}
	if _, err := ParseDurationField("notifier.cooldown", "soon"); err == nil {
		t.Fatal("accepted a non-duration")
	}
}
