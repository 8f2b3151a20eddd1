// Package config loads and watches the relaybot YAML configuration.
//
// The document is expanded for ${NAME} environment references before parsing,
// then strictly decoded (unknown keys are an error). Durations are Go
// duration strings (e.g. "500ms", "10s", "1m").
package config

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`

	AI AIConfig `yaml:"ai"`

	// AIProviders is the provider table: name -> credentials and model list.
	AIProviders map[string]ProviderEntry `yaml:"ai_providers"`

	// AIRouting is the global routing table: purpose -> candidate.
	AIRouting map[string]RouteEntry `yaml:"ai_routing"`

	// Optional override tables, outer key is the workspace/room identifier.
	WorkspaceOverrides map[string]map[string]RouteEntry `yaml:"workspace_overrides,omitempty"`
	RoomOverrides      map[string]map[string]RouteEntry `yaml:"room_overrides,omitempty"`

	// AIFallback is an optional ordered candidate list per purpose.
	AIFallback map[string][]RouteEntry `yaml:"ai_fallback,omitempty"`

	Notifier  NotifierConfig  `yaml:"notifier"`
	Reminders RemindersConfig `yaml:"reminders"`
}

type TelegramConfig struct {
	Token      string `yaml:"token"`
	RatePerSec int    `yaml:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level,omitempty"`
	Console bool        `yaml:"console"`
	File    FileLogging `yaml:"file,omitempty"`
}

type FileLogging struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
}

type AIConfig struct {
	// TokenBudget caps the estimated prompt+history token total.
	// Zero means the built-in default.
	TokenBudget int `yaml:"token_budget,omitempty"`
}

type ProviderEntry struct {
	APIKey  string   `yaml:"api_key,omitempty"`
	BaseURL string   `yaml:"base_url,omitempty"`
	Models  []string `yaml:"models,omitempty"`
}

type RouteEntry struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// NotifierConfig controls the aggregation fan-out.
//
// Defaults (when fields are omitted/zero):
//   - max_inflight: 5
//   - cooldown: "1s"
//   - max_similar: 3
type NotifierConfig struct {
	MaxInflight int    `yaml:"max_inflight,omitempty"`
	Cooldown    string `yaml:"cooldown,omitempty"`
	MaxSimilar  int    `yaml:"max_similar,omitempty"`
}

// RemindersConfig controls the reminder sweeper.
//
// Schedule takes a cron spec ("*/5 * * * *"); when empty, Interval is used.
// Defaults: interval "5m", lookahead "24h".
type RemindersConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interval  string `yaml:"interval,omitempty"`
	Schedule  string `yaml:"schedule,omitempty"`
	Lookahead string `yaml:"lookahead,omitempty"`
}
