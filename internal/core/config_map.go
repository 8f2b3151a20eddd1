package core

import (
	"errors"
	"strings"
	"time"

	"relaybot/internal/ai"
	"relaybot/internal/ai/providers"
	"relaybot/internal/config"
	"relaybot/internal/notify"
	"relaybot/internal/storage"
	"relaybot/pkg/logx"
)

// validateConfig is the reload gate: a document that fails here is rejected
// and the previous config stays committed.
func validateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if _, err := ai.NewRouter(mapRouterConfig(cfg)); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSweeperConfig(cfg); err != nil {
		return err
	}
	return nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notify.Config, error) {
	cooldown, err := config.ParseDurationField("notifier.cooldown", cfg.Notifier.Cooldown)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		MaxInflight: cfg.Notifier.MaxInflight,
		Cooldown:    cooldown,
		MaxSimilar:  cfg.Notifier.MaxSimilar,
	}, nil
}

func mapSweeperConfig(cfg *config.Config) (notify.SweeperConfig, error) {
	interval, err := config.ParseDurationOrDefault("reminders.interval", cfg.Reminders.Interval, 5*time.Minute)
	if err != nil {
		return notify.SweeperConfig{}, err
	}
	lookahead, err := config.ParseDurationOrDefault("reminders.lookahead", cfg.Reminders.Lookahead, 24*time.Hour)
	if err != nil {
		return notify.SweeperConfig{}, err
	}
	return notify.SweeperConfig{
		Enabled:   cfg.Reminders.Enabled,
		Interval:  interval,
		Schedule:  cfg.Reminders.Schedule,
		Lookahead: lookahead,
	}, nil
}

func mapRouterConfig(cfg *config.Config) ai.RouterConfig {
	out := ai.RouterConfig{
		Providers: mapProviderTable(cfg.AIProviders),
		Routing:   mapRouteTable(cfg.AIRouting),
		Fallbacks: make(map[string][]ai.Candidate, len(cfg.AIFallback)),
	}
	if cfg.WorkspaceOverrides != nil {
		out.WorkspaceOverrides = make(map[string]map[string]ai.Candidate, len(cfg.WorkspaceOverrides))
		for id, routes := range cfg.WorkspaceOverrides {
			out.WorkspaceOverrides[id] = mapRouteTable(routes)
		}
	}
	if cfg.RoomOverrides != nil {
		out.RoomOverrides = make(map[string]map[string]ai.Candidate, len(cfg.RoomOverrides))
		for id, routes := range cfg.RoomOverrides {
			out.RoomOverrides[id] = mapRouteTable(routes)
		}
	}
	for purpose, routes := range cfg.AIFallback {
		list := make([]ai.Candidate, 0, len(routes))
		for _, r := range routes {
			list = append(list, ai.Candidate{Provider: r.Provider, Model: r.Model})
		}
		out.Fallbacks[purpose] = list
	}
	return out
}

func mapProviderTable(src map[string]config.ProviderEntry) map[string]ai.ProviderConfig {
	if src == nil {
		return nil
	}
	out := make(map[string]ai.ProviderConfig, len(src))
	for name, e := range src {
		out[name] = ai.ProviderConfig{APIKey: e.APIKey, BaseURL: e.BaseURL, Models: e.Models}
	}
	return out
}

func mapRouteTable(src map[string]config.RouteEntry) map[string]ai.Candidate {
	if src == nil {
		return nil
	}
	out := make(map[string]ai.Candidate, len(src))
	for purpose, r := range src {
		out[purpose] = ai.Candidate{Provider: r.Provider, Model: r.Model}
	}
	return out
}

// buildRegistry maps provider names to generator factories. Unrecognized
// names are treated as OpenAI-compatible endpoints (Groq and friends), which
// is what every hosted vendor without its own SDK speaks.
func buildRegistry(cfg *config.Config) *ai.Registry {
	factories := make(map[string]ai.Factory, len(cfg.AIProviders))
	for name, entry := range cfg.AIProviders {
		name, entry := name, entry
		switch name {
		case "openai":
			if entry.BaseURL != "" {
				factories[name] = func(model string) ai.TextGenerator {
					return providers.NewOpenAICompatible(name, entry.APIKey, entry.BaseURL, model)
				}
			} else {
				factories[name] = func(model string) ai.TextGenerator {
					return providers.NewOpenAI(entry.APIKey, model)
				}
			}
		case "anthropic":
			factories[name] = func(model string) ai.TextGenerator {
				return providers.NewAnthropic(entry.APIKey, model)
			}
		case "google", "gemini":
			factories[name] = func(model string) ai.TextGenerator {
				return providers.NewGoogle(entry.APIKey, model)
			}
		case "ollama":
			factories[name] = func(model string) ai.TextGenerator {
				return providers.NewOllama(entry.BaseURL, model)
			}
		default:
			factories[name] = func(model string) ai.TextGenerator {
				return providers.NewOpenAICompatible(name, entry.APIKey, entry.BaseURL, model)
			}
		}
	}
	return ai.NewRegistry(factories)
}

func buildSummarizer(cfg *config.Config, log logx.Logger) (*ai.Summarizer, error) {
	router, err := ai.NewRouter(mapRouterConfig(cfg))
	if err != nil {
		return nil, err
	}
	return ai.NewSummarizer(router, buildRegistry(cfg), cfg.AI.TokenBudget, log), nil
}
