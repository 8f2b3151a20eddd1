package ai

import "errors"

// ErrInvalidConfig is returned by NewRouter when the routing document is
// structurally unusable. A misconfigured router must not silently degrade, so
// construction fails fast instead of deferring to first use.
var ErrInvalidConfig = errors.New("ai: config must contain provider and routing tables")

// Candidate is a resolved provider+model pair.
type Candidate struct {
	Provider string
	Model    string
}

// ProviderConfig is one entry of the provider table.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Models  []string
}

// RouterConfig is the routing document. Providers and Routing are required
// (may be empty, must be present); the override and fallback tables are
// optional.
type RouterConfig struct {
	Providers map[string]ProviderConfig
	Routing   map[string]Candidate

	// WorkspaceOverrides and RoomOverrides map an ID to per-purpose candidates.
	WorkspaceOverrides map[string]map[string]Candidate
	RoomOverrides      map[string]map[string]Candidate

	// Fallbacks is an ordered candidate list per purpose, global only.
	Fallbacks map[string][]Candidate
}

// Router picks a provider+model for a (purpose, workspace, room) triple.
//
// Priority: room override > workspace override > global routing table.
// Provider-table presence is checked lazily at resolution time, so partial
// configs for unused purposes are tolerated.
type Router struct {
	cfg RouterConfig
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Providers == nil || cfg.Routing == nil {
		return nil, ErrInvalidConfig
	}
	return &Router{cfg: cfg}, nil
}

// Resolve returns the candidate for purpose, honoring the override hierarchy.
// workspaceID and roomID may be empty.
func (r *Router) Resolve(purpose, workspaceID, roomID string) (Candidate, error) {
	if roomID != "" {
		if byPurpose, ok := r.cfg.RoomOverrides[roomID]; ok {
			if c, ok := byPurpose[purpose]; ok {
				return r.validate(c, purpose)
			}
		}
	}

	if workspaceID != "" {
		if byPurpose, ok := r.cfg.WorkspaceOverrides[workspaceID]; ok {
			if c, ok := byPurpose[purpose]; ok {
				return r.validate(c, purpose)
			}
		}
	}

	if c, ok := r.cfg.Routing[purpose]; ok {
		return r.validate(c, purpose)
	}

	return Candidate{}, &NotConfiguredError{Purpose: purpose}
}

func (r *Router) validate(c Candidate, purpose string) (Candidate, error) {
	if c.Provider == "" || c.Model == "" {
		return Candidate{}, &NotConfiguredError{Purpose: purpose}
	}
	if _, ok := r.cfg.Providers[c.Provider]; !ok {
		return Candidate{}, &NotConfiguredError{Purpose: purpose, Provider: c.Provider}
	}
	return c, nil
}

// ResolveFallbacks returns the ordered fallback candidates for purpose.
// No hierarchy applies; the list comes straight from configuration and is
// empty when none is configured. Callers walk it after a primary failure.
func (r *Router) ResolveFallbacks(purpose string) []Candidate {
	src := r.cfg.Fallbacks[purpose]
	if len(src) == 0 {
		return nil
	}
	return append([]Candidate(nil), src...)
}

// ProviderConfig returns the provider-table entry for name.
func (r *Router) ProviderConfig(name string) (ProviderConfig, error) {
	pc, ok := r.cfg.Providers[name]
	if !ok {
		return ProviderConfig{}, &NotConfiguredError{Purpose: "provider lookup", Provider: name}
	}
	return pc, nil
}

// Purposes lists the purposes present in the global routing table.
func (r *Router) Purposes() []string {
	out := make([]string, 0, len(r.cfg.Routing))
	for p := range r.cfg.Routing {
		out = append(out, p)
	}
	return out
}

// Providers lists the configured provider names.
func (r *Router) Providers() []string {
	out := make([]string, 0, len(r.cfg.Providers))
	for p := range r.cfg.Providers {
		out = append(out, p)
	}
	return out
}
