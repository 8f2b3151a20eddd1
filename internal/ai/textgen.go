// Package ai contains the provider routing, token budgeting, and
// summarization layer. It knows nothing about chat platforms or storage;
// vendors are reached only through the TextGenerator capability.
package ai

import "context"

// HistoryEntry is a single conversation turn handed to a generator.
// Role "system" marks pinned entries that the budgeter never drops.
type HistoryEntry struct {
	Role    string
	Content string
}

// Options are the generation knobs shared by every vendor adapter.
type Options struct {
	Temperature float64
	MaxTokens   int
	System      string
}

// TextGenerator is the uniform capability over AI vendors.
//
// Implementations map their vendor errors into the package taxonomy
// (QuotaError / ConnectionError / ResponseError) before returning; nothing
// vendor-typed may escape.
type TextGenerator interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string, opt Options) (string, error)
	GenerateWithContext(ctx context.Context, prompt string, history []HistoryEntry, opt Options) (string, error)
}
