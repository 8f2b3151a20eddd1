package ai

import "unicode/utf8"

// Token estimation is deliberately tokenizer-free: a fixed characters-per-token
// ratio keeps it deterministic and dependency-free. The ratio is a replaceable
// constant, not a promise of vendor-accurate counts.
const (
	DefaultTokenBudget   = 6000
	defaultCharsPerToken = 4
)

// EstimateTokens approximates the token cost of text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	return (n + defaultCharsPerToken - 1) / defaultCharsPerToken
}

func estimateEntryTokens(e HistoryEntry) int {
	return EstimateTokens(e.Content)
}

// TrimContext drops history entries until the estimated total fits budget.
//
// Rules:
//   - pinned entries (role "system") are never dropped and never reordered
//   - the oldest non-pinned entry goes first
//   - at least one non-pinned entry always survives, even over budget
//   - relative order of survivors is preserved
//
// A second trim with the same budget is a no-op.
func TrimContext(history []HistoryEntry, budget int, promptText, systemText string) []HistoryEntry {
	if budget <= 0 {
		return nil
	}

	costs := make([]int, len(history))
	total := EstimateTokens(promptText) + EstimateTokens(systemText)
	for i, e := range history {
		costs[i] = estimateEntryTokens(e)
		total += costs[i]
	}

	if total <= budget {
		return append([]HistoryEntry(nil), history...)
	}

	var nonPinned []int
	for i, e := range history {
		if e.Role != "system" {
			nonPinned = append(nonPinned, i)
		}
	}

	for total > budget && len(nonPinned) > 1 {
		drop := nonPinned[0]
		nonPinned = nonPinned[1:]
		total -= costs[drop]
	}

	keep := make(map[int]struct{}, len(history))
	for i, e := range history {
		if e.Role == "system" {
			keep[i] = struct{}{}
		}
	}
	for _, i := range nonPinned {
		keep[i] = struct{}{}
	}

	out := make([]HistoryEntry, 0, len(keep))
	for i, e := range history {
		if _, ok := keep[i]; ok {
			out = append(out, e)
		}
	}
	return out
}
