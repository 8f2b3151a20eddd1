package ai

import (
	"reflect"
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		// Runes, not bytes.
		{"日本語だ", 1},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Fatalf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// entry builds a history entry whose estimated cost is exactly tokens.
func entry(role string, tokens int) HistoryEntry {
	return HistoryEntry{Role: role, Content: strings.Repeat("x", tokens*defaultCharsPerToken)}
}

func totalTokens(history []HistoryEntry) int {
	sum := 0
	for _, e := range history {
		sum += EstimateTokens(e.Content)
	}
	return sum
}

func TestTrimContextUnderBudget(t *testing.T) {
	history := []HistoryEntry{entry("user", 2), entry("assistant", 3)}
	got := TrimContext(history, 100, "", "")
	if !reflect.DeepEqual(got, history) {
		t.Fatalf("trim changed an under-budget history: %+v", got)
	}
}

func TestTrimContextDropsOldestFirst(t *testing.T) {
	// Costs [1,5,5,5] against budget 12: dropping the oldest (1) leaves 15,
	// dropping the next oldest leaves 10, which fits. The last two survive.
	history := []HistoryEntry{
		entry("user", 1),
		entry("user", 5),
		entry("user", 5),
		entry("user", 5),
	}
	got := TrimContext(history, 12, "", "")
	if !reflect.DeepEqual(got, history[2:]) {
		t.Fatalf("trim = %d entries, want the last 2", len(got))
	}
}

func TestTrimContextPromptCountsAgainstBudget(t *testing.T) {
	history := []HistoryEntry{entry("user", 4), entry("user", 4)}
	prompt := strings.Repeat("p", 6*defaultCharsPerToken)

	// History alone fits a budget of 10; with the 6-token prompt it does not.
	got := TrimContext(history, 10, prompt, "")
	if len(got) != 1 || !reflect.DeepEqual(got[0], history[1]) {
		t.Fatalf("trim ignored prompt cost: %+v", got)
	}
}

func TestTrimContextKeepsPinned(t *testing.T) {
	history := []HistoryEntry{
		entry("system", 20),
		entry("user", 10),
		entry("system", 20),
		entry("user", 10),
	}
	got := TrimContext(history, 5, "", "")

	// Both pinned entries and the newest turn survive, order intact, even
	// though the result is still over budget.
	want := []HistoryEntry{history[0], history[2], history[3]}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("trim = %+v, want pinned entries plus the latest turn", got)
	}
}

func TestTrimContextNeverDropsLastTurn(t *testing.T) {
	history := []HistoryEntry{entry("user", 50)}
	got := TrimContext(history, 1, "", "")
	if len(got) != 1 {
		t.Fatalf("trim dropped the only turn: %+v", got)
	}
}

func TestTrimContextIdempotent(t *testing.T) {
	history := []HistoryEntry{
		entry("system", 3),
		entry("user", 4),
		entry("assistant", 6),
		entry("user", 2),
		entry("user", 8),
	}
	for _, budget := range []int{1, 5, 10, 15, 23, 100} {
		once := TrimContext(history, budget, "", "")
		twice := TrimContext(once, budget, "", "")
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("budget %d: second trim changed the result: %+v vs %+v", budget, once, twice)
		}
		if totalTokens(once) > totalTokens(history) {
			t.Fatalf("budget %d: trim increased total cost", budget)
		}
	}
}

func TestTrimContextPreservesSuffix(t *testing.T) {
	history := []HistoryEntry{
		entry("user", 10),
		entry("user", 10),
		entry("user", 10),
		entry("user", 10),
	}
	got := TrimContext(history, 25, "", "")
	// Non-pinned survivors must be a suffix of the input.
	if !reflect.DeepEqual(got, history[len(history)-len(got):]) {
		t.Fatalf("survivors %+v are not a suffix of the input", got)
	}
}
