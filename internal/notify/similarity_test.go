package notify

import (
	"context"
	"reflect"
	"testing"

	"relaybot/internal/model"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "empty", content: "", want: nil},
		{name: "short words dropped", content: "is it up or on", want: nil},
		{name: "mixed", content: "is the server down again", want: []string{"the", "server", "down", "again"}},
		{name: "scan window", content: "one two three four five six seven", want: []string{"one", "two", "three", "four", "five"}},
		{name: "unicode runes counted", content: "日本 日本語 ok", want: []string{"日本語"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractKeywords(tt.content); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("extractKeywords(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestKeywordFinderDedupesAndExcludesTrigger(t *testing.T) {
	var searched []string
	store := &stubGateway{
		searchRecent: func(_ context.Context, workspaceID int64, keyword string, limit int) ([]model.Message, error) {
			if workspaceID != 7 {
				t.Fatalf("workspaceID = %d, want 7", workspaceID)
			}
			searched = append(searched, keyword)
			// Every keyword matches the same two rows plus the trigger itself.
			return []model.Message{
				{ID: 1, Content: "server down yesterday"},
				{ID: 2, Content: "server restart done"},
				{ID: 99, Content: "server down again"},
			}, nil
		},
	}

	f := NewKeywordFinder(store, 3)
	hits, err := f.Find(context.Background(), 7, "server down again today", 99)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	// Only the first three long-enough words are searched.
	if want := []string{"server", "down", "again"}; !reflect.DeepEqual(searched, want) {
		t.Fatalf("searched keywords = %v, want %v", searched, want)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2 deduplicated rows", len(hits))
	}
	for _, h := range hits {
		if h.ID == 99 {
			t.Fatal("trigger message leaked into its own similarity hits")
		}
	}
}

func TestKeywordFinderNoKeywords(t *testing.T) {
	store := &stubGateway{
		searchRecent: func(context.Context, int64, string, int) ([]model.Message, error) {
			t.Fatal("search called with no usable keywords")
			return nil, nil
		},
	}
	f := NewKeywordFinder(store, 3)
	hits, err := f.Find(context.Background(), 1, "a b c", 0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if hits != nil {
		t.Fatalf("hits = %v, want nil", hits)
	}
}

func TestKeywordFinderCapsHits(t *testing.T) {
	store := &stubGateway{
		searchRecent: func(context.Context, int64, string, int) ([]model.Message, error) {
			return []model.Message{
				{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5},
			}, nil
		},
	}
	f := NewKeywordFinder(store, 2)
	hits, err := f.Find(context.Background(), 1, "alpha beta", 0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want cap of 2", len(hits))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long message body", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
