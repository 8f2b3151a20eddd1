package notify

import (
	"context"
	"strings"
	"unicode/utf8"

	"relaybot/internal/model"
	"relaybot/internal/storage"
)

// Similarity limits. The keyword heuristic is a placeholder for real
// semantic search; the Finder interface exists so an embedding-based
// implementation can replace it without touching the fan-out control flow.
const (
	maxKeywords       = 3
	maxKeywordScan    = 5
	minKeywordRunes   = 3
	defaultMaxSimilar = 3
)

// Finder locates past messages related to content within one workspace.
type Finder interface {
	Find(ctx context.Context, workspaceID int64, content string, excludeMessageID int64) ([]model.Message, error)
}

// KeywordFinder is the naive keyword implementation of Finder: split on
// whitespace, keep tokens of at least three runes, search each keyword and
// de-duplicate hits by message identity.
type KeywordFinder struct {
	store   storage.Gateway
	maxHits int
}

func NewKeywordFinder(store storage.Gateway, maxHits int) *KeywordFinder {
	if maxHits <= 0 {
		maxHits = defaultMaxSimilar
	}
	return &KeywordFinder{store: store, maxHits: maxHits}
}

func (f *KeywordFinder) Find(ctx context.Context, workspaceID int64, content string, excludeMessageID int64) ([]model.Message, error) {
	keywords := extractKeywords(content)
	if len(keywords) == 0 {
		return nil, nil
	}
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	seen := make(map[int64]struct{})
	var hits []model.Message
	for _, kw := range keywords {
		found, err := f.store.SearchRecentMessages(ctx, workspaceID, kw, f.maxHits*2)
		if err != nil {
			return hits, err
		}
		for _, m := range found {
			if m.ID == excludeMessageID {
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			hits = append(hits, m)
			if len(hits) >= f.maxHits {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// extractKeywords keeps the first few words long enough to be worth
// searching, in source order.
func extractKeywords(content string) []string {
	var out []string
	for _, w := range strings.Fields(content) {
		if utf8.RuneCountInString(w) < minKeywordRunes {
			continue
		}
		out = append(out, w)
		if len(out) >= maxKeywordScan {
			break
		}
	}
	return out
}
