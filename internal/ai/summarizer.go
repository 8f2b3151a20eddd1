package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"relaybot/internal/model"
	"relaybot/pkg/logx"
)

const (
	// Hard cap on summarizer input after window filtering.
	maxSummaryMessages = 100

	summaryPurpose     = "summary"
	summaryTemperature = 0.3
	summaryMaxTokens   = 1024
)

// Sentinel replies that short-circuit without a provider call.
const (
	NothingToSummarize = "There are no messages to summarize."
	nothingInWindowFmt = "There are no messages in the last %d days."
)

// Summarizer turns a bounded message window into a summary. Pure
// orchestration over Router + Registry + TrimContext; it holds no state of
// its own beyond its collaborators.
type Summarizer struct {
	router   *Router
	registry *Registry
	budget   int
	log      logx.Logger

	now func() time.Time
}

func NewSummarizer(router *Router, registry *Registry, tokenBudget int, log logx.Logger) *Summarizer {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return &Summarizer{
		router:   router,
		registry: registry,
		budget:   tokenBudget,
		log:      log,
		now:      time.Now,
	}
}

// Summarize summarizes messages. windowDays == 0 disables window filtering.
// workspaceID/roomID feed the routing hierarchy and may be empty.
//
// Routing failures (NotConfiguredError) surface untouched; any provider
// runtime failure is re-wrapped as SummaryError after the fallback candidates
// have been exhausted.
func (s *Summarizer) Summarize(ctx context.Context, messages []model.Message, windowDays int, workspaceID, roomID string) (string, error) {
	if len(messages) == 0 {
		return NothingToSummarize, nil
	}

	if windowDays > 0 {
		cutoff := s.now().Add(-time.Duration(windowDays) * 24 * time.Hour)
		messages = filterSince(messages, cutoff)
		if len(messages) == 0 {
			return fmt.Sprintf(nothingInWindowFmt, windowDays), nil
		}
	}

	// Chronological prompt: stable sort on timestamp, ties keep input order,
	// then keep only the most recent slice.
	sorted := append([]model.Message(nil), messages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	if len(sorted) > maxSummaryMessages {
		sorted = sorted[len(sorted)-maxSummaryMessages:]
	}

	// Fit the conversation into the token budget before building the prompt.
	// Each message is one non-pinned history entry; the scaffold counts against
	// the budget as prompt text.
	lines := make([]HistoryEntry, len(sorted))
	for i, m := range sorted {
		lines[i] = HistoryEntry{Role: "user", Content: formatSummaryLine(m)}
	}
	lines = TrimContext(lines, s.budget, summaryScaffold, "")

	prompt := buildSummaryPrompt(lines)

	primary, err := s.router.Resolve(summaryPurpose, workspaceID, roomID)
	if err != nil {
		return "", err
	}

	candidates := append([]Candidate{primary}, s.router.ResolveFallbacks(summaryPurpose)...)

	var lastErr error
	for i, c := range candidates {
		if i > 0 && !s.registry.Has(c.Provider) {
			// A fallback naming an unknown provider is skipped, not fatal.
			s.log.Debug("skipping unknown fallback provider", logx.String("provider", c.Provider))
			continue
		}
		gen, err := s.registry.Generator(c.Provider, c.Model)
		if err != nil {
			if i == 0 {
				return "", err
			}
			lastErr = err
			continue
		}

		out, err := gen.Generate(ctx, prompt, Options{
			Temperature: summaryTemperature,
			MaxTokens:   summaryMaxTokens,
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if i+1 < len(candidates) {
			s.log.Warn("summary provider failed, trying fallback",
				logx.String("provider", c.Provider), logx.String("model", c.Model), logx.Err(err))
		}
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			break
		}
	}

	return "", &SummaryError{Err: lastErr}
}

func filterSince(messages []model.Message, cutoff time.Time) []model.Message {
	out := messages[:0:0]
	for _, m := range messages {
		if !m.Timestamp.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

const summaryScaffold = `Summarize the following conversation.

## Summary format
- [Decisions] important decisions and agreements
- [Open items] things still undecided or needing follow-up
- [Action items] who does what, if any

## Conversation
`

func formatSummaryLine(m model.Message) string {
	sender := m.SenderName
	if sender == "" {
		sender = "unknown"
	}
	if m.Timestamp.IsZero() {
		return fmt.Sprintf("%s: %s", sender, m.Content)
	}
	return fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format("2006-01-02 15:04"), sender, m.Content)
}

func buildSummaryPrompt(lines []HistoryEntry) string {
	var b strings.Builder
	b.WriteString(summaryScaffold)
	for _, ln := range lines {
		b.WriteString(ln.Content)
		b.WriteByte('\n')
	}
	b.WriteString("\n## Summary")
	return b.String()
}
