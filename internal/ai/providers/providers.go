// Package providers holds the TextGenerator adapters for the supported AI
// vendors. Each adapter maps its SDK errors into the ai error taxonomy at
// this boundary; callers never see vendor-typed errors.
package providers

import (
	"fmt"
	"strings"

	"relaybot/internal/ai"
)

// statusError converts an HTTP status from a vendor SDK into the taxonomy.
func statusError(provider string, status int, err error) error {
	switch {
	case status == 429:
		return &ai.QuotaError{Provider: provider, Err: err}
	case status >= 500:
		return &ai.ConnectionError{Provider: provider, Err: err}
	case status > 0:
		return &ai.ResponseError{Provider: provider, Msg: err.Error()}
	default:
		return &ai.ConnectionError{Provider: provider, Err: err}
	}
}

// transportError classifies non-HTTP failures (timeouts, refused connections).
func transportError(provider string, err error) error {
	return &ai.ConnectionError{Provider: provider, Err: err}
}

// flattenHistory renders a history into plain text for vendors whose adapter
// does not use a native message array.
func flattenHistory(prompt string, history []ai.HistoryEntry) string {
	if len(history) == 0 {
		return prompt
	}
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "%s: %s\n", h.Role, h.Content)
	}
	b.WriteString("\nuser: ")
	b.WriteString(prompt)
	return b.String()
}
