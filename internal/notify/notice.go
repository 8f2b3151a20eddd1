// Package notify pushes new messages and due reminders into linked
// aggregation rooms under a shared concurrency gate and per-destination
// cooldowns.
package notify

import (
	"context"
	"time"
)

// Content caps for the rendered notice. Truncation appends an ellipsis
// marker so readers can tell content was cut.
const (
	maxBodyRunes    = 500
	maxSimilarRunes = 100
)

type NoticeKind string

const (
	NoticeMessage  NoticeKind = "message"
	NoticeReminder NoticeKind = "reminder"
)

// SimilarHit is one related past message attached to a notice.
type SimilarHit struct {
	At      time.Time
	Sender  string
	Content string // already truncated
}

// Notice is the fixed-shape delivery payload. The transport adapter decides
// how to render it for its platform.
type Notice struct {
	Kind NoticeKind

	// Message notices.
	Body        string // truncated content
	Sender      string
	SourceRoom  string
	MessageType string
	Similar     []SimilarHit

	// Reminder notices.
	Title       string
	Description string
	DueDate     time.Time
	Status      string

	// RefID is the platform id of the triggering message, or the reminder id.
	RefID string
}

// Sender delivers a notice to a destination room identified by its
// platform-external id. Resolving the live channel handle (including any
// lookup-then-fetch fallback) is the sender's concern.
type Sender interface {
	Send(ctx context.Context, destinationID string, n Notice) error
}

// Truncate cuts s to at most max runes, appending "..." when it cuts.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
