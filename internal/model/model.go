// Package model holds the transient views of persisted entities.
//
// The storage layer owns the canonical rows; everything here is a read-side
// snapshot. Tenancy rule: a Workspace is the isolation boundary, and every
// lookup that could span rooms must be scoped by workspace ID.
package model

import "time"

// RoomKind tags what a room is for. Aggregation rooms are notification sinks,
// all other kinds are sources.
type RoomKind string

const (
	RoomTopic       RoomKind = "topic"
	RoomMember      RoomKind = "member"
	RoomAggregation RoomKind = "aggregation"
	RoomVoice       RoomKind = "voice"
)

// LinkMode is the direction of a room link.
type LinkMode string

const (
	LinkOneWay        LinkMode = "one_way"
	LinkBidirectional LinkMode = "bidirectional"
)

// ReminderStatus is the reminder lifecycle state.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderDone      ReminderStatus = "done"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Workspace is the top-level isolation boundary (one per client/project).
type Workspace struct {
	ID         int64
	Name       string
	ExternalID string // chat-platform server/guild id
	CreatedAt  time.Time
}

// Room is a conversation channel scoped to exactly one workspace.
type Room struct {
	ID          int64
	WorkspaceID int64
	Name        string
	ExternalID  string // chat-platform channel id
	Kind        RoomKind
	CreatedAt   time.Time
}

// IsAggregation reports whether the room is a notification sink.
func (r Room) IsAggregation() bool { return r.Kind == RoomAggregation }

// RoomLink is a directed edge source -> target. Links never cross workspace
// boundaries; the storage layer enforces that at creation time.
type RoomLink struct {
	ID           int64
	SourceRoomID int64
	TargetRoomID int64
	Mode         LinkMode
}

// Message is immutable once created.
type Message struct {
	ID          int64
	RoomID      int64
	SenderID    string
	SenderName  string
	Content     string
	MessageType string // text / image / video / voice
	ExternalID  string // chat-platform message id
	Timestamp   time.Time
}

// Reminder belongs to a workspace, not a room.
//
// Notified is a single-fire latch: once true it is never reset. It means
// "delivery was attempted", not "delivered everywhere".
type Reminder struct {
	ID          int64
	WorkspaceID int64
	Title       string
	Description string
	DueDate     time.Time
	Status      ReminderStatus
	Notified    bool
}
