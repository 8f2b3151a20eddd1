// Package storage is the persistence gateway for workspaces, rooms, links,
// messages, and reminders.
//
// The coordination layer only ever reads entity state and requests narrow
// field updates through the Gateway interface; it never owns rows.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"relaybot/internal/model"
	"relaybot/pkg/logx"
)

var (
	ErrNotFound = errors.New("storage: not found")

	// ErrCrossWorkspaceLink is returned when a room link would cross a
	// workspace boundary. Links are intra-tenant only, enforced here at
	// creation time so readers can assume it.
	ErrCrossWorkspaceLink = errors.New("storage: rooms belong to different workspaces")
)

// Config configures storage.
//
// Driver values: "sqlite" (the only supported backend).
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Gateway is the persistence API used by the coordination layer.
type Gateway interface {
	// Rooms and links.
	RoomByID(ctx context.Context, id int64) (*model.Room, error)
	RoomByExternalID(ctx context.Context, externalID string) (*model.Room, error)
	// OutgoingLinks returns the rooms reachable from roomID: targets of its
	// outgoing edges plus sources of bidirectional edges pointing at it.
	OutgoingLinks(ctx context.Context, roomID int64) ([]model.Room, error)
	AggregationRooms(ctx context.Context, workspaceID int64) ([]model.Room, error)

	// Messages.
	InsertMessage(ctx context.Context, m *model.Message) error
	RecentMessages(ctx context.Context, roomID int64, limit int) ([]model.Message, error)
	// SearchRecentMessages is scoped by workspace; it never crosses the
	// tenant boundary.
	SearchRecentMessages(ctx context.Context, workspaceID int64, keyword string, limit int) ([]model.Message, error)

	// Reminders.
	PendingReminders(ctx context.Context, lookahead time.Duration) ([]model.Reminder, error)
	// MarkReminderNotified sets the notified latch. The latch is single-fire;
	// there is deliberately no way to reset it.
	MarkReminderNotified(ctx context.Context, id int64) error

	// Entity creation (used by the inbound side and by tooling).
	CreateWorkspace(ctx context.Context, w *model.Workspace) error
	CreateRoom(ctx context.Context, r *model.Room) error
	CreateLink(ctx context.Context, l *model.RoomLink) error
	CreateReminder(ctx context.Context, r *model.Reminder) error

	Close() error
}

// Open initializes the configured gateway.
func Open(cfg Config, log logx.Logger) (Gateway, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("storage: unknown driver: " + cfg.Driver)
	}
}
