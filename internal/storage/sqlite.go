package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"relaybot/internal/model"
	"relaybot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

type sqliteGateway struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Gateway, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	g := &sqliteGateway{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := g.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return g, nil
}

func (g *sqliteGateway) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = g.db.ExecContext(ctx, string(b))
	return err
}

func (g *sqliteGateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// ---- rooms ----

const roomCols = "id, workspace_id, name, external_id, kind, created_at"

func scanRoom(row interface{ Scan(...any) error }) (*model.Room, error) {
	var r model.Room
	var kind, created string
	if err := row.Scan(&r.ID, &r.WorkspaceID, &r.Name, &r.ExternalID, &kind, &created); err != nil {
		return nil, err
	}
	r.Kind = model.RoomKind(kind)
	if t, err := time.Parse(timeLayout, created); err == nil {
		r.CreatedAt = t
	}
	return &r, nil
}

func (g *sqliteGateway) RoomByID(ctx context.Context, id int64) (*model.Room, error) {
	row := g.db.QueryRowContext(ctx, "SELECT "+roomCols+" FROM rooms WHERE id = ?", id)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (g *sqliteGateway) RoomByExternalID(ctx context.Context, externalID string) (*model.Room, error) {
	row := g.db.QueryRowContext(ctx, "SELECT "+roomCols+" FROM rooms WHERE external_id = ?", externalID)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (g *sqliteGateway) roomRows(rows *sql.Rows) ([]model.Room, error) {
	defer rows.Close()
	var out []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (g *sqliteGateway) OutgoingLinks(ctx context.Context, roomID int64) ([]model.Room, error) {
	// Forward edges always count; reverse edges only when bidirectional.
	rows, err := g.db.QueryContext(ctx, `
		SELECT `+prefixed(roomCols, "r.")+`
		  FROM rooms r JOIN room_links l ON r.id = l.target_room_id
		 WHERE l.source_room_id = ?
		UNION ALL
		SELECT `+prefixed(roomCols, "r.")+`
		  FROM rooms r JOIN room_links l ON r.id = l.source_room_id
		 WHERE l.target_room_id = ? AND l.mode = ?`,
		roomID, roomID, string(model.LinkBidirectional))
	if err != nil {
		return nil, err
	}
	return g.roomRows(rows)
}

func (g *sqliteGateway) AggregationRooms(ctx context.Context, workspaceID int64) ([]model.Room, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT "+roomCols+" FROM rooms WHERE workspace_id = ? AND kind = ? ORDER BY id",
		workspaceID, string(model.RoomAggregation))
	if err != nil {
		return nil, err
	}
	return g.roomRows(rows)
}

// ---- messages ----

const messageCols = "id, room_id, sender_id, sender_name, content, message_type, external_id, ts"

func scanMessage(rows *sql.Rows) (model.Message, error) {
	var m model.Message
	var ts string
	err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.Content, &m.MessageType, &m.ExternalID, &ts)
	if err != nil {
		return m, err
	}
	if t, perr := time.Parse(timeLayout, ts); perr == nil {
		m.Timestamp = t
	}
	return m, nil
}

func (g *sqliteGateway) InsertMessage(ctx context.Context, m *model.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.ExternalID == "" {
		m.ExternalID = uuid.NewString()
	}
	if m.MessageType == "" {
		m.MessageType = "text"
	}
	res, err := g.db.ExecContext(ctx,
		`INSERT INTO messages(room_id, sender_id, sender_name, content, message_type, external_id, ts)
		 VALUES(?,?,?,?,?,?,?)`,
		m.RoomID, m.SenderID, m.SenderName, m.Content, m.MessageType, m.ExternalID,
		m.Timestamp.Format(timeLayout))
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (g *sqliteGateway) messageRows(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (g *sqliteGateway) RecentMessages(ctx context.Context, roomID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := g.db.QueryContext(ctx,
		"SELECT "+messageCols+" FROM messages WHERE room_id = ? ORDER BY ts DESC LIMIT ?",
		roomID, limit)
	if err != nil {
		return nil, err
	}
	return g.messageRows(rows)
}

func (g *sqliteGateway) SearchRecentMessages(ctx context.Context, workspaceID int64, keyword string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT `+prefixed(messageCols, "m.")+`
		  FROM messages m JOIN rooms r ON r.id = m.room_id
		 WHERE r.workspace_id = ? AND m.content LIKE ? ESCAPE '\'
		 ORDER BY m.ts DESC LIMIT ?`,
		workspaceID, "%"+escapeLike(keyword)+"%", limit)
	if err != nil {
		return nil, err
	}
	return g.messageRows(rows)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// ---- reminders ----

func (g *sqliteGateway) PendingReminders(ctx context.Context, lookahead time.Duration) ([]model.Reminder, error) {
	horizon := time.Now().UTC().Add(lookahead).Format(timeLayout)
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, COALESCE(description, ''), due_date, status, notified
		  FROM reminders
		 WHERE status = ? AND notified = 0 AND due_date <= ?
		 ORDER BY due_date`,
		string(model.ReminderPending), horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		var r model.Reminder
		var due, status string
		var notified int
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Title, &r.Description, &due, &status, &notified); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(timeLayout, due); perr == nil {
			r.DueDate = t
		}
		r.Status = model.ReminderStatus(status)
		r.Notified = notified != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *sqliteGateway) MarkReminderNotified(ctx context.Context, id int64) error {
	res, err := g.db.ExecContext(ctx, "UPDATE reminders SET notified = 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- creation ----

func (g *sqliteGateway) CreateWorkspace(ctx context.Context, w *model.Workspace) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := g.db.ExecContext(ctx,
		"INSERT INTO workspaces(name, external_id, created_at) VALUES(?,?,?)",
		w.Name, w.ExternalID, w.CreatedAt.Format(timeLayout))
	if err != nil {
		return err
	}
	w.ID, err = res.LastInsertId()
	return err
}

func (g *sqliteGateway) CreateRoom(ctx context.Context, r *model.Room) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := g.db.ExecContext(ctx,
		"INSERT INTO rooms(workspace_id, name, external_id, kind, created_at) VALUES(?,?,?,?,?)",
		r.WorkspaceID, r.Name, r.ExternalID, string(r.Kind), r.CreatedAt.Format(timeLayout))
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (g *sqliteGateway) CreateLink(ctx context.Context, l *model.RoomLink) error {
	src, err := g.RoomByID(ctx, l.SourceRoomID)
	if err != nil {
		return err
	}
	dst, err := g.RoomByID(ctx, l.TargetRoomID)
	if err != nil {
		return err
	}
	if src.WorkspaceID != dst.WorkspaceID {
		return ErrCrossWorkspaceLink
	}
	if l.Mode == "" {
		l.Mode = model.LinkOneWay
	}
	res, err := g.db.ExecContext(ctx,
		"INSERT INTO room_links(source_room_id, target_room_id, mode) VALUES(?,?,?)",
		l.SourceRoomID, l.TargetRoomID, string(l.Mode))
	if err != nil {
		return err
	}
	l.ID, err = res.LastInsertId()
	return err
}

func (g *sqliteGateway) CreateReminder(ctx context.Context, r *model.Reminder) error {
	if r.Status == "" {
		r.Status = model.ReminderPending
	}
	res, err := g.db.ExecContext(ctx,
		"INSERT INTO reminders(workspace_id, title, description, due_date, status, notified) VALUES(?,?,?,?,?,?)",
		r.WorkspaceID, r.Title, nullStr(r.Description), r.DueDate.UTC().Format(timeLayout),
		string(r.Status), boolInt(r.Notified))
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

// ---- small helpers ----

func prefixed(cols, prefix string) string {
	parts := strings.Split(cols, ", ")
	for i := range parts {
		parts[i] = prefix + parts[i]
	}
	return strings.Join(parts, ", ")
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
