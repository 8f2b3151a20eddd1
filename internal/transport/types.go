// Package transport defines the platform-neutral types exchanged between a
// chat-platform adapter and the coordination core.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
	UpdateCommand UpdateKind = "command"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
	Command *Command
}

// Message is an inbound chat message, already normalized to platform-neutral
// fields. ChatID identifies the room on the platform side; the core maps it
// to a stored room via its external id.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	// Kind is the coarse content tag: text, photo, video, voice.
	Kind string
}

// Command is a parsed bot command such as /summary.
type Command struct {
	ChatID       int64
	FromID       int64
	FromUsername string
	Name         string
	Args         string
}

// Adapter is a chat-platform connection producing updates and able to send
// plain text back.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, chatID int64, text string) error
}
