package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"relaybot/internal/ai"
	"relaybot/internal/model"
	"relaybot/internal/storage"
	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

const (
	defaultSummaryDays = 7
	summaryFetchLimit  = 200
)

// handleMessage persists an inbound message and fans it out to the linked
// aggregation rooms. Chats without a registered room are ignored.
func (a *App) handleMessage(ctx context.Context, m *transport.Message) {
	room, err := a.store.RoomByExternalID(ctx, strconv.FormatInt(m.ChatID, 10))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.log.Debug("message from unregistered chat", logx.Int64("chat_id", m.ChatID))
			return
		}
		a.log.Error("room lookup failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		return
	}

	msg := model.Message{
		RoomID:      room.ID,
		SenderID:    strconv.FormatInt(m.FromID, 10),
		SenderName:  m.FromUsername,
		Content:     m.Text,
		MessageType: m.Kind,
		ExternalID:  fmt.Sprintf("%d:%d", m.ChatID, m.ID),
	}
	if err := a.store.InsertMessage(ctx, &msg); err != nil {
		a.log.Error("message insert failed", logx.Int64("room_id", room.ID), logx.Err(err))
		return
	}

	notified, err := a.fanout.NotifyNewMessage(ctx, room, msg, true)
	if err != nil {
		a.log.Error("fan-out failed", logx.Int64("room_id", room.ID), logx.Err(err))
		return
	}
	if len(notified) > 0 {
		a.log.Debug("message fanned out",
			logx.Int64("room_id", room.ID), logx.Int("destinations", len(notified)))
	}
}

func (a *App) handleCommand(ctx context.Context, cmd *transport.Command) {
	switch cmd.Name {
	case "summary":
		a.handleSummary(ctx, cmd)
	default:
		a.log.Debug("unknown command", logx.String("name", cmd.Name))
	}
}

// handleSummary runs /summary [days] for the room bound to the chat.
func (a *App) handleSummary(ctx context.Context, cmd *transport.Command) {
	room, err := a.store.RoomByExternalID(ctx, strconv.FormatInt(cmd.ChatID, 10))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.reply(ctx, cmd.ChatID, "This chat is not registered as a room.")
			return
		}
		a.log.Error("room lookup failed", logx.Int64("chat_id", cmd.ChatID), logx.Err(err))
		return
	}

	days := defaultSummaryDays
	if cmd.Args != "" {
		n, err := strconv.Atoi(cmd.Args)
		if err != nil || n < 0 {
			a.reply(ctx, cmd.ChatID, "Usage: /summary [days]")
			return
		}
		days = n
	}

	messages, err := a.store.RecentMessages(ctx, room.ID, summaryFetchLimit)
	if err != nil {
		a.log.Error("message fetch failed", logx.Int64("room_id", room.ID), logx.Err(err))
		a.reply(ctx, cmd.ChatID, "Could not load messages for this room.")
		return
	}

	text, err := a.currentSummarizer().Summarize(ctx, messages, days,
		strconv.FormatInt(room.WorkspaceID, 10), strconv.FormatInt(room.ID, 10))
	if err != nil {
		a.log.Warn("summary failed", logx.Int64("room_id", room.ID), logx.Err(err))
		a.reply(ctx, cmd.ChatID, summaryErrorText(err))
		return
	}
	a.reply(ctx, cmd.ChatID, text)
}

// summaryErrorText maps a summarization failure to a single human-readable
// line; internals stay in the logs.
func summaryErrorText(err error) string {
	var nc *ai.NotConfiguredError
	if errors.As(err, &nc) {
		return "No AI provider is configured for summaries."
	}
	return "Summary failed, please try again later."
}

func (a *App) reply(ctx context.Context, chatID int64, text string) {
	if err := a.adapter.SendText(ctx, chatID, text); err != nil {
		a.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
