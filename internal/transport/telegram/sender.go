package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"relaybot/internal/notify"
	"relaybot/pkg/logx"
)

const defaultRatePerSec = 25

// Sender delivers notices to Telegram chats. It implements notify.Sender.
//
// Destination ids are the stored external ids, i.e. Telegram chat ids in
// decimal form. Resolving one means a cheap local construction first and a
// ChatByID API fetch only when that chat was never seen, cached afterwards.
type Sender struct {
	bot     *tele.Bot
	limiter *rate.Limiter
	log     logx.Logger

	mu    sync.Mutex
	chats map[string]*tele.Chat
}

func NewSender(bot *tele.Bot, ratePerSec int, log logx.Logger) *Sender {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
		chats:   make(map[string]*tele.Chat),
	}
}

func (s *Sender) Send(ctx context.Context, destinationID string, n notify.Notice) error {
	chat, err := s.chat(ctx, destinationID)
	if err != nil {
		return err
	}

	text := RenderNotice(n)
	for _, chunk := range splitText(text, telegramTextLimit) {
		// The limiter is global across chats: Telegram throttles the bot,
		// not the chat.
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := s.bot.Send(chat, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) chat(ctx context.Context, destinationID string) (*tele.Chat, error) {
	s.mu.Lock()
	if c, ok := s.chats[destinationID]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	id, err := strconv.ParseInt(destinationID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram: destination %q is not a chat id: %w", destinationID, err)
	}

	// Fetch the live handle once so sends to dead chats fail here, with a
	// clear error, instead of on every chunk.
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c, err := s.bot.ChatByID(id)
	if err != nil {
		return nil, fmt.Errorf("telegram: resolve chat %s: %w", destinationID, err)
	}

	s.mu.Lock()
	s.chats[destinationID] = c
	s.mu.Unlock()
	return c, nil
}
