// Package telegram is the Telegram implementation of the transport adapter
// and of the notification sender.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

// Config configures the Telegram connection.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec caps outbound API calls across all chats. Zero means the
	// default of 25 (just under Telegram's documented 30/s ceiling).
	RatePerSec int
}

// Adapter converts Telegram updates into transport updates and sends plain
// text back. One adapter owns one bot connection.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot *tele.Bot
	out atomic.Value // stores (chan<- transport.Update)

	runMu   sync.Mutex
	running bool
	stopped chan struct{}

	// droppedUpdates counts updates discarded because the consumer lagged
	// behind the poll loop; reported periodically instead of per update.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

// Bot exposes the underlying connection so the sender can share it.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		if up, ok := parseCommand(m); ok {
			a.sendUpdate(up)
			return nil
		}
		a.sendUpdate(messageUpdate(m, m.Text, "text"))
		return nil
	})

	// Media arrives with an optional caption; the caption is the searchable
	// content, the kind tag records what it was.
	media := map[string]any{
		"photo": tele.OnPhoto,
		"video": tele.OnVideo,
		"voice": tele.OnVoice,
	}
	for kind, event := range media {
		kind := kind
		a.bot.Handle(event, func(c tele.Context) error {
			m := c.Message()
			if m == nil || m.Sender == nil {
				return nil
			}
			a.sendUpdate(messageUpdate(m, m.Caption, kind))
			return nil
		})
	}
}

func messageUpdate(m *tele.Message, text, kind string) transport.Update {
	return transport.Update{
		Kind: transport.UpdateMessage,
		Message: &transport.Message{
			ID:           m.ID,
			ChatID:       m.Chat.ID,
			FromID:       m.Sender.ID,
			FromUsername: senderName(m.Sender),
			Text:         text,
			Kind:         kind,
		},
	}
}

// parseCommand recognizes "/name args" and "/name@botname args".
func parseCommand(m *tele.Message) (transport.Update, bool) {
	up, ok := parseCommandText(m.Text)
	if !ok {
		return up, false
	}
	up.Command.ChatID = m.Chat.ID
	up.Command.FromID = m.Sender.ID
	up.Command.FromUsername = senderName(m.Sender)
	return up, true
}

func parseCommandText(text string) (transport.Update, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return transport.Update{}, false
	}
	name, args, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return transport.Update{}, false
	}
	return transport.Update{
		Kind: transport.UpdateCommand,
		Command: &transport.Command{
			Name: strings.ToLower(name),
			Args: strings.TrimSpace(args),
		},
	}, true
}

func senderName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (a *Adapter) sendUpdate(up transport.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- transport.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	stopped := make(chan struct{})
	a.stopped = stopped
	a.runMu.Unlock()

	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopped:
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)",
						logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
				}
			}
		}
	}()

	go func() {
		defer close(stopped)
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop
		a.log.Info("polling stopped")
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	stopped := a.stopped
	a.stopped = nil
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	go a.bot.Stop()

	if stopped == nil {
		return nil
	}
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		a.log.Warn("telegram stop timed out", logx.Err(ctx.Err()))
		return nil
	}
}

const telegramTextLimit = 4000

func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range splitText(text, telegramTextLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := a.bot.Send(chat, chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitText cuts long messages at the Telegram length limit, preferring
// newline boundaries so chunks stay readable.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	var out []string
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		} else {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
