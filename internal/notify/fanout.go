package notify

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"relaybot/internal/model"
	"relaybot/internal/storage"
	"relaybot/pkg/logx"
)

// Defaults for the delivery constraints.
const (
	defaultMaxInflight = 5
	defaultCooldown    = time.Second
)

var ErrNilSource = errors.New("notify: source room is nil")

// Config tunes the fan-out constraints.
type Config struct {
	// MaxInflight bounds deliveries in flight across all destinations.
	MaxInflight int
	// Cooldown is the minimum spacing between sends to one destination.
	Cooldown time.Duration
	// MaxSimilar caps similarity hits attached to a notice.
	MaxSimilar int
}

func (c Config) withDefaults() Config {
	if c.MaxInflight <= 0 {
		c.MaxInflight = defaultMaxInflight
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.MaxSimilar <= 0 {
		c.MaxSimilar = defaultMaxSimilar
	}
	return c
}

// Fanout pushes new messages into the aggregation rooms linked to their
// source room.
//
// Two constraints apply to every delivery, including the ones the reminder
// sweeper drives through Deliver:
//   - a global admission gate bounds deliveries in flight (semaphore)
//   - a per-destination cooldown enforces minimum spacing, stamped only
//     after a successful send so failures never fake a "recently sent" state
//
// The gate counter and the cooldown map are the only cross-task mutable
// state here.
type Fanout struct {
	store  storage.Gateway
	sender Sender
	finder Finder // nil disables similarity enrichment
	cfg    Config
	log    logx.Logger
	clock  Clock

	sem *semaphore.Weighted

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewFanout(store storage.Gateway, sender Sender, finder Finder, cfg Config, log logx.Logger) *Fanout {
	cfg = cfg.withDefaults()
	return &Fanout{
		store:    store,
		sender:   sender,
		finder:   finder,
		cfg:      cfg,
		log:      log,
		clock:    SystemClock(),
		sem:      semaphore.NewWeighted(int64(cfg.MaxInflight)),
		lastSent: make(map[string]time.Time),
	}
}

// SetClock replaces the wall clock. Test hook.
func (f *Fanout) SetClock(c Clock) { f.clock = c }

// NotifyNewMessage delivers msg to every aggregation room linked from
// source. It returns the room IDs that were actually notified.
//
// Per-destination failures are logged and reduce the returned list; they
// never abort delivery to the remaining destinations. The returned slice is
// semantically an unordered set: completion order under the admission gate
// is not defined.
func (f *Fanout) NotifyNewMessage(ctx context.Context, source *model.Room, msg model.Message, findSimilar bool) ([]int64, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	linked, err := f.store.OutgoingLinks(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	var targets []model.Room
	for _, r := range linked {
		if r.IsAggregation() {
			targets = append(targets, r)
		}
	}
	if len(targets) == 0 {
		f.log.Debug("no aggregation rooms linked", logx.Int64("room_id", source.ID))
		return []int64{}, nil
	}

	// Similarity is best-effort: a failure here must not abort the fan-out.
	var similar []model.Message
	if findSimilar && f.finder != nil {
		similar, err = f.finder.Find(ctx, source.WorkspaceID, msg.Content, msg.ID)
		if err != nil {
			f.log.Warn("similarity lookup failed", logx.Int64("message_id", msg.ID), logx.Err(err))
		}
		if len(similar) > f.cfg.MaxSimilar {
			similar = similar[:f.cfg.MaxSimilar]
		}
	}

	notice := buildMessageNotice(source, msg, similar)

	var (
		wg       sync.WaitGroup
		resMu    sync.Mutex
		notified = []int64{}
	)
	for _, dest := range targets {
		dest := dest
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Deliver(ctx, dest, notice); err != nil {
				f.log.Error("failed to notify aggregation room",
					logx.Int64("room_id", dest.ID), logx.Err(err))
				return
			}
			resMu.Lock()
			notified = append(notified, dest.ID)
			resMu.Unlock()
			f.log.Info("notified aggregation room", logx.Int64("room_id", dest.ID))
		}()
	}
	wg.Wait()

	return notified, nil
}

// Deliver sends one notice to one destination under the admission gate and
// the destination's cooldown. The reminder sweeper drives the same primitive.
func (f *Fanout) Deliver(ctx context.Context, dest model.Room, n Notice) error {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer f.sem.Release(1)

	if err := f.waitCooldown(ctx, dest.ExternalID); err != nil {
		return err
	}

	if err := f.sender.Send(ctx, dest.ExternalID, n); err != nil {
		return err
	}

	// Stamp happens-after the successful send only.
	f.mu.Lock()
	f.lastSent[dest.ExternalID] = f.clock.Now()
	f.mu.Unlock()
	return nil
}

func (f *Fanout) waitCooldown(ctx context.Context, destID string) error {
	f.mu.Lock()
	last, ok := f.lastSent[destID]
	f.mu.Unlock()
	if !ok {
		return nil
	}

	elapsed := f.clock.Now().Sub(last)
	remaining := f.cfg.Cooldown - elapsed
	if remaining <= 0 {
		return nil
	}
	f.log.Debug("cooldown wait", logx.String("dest", destID), logx.Duration("remaining", remaining))
	return f.clock.Sleep(ctx, remaining)
}

func buildMessageNotice(source *model.Room, msg model.Message, similar []model.Message) Notice {
	n := Notice{
		Kind:        NoticeMessage,
		Body:        Truncate(msg.Content, maxBodyRunes),
		Sender:      msg.SenderName,
		SourceRoom:  source.Name,
		MessageType: msg.MessageType,
		RefID:       msg.ExternalID,
	}
	for _, m := range similar {
		n.Similar = append(n.Similar, SimilarHit{
			At:      m.Timestamp,
			Sender:  m.SenderName,
			Content: Truncate(m.Content, maxSimilarRunes),
		})
	}
	return n
}

func reminderNotice(r model.Reminder) Notice {
	return Notice{
		Kind:        NoticeReminder,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		Status:      string(r.Status),
		RefID:       strconv.FormatInt(r.ID, 10),
	}
}
