package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"relaybot/internal/storage"
	"relaybot/pkg/logx"
)

// Defaults for the sweep cycle.
const (
	defaultSweepInterval = 5 * time.Minute
	defaultLookahead     = 24 * time.Hour
)

// SweeperConfig tunes the reminder sweep cycle.
type SweeperConfig struct {
	Enabled bool
	// Interval is the fixed spacing between sweeps. Ignored when Schedule
	// is set.
	Interval time.Duration
	// Schedule is an optional cron spec (crontab.guru) that replaces the
	// fixed interval.
	Schedule string
	// Lookahead is how far past now a due date may be and still fire.
	Lookahead time.Duration
}

func (c SweeperConfig) withDefaults() SweeperConfig {
	if c.Interval <= 0 {
		c.Interval = defaultSweepInterval
	}
	if c.Lookahead <= 0 {
		c.Lookahead = defaultLookahead
	}
	return c
}

// Sweeper periodically scans for due reminders and pushes a notice to every
// aggregation room of the reminder's workspace, through the same delivery
// primitive the message fan-out uses.
type Sweeper struct {
	store  storage.Gateway
	fanout *Fanout
	cfg    SweeperConfig
	log    logx.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	cron   *cron.Cron
}

func NewSweeper(store storage.Gateway, fanout *Fanout, cfg SweeperConfig, log logx.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		fanout: fanout,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// Start launches the background cycle. Repeated calls while running are
// no-ops. The cycle stops when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)

	if spec := strings.TrimSpace(s.cfg.Schedule); spec != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		sched, err := parser.Parse(spec)
		if err != nil {
			cancel()
			return err
		}
		c := cron.New(cron.WithParser(parser))
		c.Schedule(sched, cron.FuncJob(func() { s.sweep(cctx) }))
		c.Start()
		s.cron = c
		s.cancel = cancel
		s.done = nil
		s.log.Info("reminder sweeper started", logx.String("schedule", spec))
		return nil
	}

	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(cctx, done)
	s.log.Info("reminder sweeper started", logx.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop cancels the cycle and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	c := s.cron
	s.cancel = nil
	s.done = nil
	s.cron = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if c != nil {
		// cron's stop context completes once running jobs return.
		<-c.Stop().Done()
	}
	if done != nil {
		<-done
	}
	s.log.Info("reminder sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.CheckAndNotify(ctx)
	if err != nil {
		s.log.Error("reminder sweep failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("reminder sweep done", logx.Int("notified", n))
	}
}

// CheckAndNotify fetches pending, un-notified reminders due within the
// lookahead window and delivers a notice to every aggregation room of the
// reminder's workspace. It returns how many reminders were marked notified.
//
// A workspace with no aggregation rooms skips its reminders without any
// state change, so they stay eligible for a later sweep. Per-destination
// failures are logged and do not block the latch: notified flips true once
// after the attempt loop, meaning "attempted", not "delivered everywhere".
func (s *Sweeper) CheckAndNotify(ctx context.Context) (int, error) {
	due, err := s.store.PendingReminders(ctx, s.cfg.Lookahead)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return count, nil
		}

		rooms, err := s.store.AggregationRooms(ctx, r.WorkspaceID)
		if err != nil {
			s.log.Error("aggregation room lookup failed",
				logx.Int64("reminder_id", r.ID), logx.Int64("workspace_id", r.WorkspaceID), logx.Err(err))
			continue
		}
		if len(rooms) == 0 {
			s.log.Debug("workspace has no aggregation rooms, reminder deferred",
				logx.Int64("reminder_id", r.ID), logx.Int64("workspace_id", r.WorkspaceID))
			continue
		}

		notice := reminderNotice(r)
		for _, room := range rooms {
			if err := s.fanout.Deliver(ctx, room, notice); err != nil {
				s.log.Error("failed to deliver reminder",
					logx.Int64("reminder_id", r.ID), logx.Int64("room_id", room.ID), logx.Err(err))
			}
		}

		if err := s.store.MarkReminderNotified(ctx, r.ID); err != nil {
			s.log.Error("failed to mark reminder notified",
				logx.Int64("reminder_id", r.ID), logx.Err(err))
			continue
		}
		count++
	}
	return count, nil
}
