package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"relaybot/internal/model"
	"relaybot/pkg/logx"
)

// stubGateway implements storage.Gateway with overridable behavior per test.
type stubGateway struct {
	outgoingLinks    func(ctx context.Context, roomID int64) ([]model.Room, error)
	aggregationRooms func(ctx context.Context, workspaceID int64) ([]model.Room, error)
	searchRecent     func(ctx context.Context, workspaceID int64, keyword string, limit int) ([]model.Message, error)
	pendingReminders func(ctx context.Context, lookahead time.Duration) ([]model.Reminder, error)
	markNotified     func(ctx context.Context, id int64) error
}

func (s *stubGateway) RoomByID(context.Context, int64) (*model.Room, error) { return nil, nil }

func (s *stubGateway) RoomByExternalID(context.Context, string) (*model.Room, error) {
	return nil, nil
}

func (s *stubGateway) OutgoingLinks(ctx context.Context, roomID int64) ([]model.Room, error) {
	if s.outgoingLinks == nil {
		return nil, nil
	}
	return s.outgoingLinks(ctx, roomID)
}

func (s *stubGateway) AggregationRooms(ctx context.Context, workspaceID int64) ([]model.Room, error) {
	if s.aggregationRooms == nil {
		return nil, nil
	}
	return s.aggregationRooms(ctx, workspaceID)
}

func (s *stubGateway) InsertMessage(context.Context, *model.Message) error { return nil }

func (s *stubGateway) RecentMessages(context.Context, int64, int) ([]model.Message, error) {
	return nil, nil
}

func (s *stubGateway) SearchRecentMessages(ctx context.Context, workspaceID int64, keyword string, limit int) ([]model.Message, error) {
	if s.searchRecent == nil {
		return nil, nil
	}
	return s.searchRecent(ctx, workspaceID, keyword, limit)
}

func (s *stubGateway) PendingReminders(ctx context.Context, lookahead time.Duration) ([]model.Reminder, error) {
	if s.pendingReminders == nil {
		return nil, nil
	}
	return s.pendingReminders(ctx, lookahead)
}

func (s *stubGateway) MarkReminderNotified(ctx context.Context, id int64) error {
	if s.markNotified == nil {
		return nil
	}
	return s.markNotified(ctx, id)
}

func (s *stubGateway) CreateWorkspace(context.Context, *model.Workspace) error { return nil }
func (s *stubGateway) CreateRoom(context.Context, *model.Room) error           { return nil }
func (s *stubGateway) CreateLink(context.Context, *model.RoomLink) error       { return nil }
func (s *stubGateway) CreateReminder(context.Context, *model.Reminder) error   { return nil }
func (s *stubGateway) Close() error                                            { return nil }

// stubSender records sends and can fail or stall on demand.
type stubSender struct {
	mu    sync.Mutex
	sends []string
	err   error
	delay time.Duration

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (s *stubSender) Send(ctx context.Context, destinationID string, n Notice) error {
	cur := s.inflight.Add(1)
	for {
		max := s.maxInflight.Load()
		if cur <= max || s.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}
	defer s.inflight.Add(-1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.sends = append(s.sends, destinationID)
	s.mu.Unlock()
	return s.err
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

// fakeClock advances instantly instead of sleeping and records every
// requested sleep duration.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func aggRoom(id int64, ext string) model.Room {
	return model.Room{ID: id, WorkspaceID: 1, Name: ext, ExternalID: ext, Kind: model.RoomAggregation}
}

func TestNotifyNewMessageNilSource(t *testing.T) {
	f := NewFanout(&stubGateway{}, &stubSender{}, nil, Config{}, logx.Nop())
	if _, err := f.NotifyNewMessage(context.Background(), nil, model.Message{}, false); !errors.Is(err, ErrNilSource) {
		t.Fatalf("err = %v, want ErrNilSource", err)
	}
}

func TestNotifyNewMessageNoAggregationLinks(t *testing.T) {
	store := &stubGateway{
		outgoingLinks: func(context.Context, int64) ([]model.Room, error) {
			// Linked rooms exist, but none is an aggregation sink.
			return []model.Room{
				{ID: 2, WorkspaceID: 1, Kind: model.RoomTopic},
				{ID: 3, WorkspaceID: 1, Kind: model.RoomMember},
			}, nil
		},
	}
	sender := &stubSender{}
	f := NewFanout(store, sender, nil, Config{}, logx.Nop())

	source := &model.Room{ID: 1, WorkspaceID: 1, Kind: model.RoomTopic}
	got, err := f.NotifyNewMessage(context.Background(), source, model.Message{ID: 10, Content: "hi"}, false)
	if err != nil {
		t.Fatalf("NotifyNewMessage: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("notified = %v, want empty non-nil slice", got)
	}
	if sender.count() != 0 {
		t.Fatalf("sends = %d, want 0", sender.count())
	}
}

func TestNotifyNewMessageDeliversToLinkedSinks(t *testing.T) {
	store := &stubGateway{
		outgoingLinks: func(context.Context, int64) ([]model.Room, error) {
			return []model.Room{
				aggRoom(2, "agg-a"),
				{ID: 3, WorkspaceID: 1, Kind: model.RoomTopic},
				aggRoom(4, "agg-b"),
			}, nil
		},
	}
	sender := &stubSender{}
	f := NewFanout(store, sender, nil, Config{}, logx.Nop())
	f.SetClock(newFakeClock())

	source := &model.Room{ID: 1, WorkspaceID: 1, Name: "general", Kind: model.RoomTopic}
	got, err := f.NotifyNewMessage(context.Background(), source, model.Message{ID: 10, Content: "hello"}, false)
	if err != nil {
		t.Fatalf("NotifyNewMessage: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("notified = %v, want 2 rooms", got)
	}
	want := map[int64]bool{2: true, 4: true}
	for _, id := range got {
		if !want[id] {
			t.Fatalf("unexpected room id %d in %v", id, got)
		}
	}
}

func TestNotifyNewMessagePartialFailure(t *testing.T) {
	failDest := "agg-bad"
	store := &stubGateway{
		outgoingLinks: func(context.Context, int64) ([]model.Room, error) {
			return []model.Room{aggRoom(2, "agg-ok"), aggRoom(3, failDest)}, nil
		},
	}
	sender := &selectiveSender{fail: failDest}
	f := NewFanout(store, sender, nil, Config{}, logx.Nop())
	f.SetClock(newFakeClock())

	source := &model.Room{ID: 1, WorkspaceID: 1, Kind: model.RoomTopic}
	got, err := f.NotifyNewMessage(context.Background(), source, model.Message{ID: 10, Content: "x"}, false)
	if err != nil {
		t.Fatalf("NotifyNewMessage: %v", err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("notified = %v, want [2]", got)
	}
}

// selectiveSender fails sends to one destination.
type selectiveSender struct {
	fail string
}

func (s *selectiveSender) Send(_ context.Context, destinationID string, _ Notice) error {
	if destinationID == s.fail {
		return errors.New("send rejected")
	}
	return nil
}

func TestDeliverCooldownEnforced(t *testing.T) {
	clock := newFakeClock()
	sender := &stubSender{}
	f := NewFanout(&stubGateway{}, sender, nil, Config{Cooldown: time.Second}, logx.Nop())
	f.SetClock(clock)

	dest := aggRoom(2, "agg-a")
	ctx := context.Background()

	if err := f.Deliver(ctx, dest, Notice{Kind: NoticeMessage}); err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("first send slept %v, want none", clock.sleeps)
	}

	// 400ms later the second send must wait out the remaining 600ms.
	clock.advance(400 * time.Millisecond)
	if err := f.Deliver(ctx, dest, Notice{Kind: NoticeMessage}); err != nil {
		t.Fatalf("second Deliver: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 600*time.Millisecond {
		t.Fatalf("sleeps = %v, want [600ms]", clock.sleeps)
	}

	// Past the cooldown, no wait at all.
	clock.advance(2 * time.Second)
	if err := f.Deliver(ctx, dest, Notice{Kind: NoticeMessage}); err != nil {
		t.Fatalf("third Deliver: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("sleeps = %v, want no extra entry", clock.sleeps)
	}
}

func TestDeliverFailureDoesNotStampCooldown(t *testing.T) {
	clock := newFakeClock()
	sender := &stubSender{err: errors.New("boom")}
	f := NewFanout(&stubGateway{}, sender, nil, Config{Cooldown: time.Second}, logx.Nop())
	f.SetClock(clock)

	dest := aggRoom(2, "agg-a")
	if err := f.Deliver(context.Background(), dest, Notice{}); err == nil {
		t.Fatal("Deliver succeeded, want error")
	}

	// The failed send must not have started a cooldown window.
	sender.err = nil
	if err := f.Deliver(context.Background(), dest, Notice{}); err != nil {
		t.Fatalf("Deliver after failure: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none after failed send", clock.sleeps)
	}
}

func TestNotifyNewMessageConcurrencyBound(t *testing.T) {
	var rooms []model.Room
	for i := int64(1); i <= 5; i++ {
		rooms = append(rooms, aggRoom(i+10, string(rune('a'+i))))
	}
	store := &stubGateway{
		outgoingLinks: func(context.Context, int64) ([]model.Room, error) { return rooms, nil },
	}
	sender := &stubSender{delay: 30 * time.Millisecond}
	f := NewFanout(store, sender, nil, Config{MaxInflight: 2, Cooldown: time.Millisecond}, logx.Nop())

	source := &model.Room{ID: 1, WorkspaceID: 1, Kind: model.RoomTopic}
	got, err := f.NotifyNewMessage(context.Background(), source, model.Message{ID: 99, Content: "x"}, false)
	if err != nil {
		t.Fatalf("NotifyNewMessage: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("notified %d rooms, want 5", len(got))
	}
	if max := sender.maxInflight.Load(); max > 2 {
		t.Fatalf("max in-flight sends = %d, want <= 2", max)
	}
}

func TestNotifyNewMessageSimilarityBestEffort(t *testing.T) {
	store := &stubGateway{
		outgoingLinks: func(context.Context, int64) ([]model.Room, error) {
			return []model.Room{aggRoom(2, "agg-a")}, nil
		},
	}
	sender := &stubSender{}
	f := NewFanout(store, sender, failingFinder{}, Config{}, logx.Nop())
	f.SetClock(newFakeClock())

	source := &model.Room{ID: 1, WorkspaceID: 1, Kind: model.RoomTopic}
	got, err := f.NotifyNewMessage(context.Background(), source, model.Message{ID: 10, Content: "server down again"}, true)
	if err != nil {
		t.Fatalf("NotifyNewMessage: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("notified = %v, want delivery despite finder failure", got)
	}
}

type failingFinder struct{}

func (failingFinder) Find(context.Context, int64, string, int64) ([]model.Message, error) {
	return nil, errors.New("search backend unavailable")
}
