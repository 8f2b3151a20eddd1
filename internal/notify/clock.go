package notify

import (
	"context"
	"time"
)

// Clock abstracts time for the cooldown logic so tests can drive it.
type Clock interface {
	Now() time.Time
	// Sleep suspends the calling goroutine for d, returning early with the
	// context error when ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
