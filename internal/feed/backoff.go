package feed

import (
	"context"
	"time"
)

// Backoff doubles its delay on every call to Next, up to Max.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	cur time.Duration
}

// DefaultBackoff is the reconnect schedule: 1s doubling to a 30s cap.
func DefaultBackoff() Backoff {
	return Backoff{Min: time.Second, Max: 30 * time.Second}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Min
	} else {
		b.cur *= 2
	}
	if b.Max > 0 && b.cur > b.Max {
		b.cur = b.Max
	}
	return b.cur
}

// Reset starts the schedule over after a successful attempt.
func (b *Backoff) Reset() {
	b.cur = 0
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
