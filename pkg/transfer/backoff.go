package transfer

import (
	"context"
	"math/rand"
	"time"
)

// backoff implements exponential backoff with jitter for reconnection
// pauses.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Sleep pauses for the current backoff duration (±20% jitter) and doubles
// it for next time. Returns early with ctx.Err() on cancellation.
func (b *backoff) Sleep(ctx context.Context) error {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	sleep := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset restores the initial duration after a successful connection.
func (b *backoff) Reset() {
	b.current = b.initial
}
