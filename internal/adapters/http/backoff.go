package http

import (
	"context"
	"math/rand"
	"time"
)

// Default retry backoff values.
const (
	DefaultBackoffInitial = 200 * time.Millisecond
	DefaultBackoffMax     = 5 * time.Second
)

// backoff is exponential backoff with ±20% jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// Wait sleeps for the jittered current delay and doubles it for next time.
// Returns ctx.Err() if ctx is done first.
func (b *backoff) Wait(ctx context.Context) error {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	t := time.NewTimer(time.Duration(float64(b.current) + jitter))
	defer t.Stop()

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
