package sysres

import (
	"context"
	"sync/atomic"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// Activity counts in-flight operations on the counted resources
// (network, io, voice, avatar).
type Activity struct {
	network atomic.Int64
	io      atomic.Int64
	voice   atomic.Int64
	avatar  atomic.Int64
}

// NewActivity creates an empty tracker.
func NewActivity() *Activity {
	return &Activity{}
}

func (a *Activity) counter(kind domain.ResourceKind) *atomic.Int64 {
	switch kind {
	case domain.ResourceNetwork:
		return &a.network
	case domain.ResourceIO:
		return &a.io
	case domain.ResourceVoice:
		return &a.voice
	case domain.ResourceAvatar:
		return &a.avatar
	}
	return nil
}

// Begin marks one operation on kind as started and returns the func that
// ends it. Memory and CPU are measured, not counted, so Begin is a no-op
// for them.
func (a *Activity) Begin(kind domain.ResourceKind) func() {
	c := a.counter(kind)
	if c == nil {
		return func() {}
	}
	c.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			c.Add(-1)
		}
	}
}

// Requirement returns the current counts.
func (a *Activity) Requirement() domain.Requirement {
	return domain.Requirement{
		Network: float64(a.network.Load()),
		IO:      float64(a.io.Load()),
		Voice:   float64(a.voice.Load()),
		Avatar:  float64(a.avatar.Load()),
	}
}

// ChannelResource maps a delivery channel to the resource it occupies.
func ChannelResource(channel string) domain.ResourceKind {
	switch channel {
	case "voice":
		return domain.ResourceVoice
	case "avatar":
		return domain.ResourceAvatar
	case "storage", "file":
		return domain.ResourceIO
	default:
		return domain.ResourceNetwork
	}
}

// Track wraps d so each delivery is counted against its channel's resource
// while it runs.
func Track[T any](a *Activity, d ports.Dispatcher[T]) ports.Dispatcher[T] {
	return ports.DispatcherFunc[T](func(ctx context.Context, del ports.Delivery[T]) error {
		done := a.Begin(ChannelResource(del.Channel))
		defer done()
		return d.Dispatch(ctx, del)
	})
}
