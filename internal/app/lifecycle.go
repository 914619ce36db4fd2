package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// ShutdownTimeout bounds how long Stop waits for executing batches.
const ShutdownTimeout = 30 * time.Second

// State is the lifecycle state of a scheduler instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// transitions lists the states reachable from each state. Starting may go
// straight to Stopping when Stop races a slow start.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// StateObserver is notified after every lifecycle transition.
type StateObserver interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle guards the Start/Stop state machine of a scheduler instance and
// tracks its background goroutines.
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   ports.Logger
	observer StateObserver
}

// NewLifecycle creates a lifecycle in StateStopped. observer may be nil.
func NewLifecycle(logger ports.Logger, observer StateObserver) *Lifecycle {
	return &Lifecycle{
		state:    StateStopped,
		logger:   logger,
		observer: observer,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to next. From Stopped or Crashed an invalid move fails
// with ErrNotRunning; from any other state with ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(next State, reason string) error {
	l.mu.Lock()
	prev := l.state
	if !allowed(prev, next) {
		l.mu.Unlock()
		if prev == StateStopped || prev == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = next
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.OnStateChange(prev, next, reason)
	}
	l.logger.Info("scheduler state changed",
		ports.Stringer("from", prev),
		ports.Stringer("to", next),
		ports.String("reason", reason),
	)
	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanStart reports whether Start may be called.
func (l *Lifecycle) CanStart() bool {
	s := l.State()
	return s == StateStopped || s == StateCrashed
}

// CanStop reports whether Stop may be called.
func (l *Lifecycle) CanStop() bool {
	s := l.State()
	return s == StateRunning || s == StateStarting
}

// SetCancel stores the function that stops the run context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
}

// Cancel stops the run context, if any.
func (l *Lifecycle) Cancel() {
	l.mu.RLock()
	cancel := l.cancel
	l.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Go runs fn as a tracked background goroutine.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// WaitWithTimeout waits for tracked goroutines. Returns ErrShutdownTimeout
// if they are still running after timeout.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		l.logger.Warn("shutdown timed out, abandoning background work",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
