package pacer

import (
	"sync"

	"github.com/bft-labs/pacer/internal/app"
	"github.com/bft-labs/pacer/internal/domain"
)

// Scheduler event kinds.
const (
	EventItemQueued                 = domain.EventItemQueued
	EventItemRemoved                = domain.EventItemRemoved
	EventOverflowHandled            = domain.EventOverflowHandled
	EventBatchCreated               = domain.EventBatchCreated
	EventEmergencyBatchCreated      = domain.EventEmergencyBatchCreated
	EventBatchAdmitted              = domain.EventBatchAdmitted
	EventBatchCompleted             = domain.EventBatchCompleted
	EventBatchFailed                = domain.EventBatchFailed
	EventDegradationApplied         = domain.EventDegradationApplied
	EventGracefulDegradationApplied = domain.EventGracefulDegradationApplied
	EventOptimizationApplied        = domain.EventOptimizationApplied
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives notifications from a Pacer.
// Embed BaseEventHandler to implement only the methods you need.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnSchedulerEvent(event Event)
}

// BaseEventHandler implements EventHandler with no-ops.
type BaseEventHandler struct{}

// OnStateChange does nothing.
func (BaseEventHandler) OnStateChange(StateChangeEvent) {}

// OnSchedulerEvent does nothing.
func (BaseEventHandler) OnSchedulerEvent(Event) {}

// eventHub fans scheduler events out to the handler and to sinks that
// plugins subscribe while running.
type eventHub struct {
	handler EventHandler

	mu    sync.RWMutex
	sinks []EventSink
}

func (h *eventHub) subscribe(s EventSink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

func (h *eventHub) OnEvent(e domain.Event) {
	if h.handler != nil {
		h.handler.OnSchedulerEvent(e)
	}
	h.mu.RLock()
	sinks := h.sinks
	h.mu.RUnlock()
	for _, s := range sinks {
		s.OnEvent(e)
	}
}

func (h *eventHub) OnStateChange(previous, current app.State, reason string) {
	if h.handler == nil {
		return
	}
	h.handler.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
}
