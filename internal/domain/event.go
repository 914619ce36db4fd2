package domain

import "time"

// EventKind names an observable scheduler event.
type EventKind string

const (
	EventItemQueued                 EventKind = "item_queued"
	EventItemRemoved                EventKind = "item_removed"
	EventOverflowHandled            EventKind = "overflow_handled"
	EventBatchCreated               EventKind = "batch_created"
	EventEmergencyBatchCreated      EventKind = "emergency_batch_created"
	EventBatchAdmitted              EventKind = "batch_admitted"
	EventBatchCompleted             EventKind = "batch_completed"
	EventBatchFailed                EventKind = "batch_failed"
	EventDegradationApplied         EventKind = "degradation_applied"
	EventGracefulDegradationApplied EventKind = "graceful_degradation_applied"
	EventOptimizationApplied        EventKind = "optimization_applied"
)

// Reasons attached to item_removed and graceful_degradation_applied events.
const (
	ReasonCancelled           = "cancelled"
	ReasonEvicted             = "evicted"
	ReasonRejected            = "rejected"
	ReasonBatched             = "batched"
	ReasonSplit               = "split"
	ReasonCancelledByPressure = "cancelled_under_pressure"
	ReasonUnschedulable       = "unschedulable"
	ReasonRetriesExhausted    = "retries_exhausted"
	ReasonBatchSizeReduced    = "batch_size_reduced"
	ReasonBatchSizeRecovered  = "batch_size_recovered"
	ReasonConcurrencyReduced  = "concurrency_reduced"
	ReasonConcurrencyRecover  = "concurrency_recovered"
	ReasonItemsDeferred       = "items_deferred"
	ReasonBatchesCancelled    = "batches_cancelled"
)

// Event is emitted on every scheduler state change worth observing.
// Fields that do not apply to a kind are left zero.
type Event struct {
	Kind     EventKind        `json:"kind"`
	At       time.Time        `json:"at"`
	ItemID   string           `json:"item_id,omitempty"`
	BatchID  string           `json:"batch_id,omitempty"`
	Priority Priority         `json:"priority"`
	Count    int              `json:"count,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Pressure Pressure         `json:"pressure"`
	Level    DegradationLevel `json:"level"`
	// Classification is set for batch events.
	Classification Classification `json:"classification,omitempty"`
	Duration       time.Duration  `json:"duration,omitempty"`
	Estimated      time.Duration  `json:"estimated,omitempty"`
	Err            error          `json:"-"`
}
