package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultItemDuration is the estimate used for items that do not carry one.
const DefaultItemDuration = 100 * time.Millisecond

// WorkItem is a unit of work submitted by a producer.
// The scheduler never changes Priority; it may defer TargetTime, record
// degradation and count attempts.
type WorkItem[T any] struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"owner_id"`
	Priority Priority `json:"priority"`
	// TargetTime is when the item should be delivered. Zero means now.
	TargetTime time.Time `json:"target_time,omitempty"`
	// Deadline is optional. It breaks ties in batch ordering.
	Deadline           time.Time           `json:"deadline,omitempty"`
	Requirement        Requirement         `json:"requirement"`
	EstimatedDuration  time.Duration       `json:"estimated_duration,omitempty"`
	Degradable         bool                `json:"degradable,omitempty"`
	DegradationOptions []DegradationOption `json:"degradation_options,omitempty"`
	// Channel is the delivery channel (voice, avatar, push, ...).
	Channel     string   `json:"channel,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Payload     T        `json:"payload"`

	SubmittedAt time.Time         `json:"submitted_at"`
	Attempts    int               `json:"attempts,omitempty"`
	Degradation DegradationRecord `json:"degradation"`
	// Sequence is the arrival order assigned at first submission.
	Sequence uint64 `json:"sequence"`
}

// Validate checks producer-supplied fields.
func (w *WorkItem[T]) Validate() error {
	if !w.Priority.Valid() {
		return fmt.Errorf("%w: priority %d", ErrInvalidItem, w.Priority)
	}
	if w.EstimatedDuration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidItem)
	}
	for _, kind := range ResourceKinds {
		if w.Requirement.Amount(kind) < 0 {
			return fmt.Errorf("%w: negative %s requirement", ErrInvalidItem, kind)
		}
	}
	return nil
}

// Critical reports whether the item bypasses batching.
func (w *WorkItem[T]) Critical() bool {
	return w.Priority == PriorityCritical
}

// Due returns the effective target time, treating zero as submission time.
func (w *WorkItem[T]) Due() time.Time {
	if w.TargetTime.IsZero() {
		return w.SubmittedAt
	}
	return w.TargetTime
}

// ReadyAt reports whether the item is due within lookahead of now.
func (w *WorkItem[T]) ReadyAt(now time.Time, lookahead time.Duration) bool {
	return !w.Due().After(now.Add(lookahead))
}

// Option returns the degradation option for level.
func (w *WorkItem[T]) Option(level DegradationLevel) (DegradationOption, bool) {
	for _, o := range w.DegradationOptions {
		if o.Level == level {
			return o, true
		}
	}
	return DegradationOption{}, false
}

// EffectiveRequirement is the requirement after the current degradation.
func (w *WorkItem[T]) EffectiveRequirement() Requirement {
	level := w.Degradation.Current()
	if level == DegradationNone {
		return w.Requirement
	}
	o, ok := w.Option(level)
	if !ok {
		return w.Requirement
	}
	return w.Requirement.Scale(1 - o.ResourceReduction)
}

// Duration returns the estimated duration or the default.
func (w *WorkItem[T]) Duration() time.Duration {
	if w.EstimatedDuration > 0 {
		return w.EstimatedDuration
	}
	return DefaultItemDuration
}

// ContextKey derives the context-affinity key: channel plus sorted constraints.
func (w *WorkItem[T]) ContextKey() string {
	if len(w.Constraints) == 0 {
		return w.Channel
	}
	cs := append([]string(nil), w.Constraints...)
	sort.Strings(cs)
	return w.Channel + "|" + strings.Join(cs, ",")
}
