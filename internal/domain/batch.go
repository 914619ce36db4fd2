package domain

import "time"

// Classification tags how a batch was formed.
type Classification string

const (
	ClassTemporal        Classification = "temporal"
	ClassOwnerAffinity   Classification = "owner-affinity"
	ClassPriority        Classification = "priority"
	ClassContextAffinity Classification = "context-affinity"
	ClassEmergency       Classification = "emergency"
	ClassResidual        Classification = "residual"
)

// BatchState is the execution state of a batch.
type BatchState int

const (
	BatchQueued BatchState = iota
	BatchAdmitted
	BatchExecuting
	BatchCompleted
	BatchFailed
	BatchCancelled
)

// String returns a human-readable representation of the state.
func (s BatchState) String() string {
	switch s {
	case BatchQueued:
		return "queued"
	case BatchAdmitted:
		return "admitted"
	case BatchExecuting:
		return "executing"
	case BatchCompleted:
		return "completed"
	case BatchFailed:
		return "failed"
	case BatchCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Batch is an ordered group of work items scheduled and executed together.
type Batch[T any] struct {
	ID             string
	Items          []*WorkItem[T]
	Classification Classification
	// Priority follows the composer rule: averaged, forced high for the
	// priority pass and critical for emergencies.
	Priority Priority
	// Urgency is the most urgent member priority.
	Urgency Priority
	// Deadline is the earliest member deadline, zero if none.
	Deadline          time.Time
	EstimatedDuration time.Duration
	Requirement       Requirement
	CreatedAt         time.Time
	State             BatchState
	// Sequence orders batches created in the same instant.
	Sequence uint64
}

// NewBatch builds a queued batch and derives its aggregates.
func NewBatch[T any](id string, class Classification, items []*WorkItem[T], now time.Time) *Batch[T] {
	b := &Batch[T]{
		ID:             id,
		Items:          items,
		Classification: class,
		CreatedAt:      now,
		State:          BatchQueued,
	}
	b.Refresh()
	return b
}

// Refresh recomputes priority, urgency, deadline, duration and requirement
// from the current members.
func (b *Batch[T]) Refresh() {
	ps := make([]Priority, 0, len(b.Items))
	b.Urgency = PriorityBackground
	b.Deadline = time.Time{}
	b.EstimatedDuration = 0
	b.Requirement = Requirement{}
	for _, it := range b.Items {
		ps = append(ps, it.Priority)
		if it.Priority < b.Urgency {
			b.Urgency = it.Priority
		}
		if !it.Deadline.IsZero() && (b.Deadline.IsZero() || it.Deadline.Before(b.Deadline)) {
			b.Deadline = it.Deadline
		}
		b.EstimatedDuration += it.Duration()
		b.Requirement = b.Requirement.Add(it.EffectiveRequirement())
	}

	switch b.Classification {
	case ClassEmergency:
		b.Priority = PriorityCritical
	case ClassPriority:
		b.Priority = PriorityHigh
	default:
		b.Priority = AveragePriority(ps)
	}
}

// Size returns the number of items in the batch.
func (b *Batch[T]) Size() int {
	return len(b.Items)
}

// Emergency reports whether the batch came from the critical intake path.
func (b *Batch[T]) Emergency() bool {
	return b.Classification == ClassEmergency
}

// MaxDegradation returns the most severe level among members.
func (b *Batch[T]) MaxDegradation() DegradationLevel {
	level := DegradationNone
	for _, it := range b.Items {
		if l := it.Degradation.Current(); l > level {
			level = l
		}
	}
	return level
}

// Less orders batches for the batch queue: emergencies first, then most
// urgent member, then batch priority, then earliest deadline, then creation.
func (b *Batch[T]) Less(o *Batch[T]) bool {
	if b.Emergency() != o.Emergency() {
		return b.Emergency()
	}
	if b.Urgency != o.Urgency {
		return b.Urgency < o.Urgency
	}
	if b.Priority != o.Priority {
		return b.Priority < o.Priority
	}
	if !b.Deadline.Equal(o.Deadline) {
		switch {
		case b.Deadline.IsZero():
			return false
		case o.Deadline.IsZero():
			return true
		default:
			return b.Deadline.Before(o.Deadline)
		}
	}
	return b.Sequence < o.Sequence
}
