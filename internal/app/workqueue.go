package app

import (
	"fmt"
	"sort"

	"github.com/bft-labs/pacer/internal/domain"
)

// WorkQueue holds pending items ordered by priority, stable by arrival.
// It is not safe for concurrent use; the scheduler guards it.
type WorkQueue[T any] struct {
	items     []*domain.WorkItem[T]
	capacity  int
	lowCutoff domain.Priority
	emit      func(domain.Event)
}

// NewWorkQueue creates a queue bounded by capacity. Overflow only evicts
// items whose priority is at or below lowCutoff. A capacity of zero means
// unbounded.
func NewWorkQueue[T any](capacity int, lowCutoff domain.Priority, emit func(domain.Event)) *WorkQueue[T] {
	if emit == nil {
		emit = func(domain.Event) {}
	}
	return &WorkQueue[T]{
		capacity:  capacity,
		lowCutoff: lowCutoff,
		emit:      emit,
	}
}

func itemLess[T any](a, b *domain.WorkItem[T]) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Sequence < b.Sequence
}

// Enqueue inserts it in priority order. When the queue is full the least
// urgent, newest pending item is evicted if it is at or below the low cutoff
// and strictly less urgent than it; otherwise it is rejected with
// ErrQueueOverflow. Both paths raise overflow_handled.
func (q *WorkQueue[T]) Enqueue(it *domain.WorkItem[T]) (evicted *domain.WorkItem[T], err error) {
	if q.capacity > 0 && len(q.items) >= q.capacity {
		victim := q.items[len(q.items)-1]
		if victim.Priority < q.lowCutoff || victim.Priority <= it.Priority {
			q.emit(domain.Event{
				Kind:     domain.EventOverflowHandled,
				ItemID:   it.ID,
				Priority: it.Priority,
				Count:    1,
				Reason:   domain.ReasonRejected,
			})
			return nil, fmt.Errorf("%w: %d items pending", domain.ErrQueueOverflow, len(q.items))
		}
		q.items = q.items[:len(q.items)-1]
		q.emit(domain.Event{
			Kind:     domain.EventOverflowHandled,
			ItemID:   victim.ID,
			Priority: victim.Priority,
			Count:    1,
			Reason:   domain.ReasonEvicted,
		})
		q.emit(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   victim.ID,
			Priority: victim.Priority,
			Reason:   domain.ReasonEvicted,
		})
		evicted = victim
	}

	i := sort.Search(len(q.items), func(i int) bool { return itemLess(it, q.items[i]) })
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = it

	q.emit(domain.Event{
		Kind:     domain.EventItemQueued,
		ItemID:   it.ID,
		Priority: it.Priority,
		Count:    len(q.items),
	})
	return evicted, nil
}

// DequeueMatching removes and returns every item matching pred, in queue order.
func (q *WorkQueue[T]) DequeueMatching(pred func(*domain.WorkItem[T]) bool) []*domain.WorkItem[T] {
	var out []*domain.WorkItem[T]
	kept := q.items[:0]
	for _, it := range q.items {
		if pred(it) {
			out = append(out, it)
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept

	for _, it := range out {
		q.emit(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   it.ID,
			Priority: it.Priority,
			Reason:   domain.ReasonBatched,
		})
	}
	return out
}

// Remove deletes the pending item with the given id.
// It is a no-op returning false when the item is not pending.
func (q *WorkQueue[T]) Remove(id, reason string) (*domain.WorkItem[T], bool) {
	for i, it := range q.items {
		if it.ID != id {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		q.emit(domain.Event{
			Kind:     domain.EventItemRemoved,
			ItemID:   it.ID,
			Priority: it.Priority,
			Reason:   reason,
		})
		return it, true
	}
	return nil, false
}

// Get returns the pending item with the given id.
func (q *WorkQueue[T]) Get(id string) (*domain.WorkItem[T], bool) {
	for _, it := range q.items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// Each calls fn for every pending item in queue order. fn may mutate the
// item but must not change its priority or sequence.
func (q *WorkQueue[T]) Each(fn func(*domain.WorkItem[T])) {
	for _, it := range q.items {
		fn(it)
	}
}

// Items returns a copy of the pending items in queue order.
func (q *WorkQueue[T]) Items() []*domain.WorkItem[T] {
	return append([]*domain.WorkItem[T](nil), q.items...)
}

// Len returns the number of pending items.
func (q *WorkQueue[T]) Len() int {
	return len(q.items)
}
