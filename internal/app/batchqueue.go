package app

import (
	"sort"

	"github.com/bft-labs/pacer/internal/domain"
)

// BatchQueue holds composed batches awaiting admission, ordered by
// domain.Batch.Less. Not safe for concurrent use.
type BatchQueue[T any] struct {
	batches []*domain.Batch[T]
	seq     uint64
}

// NewBatchQueue creates an empty batch queue.
func NewBatchQueue[T any]() *BatchQueue[T] {
	return &BatchQueue[T]{}
}

// Push inserts b in order.
func (q *BatchQueue[T]) Push(b *domain.Batch[T]) {
	q.seq++
	b.Sequence = q.seq
	b.State = domain.BatchQueued
	i := sort.Search(len(q.batches), func(i int) bool { return b.Less(q.batches[i]) })
	q.batches = append(q.batches, nil)
	copy(q.batches[i+1:], q.batches[i:])
	q.batches[i] = b
}

// Peek returns the head without removing it.
func (q *BatchQueue[T]) Peek() *domain.Batch[T] {
	if len(q.batches) == 0 {
		return nil
	}
	return q.batches[0]
}

// Pop removes and returns the head.
func (q *BatchQueue[T]) Pop() *domain.Batch[T] {
	if len(q.batches) == 0 {
		return nil
	}
	b := q.batches[0]
	q.batches[0] = nil
	q.batches = q.batches[1:]
	return b
}

// RemoveMatching removes and returns every batch matching pred.
func (q *BatchQueue[T]) RemoveMatching(pred func(*domain.Batch[T]) bool) []*domain.Batch[T] {
	var out []*domain.Batch[T]
	kept := make([]*domain.Batch[T], 0, len(q.batches))
	for _, b := range q.batches {
		if pred(b) {
			out = append(out, b)
			continue
		}
		kept = append(kept, b)
	}
	q.batches = kept
	return out
}

// RemoveItem drops the item with id from whichever queued batch holds it.
// An emptied batch is removed from the queue. Returns the item and its batch.
func (q *BatchQueue[T]) RemoveItem(id string) (*domain.WorkItem[T], *domain.Batch[T], bool) {
	for bi, b := range q.batches {
		for ii, it := range b.Items {
			if it.ID != id {
				continue
			}
			b.Items = append(b.Items[:ii], b.Items[ii+1:]...)
			if len(b.Items) == 0 {
				q.batches = append(q.batches[:bi], q.batches[bi+1:]...)
			} else {
				b.Refresh()
				q.resort()
			}
			return it, b, true
		}
	}
	return nil, nil, false
}

// resort restores ordering after members changed.
func (q *BatchQueue[T]) resort() {
	sort.SliceStable(q.batches, func(i, j int) bool { return q.batches[i].Less(q.batches[j]) })
}

// Each calls fn for every queued batch in order.
func (q *BatchQueue[T]) Each(fn func(*domain.Batch[T])) {
	for _, b := range q.batches {
		fn(b)
	}
}

// Refresh recomputes every batch's aggregates and restores ordering.
func (q *BatchQueue[T]) Refresh() {
	for _, b := range q.batches {
		b.Refresh()
	}
	q.resort()
}

// Len returns the number of queued batches.
func (q *BatchQueue[T]) Len() int {
	return len(q.batches)
}

// Batches returns a copy of the queued batches in order.
func (q *BatchQueue[T]) Batches() []*domain.Batch[T] {
	return append([]*domain.Batch[T](nil), q.batches...)
}
