package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/pacer/internal/domain"
)

// Composer turns ready work items into batches by running its strategies in
// order, each on the items earlier passes left unclaimed.
type Composer[T any] struct {
	strategies []Strategy[T]
	newID      func() string
}

// NewComposer creates a composer. A residual sweep always runs after the
// given strategies so that no item is left unbatched.
func NewComposer[T any](strategies []Strategy[T]) *Composer[T] {
	return &Composer[T]{
		strategies: strategies,
		newID:      uuid.NewString,
	}
}

// Compose partitions items into batches of at most ceiling members.
func (c *Composer[T]) Compose(items []*domain.WorkItem[T], ceiling int, now time.Time) []*domain.Batch[T] {
	var batches []*domain.Batch[T]
	rest := items
	for _, s := range c.strategies {
		if len(rest) == 0 {
			break
		}
		var groups [][]*domain.WorkItem[T]
		groups, rest = s.Group(rest, ceiling)
		for _, g := range groups {
			batches = append(batches, domain.NewBatch(c.newID(), s.Classification(), g, now))
		}
	}
	if len(rest) > 0 {
		for _, g := range chunk(rest, ceiling) {
			batches = append(batches, domain.NewBatch(c.newID(), domain.ClassResidual, g, now))
		}
	}
	return batches
}

// Emergency wraps a critical item in its own batch.
func (c *Composer[T]) Emergency(it *domain.WorkItem[T], now time.Time) *domain.Batch[T] {
	return domain.NewBatch(c.newID(), domain.ClassEmergency, []*domain.WorkItem[T]{it}, now)
}

// Split breaks b into single-item batches keeping its classification.
func (c *Composer[T]) Split(b *domain.Batch[T], now time.Time) []*domain.Batch[T] {
	out := make([]*domain.Batch[T], 0, len(b.Items))
	for _, it := range b.Items {
		out = append(out, domain.NewBatch(c.newID(), b.Classification, []*domain.WorkItem[T]{it}, now))
	}
	return out
}
