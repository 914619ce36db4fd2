package app

import (
	"strconv"
	"time"

	"github.com/bft-labs/pacer/internal/domain"
)

// Strategy is one grouping pass of the batch composer.
type Strategy[T any] interface {
	// Classification tags batches formed by this pass.
	Classification() domain.Classification

	// Group claims items into groups of at most ceiling members.
	// Unclaimed items are returned in their original order.
	Group(items []*domain.WorkItem[T], ceiling int) (groups [][]*domain.WorkItem[T], rest []*domain.WorkItem[T])
}

// DefaultStrategies returns the standard pass order: temporal, owner
// affinity, priority, context affinity, residual.
func DefaultStrategies[T any](temporalWindow time.Duration, highThreshold domain.Priority, contextKey func(*domain.WorkItem[T]) string) []Strategy[T] {
	return []Strategy[T]{
		TemporalStrategy[T]{Window: temporalWindow},
		OwnerAffinityStrategy[T]{},
		PriorityStrategy[T]{Threshold: highThreshold},
		ContextAffinityStrategy[T]{Key: contextKey},
		ResidualStrategy[T]{},
	}
}

// TemporalStrategy groups items with an explicit target time falling in the
// same fixed window. Buckets need at least two members.
type TemporalStrategy[T any] struct {
	Window time.Duration
}

func (TemporalStrategy[T]) Classification() domain.Classification { return domain.ClassTemporal }

func (s TemporalStrategy[T]) Group(items []*domain.WorkItem[T], ceiling int) ([][]*domain.WorkItem[T], []*domain.WorkItem[T]) {
	window := s.Window
	if window <= 0 {
		window = time.Minute
	}
	return bucketize(items, ceiling, 2, func(it *domain.WorkItem[T]) (string, bool) {
		if it.TargetTime.IsZero() {
			return "", false
		}
		return strconv.FormatInt(it.TargetTime.UnixNano()/int64(window), 10), true
	})
}

// OwnerAffinityStrategy groups items sharing an owner. Buckets need at least
// two members.
type OwnerAffinityStrategy[T any] struct{}

func (OwnerAffinityStrategy[T]) Classification() domain.Classification {
	return domain.ClassOwnerAffinity
}

func (OwnerAffinityStrategy[T]) Group(items []*domain.WorkItem[T], ceiling int) ([][]*domain.WorkItem[T], []*domain.WorkItem[T]) {
	return bucketize(items, ceiling, 2, func(it *domain.WorkItem[T]) (string, bool) {
		return it.OwnerID, it.OwnerID != ""
	})
}

// PriorityStrategy groups every item at or above Threshold.
type PriorityStrategy[T any] struct {
	Threshold domain.Priority
}

func (PriorityStrategy[T]) Classification() domain.Classification { return domain.ClassPriority }

func (s PriorityStrategy[T]) Group(items []*domain.WorkItem[T], ceiling int) ([][]*domain.WorkItem[T], []*domain.WorkItem[T]) {
	return bucketize(items, ceiling, 1, func(it *domain.WorkItem[T]) (string, bool) {
		return "", it.Priority <= s.Threshold
	})
}

// ContextAffinityStrategy groups items with an identical context key.
// Key defaults to channel plus sorted constraints. Buckets need at least two
// members.
type ContextAffinityStrategy[T any] struct {
	Key func(*domain.WorkItem[T]) string
}

func (ContextAffinityStrategy[T]) Classification() domain.Classification {
	return domain.ClassContextAffinity
}

func (s ContextAffinityStrategy[T]) Group(items []*domain.WorkItem[T], ceiling int) ([][]*domain.WorkItem[T], []*domain.WorkItem[T]) {
	key := s.Key
	if key == nil {
		key = func(it *domain.WorkItem[T]) string { return it.ContextKey() }
	}
	return bucketize(items, ceiling, 2, func(it *domain.WorkItem[T]) (string, bool) {
		k := key(it)
		return k, k != ""
	})
}

// ResidualStrategy chunks everything left.
type ResidualStrategy[T any] struct{}

func (ResidualStrategy[T]) Classification() domain.Classification { return domain.ClassResidual }

func (ResidualStrategy[T]) Group(items []*domain.WorkItem[T], ceiling int) ([][]*domain.WorkItem[T], []*domain.WorkItem[T]) {
	return chunk(items, ceiling), nil
}

// bucketize groups items by key in first-seen order. Items without a key and
// buckets smaller than minSize are returned as rest.
func bucketize[T any](items []*domain.WorkItem[T], ceiling, minSize int, key func(*domain.WorkItem[T]) (string, bool)) ([][]*domain.WorkItem[T], []*domain.WorkItem[T]) {
	var order []string
	buckets := make(map[string][]*domain.WorkItem[T])
	for _, it := range items {
		k, ok := key(it)
		if !ok {
			continue
		}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], it)
	}

	claimed := make(map[*domain.WorkItem[T]]bool)
	var groups [][]*domain.WorkItem[T]
	for _, k := range order {
		b := buckets[k]
		if len(b) < minSize {
			continue
		}
		for _, it := range b {
			claimed[it] = true
		}
		groups = append(groups, chunk(b, ceiling)...)
	}

	var rest []*domain.WorkItem[T]
	for _, it := range items {
		if !claimed[it] {
			rest = append(rest, it)
		}
	}
	return groups, rest
}

// chunk splits items into consecutive groups of at most size.
func chunk[T any](items []*domain.WorkItem[T], size int) [][]*domain.WorkItem[T] {
	if size <= 0 {
		size = 1
	}
	var out [][]*domain.WorkItem[T]
	for len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		out = append(out, items[:n:n])
		items = items[n:]
	}
	return out
}
