package ports

import (
	"context"

	"github.com/bft-labs/pacer/internal/domain"
)

// Delivery is one channel sub-group of a batch handed to the dispatcher.
type Delivery[T any] struct {
	BatchID        string
	Classification domain.Classification
	Channel        string
	Items          []*domain.WorkItem[T]
	// Degradation is the most severe level among Items.
	Degradation domain.DegradationLevel
}

// Dispatcher delivers work to the external collaborator (notification
// dispatcher, voice pipeline, avatar renderer).
type Dispatcher[T any] interface {
	// Dispatch delivers the items and blocks until the collaborator is done.
	// Returns nil on success. On error none of the items are considered
	// delivered.
	Dispatch(ctx context.Context, d Delivery[T]) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc[T any] func(ctx context.Context, d Delivery[T]) error

// Dispatch calls f.
func (f DispatcherFunc[T]) Dispatch(ctx context.Context, d Delivery[T]) error {
	return f(ctx, d)
}
