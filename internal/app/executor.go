package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// DefaultMinBatchTimeout bounds the execution timeout from below.
const DefaultMinBatchTimeout = 5 * time.Second

// ExecResult is the outcome of one batch execution.
type ExecResult[T any] struct {
	Delivered []*domain.WorkItem[T]
	// Undelivered items were not delivered because a dispatch failed.
	Undelivered []*domain.WorkItem[T]
	// Skipped items were cancelled before their sub-group was dispatched.
	Skipped  []*domain.WorkItem[T]
	Duration time.Duration
	Err      error
}

// Executor dispatches a batch to the external collaborator one channel
// sub-group at a time.
type Executor[T any] struct {
	dispatcher ports.Dispatcher[T]
	clock      ports.Clock
	minTimeout time.Duration
	logger     ports.Logger
}

// NewExecutor creates an executor.
func NewExecutor[T any](dispatcher ports.Dispatcher[T], clock ports.Clock, minTimeout time.Duration, logger ports.Logger) *Executor[T] {
	if minTimeout <= 0 {
		minTimeout = DefaultMinBatchTimeout
	}
	return &Executor[T]{
		dispatcher: dispatcher,
		clock:      clock,
		minTimeout: minTimeout,
		logger:     logger,
	}
}

// Timeout is the estimated duration scaled by the worst member degradation,
// never below the configured minimum.
func (e *Executor[T]) Timeout(b *domain.Batch[T]) time.Duration {
	d := time.Duration(float64(b.EstimatedDuration) * b.MaxDegradation().TimeoutMultiplier())
	if d < e.minTimeout {
		return e.minTimeout
	}
	return d
}

// Execute runs b. cancelled is consulted before every sub-group dispatch.
// The first failing sub-group stops execution; it and every later
// sub-group are reported undelivered.
func (e *Executor[T]) Execute(ctx context.Context, b *domain.Batch[T], cancelled func(id string) bool) ExecResult[T] {
	var res ExecResult[T]
	start := e.clock.Now()

	ctx, cancel := context.WithTimeout(ctx, e.Timeout(b))
	defer cancel()

	groups := groupByChannel(b.Items)
	for gi, g := range groups {
		live := g.items[:0:0]
		for _, it := range g.items {
			if cancelled(it.ID) {
				res.Skipped = append(res.Skipped, it)
				continue
			}
			live = append(live, it)
		}
		if len(live) == 0 {
			continue
		}

		d := ports.Delivery[T]{
			BatchID:        b.ID,
			Classification: b.Classification,
			Channel:        g.channel,
			Items:          live,
			Degradation:    maxLevel(live),
		}
		if err := e.dispatch(ctx, d); err != nil {
			res.Err = fmt.Errorf("%w: batch %s channel %q: %v", domain.ErrBatchExecution, b.ID, g.channel, err)
			res.Undelivered = append(res.Undelivered, live...)
			for _, rest := range groups[gi+1:] {
				for _, it := range rest.items {
					if cancelled(it.ID) {
						res.Skipped = append(res.Skipped, it)
						continue
					}
					res.Undelivered = append(res.Undelivered, it)
				}
			}
			break
		}
		res.Delivered = append(res.Delivered, live...)
	}

	res.Duration = e.clock.Now().Sub(start)
	return res
}

// dispatch converts a dispatcher panic into an error.
func (e *Executor[T]) dispatch(ctx context.Context, d ports.Delivery[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.dispatcher.Dispatch(ctx, d)
}

type channelGroup[T any] struct {
	channel string
	items   []*domain.WorkItem[T]
}

func groupByChannel[T any](items []*domain.WorkItem[T]) []channelGroup[T] {
	var groups []channelGroup[T]
	index := make(map[string]int)
	for _, it := range items {
		i, ok := index[it.Channel]
		if !ok {
			i = len(groups)
			index[it.Channel] = i
			groups = append(groups, channelGroup[T]{channel: it.Channel})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups
}

func maxLevel[T any](items []*domain.WorkItem[T]) domain.DegradationLevel {
	level := domain.DegradationNone
	for _, it := range items {
		if l := it.Degradation.Current(); l > level {
			level = l
		}
	}
	return level
}
