package domain

import "errors"

// Domain errors represent error conditions in the pacer domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("pacer: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("pacer: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("pacer: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pacer: invalid configuration")

	// ErrInvalidItem is returned when a submitted item fails validation.
	ErrInvalidItem = errors.New("pacer: invalid work item")

	// ErrQueueOverflow is returned when the work queue is full and nothing
	// less urgent than the incoming item can be evicted.
	ErrQueueOverflow = errors.New("pacer: work queue overflow")

	// ErrBatchExecution wraps a dispatcher failure for a batch.
	ErrBatchExecution = errors.New("pacer: batch execution failed")

	// ErrResourceSampling wraps a sampler failure.
	ErrResourceSampling = errors.New("pacer: resource sampling failed")

	// ErrInvalidDegradationConfig is returned for a missing or malformed
	// degradation option.
	ErrInvalidDegradationConfig = errors.New("pacer: invalid degradation config")

	// ErrUnschedulable is returned for an item whose requirement exceeds a
	// threshold even on an idle system.
	ErrUnschedulable = errors.New("pacer: item can never be admitted")

	// ErrUnknownItem is returned when an id does not match a pending item.
	ErrUnknownItem = errors.New("pacer: unknown item")
)
