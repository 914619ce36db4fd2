package pacer

import (
	"github.com/bft-labs/pacer/internal/app"
	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// Core scheduling types. They are aliases so values flow between the
// embedding API and the adapters without conversion.
type (
	// WorkItem is a unit of work submitted by a producer.
	WorkItem[T any] = domain.WorkItem[T]

	// Priority orders work items. Lower values are more urgent.
	Priority = domain.Priority

	// Requirement is a resource estimate.
	Requirement = domain.Requirement

	// DegradationLevel is how far an item's quality has been reduced.
	DegradationLevel = domain.DegradationLevel

	// DegradationOption describes what an item looks like at one level.
	DegradationOption = domain.DegradationOption

	// ResourceKind names a tracked resource.
	ResourceKind = domain.ResourceKind

	// ResourceLimit configures one tracked resource.
	ResourceLimit = app.ResourceLimit

	// PressureThresholds are the utilization fractions for each pressure level.
	PressureThresholds = domain.PressureThresholds

	// Limits are the adjustable scheduling limits.
	Limits = domain.Limits

	// Report is a point-in-time view of a scheduler.
	Report = domain.Status

	// Stats are the telemetry counters and averages.
	Stats = domain.Stats

	// Event is an observable scheduler event.
	Event = domain.Event

	// EventSink observes scheduler events.
	EventSink = ports.EventSink

	// Delivery is one channel sub-group of a batch handed to a Dispatcher.
	Delivery[T any] = ports.Delivery[T]

	// Dispatcher delivers work to the external collaborator.
	Dispatcher[T any] = ports.Dispatcher[T]

	// DispatcherFunc adapts a function to Dispatcher.
	DispatcherFunc[T any] = ports.DispatcherFunc[T]

	// ResourceSampler reads current resource consumption.
	ResourceSampler = ports.ResourceSampler

	// ResourceSamplerFunc adapts a function to ResourceSampler.
	ResourceSamplerFunc = ports.ResourceSamplerFunc

	// Usage is one raw resource reading.
	Usage = ports.Usage

	// Clock abstracts time.
	Clock = ports.Clock

	// Strategy is one grouping pass of the batch composer.
	Strategy[T any] = app.Strategy[T]

	// StatusRepository persists the latest Report.
	StatusRepository = ports.StatusRepository

	// Logger is the interface for structured logging.
	Logger = ports.Logger

	// LogField is a structured log field.
	LogField = ports.Field

	// HTTPClient is the interface for making HTTP requests.
	// *http.Client satisfies this interface.
	HTTPClient = ports.HTTPClient

	// State is the lifecycle state of a Pacer.
	State = app.State
)

const (
	PriorityCritical   = domain.PriorityCritical
	PriorityHigh       = domain.PriorityHigh
	PriorityMedium     = domain.PriorityMedium
	PriorityLow        = domain.PriorityLow
	PriorityBackground = domain.PriorityBackground
)

const (
	DegradationNone        = domain.DegradationNone
	DegradationModerate    = domain.DegradationModerate
	DegradationSignificant = domain.DegradationSignificant
	DegradationSevere      = domain.DegradationSevere
)

const (
	ResourceMemory  = domain.ResourceMemory
	ResourceCPU     = domain.ResourceCPU
	ResourceNetwork = domain.ResourceNetwork
	ResourceIO      = domain.ResourceIO
	ResourceVoice   = domain.ResourceVoice
	ResourceAvatar  = domain.ResourceAvatar
)

const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// Errors returned by the API. Check with errors.Is.
var (
	ErrAlreadyRunning           = domain.ErrAlreadyRunning
	ErrNotRunning               = domain.ErrNotRunning
	ErrShutdownTimeout          = domain.ErrShutdownTimeout
	ErrInvalidConfig            = domain.ErrInvalidConfig
	ErrInvalidItem              = domain.ErrInvalidItem
	ErrQueueOverflow            = domain.ErrQueueOverflow
	ErrBatchExecution           = domain.ErrBatchExecution
	ErrResourceSampling         = domain.ErrResourceSampling
	ErrInvalidDegradationConfig = domain.ErrInvalidDegradationConfig
	ErrUnschedulable            = domain.ErrUnschedulable
	ErrUnknownItem              = domain.ErrUnknownItem
)

// ParsePriority parses a priority name or number.
func ParsePriority(s string) (Priority, error) {
	return domain.ParsePriority(s)
}

// DefaultResourceLimits returns limits sized for a small household device.
func DefaultResourceLimits() map[ResourceKind]ResourceLimit {
	return app.DefaultResourceLimits()
}

// DefaultStrategies returns the standard composition passes: temporal,
// owner affinity, priority, context affinity, residual.
func DefaultStrategies[T any](cfg Config, contextKey func(*WorkItem[T]) string) []Strategy[T] {
	return app.DefaultStrategies(cfg.TemporalWindow, PriorityHigh, contextKey)
}
