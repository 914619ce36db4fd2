package pacer

// Option configures optional behavior of a Pacer.
type Option[T any] func(*options[T])

type options[T any] struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	sinks        []EventSink
	dispatcher   Dispatcher[T]
	sampler      ResourceSampler
	clock        Clock
	strategies   []Strategy[T]
	contextKey   func(*WorkItem[T]) string
	statusRepo   StatusRepository
	plugins      []Plugin[T]
}

// WithHTTPClient sets the client used by the built-in HTTP dispatcher.
// If not provided, a client with Config.DispatchTimeout is used.
func WithHTTPClient[T any](client HTTPClient) Option[T] {
	return func(o *options[T]) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger[T any](logger Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lifecycle and scheduler events.
// Scheduler events are delivered synchronously outside the scheduler lock.
func WithEventHandler[T any](handler EventHandler) Option[T] {
	return func(o *options[T]) {
		o.eventHandler = handler
	}
}

// WithEventSink adds an observer of scheduler events.
func WithEventSink[T any](sink EventSink) Option[T] {
	return func(o *options[T]) {
		o.sinks = append(o.sinks, sink)
	}
}

// WithDispatcher sets the collaborator that delivers batches.
// If not provided, Config.DispatchURL must be set and deliveries are POSTed
// to it.
func WithDispatcher[T any](d Dispatcher[T]) Option[T] {
	return func(o *options[T]) {
		o.dispatcher = d
	}
}

// WithSampler replaces the built-in process resource sampler.
func WithSampler[T any](s ResourceSampler) Option[T] {
	return func(o *options[T]) {
		o.sampler = s
	}
}

// WithClock replaces the wall clock. Intended for tests.
func WithClock[T any](c Clock) Option[T] {
	return func(o *options[T]) {
		o.clock = c
	}
}

// WithStrategies replaces the composition passes.
func WithStrategies[T any](strategies ...Strategy[T]) Option[T] {
	return func(o *options[T]) {
		o.strategies = strategies
	}
}

// WithContextKey replaces the key used for context-affinity grouping.
// The default key is the item's channel plus its sorted constraints.
func WithContextKey[T any](key func(*WorkItem[T]) string) Option[T] {
	return func(o *options[T]) {
		o.contextKey = key
	}
}

// WithStatusRepository sets where periodic status reports are persisted.
// If not provided and Config.StateDir is set, status.json is written there.
func WithStatusRepository[T any](repo StatusRepository) Option[T] {
	return func(o *options[T]) {
		o.statusRepo = repo
	}
}

// WithPlugin registers a plugin to be initialized when the Pacer starts.
// Plugins are initialized in registration order and shut down in reverse
// order.
func WithPlugin[T any](plugin Plugin[T]) Option[T] {
	return func(o *options[T]) {
		o.plugins = append(o.plugins, plugin)
	}
}
