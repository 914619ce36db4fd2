// Package ports defines the interfaces (ports) that connect the scheduler
// core to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Dispatcher]: Delivers batch sub-groups to the external collaborator
//   - [ResourceSampler]: Reads current resource consumption
//   - [Clock]: Time source and tickers, replaceable in tests
//   - [EventSink]: Observes scheduler events
//   - [StatusRepository]: Persists the latest status snapshot
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// implementations (HTTP, procfs, zerolog, Prometheus, etc.).
package ports
