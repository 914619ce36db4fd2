package pacer

import "context"

// Plugin extends a Pacer with optional functionality.
type Plugin[T any] interface {
	// Name returns a short identifier used in logs.
	Name() string

	// Initialize is called from Start, before scheduling begins. ctx is
	// cancelled when the Pacer stops. A non-nil error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig[T]) error

	// Shutdown is called from Stop after scheduling has ended.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on initialization.
type PluginConfig[T any] struct {
	// Pacer is the instance the plugin is attached to.
	Pacer  *Pacer[T]
	Logger Logger
}

// BasePlugin provides no-op Initialize and Shutdown for embedding.
type BasePlugin[T any] struct {
	PluginName string
}

// Name returns PluginName.
func (b BasePlugin[T]) Name() string {
	return b.PluginName
}

// Initialize does nothing.
func (BasePlugin[T]) Initialize(context.Context, PluginConfig[T]) error {
	return nil
}

// Shutdown does nothing.
func (BasePlugin[T]) Shutdown(context.Context) error {
	return nil
}
