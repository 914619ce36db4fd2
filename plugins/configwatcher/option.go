package configwatcher

import "github.com/bft-labs/pacer/pkg/pacer"

// WithConfigWatcher returns a pacer Option that reloads limits when the
// config file changes.
//
// Usage:
//
//	p, err := pacer.NewReminderScheduler(cfg,
//	    configwatcher.WithConfigWatcher[pacer.Reminder](configwatcher.Config{
//	        Path: "/etc/pacer/config.toml",
//	    }),
//	)
func WithConfigWatcher[T any](cfg Config) pacer.Option[T] {
	return pacer.WithPlugin[T](New[T](cfg))
}

// WithDefaultConfigWatcher watches ~/.pacer/config.toml.
func WithDefaultConfigWatcher[T any]() pacer.Option[T] {
	return WithConfigWatcher[T](DefaultConfig())
}
