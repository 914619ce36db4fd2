package statusapi

import "github.com/bft-labs/pacer/pkg/pacer"

// WithStatusAPI returns a pacer Option that serves the status API while the
// instance runs.
//
// Usage:
//
//	p, err := pacer.NewReminderScheduler(cfg,
//	    statusapi.WithStatusAPI[pacer.Reminder](statusapi.Config{Addr: ":7070"}),
//	)
func WithStatusAPI[T any](cfg Config) pacer.Option[T] {
	return pacer.WithPlugin[T](New[T](cfg))
}
