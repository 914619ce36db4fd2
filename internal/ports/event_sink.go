package ports

import "github.com/bft-labs/pacer/internal/domain"

// EventSink observes scheduler events.
// OnEvent is called synchronously, outside the scheduler lock, in the order
// events were produced. Implementations should return quickly.
type EventSink interface {
	OnEvent(e domain.Event)
}
