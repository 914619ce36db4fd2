package pacer

import "strings"

// Reminder is the payload of a family reminder.
type Reminder struct {
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
	// Room is where the reminder should be announced. Reminders for the
	// same room are grouped together.
	Room      string `json:"room,omitempty"`
	Recurring bool   `json:"recurring,omitempty"`
}

// Request is the payload of a generic processing request.
type Request struct {
	// Kind is the processing pipeline, for example "summarize" or "tts".
	Kind string            `json:"kind"`
	Room string            `json:"room,omitempty"`
	Body string            `json:"body,omitempty"`
	Meta map[string]string `json:"meta,omitempty"`
}

// ReminderContextKey groups reminders by delivery channel and room.
func ReminderContextKey(it *WorkItem[Reminder]) string {
	if it.Payload.Room == "" {
		return it.ContextKey()
	}
	return it.Channel + "@" + strings.ToLower(it.Payload.Room)
}

// RequestContextKey groups requests by pipeline and constraints.
func RequestContextKey(it *WorkItem[Request]) string {
	key := it.ContextKey()
	if it.Payload.Kind == "" {
		return key
	}
	return it.Payload.Kind + "|" + key
}

// NewReminderScheduler creates a Pacer for reminders, grouped by room for
// context affinity.
func NewReminderScheduler(cfg Config, opts ...Option[Reminder]) (*Pacer[Reminder], error) {
	opts = append([]Option[Reminder]{WithContextKey(ReminderContextKey)}, opts...)
	return New(cfg, opts...)
}

// NewRequestScheduler creates a Pacer for processing requests, grouped by
// pipeline for context affinity.
func NewRequestScheduler(cfg Config, opts ...Option[Request]) (*Pacer[Request], error) {
	opts = append([]Option[Request]{WithContextKey(RequestContextKey)}, opts...)
	return New(cfg, opts...)
}
