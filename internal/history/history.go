package history

import (
	"context"
	"time"
)

// EventType defines the kind of exported event.
type EventType string

const (
	EventFocus    EventType = "focus"
	EventReminder EventType = "reminder"
)

// Event is one closed focus interval or one reminder outcome, exported to
// analytics systems. Focus fields are zero for reminder events and vice versa.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	DurationMs int64 `json:"duration_ms,omitempty"`
	Productive bool  `json:"productive"`

	ReminderID string `json:"reminder_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Score      int    `json:"score,omitempty"`
	TabID      int    `json:"tab_id,omitempty"`
	Delivered  bool   `json:"delivered"`
	Suppressed bool   `json:"suppressed"`
	Channel    string `json:"channel,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
