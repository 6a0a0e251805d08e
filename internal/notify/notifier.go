package notify

import (
	"context"
	"time"
)

// Event is a cache telemetry payload. Events are advisory: consumers must
// never feed them back into cache decisions.
type Event struct {
	Name    string         `json:"event"`
	Scope   string         `json:"scope"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// Notifier delivers events best-effort. Implementations swallow their own
// failures; a broken sink must never abort the operation that emitted the
// event.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Multi fans an event out to several sinks.
type Multi []Notifier

// Notify delivers the event to every sink in order.
func (m Multi) Notify(ctx context.Context, event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, event)
		}
	}
}

// Noop discards all events.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Event) {}
