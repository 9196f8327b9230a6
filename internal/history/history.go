// Package history records supervision events (restart attempts, alerts,
// lifecycle transitions) into an audit journal. It is deliberately not a
// metrics time-series; samples never go here.
package history

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRestart    EventType = "restart"
	EventAlert      EventType = "alert"
	EventTransition EventType = "transition"
)

// Event is one journal record.
type Event struct {
	OccurredAt time.Time `json:"occurred_at"`
	Type       EventType `json:"type"`
	Name       string    `json:"name"` // process name, or "" for daemon-level events
	PID        int32     `json:"pid"`
	Detail     string    `json:"detail"`
}

// Sink persists events. Implementations must tolerate concurrent callers.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Record writes e to sink if one is configured. Persistence failures are
// logged and swallowed: the journal must never take the daemon down.
func Record(ctx context.Context, sink Sink, e Event) {
	if sink == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if err := sink.Send(ctx, e); err != nil {
		slog.Warn("history sink write failed", "type", e.Type, "name", e.Name, "error", err)
	}
}
