package core

import (
	"context"
	"time"
)

// EventType identifies a queue lifecycle event.
type EventType string

const (
	// EventEnqueued is published when a write is deferred into the queue.
	EventEnqueued EventType = "enqueued"

	// EventCompleted is published when a replay attempt succeeds.
	EventCompleted EventType = "completed"

	// EventFailed is published when a replay attempt fails.
	EventFailed EventType = "failed"

	// EventPassFinished is published once per replay pass with aggregate
	// counts in the Detail field.
	EventPassFinished EventType = "pass_finished"
)

// Event describes one queue lifecycle event for audit consumers.
type Event struct {
	Type        EventType `json:"type"`
	OperationID string    `json:"operationId,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	Method      string    `json:"method,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventSink receives queue lifecycle events. Sinks are best-effort: publish
// failures are logged by the caller and never affect queue processing.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
