package events

import (
	"context"
	"sync"

	"github.com/shopstack/syncqueue/internal/core"
)

// NoopSink discards all events. Used when no audit trail is configured.
type NoopSink struct{}

// NewNoopSink creates a sink that discards events.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Publish discards the event.
func (NoopSink) Publish(_ context.Context, _ core.Event) error {
	return nil
}

// Close is a no-op.
func (NoopSink) Close() error {
	return nil
}

// MemorySink collects events in memory, for tests and the demo binary.
type MemorySink struct {
	mu     sync.Mutex
	events []core.Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish appends the event.
func (m *MemorySink) Publish(_ context.Context, event core.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

// Events returns a copy of all published events in publish order.
func (m *MemorySink) Events() []core.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Close is a no-op.
func (m *MemorySink) Close() error {
	return nil
}
