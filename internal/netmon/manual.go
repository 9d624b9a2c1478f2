package netmon

import (
	"context"
	"sync"
)

// ManualSignal is a connectivity signal driven by explicit Set calls.
// Used in tests and by hosts that receive connectivity state from the
// platform instead of probing for it.
type ManualSignal struct {
	mu     sync.RWMutex
	online bool
}

// NewManualSignal creates a manual signal with an initial state.
func NewManualSignal(online bool) *ManualSignal {
	return &ManualSignal{online: online}
}

// Set updates the reported state. The change is observed by the monitor on
// its next poll or CheckNow call.
func (m *ManualSignal) Set(online bool) {
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()
}

// Online reports the current state.
func (m *ManualSignal) Online(_ context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}
