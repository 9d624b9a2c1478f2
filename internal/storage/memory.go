package storage

import (
	"context"
	"sync"
)

// MemoryStore implements core.SnapshotStore in process memory.
// Useful for tests and for callers that explicitly opt out of durability.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores a copy of the snapshot blob.
func (m *MemoryStore) Save(_ context.Context, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.data = cp
	m.mu.Unlock()
	return nil
}

// Load returns a copy of the last saved blob, or (nil, nil) if none.
func (m *MemoryStore) Load(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, nil
	}
	cp := make([]byte, len(m.data))
	copy(cp, m.data)
	return cp, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
