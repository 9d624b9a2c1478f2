package core

import "context"

// SnapshotStore defines the interface for durable snapshot persistence.
// The queue store serializes its whole aggregate to a single blob and
// hands it to a SnapshotStore; implementations decide where the blob
// lives (SQLite file, MySQL row, Redis key, DynamoDB item, memory).
type SnapshotStore interface {
	// Save persists the snapshot blob, replacing any previous snapshot.
	Save(ctx context.Context, data []byte) error

	// Load retrieves the most recently saved snapshot blob.
	// Returns (nil, nil) when no snapshot has been saved yet.
	Load(ctx context.Context) ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}
