package core

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a queued operation.
type Status string

const (
	// StatusPending means the operation is waiting to be replayed.
	StatusPending Status = "pending"

	// StatusSyncing means a replay pass is currently executing the operation.
	StatusSyncing Status = "syncing"

	// StatusCompleted means the server accepted the operation. Completed
	// operations are removed from the queue after a grace period.
	StatusCompleted Status = "completed"

	// StatusFailed means the last replay attempt failed. Failed operations
	// stay in the queue until they are explicitly reset or cleared.
	StatusFailed Status = "failed"
)

// Operation represents a single deferred write request and its lifecycle
// state. Operations are created when a write is attempted without
// connectivity and replayed in insertion order when connectivity returns.
type Operation struct {
	// ID is a unique identifier assigned at enqueue time.
	ID string `json:"id"`

	// Endpoint is the target path or URL of the deferred request.
	Endpoint string `json:"endpoint"`

	// Method is the HTTP verb of the deferred request.
	Method string `json:"method"`

	// Payload is the request body, forwarded verbatim on replay.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Status is the operation's current lifecycle state.
	Status Status `json:"status"`

	// RetryCount tracks how many replay attempts have failed.
	RetryCount int `json:"retryCount"`

	// Error holds failure detail from the last attempt. Only set while
	// Status is StatusFailed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the operation was enqueued. Insertion order is
	// the replay order, CreatedAt is informational.
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is the persisted aggregate: the full operation collection plus
// the configuration flags that must survive a restart. It is written to
// durable storage as one named record.
type Snapshot struct {
	Operations   []*Operation `json:"operations"`
	Enabled      bool         `json:"isEnabled"`
	LastSyncTime *time.Time   `json:"lastSyncTime"`
}
