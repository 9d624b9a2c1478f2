package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncDisabled is returned when a write cannot be queued because
	// offline sync is not enabled for the current user. Gate lookups that
	// fail resolve to this error as well (fail closed).
	ErrSyncDisabled = errors.New("offline sync is disabled")

	// ErrStoreClosed is returned when mutating a closed queue store.
	ErrStoreClosed = errors.New("queue store is closed")

	// ErrOperationNotFound is returned when an operation ID does not
	// exist in the queue.
	ErrOperationNotFound = errors.New("operation not found")
)

// ServerError indicates that a replayed request reached the server but was
// rejected with a non-2xx status. The response body is retained as failure
// detail for the status UI.
type ServerError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}
