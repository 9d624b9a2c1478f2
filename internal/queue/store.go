package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopstack/syncqueue/internal/core"
)

// Store owns the collection of queued operations plus the aggregate
// counters and configuration flags. It is the only sanctioned mutator of
// that state: all other components either read through its accessors or
// mutate through its API.
//
// The in-memory aggregate is the source of truth. Every mutation marks the
// aggregate dirty and nudges a background writer which serializes the whole
// aggregate to the SnapshotStore. Consecutive mutations coalesce into one
// write (latest wins); a final flush happens on Close.
type Store struct {
	mu sync.RWMutex

	// ops preserves insertion order, which is the replay order.
	ops   []*core.Operation
	index map[string]*core.Operation

	// Derived counters, recomputed on every mutation.
	pendingCount int
	failedCount  int

	enabled  bool
	syncing  bool
	lastSync *time.Time
	closed   bool

	snapshots core.SnapshotStore

	dirty  chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewStore creates a queue store backed by the given snapshot store.
// Any previously saved snapshot is loaded first; operations left in the
// syncing state by an interrupted process are swept back to pending so
// they are picked up by the next replay pass. The background snapshot
// writer starts immediately.
func NewStore(ctx context.Context, snapshots core.SnapshotStore) (*Store, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}

	s := &Store{
		ops:       make([]*core.Operation, 0),
		index:     make(map[string]*core.Operation),
		snapshots: snapshots,
		dirty:     make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	if err := s.load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load queue snapshot: %w", err)
	}

	go s.writeLoop()
	return s, nil
}

// load restores the aggregate from the snapshot store.
func (s *Store) load(ctx context.Context) error {
	data, err := s.snapshots.Load(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	swept := 0
	for _, op := range snap.Operations {
		if op == nil || op.ID == "" {
			continue
		}
		// Completed operations were only awaiting grace-period removal;
		// their grace expired with the previous process.
		if op.Status == core.StatusCompleted {
			continue
		}
		// Reconcile operations orphaned mid-pass by a crash.
		if op.Status == core.StatusSyncing {
			op.Status = core.StatusPending
			swept++
		}
		s.ops = append(s.ops, op)
		s.index[op.ID] = op
	}
	s.enabled = snap.Enabled
	s.lastSync = snap.LastSyncTime
	s.recount()

	if swept > 0 {
		log.Printf("[QUEUE] Swept %d interrupted operation(s) back to pending", swept)
	}
	if len(s.ops) > 0 {
		log.Printf("[QUEUE] Restored %d operation(s) from snapshot (%d pending, %d failed)",
			len(s.ops), s.pendingCount, s.failedCount)
	}
	return nil
}

// AddOperation appends a new pending operation at the tail of the queue
// and returns its assigned ID. The call never blocks on persistence.
func (s *Store) AddOperation(endpoint, method string, payload json.RawMessage) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", core.ErrStoreClosed
	}

	op := &core.Operation{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		Method:    method,
		Payload:   payload,
		Status:    core.StatusPending,
		CreatedAt: time.Now(),
	}
	s.ops = append(s.ops, op)
	s.index[op.ID] = op
	s.recount()
	s.mu.Unlock()

	s.markDirty()
	log.Printf("[QUEUE] Enqueued %s %s as operation %s", method, endpoint, op.ID)
	return op.ID, nil
}

// UpdateStatus transitions an operation to a new status. Transitioning to
// failed records the failure detail and increments the retry count; any
// other transition clears the stored detail.
func (s *Store) UpdateStatus(id string, status core.Status, detail string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrStoreClosed
	}

	op, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrOperationNotFound, id)
	}

	op.Status = status
	if status == core.StatusFailed {
		op.RetryCount++
		op.Error = detail
	} else {
		op.Error = ""
	}
	s.recount()
	s.mu.Unlock()

	s.markDirty()
	return nil
}

// RemoveOperation deletes an operation from the queue. Removing an unknown
// ID is a no-op: grace-period pruning may race with an explicit clear.
func (s *Store) RemoveOperation(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.index, id)
	for i, op := range s.ops {
		if op.ID == id {
			s.ops = append(s.ops[:i], s.ops[i+1:]...)
			break
		}
	}
	s.recount()
	s.mu.Unlock()

	s.markDirty()
}

// ResetFailed moves every failed operation back to pending with a zeroed
// retry count, making it eligible for the next replay pass. Returns the
// number of operations reset.
func (s *Store) ResetFailed() int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}

	reset := 0
	for _, op := range s.ops {
		if op.Status == core.StatusFailed {
			op.Status = core.StatusPending
			op.RetryCount = 0
			op.Error = ""
			reset++
		}
	}
	s.recount()
	s.mu.Unlock()

	if reset > 0 {
		s.markDirty()
		log.Printf("[QUEUE] Reset %d failed operation(s) to pending", reset)
	}
	return reset
}

// ClearAll empties the queue.
func (s *Store) ClearAll() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	cleared := len(s.ops)
	s.ops = s.ops[:0]
	s.index = make(map[string]*core.Operation)
	s.recount()
	s.mu.Unlock()

	s.markDirty()
	if cleared > 0 {
		log.Printf("[QUEUE] Cleared %d operation(s)", cleared)
	}
}

// SetEnabled sets the local offline-sync toggle. The flag is part of the
// persisted aggregate.
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.enabled = enabled
	s.mu.Unlock()

	s.markDirty()
}

// Enabled reports the local offline-sync toggle.
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// TryBeginSync atomically sets the syncing flag if no pass is currently
// running. Returns false when a pass is already active; callers must treat
// that as a no-op trigger (single-flight).
func (s *Store) TryBeginSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.syncing {
		return false
	}
	s.syncing = true
	return true
}

// SetSyncing sets the in-progress flag. The flag is not persisted; a
// restart always begins with no pass running.
func (s *Store) SetSyncing(syncing bool) {
	s.mu.Lock()
	s.syncing = syncing
	s.mu.Unlock()
}

// Syncing reports whether a replay pass is currently running.
func (s *Store) Syncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// SetLastSyncTime records when the last replay pass finished.
func (s *Store) SetLastSyncTime(t time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastSync = &t
	s.mu.Unlock()

	s.markDirty()
}

// LastSyncTime returns when the last replay pass finished, or nil if no
// pass has run yet.
func (s *Store) LastSyncTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return nil
	}
	t := *s.lastSync
	return &t
}

// PendingCount returns the number of pending operations.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingCount
}

// FailedCount returns the number of failed operations.
func (s *Store) FailedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failedCount
}

// Operations returns a copy of the full collection in insertion order.
func (s *Store) Operations() []core.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Operation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, *op)
	}
	return out
}

// PendingIDs returns the IDs of all pending operations in insertion order.
// A replay pass captures this list at pass start; operations enqueued
// during the pass are not retroactively included.
func (s *Store) PendingIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, s.pendingCount)
	for _, op := range s.ops {
		if op.Status == core.StatusPending {
			ids = append(ids, op.ID)
		}
	}
	return ids
}

// Operation returns a copy of a single operation by ID.
func (s *Store) Operation(id string) (core.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.index[id]
	if !ok {
		return core.Operation{}, fmt.Errorf("%w: %s", core.ErrOperationNotFound, id)
	}
	return *op, nil
}

// Close stops the background writer, flushes a final snapshot, and closes
// the underlying snapshot store.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.flush()
	return s.snapshots.Close()
}

// recount recomputes the derived counters. Callers must hold s.mu.
func (s *Store) recount() {
	pending, failed := 0, 0
	for _, op := range s.ops {
		switch op.Status {
		case core.StatusPending:
			pending++
		case core.StatusFailed:
			failed++
		}
	}
	s.pendingCount = pending
	s.failedCount = failed
}

// markDirty nudges the background writer. The buffered channel coalesces
// bursts of mutations into a single snapshot write.
func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// writeLoop persists the aggregate whenever it is marked dirty.
func (s *Store) writeLoop() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.dirty:
			s.flush()
		}
	}
}

// flush serializes the aggregate and writes it to the snapshot store.
// Persistence is best-effort: failures are logged, never surfaced.
func (s *Store) flush() {
	s.mu.RLock()
	snap := core.Snapshot{
		Operations:   make([]*core.Operation, 0, len(s.ops)),
		Enabled:      s.enabled,
		LastSyncTime: s.lastSync,
	}
	for _, op := range s.ops {
		cp := *op
		snap.Operations = append(snap.Operations, &cp)
	}
	s.mu.RUnlock()

	data, err := json.Marshal(&snap)
	if err != nil {
		log.Printf("[QUEUE] ERROR: Failed to encode snapshot: %v", err)
		return
	}

	if err := s.snapshots.Save(context.Background(), data); err != nil {
		log.Printf("[QUEUE] ERROR: Failed to persist snapshot: %v", err)
	}
}
