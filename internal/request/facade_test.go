package request

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstack/syncqueue/internal/core"
	"github.com/shopstack/syncqueue/internal/gate"
	"github.com/shopstack/syncqueue/internal/queue"
	"github.com/shopstack/syncqueue/internal/storage"
)

// fixedMonitor reports a fixed connectivity state.
type fixedMonitor struct{ online bool }

func (m fixedMonitor) Online() bool { return m.online }

// failingGate simulates an eligibility lookup outage.
type failingGate struct{}

func (failingGate) SyncEnabled(context.Context) (bool, error) {
	return false, errors.New("tier service unavailable")
}

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	s, err := queue.NewStore(context.Background(), storage.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func enabledGate() core.GatePolicy  { return gate.NewStatic(func() bool { return true }) }
func disabledGate() core.GatePolicy { return gate.NewStatic(func() bool { return false }) }

// countingServer records how many requests reached the backend.
func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestFacade_OfflineEnqueuesWrite(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK)
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: false}, enabledGate(), nil, nil, server.URL)

	payload := map[string]any{"amount": 250, "customer": "acme"}
	result, err := f.Do(context.Background(), "POST", "/api/sales", payload)
	require.NoError(t, err)

	assert.True(t, result.Queued)
	require.NotEmpty(t, result.OperationID)
	assert.Zero(t, hits.Load(), "no network call while offline")

	op, err := store.Operation(result.OperationID)
	require.NoError(t, err)
	assert.Equal(t, "/api/sales", op.Endpoint)
	assert.Equal(t, "POST", op.Method)
	assert.JSONEq(t, `{"amount":250,"customer":"acme"}`, string(op.Payload))
	assert.Equal(t, core.StatusPending, op.Status)
	assert.Equal(t, 1, store.PendingCount())
}

func TestFacade_GetIsNeverQueued(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK)
	store := newTestStore(t)

	// Offline with sync enabled: the strongest temptation to defer.
	f := NewFacade(store, fixedMonitor{online: false}, enabledGate(), nil, nil, server.URL)

	result, err := f.Do(context.Background(), "GET", "/api/sales", nil)
	require.NoError(t, err)
	assert.False(t, result.Queued)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, store.Operations())

	// A GET that dies in flight surfaces the error, it does not queue.
	f = NewFacade(store, fixedMonitor{online: false}, enabledGate(), nil, nil, "http://127.0.0.1:1")
	_, err = f.Do(context.Background(), "GET", "/api/sales", nil)
	require.Error(t, err)
	assert.Empty(t, store.Operations())
}

func TestFacade_GetRejectsPayload(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK)
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: true}, enabledGate(), nil, nil, server.URL)

	_, err := f.Do(context.Background(), "GET", "/api/sales", map[string]any{"n": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload")
	assert.Zero(t, hits.Load())
	assert.Empty(t, store.Operations())
}

func TestFacade_OfflineDisabledFailsOutright(t *testing.T) {
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: false}, disabledGate(), nil, nil, "http://127.0.0.1:1")

	_, err := f.Do(context.Background(), "POST", "/api/sales", map[string]any{"n": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSyncDisabled)
	assert.Empty(t, store.Operations(), "nothing may be queued when sync is disabled")
}

func TestFacade_GateFailureFailsClosed(t *testing.T) {
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: false}, failingGate{}, nil, nil, "http://127.0.0.1:1")

	_, err := f.Do(context.Background(), "POST", "/api/sales", map[string]any{"n": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSyncDisabled)
	assert.Empty(t, store.Operations())
}

func TestFacade_OnlineExecutesImmediately(t *testing.T) {
	server, hits := countingServer(t, http.StatusCreated)
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: true}, enabledGate(), nil, nil, server.URL)

	result, err := f.Do(context.Background(), "POST", "/api/sales", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.False(t, result.Queued)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, store.Operations())
}

func TestFacade_OnlineServerErrorIsNotQueued(t *testing.T) {
	// A response was received; only transport failures fall back to the
	// queue.
	server, _ := countingServer(t, http.StatusUnprocessableEntity)
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: true}, enabledGate(), nil, nil, server.URL)

	result, err := f.Do(context.Background(), "POST", "/api/sales", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.False(t, result.Queued)
	assert.Equal(t, http.StatusUnprocessableEntity, result.StatusCode)
	assert.Empty(t, store.Operations())
}

func TestFacade_OnlineNetworkFailureFallsBackToQueue(t *testing.T) {
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: true}, enabledGate(), nil, nil, "http://127.0.0.1:1")

	result, err := f.Do(context.Background(), "POST", "/api/sales", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.True(t, result.Queued)
	assert.Equal(t, 1, store.PendingCount())
}

func TestFacade_OnlineNetworkFailureDisabledSurfacesError(t *testing.T) {
	store := newTestStore(t)
	f := NewFacade(store, fixedMonitor{online: true}, disabledGate(), nil, nil, "http://127.0.0.1:1")

	_, err := f.Do(context.Background(), "POST", "/api/sales", map[string]any{"n": 1})
	require.Error(t, err)
	assert.Empty(t, store.Operations())
}
