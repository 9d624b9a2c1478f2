package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopstack/syncqueue/internal/core"
	"github.com/shopstack/syncqueue/internal/events"
	"github.com/shopstack/syncqueue/internal/queue"
)

// ConnectivityReader reports the last observed connectivity state.
// Implemented by *netmon.Monitor.
type ConnectivityReader interface {
	Online() bool
}

// Facade is the single call site application code uses to perform a write.
// It decides, per request, whether to execute immediately or defer into
// the queue, based on the HTTP verb, current connectivity, and the gating
// policy. Reads (GET) always execute immediately and are never deferred.
type Facade struct {
	store   *queue.Store
	monitor ConnectivityReader
	gate    core.GatePolicy
	client  *http.Client
	sink    core.EventSink
	baseURL string
}

// Result is the outcome of a Do call. Either the request executed and
// StatusCode/Body are set, or it was deferred and Queued/OperationID are
// set. A queued result is returned immediately without waiting on the
// network.
type Result struct {
	Queued      bool
	OperationID string
	StatusCode  int
	Body        []byte
}

// NewFacade creates a request facade. client defaults to
// http.DefaultClient; sink may be nil.
func NewFacade(store *queue.Store, monitor ConnectivityReader, gate core.GatePolicy, client *http.Client, sink core.EventSink, baseURL string) *Facade {
	if client == nil {
		client = http.DefaultClient
	}
	if sink == nil {
		sink = events.NewNoopSink()
	}
	return &Facade{
		store:   store,
		monitor: monitor,
		gate:    gate,
		client:  client,
		sink:    sink,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Do performs or defers one request. payload is JSON-encoded once and, if
// the request is deferred, forwarded verbatim on replay.
func (f *Facade) Do(ctx context.Context, method, endpoint string, payload any) (*Result, error) {
	var body json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		body = data
	}

	// Reads are never deferred, whatever the connectivity or gate say.
	if method == http.MethodGet {
		if body != nil {
			return nil, fmt.Errorf("GET requests cannot carry a payload")
		}
		return f.execute(ctx, method, endpoint, nil)
	}

	if f.monitor.Online() {
		result, err := f.execute(ctx, method, endpoint, body)
		if err == nil {
			return result, nil
		}
		// The request died in flight. Fall back to the queue when the
		// gate permits; otherwise surface the transport error.
		if f.syncEnabled(ctx) {
			log.Printf("[FACADE] %s %s failed mid-flight, falling back to queue: %v", method, endpoint, err)
			return f.enqueue(ctx, method, endpoint, body)
		}
		return nil, err
	}

	// Offline. Queue when permitted, fail outright when not.
	enabled, err := f.gate.SyncEnabled(ctx)
	if err != nil {
		// Fail closed: never queue a write the user may not be able to
		// synchronize.
		log.Printf("[FACADE] ERROR: Gate lookup failed, treating sync as disabled: %v", err)
		return nil, fmt.Errorf("%w: eligibility check failed: %v", core.ErrSyncDisabled, err)
	}
	if !enabled {
		return nil, fmt.Errorf("%w: cannot perform %s %s while offline", core.ErrSyncDisabled, method, endpoint)
	}
	return f.enqueue(ctx, method, endpoint, body)
}

// enqueue defers the request into the queue and returns a synthetic
// queued result.
func (f *Facade) enqueue(ctx context.Context, method, endpoint string, body json.RawMessage) (*Result, error) {
	id, err := f.store.AddOperation(endpoint, method, body)
	if err != nil {
		return nil, err
	}

	if err := f.sink.Publish(ctx, core.Event{
		Type:        core.EventEnqueued,
		OperationID: id,
		Endpoint:    endpoint,
		Method:      method,
		Timestamp:   time.Now(),
	}); err != nil {
		log.Printf("[FACADE] ERROR: Failed to publish event: %v", err)
	}

	return &Result{Queued: true, OperationID: id}, nil
}

// execute performs the request immediately. Transport failures return an
// error; any received response, success or not, returns a Result.
func (f *Facade) execute(ctx context.Context, method, endpoint string, body json.RawMessage) (*Result, error) {
	url := endpoint
	if f.baseURL != "" && strings.HasPrefix(url, "/") {
		url = f.baseURL + url
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Result{StatusCode: resp.StatusCode, Body: data}, nil
}

// syncEnabled answers the gate with fail-closed semantics.
func (f *Facade) syncEnabled(ctx context.Context) bool {
	enabled, err := f.gate.SyncEnabled(ctx)
	if err != nil {
		log.Printf("[FACADE] ERROR: Gate lookup failed, treating sync as disabled: %v", err)
		return false
	}
	return enabled
}
