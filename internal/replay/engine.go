package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shopstack/syncqueue/internal/core"
	"github.com/shopstack/syncqueue/internal/events"
	"github.com/shopstack/syncqueue/internal/queue"
)

// maxErrorBody bounds how much of a failure response body is retained as
// the operation's error detail.
const maxErrorBody = 2048

// Engine drains pending operations against the network, one pass at a
// time. Within a pass, operations are replayed sequentially in insertion
// order so that dependent writes land in the order they were made. A
// failed operation never aborts the pass.
type Engine struct {
	store   *queue.Store
	client  *http.Client
	sink    core.EventSink
	baseURL string
	grace   time.Duration
	limiter *rate.Limiter

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// Config contains configuration for the replay engine.
type Config struct {
	// BaseURL is prefixed to relative operation endpoints. Absolute
	// endpoints are used as-is.
	BaseURL string

	// GracePeriod is how long a completed operation stays visible in the
	// queue before it is removed, so status consumers can show the
	// success state. Zero removes completed operations immediately.
	GracePeriod time.Duration

	// ReplayRate caps replayed requests per second, protecting a server
	// that is catching up on a large backlog. Zero means unlimited.
	ReplayRate int
}

// PassResult summarizes one replay pass.
type PassResult struct {
	Attempted int
	Completed int
	Failed    int
	Duration  time.Duration
}

// NewEngine creates a replay engine over the given store. client defaults
// to http.DefaultClient; sink may be nil to disable event publishing.
func NewEngine(store *queue.Store, client *http.Client, sink core.EventSink, config Config) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	if sink == nil {
		sink = events.NewNoopSink()
	}

	var limiter *rate.Limiter
	if config.ReplayRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.ReplayRate), 1)
	}

	return &Engine{
		store:   store,
		client:  client,
		sink:    sink,
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		grace:   config.GracePeriod,
		limiter: limiter,
		timers:  make(map[string]*time.Timer),
	}
}

// RunPass replays every operation that was pending when the pass started.
// Operations enqueued during the pass wait for the next one. The caller is
// responsible for the single-flight guard; RunPass itself does not check
// the syncing flag.
func (e *Engine) RunPass(ctx context.Context) PassResult {
	start := time.Now()
	ids := e.store.PendingIDs()
	result := PassResult{Attempted: len(ids)}

	if len(ids) > 0 {
		log.Printf("[REPLAY] Pass started with %d pending operation(s)", len(ids))
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			log.Printf("[REPLAY] Pass cancelled after %d operation(s)", result.Completed+result.Failed)
			break
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				break
			}
		}

		if e.replayOne(ctx, id) {
			result.Completed++
		} else {
			result.Failed++
		}
	}

	result.Duration = time.Since(start)
	e.store.SetLastSyncTime(time.Now())
	e.publish(ctx, core.Event{
		Type:      core.EventPassFinished,
		Detail:    fmt.Sprintf("attempted=%d completed=%d failed=%d", result.Attempted, result.Completed, result.Failed),
		Timestamp: time.Now(),
	})

	if result.Attempted > 0 {
		log.Printf("[REPLAY] Pass finished: %d completed, %d failed (%v)",
			result.Completed, result.Failed, result.Duration)
	}
	return result
}

// replayOne executes a single operation. Returns true on success.
func (e *Engine) replayOne(ctx context.Context, id string) bool {
	op, err := e.store.Operation(id)
	if err != nil {
		// Removed between pass start and now (e.g. an explicit clear).
		return false
	}
	if op.Status != core.StatusPending {
		return false
	}

	if err := e.store.UpdateStatus(id, core.StatusSyncing, ""); err != nil {
		return false
	}

	if err := e.send(ctx, &op); err != nil {
		detail := errorDetail(err)
		if uerr := e.store.UpdateStatus(id, core.StatusFailed, detail); uerr != nil {
			log.Printf("[REPLAY] ERROR: Failed to record failure for %s: %v", id, uerr)
		}
		log.Printf("[REPLAY] Operation %s (%s %s) failed: %s", id, op.Method, op.Endpoint, detail)
		e.publish(ctx, core.Event{
			Type:        core.EventFailed,
			OperationID: id,
			Endpoint:    op.Endpoint,
			Method:      op.Method,
			Detail:      detail,
			Timestamp:   time.Now(),
		})
		return false
	}

	if err := e.store.UpdateStatus(id, core.StatusCompleted, ""); err != nil {
		log.Printf("[REPLAY] ERROR: Failed to record completion for %s: %v", id, err)
		return false
	}
	e.scheduleRemoval(id)
	e.publish(ctx, core.Event{
		Type:        core.EventCompleted,
		OperationID: id,
		Endpoint:    op.Endpoint,
		Method:      op.Method,
		Timestamp:   time.Now(),
	})
	return true
}

// send issues the operation's HTTP request. A non-2xx response is returned
// as a *core.ServerError with the response body as detail.
func (e *Engine) send(ctx context.Context, op *core.Operation) error {
	url := op.Endpoint
	if e.baseURL != "" && strings.HasPrefix(url, "/") {
		url = e.baseURL + url
	}

	var body io.Reader
	if len(op.Payload) > 0 {
		body = bytes.NewReader(op.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &core.ServerError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(detail)),
		}
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	return nil
}

// scheduleRemoval arranges for a completed operation to be pruned after
// the grace period. Timers are tracked so Stop can cancel them.
func (e *Engine) scheduleRemoval(id string) {
	if e.grace <= 0 {
		e.store.RemoveOperation(id)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	e.timers[id] = time.AfterFunc(e.grace, func() {
		e.store.RemoveOperation(id)
		e.mu.Lock()
		delete(e.timers, id)
		e.mu.Unlock()
	})
}

// Stop cancels all outstanding grace-period timers. Completed operations
// whose timers were cancelled are removed on the next startup sweep or
// left for the next pass's grace scheduling.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// publish forwards an event to the sink, logging failures.
func (e *Engine) publish(ctx context.Context, event core.Event) {
	if err := e.sink.Publish(ctx, event); err != nil {
		log.Printf("[REPLAY] ERROR: Failed to publish event: %v", err)
	}
}

// errorDetail renders a replay failure as human-readable detail for the
// status UI.
func errorDetail(err error) string {
	if serr, ok := err.(*core.ServerError); ok {
		return serr.Error()
	}
	return "network error: " + err.Error()
}
