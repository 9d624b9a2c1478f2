package syncqueue

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopstack/syncqueue/internal/core"
	"github.com/shopstack/syncqueue/internal/events"
	"github.com/shopstack/syncqueue/internal/gate"
	"github.com/shopstack/syncqueue/internal/netmon"
	"github.com/shopstack/syncqueue/internal/queue"
	"github.com/shopstack/syncqueue/internal/replay"
	"github.com/shopstack/syncqueue/internal/request"
	"github.com/shopstack/syncqueue/internal/sched"
	"github.com/shopstack/syncqueue/internal/storage"
)

// Re-exported queue types, so consumers only import this package.
type (
	// Operation is one deferred write request and its lifecycle state.
	Operation = core.Operation

	// OperationStatus is the lifecycle state of a queued operation.
	OperationStatus = core.Status

	// ConnectivitySignal reports whether the process has connectivity.
	ConnectivitySignal = core.ConnectivitySignal

	// GatePolicy answers whether offline sync is permitted for the user.
	GatePolicy = core.GatePolicy

	// EventSink receives queue lifecycle events.
	EventSink = core.EventSink

	// Result is the outcome of a Do call: an immediate response or a
	// synthetic queued acknowledgement.
	Result = request.Result
)

// Operation lifecycle states.
const (
	StatusPending   = core.StatusPending
	StatusSyncing   = core.StatusSyncing
	StatusCompleted = core.StatusCompleted
	StatusFailed    = core.StatusFailed
)

// ErrSyncDisabled is returned when a write cannot be queued because
// offline sync is not enabled (or eligibility could not be determined).
var ErrSyncDisabled = core.ErrSyncDisabled

// Status is the read surface consumed by status UIs and forms.
type Status struct {
	// Operations is the full queue in insertion order.
	Operations []Operation

	// PendingCount and FailedCount are the derived counters.
	PendingCount int
	FailedCount  int

	// IsSyncing reports whether a replay pass is running.
	IsSyncing bool

	// IsEnabled reports the local offline-sync toggle.
	IsEnabled bool

	// Online reports the last observed connectivity state.
	Online bool

	// LastSyncTime is when the last replay pass finished, nil if none.
	LastSyncTime *time.Time
}

// Client is the main interface for interacting with the sync queue.
//
// Typical usage:
//
//	client, _ := syncqueue.New(config)
//	defer client.Close()
//
//	client.SetEnabled(true)
//	client.Start(ctx)
//
//	result, _ := client.Do(ctx, "POST", "/api/sales", sale)
//	if result.Queued {
//	    // shown as pending in the status panel, replayed on reconnect
//	}
type Client interface {
	// Do performs a request now or defers it into the queue, per the
	// verb, connectivity, and gating policy. GET always executes
	// immediately.
	Do(ctx context.Context, method, endpoint string, payload any) (*Result, error)

	// Start begins the connectivity monitor and the sync scheduler.
	// Non-blocking; call Stop or Close to shut down.
	Start(ctx context.Context) error

	// Stop shuts down the scheduler, monitor, and outstanding timers.
	// An in-flight replay pass runs to completion first.
	Stop() error

	// SyncNow triggers a replay pass immediately. Returns false when a
	// pass is already running (the trigger is dropped, not queued).
	SyncNow(ctx context.Context) bool

	// CheckConnectivity evaluates the connectivity signal immediately
	// and returns the result, emitting a transition if the state changed.
	CheckConnectivity(ctx context.Context) bool

	// SetEnabled flips the local offline-sync toggle. The flag persists
	// across restarts.
	SetEnabled(enabled bool)

	// ResetFailedOperations moves every failed operation back to pending
	// with a zeroed retry count. Returns the number reset.
	ResetFailedOperations() int

	// ClearAllOperations empties the queue.
	ClearAllOperations()

	// Status returns the current queue state for status consumers.
	Status() Status

	// Close stops everything and releases the snapshot store.
	Close() error
}

// Option customizes client construction.
type Option func(*options)

type options struct {
	signal     core.ConnectivitySignal
	gatePolicy core.GatePolicy
	sink       core.EventSink
	httpClient *http.Client
}

// WithConnectivitySignal injects a connectivity signal, replacing the
// probe configured in Sync.ProbeURL. Hosts that receive connectivity
// state from the platform pass a ManualConnectivity they drive themselves;
// tests use the same for determinism.
func WithConnectivitySignal(signal ConnectivitySignal) Option {
	return func(o *options) { o.signal = signal }
}

// ManualConnectivity is a connectivity signal driven by explicit Set
// calls, for hosts that already know their own connectivity state.
type ManualConnectivity = netmon.ManualSignal

// NewManualConnectivity creates a manual signal with an initial state.
func NewManualConnectivity(online bool) *ManualConnectivity {
	return netmon.NewManualSignal(online)
}

// WithGatePolicy injects a gating policy, replacing the one built from
// Gating config.
func WithGatePolicy(policy GatePolicy) Option {
	return func(o *options) { o.gatePolicy = policy }
}

// WithEventSink injects a lifecycle event sink, replacing the one built
// from Events config.
func WithEventSink(sink EventSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithHTTPClient sets the HTTP client used for direct execution, replay,
// and the gate lookup.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// clientImpl wires the queue store, monitor, engine, scheduler, and
// facade together behind the public Client interface.
type clientImpl struct {
	mu        sync.Mutex
	config    *Config
	store     *queue.Store
	monitor   *netmon.Monitor
	engine    *replay.Engine
	scheduler *sched.Scheduler
	facade    *request.Facade
	sink      core.EventSink
	started   bool
	closed    bool
}

// New creates a sync queue client from the configuration. Any previously
// persisted queue state is restored; operations interrupted mid-replay by
// a crash come back as pending.
func New(config *Config, opts ...Option) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	snapshots, err := storage.NewSnapshotStore(config.storageConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	store, err := queue.NewStore(context.Background(), snapshots)
	if err != nil {
		snapshots.Close()
		return nil, err
	}

	signal := o.signal
	if signal == nil {
		if config.Sync.ProbeURL != "" {
			signal = netmon.NewProbeSignal(config.Sync.ProbeURL, config.Sync.ProbeTimeout)
		} else {
			// No probe and no injected signal: assume connectivity.
			signal = netmon.NewManualSignal(true)
		}
	}
	monitor := netmon.NewMonitor(signal, config.Sync.PollInterval)

	gatePolicy := o.gatePolicy
	if gatePolicy == nil {
		if config.Gating.URL != "" {
			gatePolicy = gate.NewHTTP(config.Gating.URL, store.Enabled, o.httpClient, config.Gating.CacheTTL)
		} else {
			gatePolicy = gate.NewStatic(store.Enabled)
		}
	}

	sink := o.sink
	if sink == nil {
		if config.Events.Type == "kafka" {
			sink, err = events.NewKafkaSink(events.KafkaSinkConfig{
				Brokers:      config.Events.Kafka.Brokers,
				Topic:        config.Events.Kafka.Topic,
				BatchSize:    config.Events.Kafka.BatchSize,
				BatchTimeout: config.Events.Kafka.BatchTimeout,
				WriteTimeout: config.Events.Kafka.WriteTimeout,
				RequiredAcks: config.Events.Kafka.RequiredAcks,
			})
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("failed to create Kafka sink: %w", err)
			}
		} else {
			sink = events.NewNoopSink()
		}
	}

	engine := replay.NewEngine(store, o.httpClient, sink, replay.Config{
		BaseURL:     config.BaseURL,
		GracePeriod: config.Sync.GracePeriod,
		ReplayRate:  config.Sync.ReplayRate,
	})
	scheduler := sched.NewScheduler(store, engine, monitor, config.Sync.Interval)
	facade := request.NewFacade(store, monitor, gatePolicy, o.httpClient, sink, config.BaseURL)

	return &clientImpl{
		config:    config,
		store:     store,
		monitor:   monitor,
		engine:    engine,
		scheduler: scheduler,
		facade:    facade,
		sink:      sink,
	}, nil
}

// Do performs or defers one request.
func (c *clientImpl) Do(ctx context.Context, method, endpoint string, payload any) (*Result, error) {
	return c.facade.Do(ctx, method, endpoint, payload)
}

// Start begins the scheduler and the connectivity monitor. The scheduler
// starts first so its reconnect subscription is in place before the
// monitor observes any transition.
func (c *clientImpl) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return core.ErrStoreClosed
	}
	if c.started {
		return nil
	}

	c.scheduler.Start(ctx)
	c.monitor.Start(ctx)
	c.started = true
	return nil
}

// Stop shuts down the monitor, scheduler, and grace-period timers.
func (c *clientImpl) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	c.monitor.Stop()
	c.scheduler.Stop()
	c.engine.Stop()
	c.started = false
	return nil
}

// SyncNow triggers a replay pass immediately.
func (c *clientImpl) SyncNow(ctx context.Context) bool {
	return c.scheduler.SyncNow(ctx)
}

// CheckConnectivity evaluates the connectivity signal immediately.
func (c *clientImpl) CheckConnectivity(ctx context.Context) bool {
	return c.monitor.CheckNow(ctx)
}

// SetEnabled flips the local offline-sync toggle.
func (c *clientImpl) SetEnabled(enabled bool) {
	c.store.SetEnabled(enabled)
}

// ResetFailedOperations re-queues every failed operation.
func (c *clientImpl) ResetFailedOperations() int {
	return c.store.ResetFailed()
}

// ClearAllOperations empties the queue.
func (c *clientImpl) ClearAllOperations() {
	c.store.ClearAll()
}

// Status returns the current queue state.
func (c *clientImpl) Status() Status {
	return Status{
		Operations:   c.store.Operations(),
		PendingCount: c.store.PendingCount(),
		FailedCount:  c.store.FailedCount(),
		IsSyncing:    c.store.Syncing(),
		IsEnabled:    c.store.Enabled(),
		Online:       c.monitor.Online(),
		LastSyncTime: c.store.LastSyncTime(),
	}
}

// Close stops everything, flushes a final snapshot, and releases the
// snapshot store and event sink.
func (c *clientImpl) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.sink.Close(); err != nil {
		// Sink closure must not mask snapshot flushing.
		c.store.Close()
		return fmt.Errorf("failed to close event sink: %w", err)
	}
	return c.store.Close()
}
