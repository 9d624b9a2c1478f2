package sched

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopstack/syncqueue/internal/netmon"
	"github.com/shopstack/syncqueue/internal/queue"
	"github.com/shopstack/syncqueue/internal/replay"
)

// PassRunner executes one replay pass. Implemented by *replay.Engine;
// declared as an interface so scheduler tests can count passes without a
// network.
type PassRunner interface {
	RunPass(ctx context.Context) replay.PassResult
}

// Scheduler decides when a replay pass runs: on an offline-to-online
// transition, on a periodic timer while online, and on an explicit manual
// trigger. At most one pass is active at any time; triggers that arrive
// while a pass is running are dropped, not queued.
type Scheduler struct {
	store   *queue.Store
	engine  PassRunner
	monitor *netmon.Monitor

	interval time.Duration

	mu        sync.Mutex
	wg        sync.WaitGroup
	running   bool
	ctx       context.Context
	stopCh    chan struct{}
	doneCh    chan struct{}
	subscribe sync.Once
}

// NewScheduler creates a scheduler. interval is the periodic sync cadence
// while online; it defaults to 30 seconds.
func NewScheduler(store *queue.Store, engine PassRunner, monitor *netmon.Monitor, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		store:    store,
		engine:   engine,
		monitor:  monitor,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start subscribes to connectivity transitions and begins the periodic
// timer loop. Non-blocking; call Stop to shut down. Subscribe happens
// here, so Start must run before the monitor starts observing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx = ctx
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	// Transition callbacks run on the monitor's goroutine and must not
	// block, so the reconnect pass runs on its own goroutine. The
	// single-flight guard keeps it from overlapping an interval pass.
	// The subscription outlives Stop; it is registered once, so restart
	// cycles do not stack callbacks, and a transition arriving while the
	// scheduler is stopped is ignored.
	s.subscribe.Do(func() {
		s.monitor.Subscribe(func(online bool) {
			if !online {
				return
			}
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			ctx := s.ctx
			s.wg.Add(1)
			s.mu.Unlock()

			go func() {
				defer s.wg.Done()
				s.Trigger(ctx, "reconnect")
			}()
		})
	})

	go s.run(ctx)
	log.Printf("[SCHED] Started (sync interval: %v)", s.interval)
}

// Stop shuts down the timer loop and waits for it to exit. An in-flight
// pass runs to completion first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
	s.wg.Wait()
	log.Printf("[SCHED] Stopped")
}

// SyncNow triggers a replay pass immediately. It is a no-op when a pass is
// already running. Returns true if a pass ran.
func (s *Scheduler) SyncNow(ctx context.Context) bool {
	return s.Trigger(ctx, "manual")
}

// Trigger attempts to start a replay pass, identified by reason in logs.
// Returns false when another pass holds the single-flight guard.
func (s *Scheduler) Trigger(ctx context.Context, reason string) bool {
	if !s.store.TryBeginSync() {
		log.Printf("[SCHED] Skipping %s trigger: a pass is already running", reason)
		return false
	}
	defer s.store.SetSyncing(false)

	log.Printf("[SCHED] Replay pass triggered (%s)", reason)
	s.engine.RunPass(ctx)
	return true
}

// run fires the periodic trigger while online.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.monitor.Online() {
				s.Trigger(ctx, "interval")
			}
		}
	}
}
