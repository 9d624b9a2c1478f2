package netmon

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopstack/syncqueue/internal/core"
)

// Monitor bridges a connectivity signal into online/offline transition
// events. It polls the signal at a fixed interval and notifies subscribers
// only when the state changes.
type Monitor struct {
	mu          sync.RWMutex
	signal      core.ConnectivitySignal
	online      bool
	subscribers []func(online bool)
	running     bool

	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMonitor creates a monitor over the given signal. interval controls how
// often the signal is polled; it defaults to 5 seconds.
func NewMonitor(signal core.ConnectivitySignal, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		signal:   signal,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Subscribe registers a callback invoked on every online/offline
// transition. Callbacks run on the monitor's goroutine and must not block.
// Subscribe must be called before Start.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Start evaluates the signal once to establish the initial state, then
// begins the polling loop. Non-blocking; call Stop to shut down.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.online = m.signal.Online(ctx)
	online := m.online
	m.mu.Unlock()

	log.Printf("[NETMON] Started (online: %v, poll interval: %v)", online, m.interval)
	go m.run(ctx)
}

// Stop shuts down the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh
	log.Printf("[NETMON] Stopped")
}

// CheckNow evaluates the signal immediately, outside the polling cadence,
// and emits a transition if the state changed. Used after operations that
// are themselves evidence of connectivity (or its loss).
func (m *Monitor) CheckNow(ctx context.Context) bool {
	return m.observe(m.signal.Online(ctx))
}

// run is the polling loop.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.observe(m.signal.Online(ctx))
		}
	}
}

// observe applies a new reading and notifies subscribers on transition.
// Returns the reading.
func (m *Monitor) observe(online bool) bool {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return online
	}
	m.online = online
	subscribers := make([]func(bool), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	if online {
		log.Printf("[NETMON] Connectivity restored")
	} else {
		log.Printf("[NETMON] Connectivity lost")
	}
	for _, fn := range subscribers {
		fn(online)
	}
	return online
}
