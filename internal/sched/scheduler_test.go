package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstack/syncqueue/internal/netmon"
	"github.com/shopstack/syncqueue/internal/queue"
	"github.com/shopstack/syncqueue/internal/replay"
	"github.com/shopstack/syncqueue/internal/storage"
)

// countingRunner counts replay passes and can block to hold the
// single-flight guard open.
type countingRunner struct {
	passes  atomic.Int32
	block   chan struct{}
	started chan struct{}
}

func newCountingRunner() *countingRunner {
	return &countingRunner{started: make(chan struct{}, 16)}
}

func (r *countingRunner) RunPass(_ context.Context) replay.PassResult {
	r.passes.Add(1)
	select {
	case r.started <- struct{}{}:
	default:
	}
	if r.block != nil {
		<-r.block
	}
	return replay.PassResult{}
}

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	s, err := queue.NewStore(context.Background(), storage.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// setup builds a scheduler over a manual connectivity signal. The monitor
// polls on a long interval, so tests drive transitions with CheckNow.
func setup(t *testing.T, online bool, interval time.Duration) (*queue.Store, *countingRunner, *netmon.Monitor, *netmon.ManualSignal, *Scheduler) {
	t.Helper()
	store := newTestStore(t)
	runner := newCountingRunner()
	signal := netmon.NewManualSignal(online)
	monitor := netmon.NewMonitor(signal, time.Hour)
	scheduler := NewScheduler(store, runner, monitor, interval)

	ctx := context.Background()
	scheduler.Start(ctx)
	monitor.Start(ctx)
	t.Cleanup(func() {
		monitor.Stop()
		scheduler.Stop()
	})
	return store, runner, monitor, signal, scheduler
}

func TestScheduler_ReconnectTriggersExactlyOnePass(t *testing.T) {
	_, runner, monitor, signal, _ := setup(t, false, time.Hour)

	signal.Set(true)
	monitor.CheckNow(context.Background())

	require.Eventually(t, func() bool {
		return runner.passes.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// A repeated check without a transition must not trigger again.
	monitor.CheckNow(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runner.passes.Load())
}

func TestScheduler_ReconnectAfterRestartTriggersExactlyOnePass(t *testing.T) {
	_, runner, monitor, signal, scheduler := setup(t, false, time.Hour)

	// A stop/start cycle must not stack reconnect subscriptions.
	scheduler.Stop()
	scheduler.Start(context.Background())
	scheduler.Stop()
	scheduler.Start(context.Background())

	signal.Set(true)
	monitor.CheckNow(context.Background())

	require.Eventually(t, func() bool {
		return runner.passes.Load() >= 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runner.passes.Load())
}

func TestScheduler_TransitionWhileStoppedIsIgnored(t *testing.T) {
	_, runner, monitor, signal, scheduler := setup(t, false, time.Hour)

	scheduler.Stop()
	signal.Set(true)
	monitor.CheckNow(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runner.passes.Load())

	// Restarting makes the next transition count again.
	scheduler.Start(context.Background())
	signal.Set(false)
	monitor.CheckNow(context.Background())
	signal.Set(true)
	monitor.CheckNow(context.Background())

	require.Eventually(t, func() bool {
		return runner.passes.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_OfflineTransitionDoesNotTrigger(t *testing.T) {
	_, runner, monitor, signal, _ := setup(t, true, time.Hour)

	signal.Set(false)
	monitor.CheckNow(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runner.passes.Load())
}

func TestScheduler_SingleFlight(t *testing.T) {
	_, runner, _, _, scheduler := setup(t, true, time.Hour)
	runner.block = make(chan struct{})

	ctx := context.Background()
	firstDone := make(chan bool)
	go func() {
		firstDone <- scheduler.SyncNow(ctx)
	}()

	// Wait until the first pass holds the guard.
	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("first pass never started")
	}

	// Concurrent triggers are dropped, not queued.
	assert.False(t, scheduler.SyncNow(ctx))
	assert.False(t, scheduler.Trigger(ctx, "reconnect"))

	close(runner.block)
	assert.True(t, <-firstDone)
	assert.Equal(t, int32(1), runner.passes.Load())

	// Once the pass finishes, the guard is released.
	runner.block = nil
	assert.True(t, scheduler.SyncNow(ctx))
	assert.Equal(t, int32(2), runner.passes.Load())
}

func TestScheduler_PeriodicWhileOnline(t *testing.T) {
	_, runner, _, _, _ := setup(t, true, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return runner.passes.Load() >= 2
	}, time.Second, 5*time.Millisecond, "periodic trigger should fire repeatedly while online")
}

func TestScheduler_PeriodicSkippedWhileOffline(t *testing.T) {
	_, runner, _, _, _ := setup(t, false, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), runner.passes.Load())
}

func TestScheduler_ManualTrigger(t *testing.T) {
	store, runner, _, _, scheduler := setup(t, true, time.Hour)

	assert.True(t, scheduler.SyncNow(context.Background()))
	assert.Equal(t, int32(1), runner.passes.Load())
	assert.False(t, store.Syncing(), "syncing flag must clear after the pass")
}
