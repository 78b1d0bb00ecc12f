package monitor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-account-shell/monitor"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

// tick delivers one tick, or gives up if nothing is listening any more.
func (t *fakeTicker) tick() bool {
	select {
	case t.c <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type tickers struct {
	mu      sync.Mutex
	created []*fakeTicker
}

func (ts *tickers) factory(time.Duration) monitor.Ticker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time)}
	ts.created = append(ts.created, t)
	return t
}

func (ts *tickers) get(i int) *fakeTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.created[i]
}

func (ts *tickers) count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.created)
}

func TestMonitor_ValidChecksKeepTicking(t *testing.T) {
	ts := &tickers{}
	var checks atomic.Int32
	m := monitor.New(func(context.Context) bool {
		checks.Add(1)
		return true
	}, func() { t.Error("onInvalid must not be called") }, monitor.WithTicker(ts.factory))

	m.Start(context.Background())
	t.Cleanup(m.Stop)

	for i := 0; i < 3; i++ {
		require.True(t, ts.get(0).tick())
	}
	require.Eventually(t, func() bool { return checks.Load() == 3 }, waitFor, time.Millisecond)
	require.True(t, m.Running())
}

func TestMonitor_StopsAfterFirstInvalid(t *testing.T) {
	ts := &tickers{}
	var invalid atomic.Int32
	var m *monitor.Monitor
	m = monitor.New(func(context.Context) bool { return false }, func() {
		invalid.Add(1)
		// reentrant stop from the callback must not deadlock
		m.Stop()
	}, monitor.WithTicker(ts.factory))

	m.Start(context.Background())
	require.True(t, ts.get(0).tick())

	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("monitor did not stop")
	}
	require.Equal(t, int32(1), invalid.Load())
	require.False(t, m.Running())
	require.True(t, ts.get(0).stopped.Load())
	require.False(t, ts.get(0).tick(), "no further ticks are consumed")
}

func TestMonitor_SingleActiveTicker(t *testing.T) {
	ts := &tickers{}
	var checks atomic.Int32
	m := monitor.New(func(context.Context) bool {
		checks.Add(1)
		return true
	}, func() {}, monitor.WithTicker(ts.factory))

	m.Start(context.Background())
	first := m.Done()
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	require.Equal(t, 2, ts.count())
	select {
	case <-first:
	case <-time.After(waitFor):
		t.Fatal("first run still active")
	}
	require.True(t, ts.get(0).stopped.Load())
	require.False(t, ts.get(0).tick())

	require.True(t, ts.get(1).tick())
	require.Eventually(t, func() bool { return checks.Load() == 1 }, waitFor, time.Millisecond)
	require.True(t, m.Running())
}

func TestMonitor_StopDiscardsInFlightCheck(t *testing.T) {
	ts := &tickers{}
	entered := make(chan struct{})
	var invalid atomic.Int32
	m := monitor.New(func(ctx context.Context) bool {
		close(entered)
		<-ctx.Done()
		return false
	}, func() { invalid.Add(1) }, monitor.WithTicker(ts.factory))

	m.Start(context.Background())
	require.True(t, ts.get(0).tick())
	<-entered
	m.Stop()

	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("monitor did not stop")
	}
	require.Zero(t, invalid.Load())
	require.False(t, m.Running())
}

func TestMonitor_ParentContextCancels(t *testing.T) {
	ts := &tickers{}
	m := monitor.New(func(context.Context) bool { return true }, func() {}, monitor.WithTicker(ts.factory))

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	require.True(t, m.Running())
	cancel()

	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("monitor did not stop")
	}
	require.False(t, m.Running())
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	m := monitor.New(func(context.Context) bool { return true }, func() {})
	m.Stop()
	require.False(t, m.Running())
	<-m.Done()
}
