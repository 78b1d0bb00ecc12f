// Package monitor re-checks an authenticated session on a fixed interval and
// reports the first failed check.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultInterval = 10 * time.Minute

// CheckFunc reports whether the session is still valid. ctx is cancelled when
// the monitor is stopped.
type CheckFunc func(ctx context.Context) bool

// Monitor runs at most one ticker at a time. After the first failed check it
// stops itself and calls onInvalid exactly once for that run.
type Monitor struct {
	check     CheckFunc
	onInvalid func()
	interval  time.Duration
	newTicker TickerFactory

	mu         sync.Mutex
	cancel     context.CancelFunc
	runCtx     context.Context
	generation uint64
	done       chan struct{}
}

type Option func(*Monitor)

func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithTicker replaces time.NewTicker (primarily for testing)
func WithTicker(factory TickerFactory) Option {
	return func(m *Monitor) {
		if factory != nil {
			m.newTicker = factory
		}
	}
}

func New(check CheckFunc, onInvalid func(), options ...Option) *Monitor {
	m := &Monitor{
		check:     check,
		onInvalid: onInvalid,
		interval:  DefaultInterval,
		newTicker: NewTimeTicker,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Start stops any running ticker and starts a new one. The run ends when ctx
// is cancelled, Stop is called or a check fails.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.generation++
	m.done = make(chan struct{})

	go m.run(runCtx, m.generation, m.newTicker(m.interval), m.done)
}

// Stop cancels the current run without waiting for it. It is safe to call
// from onInvalid and when nothing is running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Running reports whether a run is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil && m.runCtx.Err() == nil
}

// Done is closed when the current run's goroutine exits. It returns a closed
// channel when nothing was ever started.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return m.done
}

func (m *Monitor) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.generation++
}

func (m *Monitor) run(ctx context.Context, generation uint64, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			valid := m.check(ctx)
			if ctx.Err() != nil {
				// stopped while checking, the result belongs to nobody
				return
			}
			if valid {
				continue
			}
			if !m.finish(generation) {
				return
			}
			log.Info().Msg("Session check failed, monitor stopped")
			m.onInvalid()
			return
		}
	}
}

// finish marks the run stopped if it is still the current one.
func (m *Monitor) finish(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		return false
	}
	m.stopLocked()
	return true
}
