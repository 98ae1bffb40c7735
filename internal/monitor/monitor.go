// Package monitor drives unattended background behavior sampling.
//
// When running, it submits one behavior sample immediately and then one
// per interval, independent of any foreground action. Submissions are
// fired without waiting for the previous round-trip to resolve; the
// coordinator tolerates overlapping, out-of-order completions.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zerotrust-labs/sentinel/internal/circuitbreaker"
	"github.com/zerotrust-labs/sentinel/internal/logging"
	"github.com/zerotrust-labs/sentinel/internal/metrics"
)

// DefaultInterval between scheduled submissions.
const DefaultInterval = 30 * time.Second

// SubmitFunc is the unit of work fired on every tick.
type SubmitFunc func(ctx context.Context) error

// Monitor is the periodic driver. Stopped → Running → Stopped; Start and
// Stop are idempotent.
type Monitor struct {
	interval time.Duration
	submit   SubmitFunc
	breaker  *circuitbreaker.Breaker // nil disables failure backoff
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	onState func(running bool) // optional state-change hook
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the default tick interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithBreaker enables failure backoff: after the breaker's threshold of
// consecutive failed submissions, ticks are skipped until its cooldown
// elapses, then one probe flows.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(m *Monitor) { m.breaker = b }
}

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logging.Component(logger, "monitor") }
}

// WithStateHook registers a callback fired on Start and Stop.
func WithStateHook(fn func(running bool)) Option {
	return func(m *Monitor) { m.onState = fn }
}

// New creates a monitor that calls submit on every tick.
func New(submit SubmitFunc, opts ...Option) *Monitor {
	m := &Monitor{
		interval: DefaultInterval,
		submit:   submit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins periodic submission. No-op when already running. The
// first submission fires immediately.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	m.logger.Info("monitoring started", "interval", m.interval)
	if m.onState != nil {
		m.onState(true)
	}

	go m.loop(stop, done)
}

// Stop cancels the periodic trigger and waits for the loop to exit.
// Idempotent; in-flight submissions are not interrupted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done

	m.logger.Info("monitoring stopped")
	if m.onState != nil {
		m.onState(false)
	}
}

// Close forces Stop and releases the timer. No further ticks fire.
func (m *Monitor) Close() {
	m.Stop()
}

// Running reports whether the monitor is currently ticking.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.fire()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.fire()
		}
	}
}

// fire launches one submission without blocking the tick loop.
func (m *Monitor) fire() {
	if m.breaker != nil && !m.breaker.Allow() {
		metrics.MonitorTicksSkippedTotal.Inc()
		m.logger.Debug("submission skipped, backend failure backoff active")
		return
	}

	go func() {
		err := m.submit(context.Background())
		if err != nil {
			metrics.BehaviorSubmissionsTotal.WithLabelValues("scheduled", "error").Inc()
			m.logger.Warn("scheduled submission failed", "error", err)
			if m.breaker != nil {
				m.breaker.RecordFailure()
			}
			return
		}
		metrics.BehaviorSubmissionsTotal.WithLabelValues("scheduled", "ok").Inc()
		if m.breaker != nil {
			m.breaker.RecordSuccess()
		}
	}()
}
