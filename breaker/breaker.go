// Package breaker implements the per-connector circuit breaker described in
// spec.md §4.2: a CLOSED/OPEN/HALF_OPEN state machine with an inflight
// concurrency cap and a per-call timeout. Its state-machine shape follows
// sony/gobreaker (jordigilh-kubernaut's go.mod dependency), but the
// implementation is hand-rolled rather than wrapping gobreaker directly:
// gobreaker has no concept of an inflight concurrency cap and folds
// timeouts into its generic failure count, while spec.md §8's testable
// properties require TooManyRequests and BreakerTimeout to be distinct,
// externally observable outcomes.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srallapally/openicf-connector-service/connerr"
)

// State is one of the three breaker states from spec.md §4.2.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Settings configures a Breaker. Zero values are replaced by the spec.md
// §4.2 defaults in New.
type Settings struct {
	FailureThreshold int
	SuccessThreshold int
	HalfOpenAfter    time.Duration
	MaxConcurrent    int
	Timeout          time.Duration

	// InstanceID labels the Prometheus metrics this breaker emits; optional.
	InstanceID string
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 2
	}
	if s.HalfOpenAfter <= 0 {
		s.HalfOpenAfter = 10 * time.Second
	}
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = 20
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	return s
}

// Breaker is a single connector instance's private circuit breaker. All
// counters live inside the struct; nothing is shared across breakers
// (spec.md §4.2's "no cross-breaker state").
type Breaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	successes int
	openedAt time.Time
	inflight int
}

// New constructs a Breaker starting CLOSED, applying spec.md §4.2 defaults
// for any zero-valued Settings field.
func New(settings Settings) *Breaker {
	return &Breaker{
		settings: settings.withDefaults(),
		state:    Closed,
	}
}

// Call runs fn through the breaker: it fails fast on OPEN or over the
// concurrency cap, races fn against the configured timeout, and updates
// state on success/failure. ctx is honored as an additional cancellation
// source alongside the internal timeout.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := b.admit(); err != nil {
		return nil, err
	}
	defer b.release()

	callCtx, cancel := context.WithTimeout(ctx, b.settings.Timeout)
	defer cancel()

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(callCtx)
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			b.onSuccess()
			return r.val, nil
		}
		if callCtx.Err() == nil {
			b.onFailure()
			return nil, r.err
		}
		// fn gave up because callCtx expired; report it as a timeout.
	case <-callCtx.Done():
	}
	b.onFailure()
	breakerTimeouts.WithLabelValues(b.settings.InstanceID).Inc()
	return nil, connerr.Wrap(connerr.KindBreakerTimeout, "call exceeded breaker timeout", callCtx.Err())
}

// admit checks OPEN->HALF_OPEN transition eligibility and the concurrency
// cap, incrementing inflight on success.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.openedAt) >= b.settings.HalfOpenAfter {
			b.transitionLocked(HalfOpen)
		} else {
			return connerr.ErrCircuitOpen
		}
	}

	if b.inflight >= b.settings.MaxConcurrent {
		return connerr.ErrTooManyRequests
	}
	b.inflight++
	return nil
}

func (b *Breaker) release() {
	b.mu.Lock()
	b.inflight--
	b.mu.Unlock()
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.transitionLocked(Closed)
		}
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.transitionLocked(Open)
		}
	case HalfOpen:
		b.transitionLocked(Open)
	}
}

// transitionLocked must be called with b.mu held.
func (b *Breaker) transitionLocked(to State) {
	b.state = to
	switch to {
	case Open:
		b.openedAt = time.Now()
	case HalfOpen, Closed:
		b.failures = 0
		b.successes = 0
	}
	breakerStateGauge.WithLabelValues(b.settings.InstanceID, string(to)).Set(1)
	for _, s := range []State{Closed, Open, HalfOpen} {
		if s != to {
			breakerStateGauge.WithLabelValues(b.settings.InstanceID, string(s)).Set(0)
		}
	}
}

// State returns the breaker's current state, for introspection/tests.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

var (
	breakerStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "connector_host",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Current circuit breaker state per connector instance (1 for the active state, 0 otherwise).",
	}, []string{"instance_id", "state"})

	breakerTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connector_host",
		Subsystem: "breaker",
		Name:      "timeouts_total",
		Help:      "Count of calls that failed because they exceeded the breaker's per-call timeout.",
	}, []string{"instance_id"})
)

func init() {
	prometheus.MustRegister(breakerStateGauge, breakerTimeouts)
}
