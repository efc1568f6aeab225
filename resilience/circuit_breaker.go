package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// CircuitState is the circuit breaker's state machine position (§4.1).
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig mirrors core.CircuitBreakerConfig's field names
// exactly (§6), plus the wiring fields (Name, ErrorClassifier, Logger,
// Telemetry) the package needs to build one.
type CircuitBreakerConfig struct {
	Name string

	FailureRateThreshold      int
	SlowCallRateThreshold     int
	SlowCallDurationThreshold time.Duration
	WaitDurationInOpenState   time.Duration
	PermittedInHalfOpen       int
	SlidingWindowSize         int
	MinimumNumberOfCalls      int

	ErrorClassifier ErrorClassifier
	Logger          core.Logger
	Telemetry       core.Telemetry
}

// ErrorClassifier decides whether an error returned by the wrapped work
// should count as a circuit-breaker failure. Errors that are expected
// business outcomes (e.g. KindNotFound) should return false so they don't
// trip the breaker.
type ErrorClassifier func(err error) bool

// DefaultErrorClassifier counts anything non-nil except validation and
// not-found outcomes, which are caller errors rather than provider failures.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	kind := core.KindOf(err)
	return kind != core.KindValidation && kind != core.KindNotFound
}

func (c *CircuitBreakerConfig) withDefaults() *CircuitBreakerConfig {
	cfg := *c
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = 50
	}
	if cfg.SlowCallRateThreshold <= 0 {
		cfg.SlowCallRateThreshold = 100
	}
	if cfg.SlowCallDurationThreshold <= 0 {
		cfg.SlowCallDurationThreshold = 60 * time.Second
	}
	if cfg.WaitDurationInOpenState <= 0 {
		cfg.WaitDurationInOpenState = 60 * time.Second
	}
	if cfg.PermittedInHalfOpen <= 0 {
		cfg.PermittedInHalfOpen = 10
	}
	if cfg.SlidingWindowSize <= 0 {
		cfg.SlidingWindowSize = 100
	}
	if cfg.MinimumNumberOfCalls <= 0 {
		cfg.MinimumNumberOfCalls = 10
	}
	if cfg.ErrorClassifier == nil {
		cfg.ErrorClassifier = DefaultErrorClassifier
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &core.NoOpTelemetry{}
	}
	return &cfg
}

// Validate reports a config error for out-of-range thresholds.
func (c *CircuitBreakerConfig) Validate() error {
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 100 {
		return core.NewFrameworkError("CircuitBreakerConfig.Validate", core.KindValidation,
			&core.FrameworkError{Message: "failure rate threshold must be 0-100", Err: core.ErrValidationFailed})
	}
	if c.SlowCallRateThreshold < 0 || c.SlowCallRateThreshold > 100 {
		return core.NewFrameworkError("CircuitBreakerConfig.Validate", core.KindValidation,
			&core.FrameworkError{Message: "slow call rate threshold must be 0-100", Err: core.ErrValidationFailed})
	}
	return nil
}

// outcome is one recorded call result in the ring buffer.
type outcome struct {
	failed bool
	slow   bool
}

// callWindow is a fixed-capacity ring buffer of the last N call outcomes,
// giving the breaker a count-based sliding window (§4.1): eviction happens
// strictly on call count, so a quiet period never "forgets" history the
// way a wall-clock bucketed window would.
type callWindow struct {
	mu       sync.Mutex
	buf      []outcome
	size     int
	next     int
	total    int
	failures int
	slows    int
}

func newCallWindow(capacity int) *callWindow {
	return &callWindow{buf: make([]outcome, capacity)}
}

// record appends one outcome, evicting the oldest entry once the window is
// full, and returns the window's current (total, failures, slows) counts.
func (w *callWindow) record(o outcome) (total, failures, slows int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	capacity := len(w.buf)
	if w.size == capacity {
		evicted := w.buf[w.next]
		if evicted.failed {
			w.failures--
		}
		if evicted.slow {
			w.slows--
		}
		w.total--
	} else {
		w.size++
	}

	w.buf[w.next] = o
	w.next = (w.next + 1) % capacity
	w.total++
	if o.failed {
		w.failures++
	}
	if o.slow {
		w.slows++
	}
	return w.total, w.failures, w.slows
}

func (w *callWindow) counts() (total, failures, slows int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total, w.failures, w.slows
}

func (w *callWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = make([]outcome, len(w.buf))
	w.size, w.next, w.total, w.failures, w.slows = 0, 0, 0, 0, 0
}

// CircuitBreaker implements the §4.1 CLOSED -> OPEN -> HALF_OPEN -> CLOSED
// state machine over a count-based sliding window of the last
// SlidingWindowSize call outcomes.
type CircuitBreaker struct {
	cfg *CircuitBreakerConfig

	state        atomic.Int32
	openedAt     atomic.Int64 // UnixNano when the breaker last opened
	halfOpenUsed atomic.Int32 // probes already dispatched this half-open period

	window *callWindow

	mu        sync.Mutex
	listeners []func(from, to CircuitState)
}

// NewCircuitBreaker builds a CircuitBreaker from cfg, filling in the §6
// defaults for any zero-valued field.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if cfg == nil {
		cfg = &CircuitBreakerConfig{}
	}
	full := cfg.withDefaults()
	if err := full.Validate(); err != nil {
		return nil, err
	}
	cb := &CircuitBreaker{
		cfg:    full,
		window: newCallWindow(full.SlidingWindowSize),
	}
	cb.state.Store(int32(StateClosed))
	return cb, nil
}

// GetState returns the breaker's current state as a string.
func (cb *CircuitBreaker) GetState() string {
	return cb.currentState().String()
}

func (cb *CircuitBreaker) currentState() CircuitState {
	return CircuitState(cb.state.Load())
}

// Execute runs fn if the breaker permits the call, recording its outcome
// (and duration, for slow-call accounting) against the sliding window.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		return core.NewFrameworkError("CircuitBreaker.Execute", core.KindCircuitOpen,
			&core.FrameworkError{ID: cb.cfg.Name, Message: "circuit breaker is open: " + cb.cfg.Name, Err: core.ErrCircuitOpen})
	}

	start := time.Now()
	err := fn()
	cb.recordResult(ctx, err, time.Since(start))
	return err
}

// allow reports whether a call may proceed, transitioning OPEN -> HALF_OPEN
// once WaitDurationInOpenState has elapsed and gating HALF_OPEN to at most
// PermittedInHalfOpen admitted probes per half-open period (a finished probe
// does not free its slot).
func (cb *CircuitBreaker) allow() bool {
	switch cb.currentState() {
	case StateClosed:
		return true
	case StateOpen:
		openedAt := time.Unix(0, cb.openedAt.Load())
		if time.Since(openedAt) < cb.cfg.WaitDurationInOpenState {
			return false
		}
		if cb.transition(StateOpen, StateHalfOpen) {
			cb.halfOpenUsed.Store(0)
			cb.window.reset()
		}
		return cb.allow()
	case StateHalfOpen:
		if cb.halfOpenUsed.Add(1) > int32(cb.cfg.PermittedInHalfOpen) {
			cb.halfOpenUsed.Add(-1)
			return false
		}
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(ctx context.Context, err error, elapsed time.Duration) {
	failed := cb.cfg.ErrorClassifier(err)
	slow := elapsed > cb.cfg.SlowCallDurationThreshold

	if cb.currentState() == StateHalfOpen {
		if failed {
			cb.transition(StateHalfOpen, StateOpen)
			cb.openedAt.Store(time.Now().UnixNano())
		} else if cb.halfOpenUsed.Load() >= int32(cb.cfg.PermittedInHalfOpen) {
			cb.transition(StateHalfOpen, StateClosed)
			cb.window.reset()
		}
	}

	total, failures, slows := cb.window.record(outcome{failed: failed, slow: slow})
	cb.emitMetrics(ctx, failed, elapsed)

	if cb.currentState() != StateClosed {
		return
	}
	if total < cb.cfg.MinimumNumberOfCalls {
		return
	}

	failureRate := percentage(failures, total)
	slowRate := percentage(slows, total)
	if failureRate >= cb.cfg.FailureRateThreshold || slowRate >= cb.cfg.SlowCallRateThreshold {
		if cb.transition(StateClosed, StateOpen) {
			cb.openedAt.Store(time.Now().UnixNano())
			cb.cfg.Logger.Warn("circuit breaker opened", map[string]interface{}{
				"name": cb.cfg.Name, "failure_rate": failureRate, "slow_rate": slowRate, "calls": total,
			})
		}
	}
}

func percentage(n, total int) int {
	if total == 0 {
		return 0
	}
	return n * 100 / total
}

func (cb *CircuitBreaker) transition(from, to CircuitState) bool {
	if !cb.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	cb.cfg.Logger.Info("circuit breaker state change", map[string]interface{}{
		"name": cb.cfg.Name, "from": from.String(), "to": to.String(),
	})
	cb.mu.Lock()
	listeners := append([]func(from, to CircuitState){}, cb.listeners...)
	cb.mu.Unlock()
	for _, l := range listeners {
		l(from, to)
	}
	return true
}

func (cb *CircuitBreaker) emitMetrics(ctx context.Context, failed bool, elapsed time.Duration) {
	labels := map[string]string{"name": cb.cfg.Name, "state": cb.currentState().String()}
	cb.cfg.Telemetry.RecordMetric("resilience.circuit_breaker.calls", 1, labels)
	cb.cfg.Telemetry.RecordMetric("resilience.circuit_breaker.duration_ms", float64(elapsed.Milliseconds()), labels)
	if failed {
		cb.cfg.Telemetry.RecordMetric("resilience.circuit_breaker.failures", 1, labels)
	}
}

// AddStateChangeListener registers fn to be called synchronously on every
// state transition, so a caller can record CIRCUIT_BREAKER_OPENED /
// CIRCUIT_BREAKER_CLOSED audit entries without the breaker depending on the
// audit package.
func (cb *CircuitBreaker) AddStateChangeListener(fn func(from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, fn)
}

// Counts returns the sliding window's current (total, failures, slowCalls).
func (cb *CircuitBreaker) Counts() (total, failures, slows int) {
	return cb.window.counts()
}

// Reset forces the breaker back to CLOSED and clears the sliding window.
func (cb *CircuitBreaker) Reset() {
	cb.state.Store(int32(StateClosed))
	cb.halfOpenUsed.Store(0)
	cb.window.reset()
}
