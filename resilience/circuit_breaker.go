// Package resilience protects adapter invocations from cascading failures.
// It provides a per-adapter circuit breaker, a breaker service keyed by
// adapter id, and retry with exponential backoff.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshworks/adapterkit/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows a single probing request
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MetricsCollector interface for circuit breaker metrics
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string, errorType string)
	RecordStateChange(name string, from, to string)
	RecordRejection(name string)
}

// noopMetrics is a no-op metrics implementation
type noopMetrics struct{}

func (n *noopMetrics) RecordSuccess(name string)                      {}
func (n *noopMetrics) RecordFailure(name string, errorType string)    {}
func (n *noopMetrics) RecordStateChange(name string, from, to string) {}
func (n *noopMetrics) RecordRejection(name string)                    {}

// ErrorClassifier determines which errors count toward the failure threshold
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts infrastructure errors only. Caller errors
// (unknown adapter, unknown method, misconfigured transforms) and client
// cancellation say nothing about adapter availability and must not trip the
// breaker. Timeouts do count.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	if core.IsCallerError(err) {
		return false
	}

	// Client gave up - not an adapter failure.
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrContextCanceled) {
		return false
	}

	return true
}

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	// Name identifies the circuit breaker, normally the adapter id
	Name string

	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before allowing a
	// half-open probe
	ResetTimeout time.Duration

	// ErrorClassifier determines which errors count as failures
	ErrorClassifier ErrorClassifier

	// Logger for circuit breaker events
	Logger core.Logger

	// Metrics collector for monitoring
	Metrics MetricsCollector
}

// DefaultBreakerConfig returns a production-ready default configuration
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
		Metrics:          &noopMetrics{},
	}
}

// Validate validates the circuit breaker configuration
func (c *BreakerConfig) Validate() error {
	if c == nil {
		return errors.New("configuration cannot be nil")
	}
	if c.Name == "" {
		return errors.New("circuit breaker name is required")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("reset timeout must be positive, got %v", c.ResetTimeout)
	}
	return nil
}

// CircuitBreaker is a per-adapter state machine that stops calls after
// FailureThreshold consecutive failures and probes recovery after
// ResetTimeout. The open to half-open transition is evaluated lazily at
// call time rather than by a timer goroutine; the observable behavior is
// identical and there is nothing to leak or cancel.
type CircuitBreaker struct {
	config *BreakerConfig

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastFailureTime time.Time
	openedAt        time.Time
	probing         bool

	executionsInFlight atomic.Int32
	totalExecutions    atomic.Uint64
	rejectedExecutions atomic.Uint64
}

// NewCircuitBreaker creates a circuit breaker in the closed state
func NewCircuitBreaker(config *BreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultBreakerConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}

	cb := &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}

	config.Logger.Debug("Circuit breaker created", map[string]interface{}{
		"operation":         "circuit_breaker_created",
		"name":              config.Name,
		"failure_threshold": config.FailureThreshold,
		"reset_timeout_ms":  config.ResetTimeout.Milliseconds(),
	})

	return cb, nil
}

// Name returns the breaker's identifier.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// IsOpen reports whether the breaker currently rejects calls. An open
// breaker whose reset timeout has elapsed transitions to half-open here,
// so IsOpen turns false exactly when a probe becomes admissible.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpenLocked()
	return cb.state == StateOpen
}

// GetState returns the current state as a string.
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpenLocked()
	return cb.state.String()
}

// Execute runs fn with circuit breaker protection. If the circuit is open
// it fails fast with core.ErrCircuitBreakerOpen without invoking fn. On
// failure the original error is returned unchanged so callers never lose
// the underlying cause.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	return cb.ExecuteWithTimeout(ctx, 0, fn)
}

// ExecuteWithTimeout runs fn with breaker protection and an optional
// timeout. fn receives the deadline-bound context so cancellation-aware
// adapters can stop early. On expiry the call is abandoned from the
// caller's perspective and counted as a failure; a function that ignores
// the context keeps running until it returns and its late result is still
// recorded.
func (cb *CircuitBreaker) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	probe, allowed := cb.startExecution()
	if !allowed {
		cb.rejectedExecutions.Add(1)
		cb.config.Metrics.RecordRejection(cb.config.Name)

		cb.config.Logger.Info("Circuit breaker rejected execution", map[string]interface{}{
			"operation": "circuit_breaker_reject",
			"name":      cb.config.Name,
			"state":     "open",
		})
		return fmt.Errorf("circuit breaker %q is open: %w", cb.config.Name, core.ErrCircuitBreakerOpen)
	}

	cb.executionsInFlight.Add(1)
	defer cb.executionsInFlight.Add(-1)
	cb.totalExecutions.Add(1)

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				var panicErr error
				switch v := r.(type) {
				case error:
					panicErr = fmt.Errorf("panic in adapter call: %w\nStack:\n%s", v, stack)
				default:
					panicErr = fmt.Errorf("panic in adapter call: %v\nStack:\n%s", v, stack)
				}

				cb.config.Logger.Error("Circuit breaker caught panic", map[string]interface{}{
					"operation": "circuit_breaker_panic",
					"name":      cb.config.Name,
					"panic":     fmt.Sprintf("%v", r),
				})

				done <- panicErr
			}
		}()

		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		cb.completeExecution(probe, err)
		return err
	case <-ctx.Done():
		// Timed out or canceled: the adapter call may keep running (the
		// adapter is responsible for honoring cancellation), but from the
		// caller's perspective it is abandoned and counted now. The done
		// channel is buffered, so the orphaned goroutine cannot block.
		cb.completeExecution(probe, ctx.Err())
		return ctx.Err()
	}
}

// startExecution decides whether a call may proceed, performing the lazy
// open to half-open transition and reserving the single half-open probe.
func (cb *CircuitBreaker) startExecution() (probe bool, allowed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpenLocked()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateHalfOpen:
		if cb.probing {
			// A probe is already in flight; only one trial call decides.
			return false, false
		}
		cb.probing = true
		return true, true
	default:
		return false, false
	}
}

// completeExecution records the result of an allowed call.
func (cb *CircuitBreaker) completeExecution(probe bool, err error) {
	if err == nil {
		cb.recordSuccess(probe)
		return
	}

	if !cb.config.ErrorClassifier(err) {
		// Caller error or client cancellation: neutral for the breaker,
		// but a half-open probe slot must be released so the next call can
		// still probe.
		if probe {
			cb.mu.Lock()
			cb.probing = false
			cb.mu.Unlock()
		}
		return
	}

	cb.config.Metrics.RecordFailure(cb.config.Name, errorType(err))
	cb.recordFailure(probe)
}

func (cb *CircuitBreaker) recordSuccess(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.config.Metrics.RecordSuccess(cb.config.Name)

	if cb.state == StateHalfOpen && probe {
		// The probe succeeded: close and clear failures.
		cb.transitionLocked(StateClosed)
		return
	}

	// Consecutive failure counting: any success resets the run.
	cb.failures = 0
}

// RecordFailure increments the consecutive failure count and performs the
// closed to open or half-open to open transition when warranted. Execute
// calls this internally; it is exported for callers that track failures
// observed outside the breaker (e.g. timeouts enforced elsewhere).
func (cb *CircuitBreaker) RecordFailure(err error) {
	if err != nil && !cb.config.ErrorClassifier(err) {
		return
	}
	cb.config.Metrics.RecordFailure(cb.config.Name, errorType(err))
	cb.recordFailure(false)
}

func (cb *CircuitBreaker) recordFailure(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch {
	case cb.state == StateHalfOpen && probe:
		// Probe failed: reopen with a fresh reset window.
		cb.transitionLocked(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold:
		cb.transitionLocked(StateOpen)
	}
}

// maybeHalfOpenLocked performs the open to half-open transition once the
// reset timeout has elapsed. Must be called with the lock held.
func (cb *CircuitBreaker) maybeHalfOpenLocked() {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.ResetTimeout {
		cb.transitionLocked(StateHalfOpen)
	}
}

// transitionLocked changes state. Must be called with the lock held.
func (cb *CircuitBreaker) transitionLocked(newState CircuitState) {
	oldState := cb.state
	if oldState == newState {
		return
	}

	cb.state = newState
	cb.probing = false

	switch newState {
	case StateClosed:
		cb.failures = 0
	case StateOpen:
		cb.openedAt = time.Now()
	case StateHalfOpen:
		cb.failures = 0
	}

	cb.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"operation": "circuit_breaker_transition",
		"name":      cb.config.Name,
		"from":      oldState.String(),
		"to":        newState.String(),
		"failures":  cb.failures,
	})

	cb.config.Metrics.RecordStateChange(cb.config.Name, oldState.String(), newState.String())
}

// GetMetrics returns a point-in-time snapshot of breaker state and counters.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	cb.mu.Lock()
	state := cb.state
	failures := cb.failures
	lastFailure := cb.lastFailureTime
	cb.mu.Unlock()

	metrics := map[string]interface{}{
		"name":                 cb.config.Name,
		"state":                state.String(),
		"failures":             failures,
		"failure_threshold":    cb.config.FailureThreshold,
		"reset_timeout_ms":     cb.config.ResetTimeout.Milliseconds(),
		"executions_in_flight": cb.executionsInFlight.Load(),
		"total_executions":     cb.totalExecutions.Load(),
		"rejected_executions":  cb.rejectedExecutions.Load(),
	}
	if !lastFailure.IsZero() {
		metrics["last_failure_time"] = lastFailure.UTC().Format(time.RFC3339)
	}
	return metrics
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset manually returns the breaker to closed and clears all counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	oldState := cb.state
	cb.transitionLocked(StateClosed)
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
	cb.mu.Unlock()

	cb.config.Logger.Info("Circuit breaker reset", map[string]interface{}{
		"operation":      "circuit_breaker_reset",
		"name":           cb.config.Name,
		"previous_state": oldState.String(),
	})
}

// errorType returns a label for metrics without leaking error contents.
func errorType(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, core.ErrTimeout):
		return "timeout"
	case errors.Is(err, core.ErrConnectionFailed):
		return "connection_failed"
	default:
		return fmt.Sprintf("%T", err)
	}
}
