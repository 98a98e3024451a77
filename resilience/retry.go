package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meshworks/adapterkit/core"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// RetryConfigFromPolicy converts a declarative adapter retry policy into a
// runtime config, filling gaps with defaults.
func RetryConfigFromPolicy(policy *core.RetryPolicy) *RetryConfig {
	if policy == nil {
		return nil
	}
	cfg := DefaultRetryConfig()
	if policy.MaxAttempts > 0 {
		cfg.MaxAttempts = policy.MaxAttempts
	}
	if policy.InitialDelay > 0 {
		cfg.InitialDelay = policy.InitialDelay
	}
	if policy.MaxDelay > 0 {
		cfg.MaxDelay = policy.MaxDelay
	}
	return cfg
}

// Retry executes a function with retry logic
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		// Check context
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Try the function
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		// Caller errors will not change on retry, and an open breaker
		// holds for its whole reset window - far longer than any backoff
		// schedule. Both abort the loop with the original error.
		if core.IsCallerError(lastErr) || errors.Is(lastErr, core.ErrCircuitBreakerOpen) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == config.MaxAttempts {
			break
		}

		// Calculate next delay with exponential backoff
		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		// Add jitter if enabled to prevent synchronized retries
		// across multiple clients (thundering herd mitigation)
		if config.JitterEnabled {
			jitter := time.Duration(float64(delay) * 0.1 * math.Sin(float64(attempt)))
			delay += jitter
		}

		// Sleep with context cancellation
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w: %w", config.MaxAttempts, core.ErrMaxRetriesExceeded, lastErr)
}

// RetryWithCircuitBreaker combines retry logic with circuit breaker
// protection. An attempt rejected by an open breaker aborts the retry loop:
// the breaker has already decided the backend is unavailable, and hammering
// it until the attempts run out defeats the point.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func(context.Context) error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(ctx, fn)
	})
}
