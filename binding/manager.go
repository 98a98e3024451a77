// Package binding is the façade over the adapter layer: it resolves an
// adapter and method from the registry, guards the call with the adapter's
// circuit breaker, executes it with an optional timeout and retry, shapes
// the result through the transformer, and on failure evaluates a configured
// fallback.
package binding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meshworks/adapterkit/core"
	"github.com/meshworks/adapterkit/registry"
	"github.com/meshworks/adapterkit/resilience"
	"github.com/meshworks/adapterkit/transform"
)

// FallbackType discriminates the fallback union.
type FallbackType string

const (
	// FallbackAdapter invokes another adapter method with the same params.
	FallbackAdapter FallbackType = "adapter"
	// FallbackStatic returns a literal value.
	FallbackStatic FallbackType = "static"
	// FallbackFunction calls a pure function with the params.
	FallbackFunction FallbackType = "function"
)

// FallbackConfig describes what to do when the primary call fails.
// Exactly the fields for the given Type are consulted.
type FallbackConfig struct {
	Type FallbackType `json:"type" yaml:"type"`

	// Adapter fallback
	AdapterID string `json:"adapter_id,omitempty" yaml:"adapter_id,omitempty"`
	Method    string `json:"method,omitempty" yaml:"method,omitempty"`

	// Static fallback
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Function fallback; not expressible declaratively, supplied in code.
	Func func(ctx context.Context, params map[string]any) (any, error) `json:"-" yaml:"-"`
}

// InvocationOptions are per-call settings. Immutable from the manager's
// perspective; the caller supplies a fresh value per invocation.
type InvocationOptions struct {
	// Timeout bounds the primary call. Zero means the manager default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Retry re-attempts the primary call with backoff. Nil means a single
	// attempt.
	Retry *resilience.RetryConfig `json:"-" yaml:"-"`

	// Transform shapes the primary result before it is returned.
	Transform *transform.Config `json:"transform,omitempty" yaml:"transform,omitempty"`

	// Fallback is evaluated when the primary call fails.
	Fallback *FallbackConfig `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Manager binds callers to adapters. It is stateless apart from its
// references to the registry, the breaker service and the transformer, so
// a single Manager serves any number of concurrent invocations.
type Manager struct {
	registry    *registry.Registry
	breakers    *resilience.Service
	transformer *transform.Transformer
	logger      core.Logger

	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithTimeouts sets the default and maximum per-call timeouts.
func WithTimeouts(defaultTimeout, maxTimeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if defaultTimeout > 0 {
			m.defaultTimeout = defaultTimeout
		}
		if maxTimeout > 0 {
			m.maxTimeout = maxTimeout
		}
	}
}

// NewManager creates a binding manager. A nil transformer gets the built-in
// function registry.
func NewManager(reg *registry.Registry, breakers *resilience.Service, transformer *transform.Transformer, logger core.Logger, opts ...ManagerOption) *Manager {
	if transformer == nil {
		transformer = transform.New(nil)
	}
	m := &Manager{
		registry:       reg,
		breakers:       breakers,
		transformer:    transformer,
		logger:         core.ComponentLogger(logger, "adapterkit/binding"),
		defaultTimeout: 30 * time.Second,
		maxTimeout:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Invoke executes method on the adapter registered under adapterID.
//
// Resolution errors (unknown adapter, unknown method) are caller errors:
// they surface immediately and never engage the fallback. Execution
// failures - including an open-circuit rejection - flow through the
// fallback when one is configured, otherwise the original error is
// returned unchanged.
func (m *Manager) Invoke(ctx context.Context, adapterID, method string, params map[string]any, opts *InvocationOptions) (any, error) {
	if opts == nil {
		opts = &InvocationOptions{}
	}

	invocationID := uuid.New().String()

	adapter, ok := m.registry.Get(adapterID)
	if !ok {
		return nil, &core.BindingError{
			Op:        "binding.Invoke",
			Kind:      "adapter",
			AdapterID: adapterID,
			Err:       core.ErrAdapterNotFound,
		}
	}

	op, ok := adapter.Operation(method)
	if !ok {
		return nil, &core.BindingError{
			Op:        "binding.Invoke",
			Kind:      "adapter",
			AdapterID: adapterID,
			Err:       fmt.Errorf("method %q: %w", method, core.ErrMethodNotFound),
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}
	if timeout > m.maxTimeout {
		timeout = m.maxTimeout
	}

	m.logger.Debug("Invoking adapter method", map[string]interface{}{
		"operation":     "adapter_invoke",
		"invocation_id": invocationID,
		"adapter_id":    adapterID,
		"method":        method,
		"timeout_ms":    timeout.Milliseconds(),
		"has_retry":     opts.Retry != nil,
		"has_transform": opts.Transform != nil,
		"has_fallback":  opts.Fallback != nil,
	})

	breaker := m.breakers.Breaker(adapterID)

	// Each attempt writes its own result slot. A timed-out call keeps
	// running in the background and eventually stores into its abandoned
	// slot, so it can never clobber the value of a later attempt.
	var result any
	attempt := func() error {
		var res any
		err := breaker.ExecuteWithTimeout(ctx, timeout, func(callCtx context.Context) error {
			var callErr error
			res, callErr = op(callCtx, params)
			return callErr
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	var execErr error
	if opts.Retry != nil {
		execErr = resilience.Retry(ctx, opts.Retry, attempt)
	} else {
		execErr = attempt()
	}

	if execErr == nil {
		if opts.Transform != nil {
			transformed, err := m.transformer.Apply(result, opts.Transform)
			if err != nil {
				// The call itself succeeded; a broken transform pipeline is
				// a configuration error, not an adapter failure, so it does
				// not engage the fallback.
				return nil, err
			}
			result = transformed
		}
		return result, nil
	}

	m.logger.Warn("Adapter invocation failed", map[string]interface{}{
		"operation":     "adapter_invoke_failed",
		"invocation_id": invocationID,
		"adapter_id":    adapterID,
		"method":        method,
		"error":         execErr.Error(),
		"has_fallback":  opts.Fallback != nil,
	})

	if opts.Fallback == nil {
		return nil, execErr
	}

	return m.evaluateFallback(ctx, invocationID, adapterID, method, params, opts, execErr)
}

// evaluateFallback runs the configured fallback. The substitution is
// logged, since a fallback result masks a real failure.
func (m *Manager) evaluateFallback(ctx context.Context, invocationID, adapterID, method string, params map[string]any, opts *InvocationOptions, execErr error) (any, error) {
	fb := opts.Fallback

	m.logger.Warn("Falling back after invocation failure", map[string]interface{}{
		"operation":      "adapter_fallback",
		"invocation_id":  invocationID,
		"adapter_id":     adapterID,
		"method":         method,
		"fallback_type":  string(fb.Type),
		"original_error": execErr.Error(),
	})

	switch fb.Type {
	case FallbackStatic:
		return fb.Value, nil

	case FallbackFunction:
		if fb.Func == nil {
			return nil, fmt.Errorf("function fallback has no function: %w (original error: %v)", core.ErrInvalidConfiguration, execErr)
		}
		result, err := fb.Func(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fallback function failed: %v (original error: %w)", err, execErr)
		}
		return result, nil

	case FallbackAdapter:
		// Same params, same timeout and transform; retry and fallback are
		// stripped so fallbacks cannot chain or loop.
		result, err := m.Invoke(ctx, fb.AdapterID, fb.Method, params, &InvocationOptions{
			Timeout:   opts.Timeout,
			Transform: opts.Transform,
		})
		if err != nil {
			return nil, fmt.Errorf("fallback adapter %q failed: %v (original error: %w)", fb.AdapterID, err, execErr)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unknown fallback type %q: %w (original error: %v)", fb.Type, core.ErrInvalidConfiguration, execErr)
	}
}
