package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Adapter resolution errors
	ErrAdapterNotFound = errors.New("adapter not found")
	ErrMethodNotFound  = errors.New("method not found")

	// Registration errors
	ErrInvalidAdapter           = errors.New("invalid adapter")
	ErrAdapterInitialization    = errors.New("adapter initialization failed")
	ErrAdapterAlreadyRegistered = errors.New("adapter already registered")

	// Availability errors
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// Transform errors
	ErrTransformType    = errors.New("transform type mismatch")
	ErrUnknownTransform = errors.New("unknown transform operation")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrTimeout            = errors.New("operation timeout")
	ErrContextCanceled    = errors.New("context canceled")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Network errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrRequestFailed    = errors.New("request failed")
)

// BindingError provides structured error information with context.
// It implements the error interface and supports error wrapping, so the
// original cause is always reachable via errors.Is/As.
type BindingError struct {
	Op        string // Operation that failed (e.g., "registry.Register")
	Kind      string // Error kind (e.g., "adapter", "transform", "config")
	AdapterID string // Optional adapter id involved
	Message   string // Human-readable message
	Err       error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *BindingError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.AdapterID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.AdapterID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *BindingError) Unwrap() error {
	return e.Err
}

// NewBindingError creates a new BindingError
func NewBindingError(op, kind string, err error) *BindingError {
	return &BindingError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAdapterNotFound) ||
		errors.Is(err, ErrMethodNotFound)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration) ||
		errors.Is(err, ErrInvalidAdapter)
}

// IsCallerError reports whether an error was caused by the caller rather
// than the adapter or the infrastructure behind it. Caller errors must not
// count toward circuit breaker thresholds.
func IsCallerError(err error) bool {
	return IsNotFound(err) ||
		IsConfigurationError(err) ||
		errors.Is(err, ErrTransformType) ||
		errors.Is(err, ErrUnknownTransform)
}

// IsRetryable checks if an error is retryable.
// Retryable errors are typically transient network or availability issues.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrCircuitBreakerOpen)
}
