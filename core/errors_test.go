package core

import (
	"errors"
	"fmt"
	"testing"
)

// TestBindingErrorFormatting tests the Error() string forms
func TestBindingErrorFormatting(t *testing.T) {
	err := &BindingError{
		Op:        "binding.Invoke",
		Kind:      "adapter",
		AdapterID: "crm",
		Err:       ErrAdapterNotFound,
	}
	want := "binding.Invoke [crm]: adapter not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = &BindingError{Op: "registry.Register", Err: ErrInvalidAdapter}
	want = "registry.Register: invalid adapter"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = &BindingError{Kind: "transform", Message: "bad pipeline"}
	if err.Error() != "bad pipeline" {
		t.Errorf("Error() = %q, want message", err.Error())
	}

	err = &BindingError{Kind: "config"}
	if err.Error() != "config error" {
		t.Errorf("Error() = %q, want kind fallback", err.Error())
	}
}

// TestBindingErrorUnwrap verifies errors.Is and errors.As reach the cause
func TestBindingErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("method %q: %w", "lookup", ErrMethodNotFound)
	err := fmt.Errorf("wrapped: %w", &BindingError{Op: "binding.Invoke", Err: inner})

	if !errors.Is(err, ErrMethodNotFound) {
		t.Error("errors.Is should find the sentinel through the chain")
	}

	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatal("errors.As should find the BindingError")
	}
	if be.Op != "binding.Invoke" {
		t.Errorf("Op = %q, want binding.Invoke", be.Op)
	}
}

// TestErrorClassificationHelpers tests the taxonomy predicates
func TestErrorClassificationHelpers(t *testing.T) {
	tests := []struct {
		err       error
		notFound  bool
		config    bool
		caller    bool
		retryable bool
	}{
		{ErrAdapterNotFound, true, false, true, false},
		{ErrMethodNotFound, true, false, true, false},
		{ErrInvalidAdapter, false, true, true, false},
		{ErrInvalidConfiguration, false, true, true, false},
		{ErrMissingConfiguration, false, true, true, false},
		{ErrTransformType, false, false, true, false},
		{ErrUnknownTransform, false, false, true, false},
		{ErrTimeout, false, false, false, true},
		{ErrConnectionFailed, false, false, false, true},
		{ErrCircuitBreakerOpen, false, false, false, true},
		{errors.New("opaque"), false, false, false, false},
	}

	for _, tt := range tests {
		if got := IsNotFound(tt.err); got != tt.notFound {
			t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.notFound)
		}
		if got := IsConfigurationError(tt.err); got != tt.config {
			t.Errorf("IsConfigurationError(%v) = %v, want %v", tt.err, got, tt.config)
		}
		if got := IsCallerError(tt.err); got != tt.caller {
			t.Errorf("IsCallerError(%v) = %v, want %v", tt.err, got, tt.caller)
		}
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}

	// Wrapped sentinels classify identically
	wrapped := fmt.Errorf("calling backend: %w", ErrConnectionFailed)
	if !IsRetryable(wrapped) {
		t.Error("wrapped ErrConnectionFailed should stay retryable")
	}
}
