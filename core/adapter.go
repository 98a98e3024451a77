// Package core provides the shared contracts for the adapter binding layer:
// the Adapter capability contract, per-adapter configuration, health
// reporting types, logging, and the error taxonomy used across the
// registry, health, resilience, transform and binding packages.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation is a single named capability operation exposed by an adapter.
// Operations take a single params object and return an untyped result.
type Operation func(ctx context.Context, params map[string]any) (any, error)

// Adapter is the capability contract every pluggable backend implements.
// Adapters are constructed externally and handed to the registry, which
// exclusively owns their registered lifetime: Initialize is called once at
// registration, Shutdown once at unregistration. Callers never hold an
// adapter reference outside an invocation.
type Adapter interface {
	// ID returns the unique, stable identifier for this adapter.
	ID() string

	// Name returns the human-readable adapter name.
	Name() string

	// Version returns the adapter version string.
	Version() string

	// Capabilities returns the capability tags this adapter advertises,
	// used for discovery by function rather than by name.
	Capabilities() []string

	// Initialize prepares the adapter with its resolved configuration.
	// Called exactly once by the registry at registration time.
	Initialize(ctx context.Context, cfg *AdapterConfig) error

	// HealthCheck probes adapter liveness. Advisory only - results never
	// gate invocations.
	HealthCheck(ctx context.Context) (*HealthReport, error)

	// Shutdown releases adapter resources. Called exactly once at
	// unregistration or process teardown.
	Shutdown(ctx context.Context) error

	// Operation resolves a named operation, reporting whether it exists.
	Operation(name string) (Operation, bool)

	// Operations lists the names of all exposed operations.
	Operations() []string
}

// AdapterConfig is the per-adapter configuration resolved from a
// ConfigSource and passed once at Initialize.
type AdapterConfig struct {
	// Tenant scopes the adapter to a tenant, if the provider is multi-tenant.
	Tenant string `json:"tenant" yaml:"tenant"`

	// CredentialRefs name credentials to be resolved by an external secrets
	// collaborator. The layer never stores credential material itself.
	CredentialRefs map[string]string `json:"credential_refs" yaml:"credential_refs"`

	// Endpoints maps logical endpoint names to URLs.
	Endpoints map[string]string `json:"endpoints" yaml:"endpoints"`

	// Timeout bounds individual provider calls made by the adapter.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Retry configures the adapter's own retry behavior, if any.
	Retry *RetryPolicy `json:"retry" yaml:"retry"`

	// Extra carries provider-specific settings the layer does not interpret.
	Extra map[string]any `json:"extra" yaml:"extra"`
}

// RetryPolicy describes retry behavior in configuration form.
type RetryPolicy struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
}

// Validator is implemented by adapters that can check their own shape
// before registration. The registry calls Validate (when implemented) and
// rejects the adapter with ErrInvalidAdapter on failure.
type Validator interface {
	Validate() error
}

// FuncAdapter implements Adapter from plain function fields. It is the
// building block for compile-time adapter registration: providers assemble
// one in code (or a thin wrapper package does) and hand it to the registry.
// Nil lifecycle hooks fail Validate, so a half-built adapter never makes it
// into the registry.
type FuncAdapter struct {
	AdapterID      string
	AdapterName    string
	AdapterVersion string
	Tags           []string

	InitializeFunc  func(ctx context.Context, cfg *AdapterConfig) error
	HealthCheckFunc func(ctx context.Context) (*HealthReport, error)
	ShutdownFunc    func(ctx context.Context) error

	Ops map[string]Operation
}

func (f *FuncAdapter) ID() string      { return f.AdapterID }
func (f *FuncAdapter) Name() string    { return f.AdapterName }
func (f *FuncAdapter) Version() string { return f.AdapterVersion }

func (f *FuncAdapter) Capabilities() []string {
	tags := make([]string, len(f.Tags))
	copy(tags, f.Tags)
	return tags
}

func (f *FuncAdapter) Initialize(ctx context.Context, cfg *AdapterConfig) error {
	if f.InitializeFunc == nil {
		return fmt.Errorf("adapter %q has no initialize hook: %w", f.AdapterID, ErrInvalidAdapter)
	}
	return f.InitializeFunc(ctx, cfg)
}

func (f *FuncAdapter) HealthCheck(ctx context.Context) (*HealthReport, error) {
	if f.HealthCheckFunc == nil {
		return nil, fmt.Errorf("adapter %q has no health check hook: %w", f.AdapterID, ErrInvalidAdapter)
	}
	return f.HealthCheckFunc(ctx)
}

func (f *FuncAdapter) Shutdown(ctx context.Context) error {
	if f.ShutdownFunc == nil {
		return fmt.Errorf("adapter %q has no shutdown hook: %w", f.AdapterID, ErrInvalidAdapter)
	}
	return f.ShutdownFunc(ctx)
}

func (f *FuncAdapter) Operation(name string) (Operation, bool) {
	op, ok := f.Ops[name]
	return op, ok
}

func (f *FuncAdapter) Operations() []string {
	names := make([]string, 0, len(f.Ops))
	for name := range f.Ops {
		names = append(names, name)
	}
	return names
}

// Validate checks that the adapter exposes identity metadata and all three
// lifecycle hooks.
func (f *FuncAdapter) Validate() error {
	if f.AdapterID == "" {
		return errors.New("adapter id is required")
	}
	if f.AdapterName == "" {
		return errors.New("adapter name is required")
	}
	if f.AdapterVersion == "" {
		return errors.New("adapter version is required")
	}
	if f.InitializeFunc == nil {
		return fmt.Errorf("adapter %q is missing the initialize hook", f.AdapterID)
	}
	if f.HealthCheckFunc == nil {
		return fmt.Errorf("adapter %q is missing the health check hook", f.AdapterID)
	}
	if f.ShutdownFunc == nil {
		return fmt.Errorf("adapter %q is missing the shutdown hook", f.AdapterID)
	}
	return nil
}
