package core

import (
	"context"
)

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// ComponentAwareLogger is implemented by loggers that can attribute log
// records to a subsystem component (e.g. "adapterkit/resilience").
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// ConfigSource supplies per-adapter configuration at registration time.
// How the configuration is loaded (environment, secrets store, config
// service) is the implementation's concern, not the registry's.
type ConfigSource interface {
	AdapterConfig(ctx context.Context, adapterID string) (*AdapterConfig, error)
}

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// createComponentLogger returns a child logger attributed to component when
// the base logger supports it, otherwise the base logger unchanged.
func createComponentLogger(base Logger, component string) Logger {
	if cal, ok := base.(ComponentAwareLogger); ok {
		return cal.WithComponent(component)
	}
	return base
}

// ComponentLogger is the exported form of createComponentLogger for use by
// the other packages in this module.
func ComponentLogger(base Logger, component string) Logger {
	if base == nil {
		return &NoOpLogger{}
	}
	return createComponentLogger(base, component)
}
