package resilience

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/meshworks/adapterkit/resilience"

// OTelMetricsCollector implements MetricsCollector using OpenTelemetry.
// Instruments come from the globally configured meter provider; with no
// provider configured they are no-ops, so the collector is always safe to
// install.
type OTelMetricsCollector struct {
	calls        metric.Int64Counter
	failures     metric.Int64Counter
	stateChanges metric.Int64Counter
	rejected     metric.Int64Counter
	state        metric.Float64Gauge
}

// NewOTelMetricsCollector creates a new OpenTelemetry metrics collector
func NewOTelMetricsCollector() (*OTelMetricsCollector, error) {
	meter := otel.Meter(instrumentationName)

	calls, err := meter.Int64Counter("circuit_breaker.calls",
		metric.WithDescription("Total circuit breaker calls"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("circuit_breaker.failures",
		metric.WithDescription("Circuit breaker failures by error type"))
	if err != nil {
		return nil, err
	}
	stateChanges, err := meter.Int64Counter("circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state transitions"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("circuit_breaker.rejected",
		metric.WithDescription("Requests rejected by open circuit"))
	if err != nil {
		return nil, err
	}
	state, err := meter.Float64Gauge("circuit_breaker.current_state",
		metric.WithDescription("Current circuit breaker state (0=closed, 0.5=half-open, 1=open)"))
	if err != nil {
		return nil, err
	}

	return &OTelMetricsCollector{
		calls:        calls,
		failures:     failures,
		stateChanges: stateChanges,
		rejected:     rejected,
		state:        state,
	}, nil
}

// RecordSuccess records a successful circuit breaker execution
func (o *OTelMetricsCollector) RecordSuccess(name string) {
	o.calls.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("circuit_breaker", name),
			attribute.String("result", "success"),
		))
}

// RecordFailure records a failed circuit breaker execution
func (o *OTelMetricsCollector) RecordFailure(name string, errorType string) {
	o.calls.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("circuit_breaker", name),
			attribute.String("result", "failure"),
		))
	o.failures.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("circuit_breaker", name),
			attribute.String("error_type", errorType),
		))
}

// RecordStateChange records a circuit breaker state transition
func (o *OTelMetricsCollector) RecordStateChange(name string, from, to string) {
	o.stateChanges.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("circuit_breaker", name),
			attribute.String("from_state", from),
			attribute.String("to_state", to),
		))

	stateValue := 0.0
	switch to {
	case "half-open":
		stateValue = 0.5
	case "open":
		stateValue = 1.0
	}
	o.state.Record(context.Background(), stateValue,
		metric.WithAttributes(attribute.String("circuit_breaker", name)))
}

// RecordRejection records a request rejected by an open circuit
func (o *OTelMetricsCollector) RecordRejection(name string) {
	o.rejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("circuit_breaker", name)))
}
