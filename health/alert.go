// Package health polls registered adapters on an interval, records their
// reported status, and raises alerts when an adapter transitions into
// unhealthy. Health checking is advisory: a degraded or unhealthy status
// never blocks invocations; only the circuit breaker, driven by actual call
// failures, enforces short-circuiting.
package health

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meshworks/adapterkit/core"
)

// AlertEvent is emitted when an adapter transitions into unhealthy.
type AlertEvent struct {
	ID        string           `json:"id"`
	AdapterID string           `json:"adapter_id"`
	Status    core.HealthState `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewAlertEvent builds an event with a fresh id.
func NewAlertEvent(adapterID string, status core.HealthState) AlertEvent {
	return AlertEvent{
		ID:        uuid.New().String(),
		AdapterID: adapterID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// AlertSink receives unhealthy-transition events. Delivery (pub/sub,
// webhook, log aggregation) is the sink's concern.
type AlertSink interface {
	Alert(ctx context.Context, event AlertEvent) error
}

// LogAlertSink writes alert events to the logger. The default sink.
type LogAlertSink struct {
	logger core.Logger
}

// NewLogAlertSink creates a sink over the given logger.
func NewLogAlertSink(logger core.Logger) *LogAlertSink {
	return &LogAlertSink{logger: core.ComponentLogger(logger, "adapterkit/health")}
}

// Alert implements AlertSink.
func (s *LogAlertSink) Alert(ctx context.Context, event AlertEvent) error {
	s.logger.Error("Adapter became unhealthy", map[string]interface{}{
		"operation":  "health_alert",
		"alert_id":   event.ID,
		"adapter_id": event.AdapterID,
		"status":     string(event.Status),
		"timestamp":  event.Timestamp.Format(time.RFC3339),
	})
	return nil
}
