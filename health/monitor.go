package health

import (
	"context"
	"sync"
	"time"

	"github.com/meshworks/adapterkit/core"
	"github.com/meshworks/adapterkit/registry"
)

// Monitor polls every registered adapter at a fixed interval and records
// the returned report per adapter id. Each tick snapshots the registry, so
// adapters registered after Start are picked up on the next tick and
// unregistered ones stop being polled. Polls run concurrently and
// independently of invocations.
type Monitor struct {
	registry *registry.Registry
	sink     AlertSink
	logger   core.Logger

	interval     time.Duration
	checkTimeout time.Duration

	mu       sync.RWMutex
	statuses map[string]*core.HealthReport

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// MonitorOption customizes a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the poll interval (default 60s).
func WithInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithCheckTimeout bounds each individual health probe (default 10s).
func WithCheckTimeout(timeout time.Duration) MonitorOption {
	return func(m *Monitor) {
		if timeout > 0 {
			m.checkTimeout = timeout
		}
	}
}

// WithAlertSink sets where unhealthy-transition events go.
func WithAlertSink(sink AlertSink) MonitorOption {
	return func(m *Monitor) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// NewMonitor creates a monitor over the given registry. Alerts default to
// the log sink.
func NewMonitor(reg *registry.Registry, logger core.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		registry:     reg,
		logger:       core.ComponentLogger(logger, "adapterkit/health"),
		interval:     60 * time.Second,
		checkTimeout: 10 * time.Second,
		statuses:     make(map[string]*core.HealthReport),
	}
	m.sink = NewLogAlertSink(logger)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins periodic health checks. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.logger.Info("Health monitor started", map[string]interface{}{
		"operation":        "health_monitor_start",
		"interval":         m.interval.String(),
		"check_timeout":    m.checkTimeout.String(),
		"adapters_tracked": m.registry.Len(),
	})

	go m.run(runCtx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// First poll immediately rather than waiting a full interval.
	m.pollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollAll(ctx)
		}
	}
}

// Stop cancels all scheduled polls and waits for in-flight ones to finish.
// Safe to call multiple times.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel == nil {
		return
	}

	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil

	m.logger.Info("Health monitor stopped", map[string]interface{}{
		"operation": "health_monitor_stop",
	})
}

// pollAll probes every adapter currently in the registry concurrently.
func (m *Monitor) pollAll(ctx context.Context) {
	adapters := m.registry.All()

	var wg sync.WaitGroup
	for _, adapter := range adapters {
		wg.Add(1)
		go func(a core.Adapter) {
			defer wg.Done()
			m.poll(ctx, a)
		}(adapter)
	}
	wg.Wait()
}

func (m *Monitor) poll(ctx context.Context, adapter core.Adapter) {
	checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	report, err := adapter.HealthCheck(checkCtx)
	if err != nil || report == nil {
		// A failed probe is itself a health signal: synthesize unhealthy
		// with an empty checks map. Probe errors never propagate further.
		report = core.Unhealthy()
		if err != nil {
			m.logger.Warn("Health check failed", map[string]interface{}{
				"operation":  "health_check",
				"adapter_id": adapter.ID(),
				"error":      err.Error(),
			})
		}
	}
	report.LastCheck = time.Now()

	id := adapter.ID()

	m.mu.Lock()
	previous := m.statuses[id]
	m.statuses[id] = report
	m.mu.Unlock()

	m.registry.SetHealth(id, report.Status)

	m.logger.Debug("Health check completed", map[string]interface{}{
		"operation":  "health_check",
		"adapter_id": id,
		"status":     string(report.Status),
		"checks":     len(report.Checks),
	})

	// Alert only on the transition into unhealthy, not on every unhealthy
	// poll.
	wasUnhealthy := previous != nil && previous.Status == core.HealthUnhealthy
	if report.Status == core.HealthUnhealthy && !wasUnhealthy {
		event := NewAlertEvent(id, report.Status)
		if err := m.sink.Alert(ctx, event); err != nil {
			m.logger.Error("Failed to deliver health alert", map[string]interface{}{
				"operation":  "health_alert",
				"alert_id":   event.ID,
				"adapter_id": id,
				"error":      err.Error(),
			})
		}
	}
}

// Health returns the latest report for an adapter id.
func (m *Monitor) Health(id string) (*core.HealthReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report, ok := m.statuses[id]
	if !ok {
		return nil, false
	}
	return report.Clone(), true
}

// Snapshot returns a deep copy of all recorded health reports, never the
// live map, so callers cannot observe torn reads.
func (m *Monitor) Snapshot() map[string]*core.HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*core.HealthReport, len(m.statuses))
	for id, report := range m.statuses {
		out[id] = report.Clone()
	}
	return out
}
