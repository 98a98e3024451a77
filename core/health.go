package core

import "time"

// HealthState for adapters
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthUnknown   HealthState = "unknown"
)

// CheckResult is the outcome of one named sub-check inside a health probe.
type CheckResult struct {
	Passed    bool      `json:"passed"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthReport is produced by Adapter.HealthCheck and stored per adapter id
// by the health monitor. Each poll overwrites the previous report; reports
// are never merged across polls.
type HealthReport struct {
	Status    HealthState            `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	LastCheck time.Time              `json:"last_check"`
}

// Clone returns a deep copy, so snapshot readers never observe a torn or
// later-mutated report.
func (h *HealthReport) Clone() *HealthReport {
	if h == nil {
		return nil
	}
	out := &HealthReport{
		Status:    h.Status,
		LastCheck: h.LastCheck,
	}
	if h.Checks != nil {
		out.Checks = make(map[string]CheckResult, len(h.Checks))
		for name, check := range h.Checks {
			out.Checks[name] = check
		}
	}
	return out
}

// Healthy is a convenience constructor for a passing report.
func Healthy() *HealthReport {
	return &HealthReport{
		Status:    HealthHealthy,
		Checks:    map[string]CheckResult{},
		LastCheck: time.Now(),
	}
}

// Unhealthy is a convenience constructor for a failing report with no
// sub-check detail, used when the probe itself errored.
func Unhealthy() *HealthReport {
	return &HealthReport{
		Status:    HealthUnhealthy,
		Checks:    map[string]CheckResult{},
		LastCheck: time.Now(),
	}
}
