package resilience

import (
	"sync"
	"time"

	"github.com/meshworks/adapterkit/core"
)

// Service owns one circuit breaker per adapter id. Breakers are created
// lazily on first reference and live for the process lifetime; each has its
// own lock, so contention on one adapter's breaker never blocks calls to a
// different adapter. The service lock only guards the map itself.
type Service struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	threshold    int
	resetTimeout time.Duration
	classifier   ErrorClassifier
	logger       core.Logger
	metrics      MetricsCollector
}

// ServiceOption customizes a breaker service.
type ServiceOption func(*Service)

// WithLogger sets the logger injected into every breaker.
func WithLogger(logger core.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = core.ComponentLogger(logger, "adapterkit/resilience")
	}
}

// WithMetrics sets the metrics collector injected into every breaker.
func WithMetrics(metrics MetricsCollector) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithErrorClassifier overrides the failure classification for every breaker.
func WithErrorClassifier(classifier ErrorClassifier) ServiceOption {
	return func(s *Service) {
		s.classifier = classifier
	}
}

// NewService creates a breaker service. Every breaker it creates uses cfg's
// threshold and reset timeout.
func NewService(cfg core.CircuitBreakerConfig, opts ...ServiceOption) *Service {
	s := &Service{
		breakers:     make(map[string]*CircuitBreaker),
		threshold:    cfg.Threshold,
		resetTimeout: cfg.ResetTimeout,
		classifier:   DefaultErrorClassifier,
		logger:       &core.NoOpLogger{},
		metrics:      &noopMetrics{},
	}
	if s.threshold < 1 {
		s.threshold = 5
	}
	if s.resetTimeout <= 0 {
		s.resetTimeout = 30 * time.Second
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Breaker returns the circuit breaker for adapterID, creating it on first
// reference.
func (s *Service) Breaker(adapterID string) *CircuitBreaker {
	s.mu.RLock()
	cb, ok := s.breakers[adapterID]
	s.mu.RUnlock()
	if ok {
		return cb
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have created it between the locks.
	if cb, ok := s.breakers[adapterID]; ok {
		return cb
	}

	name := adapterID
	if name == "" {
		name = "default"
	}

	// Threshold and reset timeout were sanitized at construction, so this
	// cannot fail.
	cb, _ = NewCircuitBreaker(&BreakerConfig{
		Name:             name,
		FailureThreshold: s.threshold,
		ResetTimeout:     s.resetTimeout,
		ErrorClassifier:  s.classifier,
		Logger:           s.logger,
		Metrics:          s.metrics,
	})

	s.breakers[adapterID] = cb
	return cb
}

// Metrics returns a snapshot of every breaker's metrics keyed by adapter id.
func (s *Service) Metrics() map[string]map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]interface{}, len(s.breakers))
	for id, cb := range s.breakers {
		out[id] = cb.GetMetrics()
	}
	return out
}

// Reset resets the breaker for adapterID if one exists.
func (s *Service) Reset(adapterID string) {
	s.mu.RLock()
	cb, ok := s.breakers[adapterID]
	s.mu.RUnlock()

	if ok {
		cb.Reset()
	}
}

// Remove drops the breaker for adapterID. Called when an adapter is
// unregistered so a re-registered adapter starts with a clean breaker.
func (s *Service) Remove(adapterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakers, adapterID)
}
