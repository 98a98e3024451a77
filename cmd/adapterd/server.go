package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/meshworks/adapterkit/binding"
	"github.com/meshworks/adapterkit/core"
	"github.com/meshworks/adapterkit/health"
	"github.com/meshworks/adapterkit/registry"
	"github.com/meshworks/adapterkit/resilience"
	"github.com/meshworks/adapterkit/transform"
)

// invokeRequest is the wire form of an invocation through the ops API.
type invokeRequest struct {
	Params    map[string]any          `json:"params"`
	TimeoutMS int64                   `json:"timeout_ms,omitempty"`
	Transform *transform.Config       `json:"transform,omitempty"`
	Fallback  *binding.FallbackConfig `json:"fallback,omitempty"`
	Retry     *retryRequest           `json:"retry,omitempty"`
}

type retryRequest struct {
	MaxAttempts    int   `json:"max_attempts"`
	InitialDelayMS int64 `json:"initial_delay_ms,omitempty"`
	MaxDelayMS     int64 `json:"max_delay_ms,omitempty"`
}

type adapterSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Operations   []string `json:"operations"`
}

type server struct {
	registry *registry.Registry
	monitor  *health.Monitor
	breakers *resilience.Service
	manager  *binding.Manager
	logger   core.Logger
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/adapters", s.handleAdapters)
	r.Get("/health", s.handleHealth)
	r.Get("/health/{id}", s.handleHealthByID)
	r.Get("/breakers", s.handleBreakers)
	r.Post("/invoke/{adapter}/{method}", s.handleInvoke)

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"adapters": s.registry.Len(),
	})
}

func (s *server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	adapters := s.registry.All()
	out := make([]adapterSummary, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, adapterSummary{
			ID:           a.ID(),
			Name:         a.Name(),
			Version:      a.Version(),
			Capabilities: a.Capabilities(),
			Operations:   a.Operations(),
		})
	}

	if tag := r.URL.Query().Get("capability"); tag != "" {
		matched := s.registry.ByCapability(tag)
		out = out[:0]
		for _, a := range matched {
			out = append(out, adapterSummary{
				ID:           a.ID(),
				Name:         a.Name(),
				Version:      a.Version(),
				Capabilities: a.Capabilities(),
				Operations:   a.Operations(),
			})
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *server) handleHealthByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, ok := s.monitor.Health(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no health recorded for adapter "+id)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.breakers.Metrics())
}

func (s *server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	adapterID := chi.URLParam(r, "adapter")
	method := chi.URLParam(r, "method")

	var req invokeRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	opts := &binding.InvocationOptions{
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
		Transform: req.Transform,
		Fallback:  req.Fallback,
	}
	if req.Retry != nil {
		retry := resilience.DefaultRetryConfig()
		if req.Retry.MaxAttempts > 0 {
			retry.MaxAttempts = req.Retry.MaxAttempts
		}
		if req.Retry.InitialDelayMS > 0 {
			retry.InitialDelay = time.Duration(req.Retry.InitialDelayMS) * time.Millisecond
		}
		if req.Retry.MaxDelayMS > 0 {
			retry.MaxDelay = time.Duration(req.Retry.MaxDelayMS) * time.Millisecond
		}
		opts.Retry = retry
	}

	result, err := s.manager.Invoke(r.Context(), adapterID, method, req.Params, opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, core.ErrCircuitBreakerOpen):
		return http.StatusServiceUnavailable
	case core.IsCallerError(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
