// Package httpcall provides a minimal outbound-HTTP adapter. It exists to
// exercise the capability contract end to end (endpoint map and timeout
// from AdapterConfig, JSON request/response plumbing) and to give the
// adapterd daemon something real to bind; production provider adapters are
// supplied externally.
package httpcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/meshworks/adapterkit/core"
)

const defaultTimeout = 10 * time.Second

// New builds the adapter. The returned adapter advertises the "http"
// capability and exposes "get" and "post" operations taking:
//
//	endpoint  logical endpoint name resolved via AdapterConfig.Endpoints
//	path      optional path appended to the endpoint URL
//	body      optional JSON body (post only)
//
// Responses are decoded as JSON when possible, otherwise returned as a
// string under "body".
func New(id string) core.Adapter {
	a := &adapter{id: id}

	return &core.FuncAdapter{
		AdapterID:       id,
		AdapterName:     "HTTP Call",
		AdapterVersion:  "1.0.0",
		Tags:            []string{"http"},
		InitializeFunc:  a.initialize,
		HealthCheckFunc: a.healthCheck,
		ShutdownFunc:    a.shutdown,
		Ops: map[string]core.Operation{
			"get":  a.get,
			"post": a.post,
		},
	}
}

type adapter struct {
	id        string
	client    *http.Client
	endpoints map[string]string
}

func (a *adapter) initialize(ctx context.Context, cfg *core.AdapterConfig) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	a.client = &http.Client{Timeout: timeout}
	a.endpoints = cfg.Endpoints
	if a.endpoints == nil {
		a.endpoints = map[string]string{}
	}

	for name, raw := range a.endpoints {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("endpoint %q has invalid URL %q: %w", name, raw, core.ErrInvalidConfiguration)
		}
	}
	return nil
}

func (a *adapter) healthCheck(ctx context.Context) (*core.HealthReport, error) {
	report := core.Healthy()

	// When a health endpoint is configured, probe it; otherwise liveness
	// of the adapter itself is all there is to report.
	target, ok := a.endpoints["health"]
	if !ok {
		return report, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		report.Status = core.HealthUnhealthy
		report.Checks["endpoint"] = core.CheckResult{
			Passed:    false,
			Message:   err.Error(),
			Timestamp: now,
		}
		return report, nil
	}
	defer func() { _ = resp.Body.Close() }()

	passed := resp.StatusCode < http.StatusInternalServerError
	if !passed {
		report.Status = core.HealthDegraded
	}
	report.Checks["endpoint"] = core.CheckResult{
		Passed:    passed,
		Message:   resp.Status,
		Timestamp: now,
	}
	return report, nil
}

func (a *adapter) shutdown(ctx context.Context) error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *adapter) get(ctx context.Context, params map[string]any) (any, error) {
	return a.do(ctx, http.MethodGet, params)
}

func (a *adapter) post(ctx context.Context, params map[string]any) (any, error) {
	return a.do(ctx, http.MethodPost, params)
}

func (a *adapter) do(ctx context.Context, method string, params map[string]any) (any, error) {
	target, err := a.resolveURL(params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if raw, ok := params["body"]; ok && method == http.MethodPost {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrConnectionFailed)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("upstream returned %s: %w", resp.Status, core.ErrRequestFailed)
	}

	result := map[string]any{
		"status": resp.StatusCode,
	}

	var decoded any
	if len(data) > 0 && json.Unmarshal(data, &decoded) == nil {
		result["body"] = decoded
	} else {
		result["body"] = string(data)
	}
	return result, nil
}

func (a *adapter) resolveURL(params map[string]any) (string, error) {
	name, _ := params["endpoint"].(string)
	if name == "" {
		name = "default"
	}

	base, ok := a.endpoints[name]
	if !ok {
		return "", fmt.Errorf("endpoint %q is not configured: %w", name, core.ErrInvalidConfiguration)
	}

	if path, ok := params["path"].(string); ok && path != "" {
		joined, err := url.JoinPath(base, path)
		if err != nil {
			return "", fmt.Errorf("joining path %q: %w", path, err)
		}
		return joined, nil
	}
	return base, nil
}
