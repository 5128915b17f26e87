package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"healthbench/internal/config"
	"healthbench/internal/workload"
)

// maxResponseSize limits how much of a gateway response is read.
const maxResponseSize = 1 << 20

// Gateway paths for write and read requests.
const (
	InvokePath = "/invoke"
	QueryPath  = "/query"
	HealthPath = "/health"
)

// Gateway posts requests to an HTTP relay in front of the ledger. Writes go to
// InvokePath and reads to QueryPath.
type Gateway struct {
	baseURL    string
	healthPath string
	headers map[string]string
	client  *http.Client
	debug   *DebugLogger
}

// NewGateway creates a gateway submitter. debug may be nil.
func NewGateway(cfg config.GatewayConfig, client *http.Client, debug *DebugLogger) (*Gateway, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url %q: scheme must be http or https", cfg.URL)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		healthPath: HealthPath,
		headers: cfg.Headers,
		client:  client,
		debug:   debug,
	}, nil
}

// Submit sends req once. A transport failure is returned wrapped; a refusal
// by the gateway is a *RejectedError.
func (g *Gateway) Submit(ctx context.Context, req workload.Request) error {
	start := time.Now()
	env := NewEnvelope(req)

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", req.Verb, err)
	}

	path := InvokePath
	if req.ReadOnly() {
		path = QueryPath
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		g.debug.LogError(req.Verb, err, time.Since(start))
		return fmt.Errorf("building %s request: %w", req.Verb, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", env.ID)
	for k, v := range g.headers {
		httpReq.Header.Set(k, v)
	}

	g.debug.LogRequest(req.Verb, httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.debug.LogError(req.Verb, err, time.Since(start))
		return fmt.Errorf("sending %s request: %w", req.Verb, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_, _ = io.Copy(io.Discard, resp.Body) // drain errors are ignorable
	g.debug.LogResponse(req.Verb, resp, body, time.Since(start))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", req.Verb, err)
	}

	return checkResponse(req.Verb, resp.StatusCode, body)
}

// checkResponse turns a gateway reply into an error. A non-2xx status or an
// "error" field holding a reason means the request was rejected.
func checkResponse(verb string, status int, body []byte) error {
	reason := ""
	if gjson.ValidBytes(body) {
		reason = errorReason(gjson.GetBytes(body, "error"))
	}

	if status < 200 || status > 299 {
		if reason == "" {
			reason = http.StatusText(status)
		}
		return &RejectedError{Verb: verb, Status: status, Reason: reason}
	}
	if reason != "" {
		return &RejectedError{Verb: verb, Status: status, Reason: reason}
	}
	return nil
}

// errorReason returns the rejection reason carried by an "error" field, or ""
// when the field is absent or reports no error (null, false, 0, "", {} or []).
func errorReason(field gjson.Result) string {
	switch field.Type {
	case gjson.String:
		return field.String()
	case gjson.True:
		return "error"
	case gjson.Number:
		if field.Float() != 0 {
			return field.Raw
		}
	case gjson.JSON:
		if field.IsObject() && len(field.Map()) > 0 {
			return field.Raw
		}
		if field.IsArray() && len(field.Array()) > 0 {
			return field.Raw
		}
	}
	return ""
}

// CheckHealth sends a GET to the gateway's health path and expects a 2xx.
func (g *Gateway) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+g.healthPath, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (g *Gateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
