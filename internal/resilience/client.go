package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/domain"
)

// internalTokenHeader is the shared-secret header injected on every call when
// the secret is configured. Dependencies in development mode accept its absence.
const internalTokenHeader = "X-INTERNAL-TOKEN"

// Policy holds the resilience knobs for one dependency.
type Policy struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxRetries is N in the 1 initial + N retries budget.
	MaxRetries int
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// RecoveryDelay is how long the circuit stays open before probing.
	RecoveryDelay time.Duration
}

// Response is the dependency's answer. 4xx responses come back through here
// unchanged; the caller decides whether a 4xx is an error.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Success reports whether the status is 2xx.
func (r *Response) Success() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// JSON unmarshals the body into v. An empty body is not an error.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("op=resilience.Response.JSON: %w", err)
	}
	return nil
}

// Client is the resilient HTTP facade for one downstream dependency. One
// instance per dependency, constructed at startup.
type Client struct {
	name          string
	baseURL       string
	internalToken string
	maxRetries    int
	retryWait     time.Duration
	httpClient    *http.Client
	breaker       *Breaker
}

// NewClient constructs the facade for one dependency. internalToken may be
// empty (development mode); the header is then omitted.
func NewClient(name, baseURL, internalToken string, p Policy) *Client {
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return &Client{
		name:          name,
		baseURL:       strings.TrimRight(baseURL, "/"),
		internalToken: internalToken,
		maxRetries:    p.MaxRetries,
		retryWait:     time.Second,
		httpClient: &http.Client{
			Timeout:   p.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: NewBreaker(name, p.FailureThreshold, p.RecoveryDelay),
	}
}

// Name returns the dependency name used for observability.
func (c *Client) Name() string { return c.name }

// Status returns the circuit snapshot for this dependency.
func (c *Client) Status() Status { return c.breaker.Status() }

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, headers)
}

// Post issues a POST request with a JSON payload.
func (c *Client) Post(ctx context.Context, path string, payload any, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, payload, headers)
}

// Put issues a PUT request with a JSON payload.
func (c *Client) Put(ctx context.Context, path string, payload any, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, payload, headers)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, headers)
}

// do runs one logical call: circuit check, up to 1+maxRetries attempts with
// 1s, 2s, 4s ... waits on transport failure or 5xx, and exactly one breaker
// record for the overall outcome. 4xx never retries.
func (c *Client) do(ctx context.Context, method, path string, payload any, headers map[string]string) (*Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("op=resilience.Client.do: %s: marshal: %w", c.name, err)
		}
	}

	probe, err := c.breaker.Allow()
	if err != nil {
		observability.RecordOutbound(c.name, "circuit_open")
		return nil, fmt.Errorf("op=resilience.Client.do: %s %s %s: %w", c.name, method, path, domain.ErrCircuitOpen)
	}

	attempts := 0
	var resp *Response
	op := func() error {
		attempts++
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.internalToken != "" {
			req.Header.Set(internalTokenHeader, c.internalToken)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("attempt %d: %w", attempts, err)
		}
		defer func() { _ = res.Body.Close() }()

		b, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("attempt %d: read body: %w", attempts, err)
		}
		if res.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("attempt %d: status %d", attempts, res.StatusCode)
		}
		resp = &Response{StatusCode: res.StatusCode, Body: b, Header: res.Header}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryWait
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	retries := uint64(c.maxRetries)
	if probe {
		// the half-open probe is a single attempt
		retries = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, retries), ctx)

	if err := backoff.Retry(op, bo); err != nil {
		c.breaker.RecordFailure()
		observability.RecordOutbound(c.name, "transport_error")
		slog.Warn("dependency call failed",
			slog.String("dependency", c.name),
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempts", attempts),
			slog.Any("error", err))
		return nil, fmt.Errorf("op=resilience.Client.do: %s %s %s: %w: %v", c.name, method, path, domain.ErrTransport, err)
	}

	c.breaker.RecordSuccess()
	if resp.Success() {
		observability.RecordOutbound(c.name, "success")
	} else {
		observability.RecordOutbound(c.name, "client_error")
	}
	return resp, nil
}
