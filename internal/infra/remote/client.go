// Package remote is the HTTP client for the Remote API consumed by the engine:
// embedding sync, feed and article reads, and best-effort engagement notifications.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/observability/metrics"
	"newsdeck/internal/observability/tracing"
	"newsdeck/internal/resilience/circuitbreaker"
	"newsdeck/internal/resilience/retry"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// maxErrorMessage caps the response excerpt kept in an HTTPError.
const maxErrorMessage = 512

// TokenSource returns the current bearer token. An empty token sends no
// Authorization header. The engine never stores tokens itself.
type TokenSource func(ctx context.Context) (string, error)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// NotifyRPS and NotifyBurst pace side-channel notifications.
	NotifyRPS   float64
	NotifyBurst int

	// Retry applies to idempotent GETs. Zero value uses retry.RemoteAPIConfig.
	Retry retry.Config

	// Transport is the base RoundTripper wrapped by the tracing transport.
	// Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the Remote API.
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	tokens        TokenSource
	retryCfg      retry.Config
	breaker       *circuitbreaker.CircuitBreaker
	notifyBreaker *circuitbreaker.CircuitBreaker
	limiter       *RateLimiter
	logger        *slog.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, tokens TokenSource, logger *slog.Logger) (*Client, error) {
	if err := entity.ValidateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("new remote client: %w", err)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("new remote client: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.RemoteAPIConfig()
	}
	if cfg.NotifyBurst == 0 {
		cfg.NotifyBurst = 3
	}
	if tokens == nil {
		tokens = func(context.Context) (string, error) { return "", nil }
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiBreaker := circuitbreaker.RemoteAPIConfig()
	apiBreaker.IsSuccessful = countsAsAvailable
	notifyBreaker := circuitbreaker.NotifyConfig()
	notifyBreaker.IsSuccessful = countsAsAvailable

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: tracing.NewTransport(cfg.Transport),
		},
		tokens:        tokens,
		retryCfg:      cfg.Retry,
		breaker:       circuitbreaker.New(apiBreaker),
		notifyBreaker: circuitbreaker.New(notifyBreaker),
		limiter:       NewRateLimiter(cfg.NotifyRPS, cfg.NotifyBurst),
		logger:        logger,
	}, nil
}

// countsAsAvailable keeps client errors from tripping a breaker: a 404 or 409
// means the server is up and answering.
func countsAsAvailable(err error) bool {
	if err == nil {
		return true
	}
	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) {
		return !httpErr.Temporary()
	}
	return errors.Is(err, context.Canceled)
}

// request describes one Remote API call.
type request struct {
	endpoint string // metrics label, never contains ids
	method   string
	path     string
	query    url.Values
	body     interface{}
}

// do performs a single HTTP round trip and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, r request, out interface{}) (err error) {
	ctx, span := tracing.StartSpan(ctx, "remote."+r.endpoint,
		attribute.String("remote.endpoint", r.endpoint),
		attribute.String("http.method", r.method))
	defer func() { tracing.EndSpan(span, err) }()

	start := time.Now()
	statusCode := 0
	defer func() { metrics.RecordRemoteRequest(r.endpoint, statusCode, time.Since(start)) }()

	target := *c.baseURL
	target.Path = c.baseURL.Path + r.path
	if len(r.query) > 0 {
		target.RawQuery = r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", r.endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", r.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens(ctx)
	if err != nil {
		return fmt.Errorf("token source: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s request: %w", r.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	statusCode = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", r.endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorMessage {
			msg = msg[:maxErrorMessage]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.endpoint, err)
	}
	return nil
}

// get performs an idempotent read with retry and the API circuit breaker.
func (c *Client) get(ctx context.Context, r request, out interface{}) error {
	r.method = http.MethodGet
	return retry.WithBackoff(ctx, c.retryCfg, func() error {
		return c.breaker.Do(func() error {
			return c.do(ctx, r, out)
		})
	})
}

// send performs a non-idempotent call through the API circuit breaker, once.
func (c *Client) send(ctx context.Context, r request, out interface{}) error {
	return c.breaker.Do(func() error {
		return c.do(ctx, r, out)
	})
}

// BreakerOpen reports whether the API circuit breaker is currently open.
func (c *Client) BreakerOpen() bool {
	return c.breaker.IsOpen()
}

func articlePath(id string, suffix string) (string, error) {
	if err := entity.ValidateArticleID(id); err != nil {
		return "", err
	}
	return "/articles/" + url.PathEscape(id) + suffix, nil
}
