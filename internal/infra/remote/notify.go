package remote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker"

	"newsdeck/internal/observability/metrics"
)

// NotifyResult is the outcome of a best-effort side-channel notification.
// Failures never propagate as errors; callers inspect OK and Err.
type NotifyResult struct {
	Endpoint string
	OK       bool
	Err      error
}

// ShareRequest is the body of POST /articles/{id}/share.
type ShareRequest struct {
	Platform       string `json:"platform"`
	Message        string `json:"message"`
	IncludeSummary bool   `json:"include_summary"`
}

// Like sends POST /articles/{id}/like.
func (c *Client) Like(ctx context.Context, id string) NotifyResult {
	return c.notify(ctx, "like", http.MethodPost, id, "/like", nil)
}

// Unlike sends DELETE /articles/{id}/like.
func (c *Client) Unlike(ctx context.Context, id string) NotifyResult {
	return c.notify(ctx, "unlike", http.MethodDelete, id, "/like", nil)
}

// Bookmark sends POST /articles/{id}/bookmark.
func (c *Client) Bookmark(ctx context.Context, id string) NotifyResult {
	return c.notify(ctx, "bookmark", http.MethodPost, id, "/bookmark", nil)
}

// Unbookmark sends DELETE /articles/{id}/bookmark.
func (c *Client) Unbookmark(ctx context.Context, id string) NotifyResult {
	return c.notify(ctx, "unbookmark", http.MethodDelete, id, "/bookmark", nil)
}

// Share sends POST /articles/{id}/share. An empty platform becomes "general".
func (c *Client) Share(ctx context.Context, id string, share ShareRequest) NotifyResult {
	if share.Platform == "" {
		share.Platform = "general"
	}
	return c.notify(ctx, "share", http.MethodPost, id, "/share", share)
}

func (c *Client) notify(ctx context.Context, endpoint, method, id, suffix string, body interface{}) NotifyResult {
	result := NotifyResult{Endpoint: endpoint}

	path, err := articlePath(id, suffix)
	if err != nil {
		return c.notifyFailed(result, "invalid", id, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return c.notifyFailed(result, "rate_limited", id, err)
	}

	err = c.notifyBreaker.Do(func() error {
		return c.do(ctx, request{endpoint: endpoint, method: method, path: path, body: body}, nil)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return c.notifyFailed(result, "circuit_open", id, err)
	}
	if err != nil {
		return c.notifyFailed(result, "failure", id, err)
	}

	metrics.RecordNotification(endpoint, "success")
	result.OK = true
	return result
}

func (c *Client) notifyFailed(result NotifyResult, status, id string, err error) NotifyResult {
	metrics.RecordNotification(result.Endpoint, status)
	c.logger.Warn("notification failed",
		slog.String("endpoint", result.Endpoint),
		slog.String("article_id", id),
		slog.String("status", status),
		slog.Any("error", err))
	result.Err = err
	return result
}
