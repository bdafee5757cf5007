package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EngagementMetrics counts engagement interactions in a sync summary.
type EngagementMetrics struct {
	LikedArticles      int `json:"liked_articles"`
	SharedArticles     int `json:"shared_articles"`
	BookmarkedArticles int `json:"bookmarked_articles"`
	SkippedArticles    int `json:"skipped_articles"`
}

// InteractionSummary describes the session being synced.
type InteractionSummary struct {
	ArticlesProcessed  int               `json:"articles_processed"`
	SessionStart       time.Time         `json:"session_start"`
	SessionEnd         time.Time         `json:"session_end"`
	AvgReadTimeSeconds float64           `json:"avg_read_time_seconds"`
	EngagementMetrics  EngagementMetrics `json:"engagement_metrics"`
	CategoryExposure   map[string]int    `json:"category_exposure"`
	DeviceType         string            `json:"device_type"`
	AppVersion         string            `json:"app_version"`
}

// EmbeddingUpdate is the body of POST /users/embedding/update.
type EmbeddingUpdate struct {
	EmbeddingVector    []float64          `json:"embedding_vector"`
	InteractionSummary InteractionSummary `json:"interaction_summary"`
	SessionStart       time.Time          `json:"session_start"`
	SessionEnd         time.Time          `json:"session_end"`
	ArticlesProcessed  int                `json:"articles_processed"`
	DeviceType         string             `json:"device_type"`
	AppVersion         string             `json:"app_version"`
}

// UpdateEmbedding uploads a computed embedding. It is attempted once; the
// caller owns retry semantics. The acknowledgement is returned verbatim.
func (c *Client) UpdateEmbedding(ctx context.Context, update EmbeddingUpdate) (json.RawMessage, error) {
	var ack json.RawMessage
	err := c.send(ctx, request{
		endpoint: "embedding_update",
		method:   http.MethodPost,
		path:     "/users/embedding/update",
		body:     update,
	}, &ack)
	if err != nil {
		return nil, fmt.Errorf("UpdateEmbedding: %w", err)
	}
	return ack, nil
}

// EmbeddingStatus returns the server-side sync status verbatim.
func (c *Client) EmbeddingStatus(ctx context.Context) (json.RawMessage, error) {
	var status json.RawMessage
	if err := c.get(ctx, request{endpoint: "embedding_status", path: "/users/embedding/status"}, &status); err != nil {
		return nil, fmt.Errorf("EmbeddingStatus: %w", err)
	}
	return status, nil
}
