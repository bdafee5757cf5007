package entity

import (
	"fmt"
	"time"
)

// InteractionType classifies a tracked user action.
type InteractionType string

// Interaction types recorded in the ledger.
const (
	InteractionView     InteractionType = "view"
	InteractionLike     InteractionType = "like"
	InteractionDislike  InteractionType = "dislike"
	InteractionBookmark InteractionType = "bookmark"
	InteractionShare    InteractionType = "share"
)

// IsValid reports whether t is one of the known interaction types.
func (t InteractionType) IsValid() bool {
	switch t {
	case InteractionView, InteractionLike, InteractionDislike, InteractionBookmark, InteractionShare:
		return true
	}
	return false
}

// InteractionEvent is one tracked user action. Events are immutable once
// appended to the ledger; corrections are modeled as new events.
type InteractionEvent struct {
	ID                  string          `json:"id" cbor:"id"`
	Type                InteractionType `json:"type" cbor:"type"`
	ArticleID           string          `json:"article_id" cbor:"article_id"`
	Category            string          `json:"category,omitempty" cbor:"category,omitempty"`
	Source              string          `json:"source,omitempty" cbor:"source,omitempty"`
	Platform            string          `json:"platform,omitempty" cbor:"platform,omitempty"`
	ViewDurationSeconds *float64        `json:"view_duration_seconds,omitempty" cbor:"view_duration_seconds,omitempty"`
	Timestamp           time.Time       `json:"timestamp" cbor:"timestamp"`
}

// Validate checks the fields a caller must provide before appending.
func (e *InteractionEvent) Validate() error {
	if !e.Type.IsValid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown interaction type %q", e.Type)}
	}
	if e.ArticleID == "" {
		return &ValidationError{Field: "article_id", Message: "article id is required"}
	}
	if e.ViewDurationSeconds != nil && *e.ViewDurationSeconds < 0 {
		return &ValidationError{Field: "view_duration_seconds", Message: "must not be negative"}
	}
	return nil
}

// InteractionStats aggregates the ledger for status screens and sync summaries.
type InteractionStats struct {
	Total          int                     `json:"total"`
	ByType         map[InteractionType]int `json:"by_type"`
	ByCategory     map[string]int          `json:"by_category"`
	BySource       map[string]int          `json:"by_source"`
	RecentActivity int                     `json:"recent_activity"`
}

// NewInteractionStats returns zeroed stats with non-nil maps.
func NewInteractionStats() InteractionStats {
	return InteractionStats{
		ByType:     map[InteractionType]int{},
		ByCategory: map[string]int{},
		BySource:   map[string]int{},
	}
}
