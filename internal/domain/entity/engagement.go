package entity

import "time"

// EngagementTTL is how long a persisted engagement state stays authoritative.
const EngagementTTL = 30 * 24 * time.Hour

// EngagementState holds the per-article like/bookmark/share flags.
type EngagementState struct {
	Liked      bool      `json:"liked" cbor:"liked"`
	Bookmarked bool      `json:"bookmarked" cbor:"bookmarked"`
	Shared     bool      `json:"shared" cbor:"shared"`
	Timestamp  time.Time `json:"timestamp" cbor:"timestamp"`
}

// Expired reports whether the state is older than EngagementTTL at now.
func (s *EngagementState) Expired(now time.Time) bool {
	return now.Sub(s.Timestamp) > EngagementTTL
}

// Apply returns a copy of s with the non-nil patch fields applied.
func (s EngagementState) Apply(p EngagementPatch) EngagementState {
	if p.Liked != nil {
		s.Liked = *p.Liked
	}
	if p.Bookmarked != nil {
		s.Bookmarked = *p.Bookmarked
	}
	if p.Shared != nil {
		s.Shared = *p.Shared
	}
	return s
}

// EngagementPatch is a partial engagement update; nil fields are left unchanged.
type EngagementPatch struct {
	Liked      *bool `json:"liked,omitempty"`
	Bookmarked *bool `json:"bookmarked,omitempty"`
	Shared     *bool `json:"shared,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p EngagementPatch) IsEmpty() bool {
	return p.Liked == nil && p.Bookmarked == nil && p.Shared == nil
}

// Bool returns a pointer to b, for building patches inline.
func Bool(b bool) *bool {
	return &b
}
