// Package engagement reconciles per-article like/bookmark/share flags across the
// caller's in-memory state, the locally persisted state and the server payload,
// and persists the reconciled state keyed by article.
package engagement

import "newsdeck/internal/domain/entity"

// Flags is a fully resolved engagement state.
type Flags struct {
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
	Shared     bool `json:"shared"`
}

// Resolve merges three optional sources. For each flag the first defined value
// wins, in order caller, persisted, server; an undefined flag is false.
func Resolve(caller, persisted, server entity.EngagementPatch) Flags {
	return Flags{
		Liked:      first(caller.Liked, persisted.Liked, server.Liked),
		Bookmarked: first(caller.Bookmarked, persisted.Bookmarked, server.Bookmarked),
		Shared:     first(caller.Shared, persisted.Shared, server.Shared),
	}
}

func first(sources ...*bool) bool {
	for _, s := range sources {
		if s != nil {
			return *s
		}
	}
	return false
}

// FromState turns a persisted state into a source where every flag is defined.
// A nil state defines nothing.
func FromState(s *entity.EngagementState) entity.EngagementPatch {
	if s == nil {
		return entity.EngagementPatch{}
	}
	return entity.EngagementPatch{
		Liked:      entity.Bool(s.Liked),
		Bookmarked: entity.Bool(s.Bookmarked),
		Shared:     entity.Bool(s.Shared),
	}
}

// FromServer turns the user_* flags of an article payload into a source.
// A payload without an engagement block defines nothing.
func FromServer(e *entity.ArticleEngagement) entity.EngagementPatch {
	if e == nil {
		return entity.EngagementPatch{}
	}
	return entity.EngagementPatch{
		Liked:      entity.Bool(e.UserLiked),
		Bookmarked: entity.Bool(e.UserBookmarked),
		Shared:     entity.Bool(e.UserShared),
	}
}
