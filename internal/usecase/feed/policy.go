package feed

import (
	"time"

	"newsdeck/internal/usecase/feedcache"
)

// FetchPolicy decides how one call site combines the cache and the network.
type FetchPolicy struct {
	ReadThrough            bool          // Serve a live cache entry without fetching
	WriteThrough           bool          // Store successful fetches
	FallbackToStaleOnError bool          // Serve any cached copy, expired or not, when the fetch fails
	TTL                    time.Duration // Lifetime of stored entries
}

// Policies holds the policy of every call site.
type Policies struct {
	Personalized FetchPolicy
	Trending     FetchPolicy
	Article      FetchPolicy
	Bookmarks    FetchPolicy
	Search       FetchPolicy
}

// DefaultPolicies returns the default per-call-site policies. Trending and
// article detail always fetch but fall back to the cache; search never
// touches it.
func DefaultPolicies() Policies {
	return Policies{
		Personalized: FetchPolicy{ReadThrough: true, WriteThrough: true, FallbackToStaleOnError: true, TTL: feedcache.FeedTTL},
		Trending:     FetchPolicy{WriteThrough: true, FallbackToStaleOnError: true, TTL: feedcache.FeedTTL},
		Article:      FetchPolicy{WriteThrough: true, FallbackToStaleOnError: true, TTL: feedcache.ArticleTTL},
		Bookmarks:    FetchPolicy{ReadThrough: true, WriteThrough: true, FallbackToStaleOnError: true, TTL: feedcache.BookmarksTTL},
		Search:       FetchPolicy{},
	}
}

func (p FetchPolicy) usesCache() bool {
	return p.ReadThrough || p.WriteThrough || p.FallbackToStaleOnError
}
