// Package feed serves personalized, trending, search and bookmark feeds and
// article detail on top of the offline cache, pages through cursor feeds
// without duplicating articles, and applies engagement toggles optimistically
// with rollback on failure.
package feed

import "errors"

// Sentinel errors for feed use case operations.
var (
	// ErrNoCachedFallback indicates that a live fetch failed and the call site
	// allows a stale fallback, but nothing was cached under its key.
	ErrNoCachedFallback = errors.New("fetch failed and no cached copy is available")

	// ErrNotifyFailed indicates that the server rejected or never received an
	// engagement change. The local state has been rolled back.
	ErrNotifyFailed = errors.New("engagement change was not acknowledged")
)
