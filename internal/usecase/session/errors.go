// Package session runs the personalization session: it records tracked
// interactions into the ledger, counts them, and uploads a recomputed
// embedding once enough interactions have accumulated.
package session

import "errors"

// Sentinel errors for session use case operations.
var (
	// ErrSyncFailed indicates that the embedding upload failed. The pending
	// interaction count is kept so the next qualifying interaction retries.
	ErrSyncFailed = errors.New("embedding sync failed")

	// ErrSessionNotActive is returned by EndSession when no session is running.
	ErrSessionNotActive = errors.New("no active session")
)
