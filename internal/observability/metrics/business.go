package metrics

import (
	"strconv"
	"time"
)

// RecordInteraction records an appended interaction and the resulting ledger size.
func RecordInteraction(interactionType string, ledgerSize int) {
	InteractionsRecordedTotal.WithLabelValues(interactionType).Inc()
	LedgerSize.Set(float64(ledgerSize))
}

// RecordLedgerEviction records events dropped from the ledger.
// Reason should be "capacity" or "retention".
func RecordLedgerEviction(reason string, count int) {
	if count <= 0 {
		return
	}
	LedgerEvictionsTotal.WithLabelValues(reason).Add(float64(count))
}

// UpdateLedgerSize sets the ledger size gauge.
func UpdateLedgerSize(size int) {
	LedgerSize.Set(float64(size))
}

// RecordSync records the outcome of an embedding sync.
// Status should be "success", "failure" or "skipped".
func RecordSync(status string, duration time.Duration) {
	SyncAttemptsTotal.WithLabelValues(status).Inc()
	if status != "skipped" {
		SyncDuration.Observe(duration.Seconds())
	}
}

// UpdatePendingInteractions sets the number of interactions awaiting sync.
func UpdatePendingInteractions(n int) {
	PendingInteractions.Set(float64(n))
}

// RecordCacheLookup records a feed cache lookup.
// Result should be "hit", "miss", "expired" or "stale".
func RecordCacheLookup(category, result string) {
	CacheLookupsTotal.WithLabelValues(category, result).Inc()
}

// RecordCacheInvalidation records entries removed under prefix.
func RecordCacheInvalidation(prefix string, removed int) {
	CacheInvalidationsTotal.WithLabelValues(prefix).Add(float64(removed))
}

// RecordRemoteRequest records a Remote API call.
// A zero status code means the request never produced a response.
func RecordRemoteRequest(endpoint string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	RemoteRequestsTotal.WithLabelValues(endpoint, status).Inc()
	RemoteRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordNotification records a side-channel notification outcome.
func RecordNotification(endpoint, status string) {
	NotificationsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordStorageError records a local storage failure that was logged and swallowed.
func RecordStorageError(operation string) {
	StorageErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordStorageOperation records the duration of a BlobStore operation.
func RecordStorageOperation(operation string, duration time.Duration) {
	StorageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
