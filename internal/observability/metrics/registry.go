// Package metrics provides centralized Prometheus metrics for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger metrics track the local interaction history
var (
	// LedgerSize tracks the number of events currently in the ledger
	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsdeck_ledger_size",
			Help: "Number of interaction events held in the local ledger",
		},
	)

	// InteractionsRecordedTotal counts appended interactions by type
	InteractionsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_interactions_recorded_total",
			Help: "Total number of interactions appended to the ledger",
		},
		[]string{"type"},
	)

	// LedgerEvictionsTotal counts events dropped by the capacity bound or retention pruning
	LedgerEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_ledger_evictions_total",
			Help: "Total number of ledger events evicted",
		},
		[]string{"reason"}, // reason: capacity, retention
	)
)

// Sync metrics track embedding uploads
var (
	// SyncAttemptsTotal counts embedding sync attempts by status
	SyncAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_sync_attempts_total",
			Help: "Total number of embedding sync attempts",
		},
		[]string{"status"}, // status: success, failure, skipped
	)

	// SyncDuration measures embedding upload duration in seconds
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsdeck_sync_duration_seconds",
			Help:    "Embedding sync duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// PendingInteractions tracks interactions processed since the last successful sync
	PendingInteractions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsdeck_pending_interactions",
			Help: "Interactions processed since the last successful sync",
		},
	)
)

// Cache metrics track the feed pagination cache
var (
	// CacheLookupsTotal counts cache lookups by category and result
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_cache_lookups_total",
			Help: "Total number of feed cache lookups",
		},
		[]string{"category", "result"}, // result: hit, miss, expired, stale
	)

	// CacheInvalidationsTotal counts entries removed by prefix invalidation
	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_cache_invalidations_total",
			Help: "Total number of cache entries removed by invalidation",
		},
		[]string{"prefix"},
	)
)

// Remote API metrics
var (
	// RemoteRequestsTotal counts Remote API calls by endpoint and status
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_remote_requests_total",
			Help: "Total number of Remote API requests",
		},
		[]string{"endpoint", "status"},
	)

	// RemoteRequestDuration measures Remote API call duration in seconds
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsdeck_remote_request_duration_seconds",
			Help:    "Remote API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// NotificationsTotal counts side-channel notifications by endpoint and outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_notifications_total",
			Help: "Total number of side-channel engagement notifications",
		},
		[]string{"endpoint", "status"}, // status: sent, failed, dropped
	)
)

// Storage metrics track local persistence
var (
	// StorageErrorsTotal counts swallowed local storage failures by operation
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_storage_errors_total",
			Help: "Total number of local storage failures",
		},
		[]string{"operation"},
	)

	// StorageOperationDuration measures BlobStore operation duration
	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsdeck_storage_operation_duration_seconds",
			Help:    "Local storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)
)
