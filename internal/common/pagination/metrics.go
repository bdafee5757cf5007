package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageLoadsTotal counts pager loads by mode (initial, more, refresh) and status.
	PageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsdeck_pagination_loads_total",
			Help: "Total number of feed page loads",
		},
		[]string{"mode", "status"},
	)

	// DuplicatesSuppressedTotal counts articles dropped because their id was already listed.
	DuplicatesSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsdeck_pagination_duplicates_suppressed_total",
			Help: "Total number of duplicate articles filtered out of incremental loads",
		},
	)
)

// RecordLoad counts a page load.
func RecordLoad(mode string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PageLoadsTotal.WithLabelValues(mode, status).Inc()
}

// RecordDuplicatesSuppressed counts filtered duplicates.
func RecordDuplicatesSuppressed(n int) {
	DuplicatesSuppressedTotal.Add(float64(n))
}
