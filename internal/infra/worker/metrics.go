package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"newsdeck/internal/pkg/config"
)

// JobMetrics instruments the engine's background jobs. It embeds the
// configuration metrics of the "engine" component:
//   - engine_config_load_timestamp, engine_config_validation_errors_total,
//     engine_config_fallbacks_total, engine_config_fallback_active
//
// Job metrics:
//   - newsdeck_retention_job_runs_total{status}
//   - newsdeck_retention_job_duration_seconds
//   - newsdeck_retention_interactions_pruned_total
//   - newsdeck_retention_job_last_success_timestamp
type JobMetrics struct {
	*config.ConfigMetrics

	RunsTotal        *prometheus.CounterVec
	DurationSeconds  prometheus.Histogram
	PrunedTotal      prometheus.Counter
	LastSuccessStamp prometheus.Gauge
}

// NewJobMetrics creates and registers the metrics with reg.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	factory := promauto.With(reg)
	return &JobMetrics{
		ConfigMetrics: config.NewConfigMetricsWith(reg, "engine"),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_retention_job_runs_total",
			Help: "Total number of retention job runs by status",
		}, []string{"status"}),

		DurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsdeck_retention_job_duration_seconds",
			Help:    "Duration of retention job runs in seconds",
			Buckets: []float64{.001, .01, .1, .5, 1, 5},
		}),

		PrunedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsdeck_retention_interactions_pruned_total",
			Help: "Total number of interactions removed by retention",
		}),

		LastSuccessStamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "newsdeck_retention_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful retention run",
		}),
	}
}

// RecordJobRun counts a run with status "success" or "failure".
func (m *JobMetrics) RecordJobRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes a run's duration in seconds.
func (m *JobMetrics) RecordJobDuration(seconds float64) {
	m.DurationSeconds.Observe(seconds)
}

// RecordPruned adds the number of interactions a run removed.
func (m *JobMetrics) RecordPruned(count int) {
	m.PrunedTotal.Add(float64(count))
}

// RecordLastSuccess stamps the current time as the last successful run.
func (m *JobMetrics) RecordLastSuccess() {
	m.LastSuccessStamp.SetToCurrentTime()
}
