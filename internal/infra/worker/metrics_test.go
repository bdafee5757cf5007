package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	require.NotNil(t, m.ConfigMetrics)

	m.RecordJobRun("success")
	m.RecordJobRun("success")
	m.RecordJobRun("failure")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))

	m.RecordPruned(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PrunedTotal))

	m.RecordLastSuccess()
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessStamp), 0.0)

	m.RecordJobDuration(0.2)
	assert.Equal(t, 1, testutil.CollectAndCount(m.DurationSeconds))

	m.RecordFallback("retention_days")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("retention_days")))
}
