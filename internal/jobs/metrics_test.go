package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("sweep").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("sweep").End(boom), boom)

	assert.Equal(t, 1.0, counterValue(t, m.runs.WithLabelValues("sweep", "success")))
	assert.Equal(t, 1.0, counterValue(t, m.runs.WithLabelValues("sweep", "failure")))
	assert.Equal(t, 1.0, counterValue(t, m.failures.WithLabelValues("sweep")))
}

func TestTrackExportsFailureSeriesBeforeFirstFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Track("sweep").End(nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range families {
		if fam.GetName() != "invoicer_jobs_failures_total" {
			continue
		}
		require.Len(t, fam.GetMetric(), 1)
		assert.Equal(t, 0.0, fam.GetMetric()[0].GetCounter().GetValue())
		found = true
	}
	assert.True(t, found, "failure series exported")
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("sweep").End(boom), boom)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
