package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("overdue_scan").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("overdue_scan").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("overdue_scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("overdue_scan", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("overdue_scan")))
}

func TestOverdueAndEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetOverdue("SALE", 4)
	m.SetOverdue("SALE", 2)
	m.AddStatusEvent("PAID")
	m.AddStatusEvent("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.overdue.WithLabelValues("SALE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("PAID")))

	var nilMetrics *Metrics
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
