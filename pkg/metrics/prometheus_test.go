package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleettrack-service/pkg/metrics"
)

func TestNewMetrics_registersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "fleettrack")

	m.Ticks.Inc()
	m.MilestonesCaptured.WithLabelValues("origin", "arrival").Inc()
	m.SnapshotStale.Set(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MilestonesCaptured.WithLabelValues("origin", "arrival")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "fleettrack_ticks_total")
	assert.Contains(t, names, "fleettrack_snapshot_stale")
}

func TestNewMetrics_separateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.NewMetrics(prometheus.NewRegistry(), "fleettrack")
		metrics.NewMetrics(prometheus.NewRegistry(), "fleettrack")
	})
}
