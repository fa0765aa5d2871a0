package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics of the tracking loop
type Metrics struct {
	Ticks                prometheus.Counter
	TickDuration         prometheus.Histogram
	TelemetryErrors      *prometheus.CounterVec
	SnapshotStale        prometheus.Gauge
	TrackedVehicles      prometheus.Gauge
	MilestonesCaptured   *prometheus.CounterVec
	CaptureWriteFailures prometheus.Counter
	ErrorsCount          *prometheus.CounterVec
}

// NewMetrics registers the tracking metrics on reg
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "The total number of tracking ticks run",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time taken to run one tracking tick",
			Buckets:   prometheus.DefBuckets,
		}),
		TelemetryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_errors_total",
			Help:      "Telemetry polling failures by kind",
		}, []string{"kind"}),
		SnapshotStale: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_stale",
			Help:      "1 when the current fleet snapshot is a stale fallback",
		}),
		TrackedVehicles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_vehicles",
			Help:      "Vehicles with a live position in the current snapshot",
		}),
		MilestonesCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestones_captured_total",
			Help:      "Automatically captured milestones",
		}, []string{"leg", "event"}),
		CaptureWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_write_failures_total",
			Help:      "Milestone writes that failed and will be retried",
		}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
