package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScansTotal counts completed scans by verdict
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iotguard",
			Name:      "scans_total",
			Help:      "Total number of completed scans",
		},
		[]string{"verdict"},
	)

	// ScanDuration observes end-to-end pipeline latency
	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "iotguard",
			Name:      "scan_duration_seconds",
			Help:      "Duration of scan pipeline runs",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// ProbeFailures counts probe errors and timeouts
	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iotguard",
			Name:      "probe_failures_total",
			Help:      "Total number of failed probe calls",
		},
		[]string{"probe"},
	)

	// DispatchFailures counts notification or alert emits that failed
	DispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iotguard",
			Name:      "dispatch_failures_total",
			Help:      "Total number of failed dispatch steps",
		},
		[]string{"step"},
	)

	// AlertPublishFailures counts technician alerts an outside sink rejected
	AlertPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iotguard",
			Name:      "alert_publish_failures_total",
			Help:      "Total number of technician alerts that failed to publish",
		},
		[]string{"sink"},
	)

	// ModelRetrains counts retrain attempts by outcome
	ModelRetrains = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iotguard",
			Name:      "model_retrains_total",
			Help:      "Total number of risk model retrain attempts",
		},
		[]string{"result"},
	)

	// ModelState exposes the risk model lifecycle state as its ordinal
	ModelState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "iotguard",
			Name:      "model_state",
			Help:      "Current risk model lifecycle state (0 untrained, 1 loading, 2 training, 3 ready, 4 unavailable)",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Idempotent.
func InitMetrics() {
	once.Do(func() {
		// Ignore AlreadyRegistered so tests and multiple apps can share the registry
		prometheus.DefaultRegisterer.Register(ScansTotal)
		prometheus.DefaultRegisterer.Register(ScanDuration)
		prometheus.DefaultRegisterer.Register(ProbeFailures)
		prometheus.DefaultRegisterer.Register(DispatchFailures)
		prometheus.DefaultRegisterer.Register(AlertPublishFailures)
		prometheus.DefaultRegisterer.Register(ModelRetrains)
		prometheus.DefaultRegisterer.Register(ModelState)
	})
}
