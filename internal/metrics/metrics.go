// Package metrics exposes Prometheus collectors for the sync subsystem.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	syncApps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appsync",
			Subsystem: "sync",
			Name:      "apps_total",
			Help:      "Total number of single-app sync attempts by result.",
		},
		[]string{"result"},
	)

	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "appsync",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of single-app sync attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	syncBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appsync",
			Subsystem: "sync",
			Name:      "batches_total",
			Help:      "Total number of orchestrator runs by trigger.",
		},
		[]string{"trigger"},
	)

	versionChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "appsync",
			Subsystem: "sync",
			Name:      "version_changes_total",
			Help:      "Total number of detected app version changes.",
		},
	)
)

func init() {
	Registry.MustRegister(syncApps, syncDuration, syncBatches, versionChanges)
}

// Handler serves the application registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordAppSync records one engine invocation. result is "success" or a failure reason.
func RecordAppSync(result string, d time.Duration, versionChanged bool) {
	syncApps.WithLabelValues(result).Inc()
	syncDuration.Observe(d.Seconds())
	if versionChanged {
		versionChanges.Inc()
	}
}

// RecordBatch records one orchestrator run.
func RecordBatch(trigger string) {
	syncBatches.WithLabelValues(trigger).Inc()
}
