// Package metrics exposes Prometheus instrumentation for update handling.
// Label cardinality stays bounded: "kind" is one of the five update kinds
// (plus "dropped"), "collaborator" is one of the four outbound dependencies.
// All collectors are safe for concurrent use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// updates counts inbound updates by classified kind.
	updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of inbound updates by classified kind.",
		},
		[]string{"kind"},
	)

	// failures counts handler outcomes that fell back to a failure reply.
	failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_handler_failures_total",
			Help: "Total number of handler runs that hit a collaborator failure.",
		},
		[]string{"kind"},
	)

	// inflight gauges updates currently being handled.
	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_updates_inflight",
			Help: "Current number of in-flight update handlers.",
		},
	)

	// collabLat records outbound collaborator call durations.
	collabLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_collaborator_duration_seconds",
			Help:    "Duration of outbound collaborator calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collaborator"},
	)
)

func init() {
	prometheus.MustRegister(updates, failures, inflight, collabLat)
}

// UpdateClassified records one inbound update of the given kind.
func UpdateClassified(kind string) { updates.WithLabelValues(kind).Inc() }

// HandlerFailed records a handler run that ended on its failure path.
func HandlerFailed(kind string) { failures.WithLabelValues(kind).Inc() }

// HandlerStarted marks a handler as in-flight; the returned func ends it.
func HandlerStarted() func() {
	inflight.Inc()
	return inflight.Dec
}

// ObserveCollaborator records the duration of one outbound call.
func ObserveCollaborator(name string, d time.Duration) {
	collabLat.WithLabelValues(name).Observe(d.Seconds())
}
