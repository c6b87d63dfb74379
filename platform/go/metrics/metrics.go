// Package metrics holds the Prometheus collectors shared by the API and the CLI.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Demo tracking
	TrackedChanges *prometheus.CounterVec
	OutboxDepth    prometheus.Gauge
	OutboxDropped  prometheus.Counter

	// Demo revert
	RevertedChanges *prometheus.CounterVec
	RevertDuration  prometheus.Histogram

	// Guest sessions
	GuestValidations *prometheus.CounterVec

	// Institution resolution
	ResolverCache *prometheus.CounterVec
}

// New creates the metrics and registers them on reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TrackedChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_demo_tracked_changes_total",
				Help: "Demo changes seen by the tracker by resource kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		OutboxDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vox_demo_outbox_depth",
				Help: "Tracked changes waiting to be persisted",
			},
		),

		OutboxDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vox_demo_outbox_dropped_total",
				Help: "Tracked changes dropped because the outbox was full",
			},
		),

		RevertedChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_demo_reverted_changes_total",
				Help: "Demo changes processed by the reverter by resource kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		RevertDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vox_demo_revert_duration_seconds",
				Help:    "Duration of a full revert run",
				Buckets: prometheus.DefBuckets,
			},
		),

		GuestValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_guest_validations_total",
				Help: "Guest session validations by result",
			},
			[]string{"result"},
		),

		ResolverCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_institution_resolver_cache_total",
				Help: "Institution resolver cache lookups by result",
			},
			[]string{"result"},
		),
	}
}
