// Package metrics exposes the Prometheus signals spec §5 and §7 say
// must be surfaced as metrics rather than propagated as errors: per-mode
// observation counts, windows sealed, scoring latency, persistence write
// failures, and event-bus drop counts. Grounded on
// vellankikoti-kubilitics-os-emergent/kubilitics-ai/internal/metrics/metrics.go's
// promauto.NewCounterVec/NewHistogramVec package-level variable style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_observations_total",
			Help: "Total observations classified by C1, by mode and verdict.",
		},
		[]string{"mode", "verdict"},
	)

	WindowsSealedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_windows_sealed_total",
			Help: "Total windows sealed by C2, by mode.",
		},
		[]string{"mode"},
	)

	ScoringLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detector_scoring_latency_seconds",
			Help:    "End-to-end latency from a sealed window to a produced Detection.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"mode"},
	)

	SubmodelUnavailableTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_submodel_unavailable_total",
			Help: "Scoring passes where a submodel term was unavailable and its weight was renormalized.",
		},
		[]string{"submodel"},
	)

	PersistenceWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_persistence_write_failures_total",
			Help: "Failed persistence writes, by table.",
		},
		[]string{"table"},
	)

	EventBusDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detector_event_bus_drops_total",
			Help: "Detections dropped from a subscriber queue on overflow.",
		},
	)

	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_detections_total",
			Help: "Total Detections produced, by mode and priority.",
		},
		[]string{"mode", "priority"},
	)

	ParseErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detector_log_parse_errors_total",
			Help: "Log lines internal/parser could not decode into a LogEntry.",
		},
	)
)
