package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsReceived counts every message pulled from the stream,
	// including malformed ones.
	RequestsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "export_requests_received_total",
		Help: "Total export request messages received from the stream",
	})

	// StateTransitions counts entries into each orchestration state.
	// Labels: state (received, fetching, ..., done, failed, skipped_duplicate).
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_state_transitions_total",
		Help: "Total per-state transitions of the export state machine",
	}, []string{"state"})

	// Errors counts classified failures by kind and whether they were
	// transient at the point of observation.
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_errors_total",
		Help: "Total classified errors by kind",
	}, []string{"kind", "transient"})

	// InFlight tracks requests currently being orchestrated.
	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "export_requests_in_flight",
		Help: "Export requests currently being processed",
	})

	// ProcessingDuration observes end-to-end per-request latency.
	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "export_processing_duration_seconds",
		Help:    "End-to-end export request processing duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// NotificationsSent counts outcome deliveries by result.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_notifications_total",
		Help: "Outcome notification attempts by result",
	}, []string{"result"})
)
