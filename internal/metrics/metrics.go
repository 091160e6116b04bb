// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesAnalyzed counts camera frames run through the vision model.
	FramesAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_frames_analyzed_total",
		Help: "Camera frames analyzed by the vision model.",
	})

	// FramesDropped counts frames evicted from the capture queue before
	// analysis.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_frames_dropped_total",
		Help: "Camera frames dropped because analysis lagged capture.",
	})

	// Escalations counts security escalations raised by the vision
	// pipeline.
	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_escalations_total",
		Help: "Security escalations raised from camera analysis.",
	})

	// Decisions counts rendered access decisions by outcome.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatewarden_decisions_total",
		Help: "Access decisions rendered, by outcome.",
	}, []string{"decision"})

	// ActiveSessions tracks sessions currently flagged active.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatewarden_active_sessions",
		Help: "Sessions with a visitor currently present.",
	})

	// TurnDuration observes end-to-end conversation turn latency.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gatewarden_turn_duration_seconds",
		Help:    "Conversation turn latency, including model calls.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// BridgeDropped counts state updates evicted from the bridge queue.
	BridgeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_bridge_updates_dropped_total",
		Help: "State updates dropped because the bridge queue was full.",
	})

	// BridgeApplied counts state updates applied to the session store.
	BridgeApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_bridge_updates_applied_total",
		Help: "State updates applied to the session store.",
	})
)
