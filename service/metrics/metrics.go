// Package metrics provides Prometheus metrics for wildwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "wildwatch"
)

// Detection metrics
var (
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "detections_total",
			Help:      "Raw detections by camera and tier",
		},
		[]string{"camera", "tier"},
	)

	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "decisions_total",
			Help:      "Processor decisions by reason",
		},
		[]string{"reason"},
	)

	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Frames read per camera",
		},
		[]string{"camera"},
	)

	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "inference_duration_seconds",
			Help:      "Object detector latency per frame",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// Alert metrics
var (
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "alerts_total",
			Help:      "Alerts handled by kind and dispatch status",
		},
		[]string{"kind", "status"},
	)

	AlertsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dropped_total",
			Help:      "Alerts dropped because the alert queue was full",
		},
	)

	ChannelDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "channel_deliveries_total",
			Help:      "Channel delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to dispatch one alert on all its channels",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Runtime metrics
var (
	AgentsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agents",
			Name:      "running",
			Help:      "Camera agents currently running",
		},
	)

	RuntimeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "errors_total",
			Help:      "Errors reported on the error stream by processor",
		},
		[]string{"processor"},
	)
)
