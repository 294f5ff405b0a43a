// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the outprocess module gateway.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the gateway records against.
// Construct once per process and pass to components that need to record.
type Metrics struct {
	FramesSentTotal          *prometheus.CounterVec
	FramesReceivedTotal      *prometheus.CounterVec
	ReattachTotal            prometheus.Counter
	QueueDepth               prometheus.Gauge
	HandshakeDurationSeconds prometheus.Histogram
}

// NewMetrics creates and registers every metric with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		FramesSentTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outproc",
				Name:      "frames_sent_total",
				Help:      "Total number of control/message frames sent to the remote module",
			},
			[]string{"channel"}, // channel=control/message
		),
		FramesReceivedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outproc",
				Name:      "frames_received_total",
				Help:      "Total number of control/message frames received from the remote module",
			},
			[]string{"channel"},
		),
		ReattachTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "outproc",
				Name:      "reattach_total",
				Help:      "Total number of reattach attempts following a remote termination",
			},
		),
		QueueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "outproc",
				Name:      "queue_depth",
				Help:      "Current depth of the outgoing message queue",
			},
		),
		HandshakeDurationSeconds: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "outproc",
				Name:      "handshake_duration_seconds",
				Help:      "Time taken to complete a module handshake",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}
