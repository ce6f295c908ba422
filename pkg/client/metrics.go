package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks connection health.
type Metrics struct {
	State           prometheus.Gauge
	Sent            *prometheus.CounterVec
	Received        *prometheus.CounterVec
	Reconnects      *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers connection metrics on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		State: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "state",
			Help:      "Current connection state (0 Disconnected .. 5 GaveUp)",
		}),
		Sent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "packets_sent_total",
			Help:      "Packets written to the connection",
		}, []string{"key"}),
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "frames_received_total",
			Help:      "Frames read from the connection by frame type",
		}, []string{"type"}),
		Reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts by result",
		}, []string{"result"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Time from request send to reply",
			Buckets:   prometheus.DefBuckets,
		}, []string{"key"}),
	}
}
