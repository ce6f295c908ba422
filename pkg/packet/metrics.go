package packet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dispatch outcomes per key.
type Metrics struct {
	Dispatched    *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	HandlerErrors *prometheus.CounterVec
}

// NewMetrics registers dispatch metrics on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "dispatched_total",
			Help:      "Inbound packets delivered to at least one handler",
		}, []string{"key"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "dropped_total",
			Help:      "Inbound packets with no registered handler",
		}, []string{"key"}),
		HandlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packet",
			Name:      "handler_errors_total",
			Help:      "Handler invocations that returned an error or panicked",
		}, []string{"key", "kind"}),
	}
}
