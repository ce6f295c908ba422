package site

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the site's Prometheus collectors.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	InFlight  prometheus.Gauge
	Redirects prometheus.Counter
}

// NewMetrics registers the site collectors with reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "site",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "site",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "site",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),

		Redirects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "site",
			Name:      "redirects_total",
			Help:      "Plain HTTP requests redirected to HTTPS",
		}),
	}
}
