package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics records per-request counters. A nil *metrics is a no-op.
type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// WithMetrics registers request metrics on reg:
//
//	certauth_client_requests_total{method,status}
//	certauth_client_request_duration_seconds{method}
//
// status is the HTTP status code, or "error" when no response arrived.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		factory := promauto.With(reg)
		c.metrics = &metrics{
			requests: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "certauth_client_requests_total",
				Help: "Total requests sent by method and response status.",
			}, []string{"method", "status"}),
			duration: factory.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "certauth_client_request_duration_seconds",
				Help:    "Request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
		}
		return nil
	}
}

func (m *metrics) observe(method, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, status).Inc()
	m.duration.WithLabelValues(method).Observe(took.Seconds())
}
