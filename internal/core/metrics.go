package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRequestMetrics implements MetricsCollector with a request
// counter and a latency histogram.
type PrometheusRequestMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var _ MetricsCollector = (*PrometheusRequestMetrics)(nil)

// NewPrometheusRequestMetrics registers the HTTP metrics on reg.
func NewPrometheusRequestMetrics(reg prometheus.Registerer, namespace string) *PrometheusRequestMetrics {
	factory := promauto.With(reg)
	return &PrometheusRequestMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "endpoint", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

func (m *PrometheusRequestMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.requests.WithLabelValues(method, endpoint, status).Inc()
	m.latency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
