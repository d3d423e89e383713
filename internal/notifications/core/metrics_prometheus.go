package core

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"plotwatch/internal/types"
)

var _ NotificationMetrics = (*PrometheusMetrics)(nil)

// PrometheusMetrics exposes delivery and scheduler metrics for scraping.
type PrometheusMetrics struct {
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	ticks      *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors on reg. The namespace becomes
// the lowercase metric name prefix; empty selects types.MetricNamespace.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	ns := strings.ToLower(namespace)
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "delivery_attempts_total",
				Help:      "Notification channel outcomes by channel and result",
			},
			[]string{"channel", "result"}, // result: success, failed, skipped
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "delivery_attempt_duration_seconds",
				Help:      "Time taken by one channel delivery attempt",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"channel"},
		),
		ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "scheduler_ticks_total",
				Help:      "Scheduler ticks by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: run, skipped
		),
	}
}

func (m *PrometheusMetrics) RecordDelivery(_ context.Context, channel types.ChannelType, result MetricResult) {
	m.deliveries.WithLabelValues(string(channel), string(result)).Inc()
}

func (m *PrometheusMetrics) RecordLatency(_ context.Context, channel types.ChannelType, duration time.Duration) {
	m.latency.WithLabelValues(string(channel)).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordTick(_ context.Context, kind string, skipped bool) {
	outcome := "run"
	if skipped {
		outcome = "skipped"
	}
	m.ticks.WithLabelValues(kind, outcome).Inc()
}
