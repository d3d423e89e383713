package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plotwatch/internal/core"
)

// MetricsRoute exposes the gatherer at /metrics on the root router.
func MetricsRoute(gatherer prometheus.Gatherer) core.RouteRegistrar {
	return func(r chi.Router) {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}
