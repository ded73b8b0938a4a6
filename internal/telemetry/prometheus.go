package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"glucogate/internal/core"
)

var _ core.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements core.MetricsCollector with a private
// registry, exposed for scraping through Handler.
type PrometheusCollector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewPrometheusCollector registers the request metrics plus the Go runtime
// and process collectors.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()

	c := &PrometheusCollector{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glucogate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, matched route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "glucogate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and matched route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordRequest implements core.MetricsCollector.
func (c *PrometheusCollector) RecordRequest(method, route, status string, duration time.Duration) {
	c.requests.WithLabelValues(method, route, status).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}
