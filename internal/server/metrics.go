package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "option_surface"

// Metrics holds the server's Prometheus collectors. Each Server registers
// into its own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PricesTotal        prometheus.Counter
	HeatmapsTotal      prometheus.Counter
	HeatmapFailures    *prometheus.CounterVec
	HeatmapDuration    prometheus.Histogram
	HeatmapGenerations prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		PricesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prices_total",
			Help:      "Option prices computed for display",
		}),
		HeatmapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmaps_total",
			Help:      "Heatmaps generated and loaded successfully",
		}),
		HeatmapFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_failures_total",
			Help:      "Heatmap requests that failed, by stage",
		}, []string{"stage"}),
		HeatmapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "heatmap_duration_seconds",
			Help:      "Time to sample, render and write a heatmap",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		HeatmapGenerations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heatmap_in_progress",
			Help:      "1 while a heatmap is being generated",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PricesTotal,
		m.HeatmapsTotal,
		m.HeatmapFailures,
		m.HeatmapDuration,
		m.HeatmapGenerations,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
