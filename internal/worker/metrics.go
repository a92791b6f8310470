package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	exportsTotal      *prometheus.CounterVec
	exportDuration    *prometheus.HistogramVec
	activeExports     prometheus.Gauge
	derivedBytes      prometheus.Counter
	directivesApplied prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framefit_worker_exports_total",
			Help: "Total export jobs by final status.",
		}, []string{"status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framefit_worker_export_duration_seconds",
			Help:    "Total processing duration for each export job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		activeExports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "framefit_worker_active_exports",
			Help: "Current number of export jobs being processed.",
		}),
		derivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framefit_worker_derived_bytes_total",
			Help: "Total bytes of derived images stored.",
		}),
		directivesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framefit_worker_directives_applied_total",
			Help: "Total directives across all completed export jobs.",
		}),
	}

	registry.MustRegister(
		m.exportsTotal,
		m.exportDuration,
		m.activeExports,
		m.derivedBytes,
		m.directivesApplied,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
