// Package metrics exposes Prometheus instrumentation for the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the server's collectors on a private registry.
type Registry struct {
	reg *prometheus.Registry

	FormulaEvaluations *prometheus.CounterVec
	Standardizations   *prometheus.CounterVec
	RowsNormalized     prometheus.Counter
	DegradedFields     prometheus.Counter
	TemplatesSaved     prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	formulas := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manifestkit_formula_evaluations_total",
		Help: "Formula evaluations by result (ok, error).",
	}, []string{"result"})
	standardizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manifestkit_standardizations_total",
		Help: "Manifest standardizations by mapping source.",
	}, []string{"source"})
	rows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manifestkit_rows_normalized_total",
		Help: "Rows normalized.",
	})
	degraded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manifestkit_degraded_fields_total",
		Help: "Fields that fell back to their default because a formula failed.",
	})
	saved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manifestkit_templates_saved_total",
		Help: "Templates created or updated.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "manifestkit_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern, method and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})

	r.MustRegister(
		formulas, standardizations, rows, degraded, saved, duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg:                r,
		FormulaEvaluations: formulas,
		Standardizations:   standardizations,
		RowsNormalized:     rows,
		DegradedFields:     degraded,
		TemplatesSaved:     saved,
		RequestDuration:    duration,
	}
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.RequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
