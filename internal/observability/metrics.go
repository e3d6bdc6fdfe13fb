package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the reporting console.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reportsTotal    *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
	exportRows      *prometheus.CounterVec
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freightdesk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "freightdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freightdesk_reports_total",
		Help: "Generated reports by outcome.",
	}, []string{"outcome"})
	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freightdesk_exports_total",
		Help: "Generated exports by kind and outcome.",
	}, []string{"kind", "outcome"})
	exportRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freightdesk_export_rows_total",
		Help: "Rows written to export files by kind.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, reports, exports, exportRows)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		reportsTotal:    reports,
		exportsTotal:    exports,
		exportRows:      exportRows,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveReport records a report generation outcome.
func (m *Metrics) ObserveReport(err error) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveExport records an export generation outcome and its row volume.
func (m *Metrics) ObserveExport(kind string, rows int, err error) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(kind, outcome(err)).Inc()
	if err == nil && rows > 0 {
		m.exportRows.WithLabelValues(kind).Add(float64(rows))
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collector registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
