package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	slipsGenerated  *prometheus.CounterVec
	batchDocuments  *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aurora_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aurora_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	slips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aurora_tax_slips_generated_total",
		Help: "Tax slips generated by slip type.",
	}, []string{"slip_type"})
	batch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aurora_batch_documents_total",
		Help: "Batch render documents by outcome.",
	}, []string{"outcome"})
	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aurora_exports_total",
		Help: "Accounting exports by format and outcome.",
	}, []string{"format", "outcome"})
	registry.MustRegister(requests, duration, slips, batch, exports)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		slipsGenerated:  slips,
		batchDocuments:  batch,
		exportsTotal:    exports,
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

// SlipGenerated counts one generated slip of the given type.
func (m *Metrics) SlipGenerated(slipType string) {
	if m == nil {
		return
	}
	m.slipsGenerated.WithLabelValues(slipType).Inc()
}

// BatchDocuments counts rendered and failed documents of one batch.
func (m *Metrics) BatchDocuments(succeeded, failed int) {
	if m == nil {
		return
	}
	m.batchDocuments.WithLabelValues("rendered").Add(float64(succeeded))
	m.batchDocuments.WithLabelValues("failed").Add(float64(failed))
}

// ExportFinished counts one finished export attempt.
func (m *Metrics) ExportFinished(format string, succeeded bool) {
	if m == nil {
		return
	}
	outcome := "completed"
	if !succeeded {
		outcome = "failed"
	}
	m.exportsTotal.WithLabelValues(format, outcome).Inc()
}

// Registerer exposes the registry for ad hoc metric registration.
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
