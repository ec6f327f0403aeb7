package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadboard/leadboard/internal/leads"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	leadOps         *prometheus.CounterVec
	leadOpDuration  *prometheus.HistogramVec
	leadErrors      *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadboard_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadboard_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	leadOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadboard_lead_operations_total",
		Help: "Calls to the upstream leads API by operation and result.",
	}, []string{"op", "result"})
	leadOpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadboard_lead_operation_duration_seconds",
		Help:    "Upstream leads API latency per operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	leadErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadboard_lead_api_errors_total",
		Help: "Failed leads API calls by operation and failure kind.",
	}, []string{"op", "kind"})
	registry.MustRegister(
		requests, duration, leadOps, leadOpDuration, leadErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		leadOps:         leadOps,
		leadOpDuration:  leadOpDuration,
		leadErrors:      leadErrors,
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

// Middleware records metrics for every HTTP request.
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

// ObserveOperation records one upstream leads API call.
func (m *Metrics) ObserveOperation(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
		m.leadErrors.WithLabelValues(op, errorKind(err)).Inc()
	}
	m.leadOps.WithLabelValues(op, result).Inc()
	m.leadOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// errorKind buckets an upstream failure for alerting.
func errorKind(err error) string {
	var apiErr *leads.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &apiErr) && apiErr.Status >= 500:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Status >= 400:
		return "http_4xx"
	case errors.As(err, &apiErr) && apiErr.Err != nil:
		return "transport"
	default:
		return "other"
	}
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
