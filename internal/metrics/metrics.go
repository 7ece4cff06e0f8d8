// Package metrics exposes Prometheus metrics for the HTTP server and the order pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests     *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec
	OrdersSaved  *prometheus.CounterVec
	NegativeCost prometheus.Counter

	registry *prometheus.Registry
}

// NewServerMetrics registers the collectors on a fresh registry so that
// several instances can coexist in one process.
func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signworks",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signworks",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	ordersSaved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signworks",
		Subsystem: service,
		Name:      "orders_saved_total",
		Help:      "Service orders created or updated, by status.",
	}, []string{"status"})
	negative := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signworks",
		Subsystem: service,
		Name:      "orders_negative_cost_total",
		Help:      "Service orders saved with a negative total cost.",
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(requests, latency, ordersSaved, negative,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &ServerMetrics{
		Requests:     requests,
		LatencyMS:    latency,
		OrdersSaved:  ordersSaved,
		NegativeCost: negative,
		registry:     registry,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OrderSaved counts a saved order.
func (m *ServerMetrics) OrderSaved(status string, negativeCost bool) {
	m.OrdersSaved.WithLabelValues(status).Inc()
	if negativeCost {
		m.NegativeCost.Inc()
	}
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Handlers that never write still answer 200.
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
