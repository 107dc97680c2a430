package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type apiMetrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	outcomesProcessed *prometheus.CounterVec
}

func newAPIMetrics() *apiMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &apiMetrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lotdesk_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		outcomesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lotdesk_arb_outcomes_total",
			Help: "Arbitration outcomes processed by result.",
		}, []string{"outcome"}),
	}
}

func (m *apiMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *apiMetrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

func (m *apiMetrics) recordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomesProcessed.WithLabelValues(outcome).Inc()
}
