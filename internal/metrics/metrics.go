// Package metrics exposes Prometheus instrumentation for the
// authentication and authorization pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberstore/emberstore/internal/auth"
	"github.com/emberstore/emberstore/internal/iam"
)

// Ensure Metrics satisfies the pipeline sinks
var (
	_ auth.MetricsSink = (*Metrics)(nil)
	_ iam.DecisionSink = (*Metrics)(nil)
)

// Metrics holds the Prometheus collectors for the server.
// It implements the sink interfaces consumed by the auth middleware
// and the policy authorizer.
type Metrics struct {
	registry *prometheus.Registry

	authAttempts   *prometheus.CounterVec
	authzDecisions *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emberstore",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Authentication attempts by auth type and outcome.",
		}, []string{"auth_type", "outcome"}),
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emberstore",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Authorization decisions by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emberstore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "emberstore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	registry.MustRegister(m.authAttempts, m.authzDecisions, m.httpRequests, m.httpDuration)

	return m
}

// AuthOutcome records one authentication attempt.
func (m *Metrics) AuthOutcome(authType, outcome string) {
	m.authAttempts.WithLabelValues(authType, outcome).Inc()
}

// AuthzOutcome records one authorization decision.
func (m *Metrics) AuthzOutcome(outcome string) {
	m.authzDecisions.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, seconds float64) {
	m.httpRequests.WithLabelValues(method, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(seconds)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
