// Package metrics exposes the Prometheus collectors the sentinel pipeline
// and action manager report against.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/histogram the pipeline touches behind a
// registry it owns, so a process can run more than one instance side by
// side in tests without collector-already-registered panics.
type Metrics struct {
	registry *prometheus.Registry

	DecodeErrors     *prometheus.CounterVec
	AnalyzerErrors   *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec
	RiskEvents       *prometheus.CounterVec
	AnalyzerDuration *prometheus.HistogramVec
}

// New builds a Metrics bundle and registers its collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_decode_errors_total",
			Help: "Number of transaction events that failed to decode.",
		}, nil),
		AnalyzerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_analyzer_errors_total",
			Help: "Number of analyzer invocations that returned an error or panicked.",
		}, []string{"analyzer"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_sink_errors_total",
			Help: "Number of action sink dispatches that failed.",
		}, []string{"sink"}),
		RiskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_risk_events_total",
			Help: "Number of risk events emitted, by kind and level.",
		}, []string{"kind", "level"}),
		AnalyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_analyzer_duration_seconds",
			Help:    "Analyzer invocation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"analyzer"}),
	}

	reg.MustRegister(m.DecodeErrors, m.AnalyzerErrors, m.SinkErrors, m.RiskEvents, m.AnalyzerDuration)
	return m
}

// Handler returns the HTTP handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
