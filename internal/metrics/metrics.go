// Package metrics provides Prometheus metrics for the run coordinator and
// the logs around it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	SnapshotsTotal       prometheus.Counter
	MessagesTotal        *prometheus.CounterVec
	BrowserCapturesTotal prometheus.Counter
	RunsActive           prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daksha_runs_total",
				Help: "Total number of agent runs by backend and outcome.",
			},
			[]string{"backend", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daksha_run_duration_seconds",
				Help:    "Run duration by backend.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"backend"},
		),
		SnapshotsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "daksha_snapshots_total",
				Help: "Total number of execution snapshots appended.",
			},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daksha_messages_total",
				Help: "Total number of conversation messages appended by role.",
			},
			[]string{"role"},
		),
		BrowserCapturesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "daksha_browser_captures_total",
				Help: "Total number of browser snapshots captured.",
			},
		),
		RunsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "daksha_runs_active",
				Help: "Number of runs currently registered.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.RunsTotal)
	reg.MustRegister(m.RunDuration)
	reg.MustRegister(m.SnapshotsTotal)
	reg.MustRegister(m.MessagesTotal)
	reg.MustRegister(m.BrowserCapturesTotal)
	reg.MustRegister(m.RunsActive)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRun increments the run counter and observes its duration.
func (m *Metrics) RecordRun(backend, status string, seconds float64) {
	m.RunsTotal.WithLabelValues(backend, status).Inc()
	m.RunDuration.WithLabelValues(backend).Observe(seconds)
}

// RecordMessage increments the message counter for "user" or "agent".
func (m *Metrics) RecordMessage(role string) {
	m.MessagesTotal.WithLabelValues(role).Inc()
}
