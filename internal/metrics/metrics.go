// Package metrics exposes the Prometheus collectors for finbot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pull results.
const (
	PullSuccess = "success"
	PullFailure = "failure"
	PullStale   = "stale"
	PullSkipped = "skipped"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Registry owns the collectors below and backs the /metrics handler.
	Registry *prometheus.Registry

	pulls           *prometheus.CounterVec
	pushes          *prometheus.CounterVec
	intake          *prometheus.CounterVec
	intakeDuration  prometheus.Histogram
	notifications   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ledgerSize      prometheus.Gauge
}

// New creates a private registry so repeated construction in tests never
// collides on collector names.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		pulls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbot_pulls_total",
				Help: "Remote pulls by result.",
			},
			[]string{"result"},
		),
		pushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbot_pushes_total",
				Help: "Remote pushes by action and result.",
			},
			[]string{"action", "result"},
		),
		intake: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbot_intake_total",
				Help: "Intake requests by outcome.",
			},
			[]string{"outcome"},
		),
		intakeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finbot_intake_duration_seconds",
				Help:    "Duration of parser calls.",
				Buckets: prometheus.DefBuckets,
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbot_notifications_total",
				Help: "Reminder notifications by result.",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbot_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finbot_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ledgerSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "finbot_ledger_transactions",
				Help: "Number of transactions in the local ledger.",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrPull(result string) {
	if m == nil {
		return
	}
	m.pulls.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrPush(action, result string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(action, result).Inc()
}

// RecordIntake counts one intake outcome and the parser latency.
func (m *Metrics) RecordIntake(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.intake.WithLabelValues(outcome).Inc()
	m.intakeDuration.Observe(d.Seconds())
}

func (m *Metrics) IncrNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.ledgerSize.Set(float64(n))
}
