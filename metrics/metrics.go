// Package metrics provides Prometheus metrics for console sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes
const (
	RefreshSuccess    = "success"
	RefreshFailure    = "failure"
	RefreshSuperseded = "superseded"
)

// Guard outcomes
const (
	GuardAdmit    = "admit"
	GuardRedirect = "redirect"
)

// Metrics holds all Prometheus metrics for the console.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	replayedTotal   prometheus.Counter
	upstreamTotal   *prometheus.CounterVec
	guardTotal      *prometheus.CounterVec
	consoles        prometheus.Gauge
}

// New creates the metrics and registers them with reg.
// If reg is nil, returns nil so every Record call is a no-op.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	// Session refresh metrics
	m.refreshTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_console_refresh_total",
		Help: "Total silent token refreshes by outcome",
	}, []string{"outcome"})

	m.refreshDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleet_console_refresh_duration_seconds",
		Help:    "Silent token refresh duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.replayedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "fleet_console_replayed_requests_total",
		Help: "Total requests replayed after a 401",
	})

	// Upstream API metrics
	m.upstreamTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_console_upstream_requests_total",
		Help: "Total fleet API requests by method and status class",
	}, []string{"method", "status"})

	// Routing metrics
	m.guardTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_console_guard_decisions_total",
		Help: "Total route guard decisions",
	}, []string{"guard", "outcome"})

	m.consoles = factory.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_console_active_consoles",
		Help: "Current number of console sessions held in memory",
	})

	return m
}

// RecordRefresh records a refresh outcome and its duration.
func (m *Metrics) RecordRefresh(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

// RecordReplay records a request replayed after a 401.
func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.replayedTotal.Inc()
}

// RecordUpstream records a completed fleet API call.
func (m *Metrics) RecordUpstream(method string, status int) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(method, statusClass(status)).Inc()
}

// RecordGuard records a guard decision.
func (m *Metrics) RecordGuard(guard string, admitted bool) {
	if m == nil {
		return
	}
	outcome := GuardRedirect
	if admitted {
		outcome = GuardAdmit
	}
	m.guardTotal.WithLabelValues(guard, outcome).Inc()
}

// SetConsoles sets the number of live consoles.
func (m *Metrics) SetConsoles(n int) {
	if m == nil {
		return
	}
	m.consoles.Set(float64(n))
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
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
