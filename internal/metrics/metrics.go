// Package metrics provides Prometheus metrics for workdesk
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcome labels.
const (
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusFallback  = "fallback"
)

// Metrics holds all Prometheus metrics for workdesk. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TurnsTotal     *prometheus.CounterVec
	TurnDuration   prometheus.Histogram
	TurnsInFlight  prometheus.Gauge
	ToolCallsTotal *prometheus.CounterVec

	SuggestionsTotal    *prometheus.CounterVec
	SessionsOpenedTotal *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdesk_turns_total",
			Help: "Total number of chat turns by persona and outcome",
		},
		[]string{"persona", "status"},
	)

	m.TurnDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workdesk_turn_duration_seconds",
			Help:    "Duration of chat turns in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.TurnsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "workdesk_turns_in_flight",
			Help: "Number of chat turns currently streaming",
		},
	)

	m.ToolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdesk_tool_calls_total",
			Help: "Total number of tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	m.SuggestionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdesk_suggestions_total",
			Help: "Total number of suggestion requests by outcome",
		},
		[]string{"status"},
	)

	m.SessionsOpenedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdesk_sessions_opened_total",
			Help: "Total number of conversation contexts opened by persona",
		},
		[]string{"persona"},
	)

	return m
}

// TurnStarted marks a turn as in flight and returns a func that records its
// outcome.
func (m *Metrics) TurnStarted(persona string) func(status string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.TurnsInFlight.Inc()
	return func(status string) {
		m.TurnsInFlight.Dec()
		m.TurnDuration.Observe(time.Since(start).Seconds())
		m.TurnsTotal.WithLabelValues(persona, status).Inc()
	}
}

// RecordToolCall counts one tool invocation.
func (m *Metrics) RecordToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordSuggestions counts one suggestion request.
func (m *Metrics) RecordSuggestions(status string) {
	if m == nil {
		return
	}
	m.SuggestionsTotal.WithLabelValues(status).Inc()
}

// RecordSessionOpened counts one opened conversation context.
func (m *Metrics) RecordSessionOpened(persona string) {
	if m == nil {
		return
	}
	m.SessionsOpenedTotal.WithLabelValues(persona).Inc()
}
