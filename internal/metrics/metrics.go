// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry holds every collector of this process.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PlansTotal, PlanDuration,
		SearchesTotal, ToolCallsTotal,
		TranscriptionsTotal,
		ActiveSessions,
		PlatformRequestsTotal,
	)
}

// PlansTotal counts plan generations by status (success | failure).
var PlansTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finplan_plans_total",
		Help: "Financial plan generations by status.",
	},
	[]string{"status"},
)

// PlanDuration measures plan generation latency in seconds.
var PlanDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "finplan_plan_duration_seconds",
		Help:    "Financial plan generation latency.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	},
)

// SearchesTotal counts web searches by status (success | failure).
var SearchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finplan_searches_total",
		Help: "Web searches issued by the research agent.",
	},
	[]string{"status"},
)

// ToolCallsTotal counts tool invocations requested by the models.
var ToolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finplan_tool_calls_total",
		Help: "Tool invocations requested by agents.",
	},
	[]string{"tool"},
)

// TranscriptionsTotal counts voice transcriptions by outcome.
var TranscriptionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finplan_transcriptions_total",
		Help: "Voice transcriptions by outcome.",
	},
	[]string{"outcome"}, // success | no_speech_detected | service_unavailable | unintelligible | capture_failed
)

// ActiveSessions is the number of live in-memory sessions.
var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "finplan_active_sessions",
		Help: "Live in-memory planner sessions.",
	},
)

// PlatformRequestsTotal counts platform requests by category.
var PlatformRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finplan_platform_requests_total",
		Help: "Platform requests submitted by users.",
	},
	[]string{"category"},
)

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
