// Package metrics provides Prometheus metrics for matchd — counters, gauges,
// histograms for match execution, travel lookups, queueing, webhooks, result
// storage, and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Matching ───────────────────────────────────────────────────────────────

// MatchRequests tracks match executions by algorithm and outcome.
var MatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "match_requests_total",
	Help:      "Total match executions by algorithm and status.",
}, []string{"algorithm", "status"})

// MatchDuration tracks end-to-end match pipeline duration in seconds.
var MatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "matchd",
	Name:      "match_duration_seconds",
	Help:      "Match pipeline duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"algorithm"})

// MatchScores tracks the distribution of global scores returned to callers.
var MatchScores = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "matchd",
	Name:      "match_scores",
	Help:      "Distribution of global match scores (0-100).",
	Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
})

// FallbackActivations tracks degraded-tier activations by reason.
var FallbackActivations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "fallback_activations_total",
	Help:      "Total fallback chain activations by reason.",
}, []string{"reason"})

// ─── Travel ─────────────────────────────────────────────────────────────────

// TravelLookups tracks resolved travel queries by source.
var TravelLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "travel_lookups_total",
	Help:      "Total travel time lookups by source (api, simulated).",
}, []string{"source"})

// TravelCacheHits tracks travel cache hits.
var TravelCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "travel_cache_hits_total",
	Help:      "Total travel cache hits.",
})

// TravelCacheMisses tracks travel cache misses.
var TravelCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "travel_cache_misses_total",
	Help:      "Total travel cache misses.",
})

// RoutingBreakerState tracks the routing circuit breaker state
// (0=closed, 1=open, 2=half-open).
var RoutingBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "matchd",
	Name:      "routing_breaker_state",
	Help:      "Routing API circuit breaker state (0=closed, 1=open, 2=half-open).",
})

// ─── Queue ──────────────────────────────────────────────────────────────────

// QueueDepth tracks pending jobs per queue and priority class.
var QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "matchd",
	Name:      "queue_depth",
	Help:      "Number of pending jobs per queue and priority.",
}, []string{"queue", "priority"})

// JobsProcessed tracks finished jobs by task and outcome.
var JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "jobs_processed_total",
	Help:      "Total processed jobs by task and status.",
}, []string{"task", "status"})

// JobsInFlight tracks jobs currently being executed by workers.
var JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "matchd",
	Name:      "jobs_in_flight",
	Help:      "Number of jobs currently executing.",
})

// JobDuration tracks job processing duration in seconds.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "matchd",
	Name:      "job_duration_seconds",
	Help:      "Job processing duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"task"})

// DeadLettered tracks jobs moved to the dead letter queue.
var DeadLettered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "dead_lettered_total",
	Help:      "Total jobs moved to the dead letter queue.",
})

// ─── Webhooks ───────────────────────────────────────────────────────────────

// WebhookDeliveries tracks webhook notification attempts by outcome.
var WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "webhook_deliveries_total",
	Help:      "Total webhook delivery attempts by outcome.",
}, []string{"outcome"})

// ─── Result store ───────────────────────────────────────────────────────────

// StoreWrites tracks result store writes per tier.
var StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "store_writes_total",
	Help:      "Total result store writes by tier and outcome.",
}, []string{"tier", "outcome"})

// StoreReads tracks which tier served a result read.
var StoreReads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "matchd",
	Name:      "store_reads_total",
	Help:      "Total result store reads by serving tier.",
}, []string{"tier"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "matchd",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
