package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMatchDuration_Registered(t *testing.T) {
	// Verify the metric is registered with the default registry
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// promauto registers with the default registry automatically.
	// Just verify we can observe without panicking.
	MatchDuration.WithLabelValues("comprehensive-match").Observe(0.42)

	// Verify the histogram records
	families, _ = prometheus.DefaultGatherer.Gather()
	found := false
	for _, f := range families {
		if f.GetName() == "matchd_match_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Error("matchd_match_duration_seconds not found in gathered metrics")
	}
}

func TestMatchCounters(t *testing.T) {
	MatchRequests.WithLabelValues("skills-centric", "success").Inc()
	MatchRequests.WithLabelValues("enhanced-match", "fallback").Inc()
	MatchScores.Observe(73)
	FallbackActivations.WithLabelValues("transient_external").Inc()

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"matchd_match_requests_total",
		"matchd_match_scores",
		"matchd_fallback_activations_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestTravelMetrics(t *testing.T) {
	TravelLookups.WithLabelValues("api").Inc()
	TravelLookups.WithLabelValues("simulated").Add(3)
	TravelCacheHits.Inc()
	TravelCacheMisses.Inc()
	RoutingBreakerState.Set(0)

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"matchd_travel_lookups_total",
		"matchd_travel_cache_hits_total",
		"matchd_travel_cache_misses_total",
		"matchd_routing_breaker_state",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestQueueMetrics(t *testing.T) {
	QueueDepth.WithLabelValues("matching", "high").Set(4)
	JobsProcessed.WithLabelValues("match", "completed").Inc()
	JobsProcessed.WithLabelValues("match", "failed").Inc()
	JobsInFlight.Set(2)
	JobDuration.WithLabelValues("match").Observe(0.8)
	DeadLettered.Inc()

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"matchd_queue_depth",
		"matchd_jobs_processed_total",
		"matchd_jobs_in_flight",
		"matchd_job_duration_seconds",
		"matchd_dead_lettered_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestWebhookAndStoreMetrics(t *testing.T) {
	WebhookDeliveries.WithLabelValues("delivered").Inc()
	WebhookDeliveries.WithLabelValues("failed").Inc()
	StoreWrites.WithLabelValues("hot", "ok").Inc()
	StoreWrites.WithLabelValues("row", "error").Inc()
	StoreReads.WithLabelValues("blob").Inc()

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"matchd_webhook_deliveries_total",
		"matchd_store_writes_total",
		"matchd_store_reads_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("row_store").Set(1)
	HealthCheckStatus.WithLabelValues("blob_dir").Set(1)
	HealthCheckStatus.WithLabelValues("travel").Set(0)

	families, _ := prometheus.DefaultGatherer.Gather()
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	if !names["matchd_health_check_status"] {
		t.Error("matchd_health_check_status not found")
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	// Ensure all metrics can be gathered without errors
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	matchdMetrics := 0
	for _, f := range families {
		if len(f.GetName()) > 7 && f.GetName()[:7] == "matchd_" {
			matchdMetrics++
		}
	}

	// We should have at least 12 matchd_ metric families
	if matchdMetrics < 12 {
		t.Errorf("expected at least 12 matchd_ metrics, got %d", matchdMetrics)
	}
}
