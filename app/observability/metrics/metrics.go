package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	PlansTotal           metric.Int64Counter
	ReplansTotal         metric.Int64Counter
	SolverFallbacksTotal metric.Int64Counter
	PlanDurationSeconds  metric.Float64Histogram
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("ItineraryOptimizer")
		var err error
		m := &AppMetrics{}

		m.PlansTotal, err = meter.Int64Counter(
			"itinerary_plans_total",
			metric.WithDescription("Total number of planning requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_plans_total: %v", err)
		}

		m.ReplansTotal, err = meter.Int64Counter(
			"itinerary_replans_total",
			metric.WithDescription("Total number of re-optimization requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_replans_total: %v", err)
		}

		m.SolverFallbacksTotal, err = meter.Int64Counter(
			"solver_fallbacks_total",
			metric.WithDescription("Total number of constraint solves that fell back to the heuristic optimizer"),
			metric.WithUnit("{fallback}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create solver_fallbacks_total: %v", err)
		}

		m.PlanDurationSeconds, err = meter.Float64Histogram(
			"plan_duration_seconds",
			metric.WithDescription("Duration of planning requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance. It initializes
// them against the current meter provider on first use so library consumers
// and tests never have to call InitAppMetrics themselves.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
