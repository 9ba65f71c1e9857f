package types

import (
	"time"

	"github.com/google/uuid"
)

// OptimizationMode selects which optimizer builds the visiting sequence.
type OptimizationMode string

const (
	ModeHeuristic  OptimizationMode = "heuristic"
	ModeConstraint OptimizationMode = "constraint"
)

// SolverStatus records how an itinerary was obtained.
type SolverStatus string

const (
	// StatusOptimal means the constraint search proved optimality (or closed
	// the configured relative gap) before the budget expired.
	StatusOptimal SolverStatus = "optimal"
	// StatusFeasible means the budget expired with an incumbent in hand.
	StatusFeasible SolverStatus = "feasible"
	// StatusFallback means the constraint search found no feasible assignment
	// and the heuristic result was used instead. Not an error.
	StatusFallback SolverStatus = "fallback"
	// StatusInfeasible is only ever reported internally; callers always
	// receive an itinerary for valid input.
	StatusInfeasible SolverStatus = "infeasible"
)

// PlanningRequest is the full input to a planning call. CandidatePOIs have
// already been filtered for interest by the external candidate selector.
type PlanningRequest struct {
	CandidatePOIs       []POI              `json:"candidate_pois"`
	MustInclude         []string           `json:"must_include,omitempty"`
	ComboGroups         []ComboTicketGroup `json:"combo_groups,omitempty"`
	Days                int                `json:"days"`
	PerDayBudgetMinutes int                `json:"per_day_budget_minutes,omitempty"`
	Mode                OptimizationMode   `json:"mode"`
	StartLocation       *Coordinates       `json:"start_location,omitempty"`
	EndLocation         *Coordinates       `json:"end_location,omitempty"`
	StartDate           *time.Time         `json:"start_date,omitempty"`
}

// Stop is one scheduled visit. ArrivalEstimateMinutes is measured from the
// configured day start, not from midnight.
type Stop struct {
	PoiID                   string  `json:"poi_id"`
	ArrivalEstimateMinutes  int     `json:"arrival_estimate_minutes"`
	DurationMinutes         int     `json:"duration_minutes"`
	WalkFromPreviousMinutes float64 `json:"walk_from_previous_minutes"`
}

// DayPlan is one day-bucket of the itinerary.
type DayPlan struct {
	Stops          []Stop  `json:"stops"`
	TotalHours     float64 `json:"total_hours"`
	TotalWalkingKm float64 `json:"total_walking_km"`
}

// Scores aggregates the optimization quality of an itinerary; each component
// and the overall score lie in [0,1].
type Scores struct {
	Distance  float64 `json:"distance"`
	Coherence float64 `json:"coherence"`
	Overall   float64 `json:"overall"`
}

// Itinerary is the day-partitioned result of a planning call. Replacements
// produce a new version; a persisted version is never mutated in place.
type Itinerary struct {
	ID           uuid.UUID    `json:"id"`
	Days         []DayPlan    `json:"days"`
	Scores       Scores       `json:"scores"`
	SolverStatus SolverStatus `json:"solver_status"`
	Violations   []string     `json:"violations,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// StopCount returns the number of stops across all days.
func (i *Itinerary) StopCount() int {
	n := 0
	for _, d := range i.Days {
		n += len(d.Stops)
	}
	return n
}

// PoiIDs returns the flat visiting order across all days.
func (i *Itinerary) PoiIDs() []string {
	ids := make([]string, 0, i.StopCount())
	for _, d := range i.Days {
		for _, s := range d.Stops {
			ids = append(ids, s.PoiID)
		}
	}
	return ids
}

// ReoptimizeStrategy identifies the cheapest sufficient re-optimization tier
// that was selected for a replacement request.
type ReoptimizeStrategy string

const (
	StrategyLocalSwap ReoptimizeStrategy = "localSwap"
	StrategyDayLevel  ReoptimizeStrategy = "dayLevel"
	StrategyFullTour  ReoptimizeStrategy = "fullTour"
)

// Replacement substitutes one POI of a saved itinerary with another,
// tagged with the zero-based day it occurred on.
type Replacement struct {
	OriginalPoiID    string `json:"original_poi_id"`
	ReplacementPoiID string `json:"replacement_poi_id"`
	Day              int    `json:"day"`
}

// DistanceEntry is a cached symmetric pairwise walking estimate.
type DistanceEntry struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// ReoptimizeResult reports the new itinerary version, the tier used, and the
// distance-cache entries computed during re-optimization (never including
// pre-existing entries).
type ReoptimizeResult struct {
	Itinerary    *Itinerary               `json:"itinerary"`
	StrategyUsed ReoptimizeStrategy       `json:"strategy_used"`
	CacheDelta   map[string]DistanceEntry `json:"cache_delta,omitempty"`
}
