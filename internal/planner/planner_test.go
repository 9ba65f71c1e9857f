package planner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/distancecache"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

func intPtr(v int) *int { return &v }

var testSpot = &types.Coordinates{Latitude: 41.89, Longitude: 12.49}

func testPlanner() *Planner {
	return New(config.Defaults(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func romeRequest() types.PlanningRequest {
	return types.PlanningRequest{
		CandidatePOIs: []types.POI{
			{ID: "arch", DurationMinutes: 60, Coordinates: testSpot, ApproxYear: intPtr(80), ThemePeriod: "1st century"},
			{ID: "forum", DurationMinutes: 60, Coordinates: testSpot, ApproxYear: intPtr(50), ThemePeriod: "1st century"},
			{ID: "palace", DurationMinutes: 60, Coordinates: testSpot, ApproxYear: intPtr(1550), ThemePeriod: "16th century"},
		},
		Days: 1,
		Mode: types.ModeHeuristic,
	}
}

func TestPlanRejectsEmptyCandidates(t *testing.T) {
	req := romeRequest()
	req.CandidatePOIs = nil
	_, err := testPlanner().Plan(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyCandidates)
}

func TestPlanRejectsInvalidDays(t *testing.T) {
	req := romeRequest()
	req.Days = 0
	_, err := testPlanner().Plan(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidDays)
}

func TestPlanRejectsUnknownMustInclude(t *testing.T) {
	req := romeRequest()
	req.MustInclude = []string{"atlantis"}
	_, err := testPlanner().Plan(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnknownMustInclude)
}

func TestPlanHeuristicMode(t *testing.T) {
	res, err := testPlanner().Plan(context.Background(), romeRequest())
	require.NoError(t, err)

	it := res.Itinerary
	assert.NotEqual(t, uuid.Nil, it.ID)
	assert.Equal(t, types.StatusFeasible, it.SolverStatus)
	assert.Equal(t, 3, it.StopCount())
	assert.Empty(t, it.Violations)
	assert.False(t, it.CreatedAt.IsZero())

	for _, score := range []float64{it.Scores.Distance, it.Scores.Coherence, it.Scores.Overall} {
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}

	assert.NotEmpty(t, res.DistanceCache, "pairwise cache must accompany the itinerary")
}

func TestPlanConstraintMode(t *testing.T) {
	req := romeRequest()
	req.Mode = types.ModeConstraint

	res, err := testPlanner().Plan(context.Background(), req)
	require.NoError(t, err)

	it := res.Itinerary
	assert.Equal(t, types.StatusOptimal, it.SolverStatus)
	assert.Equal(t, []string{"forum", "arch", "palace"}, it.PoiIDs())
}

func TestPlanConstraintModeFallsBackWhenInfeasible(t *testing.T) {
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	req := types.PlanningRequest{
		CandidatePOIs: []types.POI{{
			ID: "night-only", DurationMinutes: 60, Coordinates: testSpot,
			OpeningPeriods: []types.OpeningPeriod{
				{DayOfWeek: time.Monday, OpenMinutes: 0, CloseMinutes: 60},
			},
		}},
		Days:      1,
		Mode:      types.ModeConstraint,
		StartDate: &monday,
	}

	res, err := testPlanner().Plan(context.Background(), req)
	require.NoError(t, err, "infeasibility degrades, never fails")
	assert.Equal(t, types.StatusFallback, res.Itinerary.SolverStatus)
	assert.Equal(t, 1, res.Itinerary.StopCount())
}

func TestPlanDropsUnenforceableComboGroup(t *testing.T) {
	req := romeRequest()
	req.ComboGroups = []types.ComboTicketGroup{{
		ID:              "broken",
		Members:         []string{"arch", "nowhere"},
		SameDayRequired: true,
	}}

	res, err := testPlanner().Plan(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Itinerary.Violations, 1)
	assert.Contains(t, res.Itinerary.Violations[0], "combo group broken dropped")
}

func TestPlanWithCacheReusesEntries(t *testing.T) {
	marker := types.DistanceEntry{DistanceKm: 42, DurationMinutes: 560}
	cache := map[string]types.DistanceEntry{
		distancecache.PairKey("forum", "arch"): marker,
	}

	res, err := testPlanner().PlanWithCache(context.Background(), romeRequest(), cache)
	require.NoError(t, err)
	assert.Equal(t, marker, res.DistanceCache[distancecache.PairKey("forum", "arch")])
}

func TestReplanWithoutSubsIsIdempotent(t *testing.T) {
	p := testPlanner()
	req := romeRequest()
	planned, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	res, err := p.Replan(context.Background(), planned.Itinerary, nil, req, planned.DistanceCache)
	require.NoError(t, err)
	assert.Equal(t, planned.Itinerary.ID, res.Itinerary.ID)
	assert.Empty(t, res.CacheDelta)
}

func TestReplanSubstitutionProducesNewVersion(t *testing.T) {
	p := testPlanner()
	req := romeRequest()
	planned, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	req.CandidatePOIs = append(req.CandidatePOIs, types.POI{
		ID: "basilica", DurationMinutes: 60, Coordinates: testSpot,
		ApproxYear: intPtr(330), ThemePeriod: "late antiquity",
	})
	subs := []types.Replacement{{OriginalPoiID: "palace", ReplacementPoiID: "basilica", Day: 0}}

	res, err := p.Replan(context.Background(), planned.Itinerary, subs, req, planned.DistanceCache)
	require.NoError(t, err)

	assert.NotEqual(t, planned.Itinerary.ID, res.Itinerary.ID)
	assert.Contains(t, res.Itinerary.PoiIDs(), "basilica")
	assert.NotContains(t, res.Itinerary.PoiIDs(), "palace")
}
