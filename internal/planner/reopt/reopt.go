// Package reopt performs incremental re-optimization of a saved itinerary
// after POI substitutions, choosing the cheapest sufficient scope: a local
// swap inside one day, a re-run over one or two days, or a full re-plan.
// Every tier reuses the persisted distance cache and extends it only for
// newly introduced pairs, so cost is bounded by the size of the change.
package reopt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/constraint"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/distancecache"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/heuristic"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/schedule"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

var (
	ErrNoSavedItinerary = errors.New("reopt: saved itinerary is required")
	ErrUnknownOriginal  = errors.New("reopt: original POI not found on the given day")
	ErrUnknownPOI       = errors.New("reopt: scheduled POI missing from candidate data")
	ErrInvalidDay       = errors.New("reopt: substitution day out of range")
)

// Input is a re-optimization request. Request.CandidatePOIs must carry the
// data for every POI that remains scheduled plus every replacement.
type Input struct {
	Saved   *types.Itinerary
	Subs    []types.Replacement
	Request types.PlanningRequest
	Groups  []types.ComboTicketGroup
	Cache   map[string]types.DistanceEntry
	Cfg     config.PlannerConfig
	Logger  *slog.Logger
}

// Reoptimize applies the substitutions and re-optimizes at the narrowest
// sufficient scope. An empty substitution list returns the saved itinerary
// unchanged.
func Reoptimize(ctx context.Context, in Input) (*types.ReoptimizeResult, error) {
	if in.Saved == nil {
		return nil, ErrNoSavedItinerary
	}
	if len(in.Subs) == 0 {
		return &types.ReoptimizeResult{
			Itinerary:    in.Saved,
			StrategyUsed: types.StrategyLocalSwap,
			CacheDelta:   map[string]types.DistanceEntry{},
		}, nil
	}

	dayOrders, affected, err := applySubstitutions(in.Saved, in.Subs)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.POI, len(in.Request.CandidatePOIs))
	for i := range in.Request.CandidatePOIs {
		byID[in.Request.CandidatePOIs[i].ID] = &in.Request.CandidatePOIs[i]
	}
	for _, order := range dayOrders {
		for _, id := range order {
			if _, ok := byID[id]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownPOI, id)
			}
		}
	}

	model := distancecache.NewModel(in.Cfg)
	model.Preload(in.Cache)

	strategy := selectStrategy(in, dayOrders, affected)
	in.Logger.DebugContext(ctx, "re-optimization scope selected",
		slog.String("strategy", string(strategy)),
		slog.Int("substitutions", len(in.Subs)),
		slog.Int("affected_days", len(affected)))

	var days []types.DayPlan
	status := in.Saved.SolverStatus

	switch strategy {
	case types.StrategyLocalSwap:
		days, err = localSwap(ctx, in, dayOrders, affected[0], model)
	case types.StrategyDayLevel:
		days, err = dayLevel(ctx, in, dayOrders, affected, model)
	default:
		days, status, err = fullTour(ctx, in, dayOrders, model)
	}
	if err != nil {
		return nil, err
	}

	itinerary := assemble(days, in, model, status, byID)
	return &types.ReoptimizeResult{
		Itinerary:    itinerary,
		StrategyUsed: strategy,
		CacheDelta:   model.Delta(),
	}, nil
}

// applySubstitutions splices the replacements into copies of the saved day
// orders and reports the distinct affected days in ascending order.
func applySubstitutions(saved *types.Itinerary, subs []types.Replacement) ([][]string, []int, error) {
	dayOrders := make([][]string, len(saved.Days))
	for d, plan := range saved.Days {
		for _, stop := range plan.Stops {
			dayOrders[d] = append(dayOrders[d], stop.PoiID)
		}
	}

	affectedSet := make(map[int]bool)
	for _, sub := range subs {
		if sub.Day < 0 || sub.Day >= len(dayOrders) {
			return nil, nil, fmt.Errorf("%w: day %d", ErrInvalidDay, sub.Day)
		}
		found := false
		for i, id := range dayOrders[sub.Day] {
			if id == sub.OriginalPoiID {
				dayOrders[sub.Day][i] = sub.ReplacementPoiID
				found = true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("%w: %s on day %d", ErrUnknownOriginal, sub.OriginalPoiID, sub.Day)
		}
		affectedSet[sub.Day] = true
	}

	affected := make([]int, 0, len(affectedSet))
	for d := 0; d < len(dayOrders); d++ {
		if affectedSet[d] {
			affected = append(affected, d)
		}
	}
	return dayOrders, affected, nil
}

func selectStrategy(in Input, dayOrders [][]string, affected []int) types.ReoptimizeStrategy {
	if len(in.Subs) == 1 && len(dayOrders[affected[0]]) <= in.Cfg.LocalSwapMaxDaySize {
		return types.StrategyLocalSwap
	}
	if len(affected) <= 2 {
		return types.StrategyDayLevel
	}
	return types.StrategyFullTour
}

// localSwap re-runs a short local search restricted to the affected day,
// leaving every other day byte-identical.
func localSwap(ctx context.Context, in Input, dayOrders [][]string, day int, model *distancecache.Model) ([]types.DayPlan, error) {
	pois := poisFor(in.Request.CandidatePOIs, dayOrders[day])
	improved := heuristic.ImproveSegment(ctx, dayOrders[day], heuristic.Input{
		POIs:  pois,
		Cfg:   in.Cfg,
		Model: model,
	})

	days := copyDays(in.Saved.Days)
	rebuilt := schedule.BuildDays([][]string{improved}, schedule.Input{
		POIs:  pois,
		Cfg:   in.Cfg,
		Model: model,
	})
	days[day] = rebuilt[0]
	return days, nil
}

// dayLevel re-runs the heuristic optimizer over each affected day's POI set.
func dayLevel(ctx context.Context, in Input, dayOrders [][]string, affected []int, model *distancecache.Model) ([]types.DayPlan, error) {
	days := copyDays(in.Saved.Days)
	for _, day := range affected {
		pois := poisFor(in.Request.CandidatePOIs, dayOrders[day])
		tour, err := heuristic.Optimize(ctx, heuristic.Input{
			POIs:  pois,
			Cfg:   in.Cfg,
			Model: model,
		})
		if err != nil {
			return nil, fmt.Errorf("day-level re-optimization of day %d: %w", day, err)
		}
		rebuilt := schedule.BuildDays([][]string{tour.Order}, schedule.Input{
			POIs:  pois,
			Cfg:   in.Cfg,
			Model: model,
		})
		days[day] = rebuilt[0]
	}
	return days, nil
}

// fullTour re-optimizes the entire POI set, with the constraint optimizer
// when the original plan used it.
func fullTour(ctx context.Context, in Input, dayOrders [][]string, model *distancecache.Model) ([]types.DayPlan, types.SolverStatus, error) {
	var flat []string
	for _, order := range dayOrders {
		flat = append(flat, order...)
	}
	pois := poisFor(in.Request.CandidatePOIs, flat)

	hIn := heuristic.Input{
		POIs:          pois,
		MustInclude:   in.Request.MustInclude,
		StartLocation: in.Request.StartLocation,
		EndLocation:   in.Request.EndLocation,
		Cfg:           in.Cfg,
		Model:         model,
	}
	tour, err := heuristic.Optimize(ctx, hIn)
	if err != nil {
		return nil, "", fmt.Errorf("full-tour re-optimization: %w", err)
	}

	sIn := schedule.Input{
		Order:               tour.Order,
		POIs:                pois,
		Groups:              in.Groups,
		PerDayBudgetMinutes: in.Request.PerDayBudgetMinutes,
		Cfg:                 in.Cfg,
		Model:               model,
	}

	if in.Request.Mode == types.ModeConstraint {
		res, solveErr := constraint.Solve(ctx, constraint.Input{
			POIs:                pois,
			Groups:              in.Groups,
			Days:                in.Request.Days,
			PerDayBudgetMinutes: in.Request.PerDayBudgetMinutes,
			StartDate:           in.Request.StartDate,
			StartLocation:       in.Request.StartLocation,
			EndLocation:         in.Request.EndLocation,
			Cfg:                 in.Cfg,
			Model:               model,
		}, tour.Order)
		if solveErr == nil {
			return schedule.BuildDays(res.DayOrders, sIn), res.Status, nil
		}
		if errors.Is(solveErr, constraint.ErrNoFeasibleSolution) {
			in.Logger.WarnContext(ctx, "constraint re-solve infeasible, falling back to heuristic")
			return schedule.Partition(sIn), types.StatusFallback, nil
		}
		return nil, "", fmt.Errorf("full-tour constraint re-optimization: %w", solveErr)
	}

	return schedule.Partition(sIn), types.StatusFeasible, nil
}

func assemble(days []types.DayPlan, in Input, model *distancecache.Model, status types.SolverStatus, byID map[string]*types.POI) *types.Itinerary {
	var flat []string
	for _, plan := range days {
		for _, stop := range plan.Stops {
			flat = append(flat, stop.PoiID)
		}
	}
	distScore, cohScore, overall := heuristic.Score(flat, in.Cfg, model, byID)

	return &types.Itinerary{
		ID:   uuid.New(),
		Days: days,
		Scores: types.Scores{
			Distance:  distScore,
			Coherence: cohScore,
			Overall:   overall,
		},
		SolverStatus: status,
		Violations:   schedule.Violations(days, in.Request.CandidatePOIs, in.Groups, in.Request.Days, in.Request.PerDayBudgetMinutes, in.Cfg),
		CreatedAt:    time.Now().UTC(),
	}
}

func poisFor(candidates []types.POI, ids []string) []types.POI {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]types.POI, 0, len(ids))
	for _, poi := range candidates {
		if wanted[poi.ID] {
			out = append(out, poi)
		}
	}
	return out
}

func copyDays(days []types.DayPlan) []types.DayPlan {
	out := make([]types.DayPlan, len(days))
	for i, d := range days {
		out[i] = types.DayPlan{
			Stops:          append([]types.Stop{}, d.Stops...),
			TotalHours:     d.TotalHours,
			TotalWalkingKm: d.TotalWalkingKm,
		}
	}
	return out
}
