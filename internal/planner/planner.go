// Package planner orchestrates the itinerary optimization pipeline:
// validation, distance/coherence modeling, optimizer selection, day
// partitioning and score aggregation. It is a pure library surface; every
// call owns its candidate list, cache slice and result, so concurrent
// planning requests never share mutable state.
package planner

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
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/reopt"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/schedule"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

var (
	ErrEmptyCandidates    = errors.New("planner: candidate POI list is empty")
	ErrUnknownMustInclude = errors.New("planner: must-include POI not in candidate list")
	ErrInvalidDays        = errors.New("planner: days must be at least 1")
)

// PlanResult bundles the itinerary with the distance-cache snapshot the
// persistence layer stores alongside it.
type PlanResult struct {
	Itinerary     *types.Itinerary
	DistanceCache map[string]types.DistanceEntry
}

type Planner struct {
	cfg    config.PlannerConfig
	logger *slog.Logger
}

func New(cfg config.PlannerConfig, logger *slog.Logger) *Planner {
	return &Planner{cfg: cfg, logger: logger}
}

// Plan validates the request and runs the full pipeline. Once validation
// passes, a plan is always produced: constraint-mode infeasibility degrades
// to the heuristic result instead of failing.
func (p *Planner) Plan(ctx context.Context, req types.PlanningRequest) (*PlanResult, error) {
	return p.plan(ctx, req, nil)
}

// PlanWithCache is Plan with a persisted distance cache preloaded; cache
// entries already present are reused, never recomputed.
func (p *Planner) PlanWithCache(ctx context.Context, req types.PlanningRequest, cache map[string]types.DistanceEntry) (*PlanResult, error) {
	return p.plan(ctx, req, cache)
}

func (p *Planner) plan(ctx context.Context, req types.PlanningRequest, cache map[string]types.DistanceEntry) (*PlanResult, error) {
	groups, warnings, err := p.validate(ctx, &req)
	if err != nil {
		return nil, err
	}

	model := distancecache.NewModel(p.cfg)
	if len(cache) > 0 {
		model.Preload(cache)
	}

	hIn := heuristic.Input{
		POIs:          req.CandidatePOIs,
		MustInclude:   req.MustInclude,
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		Cfg:           p.cfg,
		Model:         model,
	}
	tour, err := heuristic.Optimize(ctx, hIn)
	if err != nil {
		return nil, fmt.Errorf("heuristic optimization: %w", err)
	}

	sIn := schedule.Input{
		Order:               tour.Order,
		POIs:                req.CandidatePOIs,
		Groups:              groups,
		PerDayBudgetMinutes: req.PerDayBudgetMinutes,
		Cfg:                 p.cfg,
		Model:               model,
	}

	var days []types.DayPlan
	status := types.StatusFeasible
	order := tour.Order

	if req.Mode == types.ModeConstraint {
		res, solveErr := constraint.Solve(ctx, constraint.Input{
			POIs:                req.CandidatePOIs,
			Groups:              groups,
			Days:                req.Days,
			PerDayBudgetMinutes: req.PerDayBudgetMinutes,
			StartDate:           req.StartDate,
			StartLocation:       req.StartLocation,
			EndLocation:         req.EndLocation,
			Cfg:                 p.cfg,
			Model:               model,
		}, tour.Order)
		switch {
		case solveErr == nil:
			order = res.Order
			days = schedule.BuildDays(res.DayOrders, sIn)
			status = res.Status
		case errors.Is(solveErr, constraint.ErrNoFeasibleSolution):
			p.logger.WarnContext(ctx, "constraint solve found no feasible assignment, falling back to heuristic",
				slog.Int("candidates", len(req.CandidatePOIs)))
			days = schedule.Partition(sIn)
			status = types.StatusFallback
		default:
			return nil, fmt.Errorf("constraint optimization: %w", solveErr)
		}
	} else {
		days = schedule.Partition(sIn)
	}

	itinerary := p.assemble(order, days, req, groups, warnings, model, status)
	return &PlanResult{
		Itinerary:     itinerary,
		DistanceCache: model.Snapshot(),
	}, nil
}

// Replan chooses the cheapest sufficient re-optimization tier for a set of
// POI substitutions against a saved itinerary, reusing the persisted cache.
func (p *Planner) Replan(ctx context.Context, saved *types.Itinerary, subs []types.Replacement, req types.PlanningRequest, cache map[string]types.DistanceEntry) (*types.ReoptimizeResult, error) {
	groups, _, err := p.validate(ctx, &req)
	if err != nil {
		return nil, err
	}
	return reopt.Reoptimize(ctx, reopt.Input{
		Saved:   saved,
		Subs:    subs,
		Request: req,
		Groups:  groups,
		Cache:   cache,
		Cfg:     p.cfg,
		Logger:  p.logger,
	})
}

// validate applies the input-error taxonomy: hard errors reject the request
// before optimization, unenforceable combo groups are dropped with a warning
// that is carried onto the result, never silently.
func (p *Planner) validate(ctx context.Context, req *types.PlanningRequest) ([]types.ComboTicketGroup, []string, error) {
	if len(req.CandidatePOIs) == 0 {
		return nil, nil, ErrEmptyCandidates
	}
	if req.Days <= 0 {
		return nil, nil, ErrInvalidDays
	}

	candidates := make(map[string]bool, len(req.CandidatePOIs))
	for _, poi := range req.CandidatePOIs {
		candidates[poi.ID] = true
	}
	for _, id := range req.MustInclude {
		if !candidates[id] {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownMustInclude, id)
		}
	}

	var warnings []string
	groups := make([]types.ComboTicketGroup, 0, len(req.ComboGroups))
	for _, g := range req.ComboGroups {
		resolvable := 0
		for _, member := range g.Members {
			if candidates[member] {
				resolvable++
			}
		}
		if resolvable < 2 {
			warning := fmt.Sprintf("combo group %s dropped: only %d of %d members are eligible candidates", g.ID, resolvable, len(g.Members))
			p.logger.WarnContext(ctx, "dropping unenforceable combo group",
				slog.String("group_id", g.ID),
				slog.Int("resolvable_members", resolvable))
			warnings = append(warnings, warning)
			continue
		}
		groups = append(groups, g)
	}
	return groups, warnings, nil
}

func (p *Planner) assemble(order []string, days []types.DayPlan, req types.PlanningRequest, groups []types.ComboTicketGroup, warnings []string, model *distancecache.Model, status types.SolverStatus) *types.Itinerary {
	byID := make(map[string]*types.POI, len(req.CandidatePOIs))
	for i := range req.CandidatePOIs {
		byID[req.CandidatePOIs[i].ID] = &req.CandidatePOIs[i]
	}
	distScore, cohScore, overall := heuristic.Score(order, p.cfg, model, byID)

	violations := append([]string(nil), warnings...)
	violations = append(violations, schedule.Violations(days, req.CandidatePOIs, groups, req.Days, req.PerDayBudgetMinutes, p.cfg)...)

	return &types.Itinerary{
		ID:   uuid.New(),
		Days: days,
		Scores: types.Scores{
			Distance:  distScore,
			Coherence: cohScore,
			Overall:   overall,
		},
		SolverStatus: status,
		Violations:   violations,
		CreatedAt:    time.Now().UTC(),
	}
}
