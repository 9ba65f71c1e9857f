// Package heuristic builds visiting sequences with a greedy
// most-coherent-nearest-next rule followed by 2-opt local search. It is the
// fast planning path and the fallback for the constraint optimizer.
package heuristic

import (
	"context"
	"sort"

	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/distancecache"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

// Input is the optimizer's working set. POIs are the eligible candidates,
// already filtered by the external candidate selector. StartLocation and
// EndLocation are optional hints that bias the tour's first and last stops.
type Input struct {
	POIs          []types.POI
	MustInclude   []string
	StartLocation *types.Coordinates
	EndLocation   *types.Coordinates
	Cfg           config.PlannerConfig
	Model         *distancecache.Model
}

// Tour is a flat ordered visiting sequence, not yet day-partitioned.
type Tour struct {
	Order          []string
	DistanceScore  float64
	CoherenceScore float64
	WeightedScore  float64
}

// Optimize builds a complete sequence over all input POIs. Deterministic for
// identical inputs; an empty candidate list yields an empty tour.
func Optimize(ctx context.Context, in Input) (Tour, error) {
	if len(in.POIs) == 0 {
		return Tour{}, nil
	}

	byID := indexByID(in.POIs)
	order := greedySequence(in, byID)
	order = twoOpt(ctx, order, in, byID)

	tour := Tour{Order: order}
	tour.DistanceScore, tour.CoherenceScore, tour.WeightedScore = Score(order, in.Cfg, in.Model, byID)
	return tour, nil
}

// ImproveSegment runs 2-opt restricted to an existing order, reusing the
// cached distances. Used by the incremental re-optimizer's local-swap tier.
func ImproveSegment(ctx context.Context, order []string, in Input) []string {
	return twoOpt(ctx, order, in, indexByID(in.POIs))
}

// Score computes the per-edge averaged distance and coherence scores of a
// sequence plus their configured weighting, each in [0,1]. A sequence with
// fewer than two stops scores perfectly by convention.
func Score(order []string, cfg config.PlannerConfig, model *distancecache.Model, byID map[string]*types.POI) (distScore, cohScore, weighted float64) {
	if len(order) < 2 {
		return 1, 1, 1
	}
	edges := float64(len(order) - 1)
	for i := 0; i < len(order)-1; i++ {
		a, b := byID[order[i]], byID[order[i+1]]
		distScore += model.NormalizedDistanceScore(a, b)
		cohScore += model.Coherence(a, b)
	}
	distScore /= edges
	cohScore /= edges
	weighted = cfg.DistanceWeight*distScore + cfg.CoherenceWeight*cohScore
	return distScore, cohScore, weighted
}

func indexByID(pois []types.POI) map[string]*types.POI {
	byID := make(map[string]*types.POI, len(pois))
	for i := range pois {
		byID[pois[i].ID] = &pois[i]
	}
	return byID
}

// greedySequence seeds with the must-include POI holding the earliest
// approximate date and repeatedly appends the highest scoring unplaced
// candidate. Ties break by smaller id for determinism. Without must-include
// POIs a start-location hint picks the nearest candidate as seed instead.
func greedySequence(in Input, byID map[string]*types.POI) []string {
	seedPool := in.MustInclude
	if len(seedPool) == 0 {
		seedPool = make([]string, 0, len(in.POIs))
		for _, p := range in.POIs {
			seedPool = append(seedPool, p.ID)
		}
	}

	var seed string
	if len(in.MustInclude) == 0 && in.StartLocation != nil {
		seed = nearestToPoint(*in.StartLocation, seedPool, byID, in.Model)
	} else {
		seed = earliestByDate(seedPool, byID)
	}

	placed := map[string]bool{seed: true}
	order := []string{seed}

	for len(order) < len(in.POIs) {
		current := byID[order[len(order)-1]]

		bestID := ""
		bestScore := -1.0
		for _, cand := range in.POIs {
			if placed[cand.ID] {
				continue
			}
			score := in.Cfg.DistanceWeight*in.Model.NormalizedDistanceScore(current, byID[cand.ID]) +
				in.Cfg.CoherenceWeight*in.Model.Coherence(current, byID[cand.ID])
			if score > bestScore || (score == bestScore && cand.ID < bestID) {
				bestScore = score
				bestID = cand.ID
			}
		}
		placed[bestID] = true
		order = append(order, bestID)
	}
	return order
}

// nearestToPoint picks the id closest to the given coordinate, ties broken by
// smaller id.
func nearestToPoint(c types.Coordinates, ids []string, byID map[string]*types.POI, model *distancecache.Model) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	best := sorted[0]
	bestScore := model.PointScore(c, byID[best])
	for _, id := range sorted[1:] {
		if score := model.PointScore(c, byID[id]); score > bestScore {
			best = id
			bestScore = score
		}
	}
	return best
}

// earliestByDate picks the id with the smallest ApproxYear, falling back to
// the lexicographically first id when no dates are available.
func earliestByDate(ids []string, byID map[string]*types.POI) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	best := ""
	for _, id := range sorted {
		p, ok := byID[id]
		if !ok || p.ApproxYear == nil {
			continue
		}
		if best == "" || *p.ApproxYear < *byID[best].ApproxYear {
			best = id
		}
	}
	if best == "" {
		return sorted[0]
	}
	return best
}

// objective is the 2-opt comparison score: the weighted sequence score with
// the start/end location hints folded in as additional distance-only edges.
// Without hints it equals the weighted Score, so reported scores stay pure
// per-edge averages.
func objective(order []string, in Input, byID map[string]*types.POI) float64 {
	if len(order) == 0 {
		return 1
	}

	distSum, cohSum := 0.0, 0.0
	distEdges, cohEdges := 0.0, 0.0
	for i := 0; i < len(order)-1; i++ {
		a, b := byID[order[i]], byID[order[i+1]]
		distSum += in.Model.NormalizedDistanceScore(a, b)
		cohSum += in.Model.Coherence(a, b)
		distEdges++
		cohEdges++
	}
	if in.StartLocation != nil {
		distSum += in.Model.PointScore(*in.StartLocation, byID[order[0]])
		distEdges++
	}
	if in.EndLocation != nil {
		distSum += in.Model.PointScore(*in.EndLocation, byID[order[len(order)-1]])
		distEdges++
	}

	distScore, cohScore := 1.0, 1.0
	if distEdges > 0 {
		distScore = distSum / distEdges
	}
	if cohEdges > 0 {
		cohScore = cohSum / cohEdges
	}
	return in.Cfg.DistanceWeight*distScore + in.Cfg.CoherenceWeight*cohScore
}

// twoOpt repeatedly reverses contiguous subsequences and keeps strictly
// improving reversals, stopping at the configured pass limit or when a full
// pass finds no improvement. Coherence is directional, so a reversal changes
// every interior edge and the candidate score is recomputed outright.
func twoOpt(ctx context.Context, order []string, in Input, byID map[string]*types.POI) []string {
	if len(order) < 3 {
		return order
	}

	current := append([]string(nil), order...)
	currentScore := objective(current, in, byID)

	maxPasses := in.Cfg.TwoOptMaxPasses
	if maxPasses <= 0 {
		maxPasses = 1
	}

	for pass := 0; pass < maxPasses; pass++ {
		improved := false
		for i := 0; i < len(current)-1; i++ {
			for j := i + 1; j < len(current); j++ {
				if ctx.Err() != nil {
					return current
				}
				candidate := reversed(current, i, j)
				score := objective(candidate, in, byID)
				if score > currentScore {
					current = candidate
					currentScore = score
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return current
}

func reversed(order []string, i, j int) []string {
	out := append([]string(nil), order...)
	for lo, hi := i, j; lo < hi; lo, hi = lo+1, hi-1 {
		out[lo], out[hi] = out[hi], out[lo]
	}
	return out
}
