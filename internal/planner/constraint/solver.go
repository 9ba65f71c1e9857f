package constraint

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

// ErrNoFeasibleSolution is returned when the search exhausts or times out
// without a single feasible assignment. Callers fall back to the heuristic
// optimizer; this is a documented degraded-mode path, not a failure.
var ErrNoFeasibleSolution = errors.New("constraint: no feasible solution")

// Result is the outcome of a constraint solve. DayOrders preserves the
// solver's own day boundaries, which may close a day early to satisfy
// opening-hour windows.
type Result struct {
	Order     []string
	DayOrders [][]string
	Status    types.SolverStatus
	Cost      float64
}

// searchState is the mutable DFS state. One instance per solve call.
type searchState struct {
	m        *model
	deadline time.Time
	ctx      context.Context

	seq         []int
	dayOf       []int // -1 while unplaced
	dayStartPos int   // position in seq where the current day begins
	currentDay  int
	elapsed     float64 // minutes used in the current day
	cost        float64

	incumbent     []int
	incumbentDays []int
	incumbentCost float64
	haveIncumbent bool

	nodes    int
	timedOut bool
}

// Solve builds the per-request model and runs a depth-first branch-and-bound
// under the configured wall-clock budget, warm-started with the heuristic
// tour.
func Solve(ctx context.Context, in Input, warmStart []string) (Result, error) {
	m := buildModel(in)
	if len(m.pois) == 0 {
		return Result{Status: types.StatusOptimal}, nil
	}

	s := &searchState{
		m:             m,
		ctx:           ctx,
		deadline:      time.Now().Add(in.Cfg.SolverBudget),
		dayOf:         make([]int, len(m.pois)),
		incumbentCost: math.Inf(1),
	}
	for i := range s.dayOf {
		s.dayOf[i] = -1
	}

	s.seedIncumbent(warmStart)
	rootBound := s.remainingBound()
	s.dfs()

	if !s.haveIncumbent {
		return Result{Status: types.StatusInfeasible}, ErrNoFeasibleSolution
	}

	status := types.StatusFeasible
	switch {
	case !s.timedOut:
		status = types.StatusOptimal
	case withinGap(s.incumbentCost, rootBound, in.Cfg.RelativeGap):
		status = types.StatusOptimal
	}

	return Result{
		Order:     s.orderIDs(s.incumbent),
		DayOrders: s.splitDays(s.incumbent, s.incumbentDays),
		Status:    status,
		Cost:      s.incumbentCost,
	}, nil
}

func withinGap(incumbent, lowerBound, gap float64) bool {
	if incumbent <= lowerBound {
		return true
	}
	if incumbent == 0 {
		return false
	}
	return (incumbent-lowerBound)/incumbent <= gap
}

// seedIncumbent simulates the warm-start tour through the model's hard
// constraints; a warm start that violates them simply leaves the search
// without an initial incumbent.
func (s *searchState) seedIncumbent(warmStart []string) {
	if len(warmStart) != len(s.m.pois) {
		return
	}
	day := 0
	elapsed := 0.0
	cost := 0.0
	placed := make(map[int]bool, len(warmStart))
	seq := make([]int, 0, len(warmStart))
	days := make([]int, 0, len(warmStart))
	dayOf := make([]int, len(s.m.pois))
	for i := range dayOf {
		dayOf[i] = -1
	}
	dayStart := 0

	for _, id := range warmStart {
		idx, ok := s.m.index[id]
		if !ok {
			return
		}
		walk := 0.0
		if len(seq) > dayStart {
			walk = s.m.walkMinutes[seq[len(seq)-1]][idx]
		}
		if len(seq) > dayStart && elapsed+walk+float64(s.m.pois[idx].DurationMinutes) > s.m.budget {
			if !s.canCloseDayWith(dayOf, day) {
				return
			}
			day++
			if day >= s.m.days {
				return
			}
			elapsed = 0
			walk = 0
			dayStart = len(seq)
		}
		if !s.placementValid(idx, day, elapsed+walk, seq, dayStart, placed, dayOf) {
			return
		}
		if len(seq) > dayStart {
			cost += s.m.edgeCost[seq[len(seq)-1]][idx]
		} else if len(seq) == 0 {
			cost += s.m.startCost[idx]
		}
		elapsed += walk + float64(s.m.pois[idx].DurationMinutes)
		seq = append(seq, idx)
		days = append(days, day)
		placed[idx] = true
		dayOf[idx] = day
	}

	s.incumbent = seq
	s.incumbentDays = days
	s.incumbentCost = cost + s.m.endCost[seq[len(seq)-1]]
	s.haveIncumbent = true
}

func (s *searchState) dfs() {
	s.nodes++
	if s.nodes%256 == 0 {
		if time.Now().After(s.deadline) || s.ctx.Err() != nil {
			s.timedOut = true
		}
	}
	if s.timedOut {
		return
	}

	if len(s.seq) == len(s.m.pois) {
		total := s.cost + s.m.endCost[s.seq[len(s.seq)-1]]
		if total < s.incumbentCost {
			s.incumbent = append([]int(nil), s.seq...)
			s.incumbentDays = s.daysOfSeq()
			s.incumbentCost = total
			s.haveIncumbent = true
		}
		return
	}

	if s.cost+s.remainingBound() >= s.incumbentCost {
		return
	}

	// Placement decisions, in index order for determinism.
	for idx := range s.m.pois {
		if s.dayOf[idx] >= 0 {
			continue
		}
		walk := 0.0
		prev := -1
		if len(s.seq) > s.dayStartPos {
			prev = s.seq[len(s.seq)-1]
			walk = s.m.walkMinutes[prev][idx]
		}
		if len(s.seq) > s.dayStartPos && s.elapsed+walk+float64(s.m.pois[idx].DurationMinutes) > s.m.budget {
			continue
		}
		if !s.placementValidState(idx, walk) {
			continue
		}

		edge := 0.0
		if prev >= 0 {
			edge = s.m.edgeCost[prev][idx]
		} else if len(s.seq) == 0 {
			edge = s.m.startCost[idx]
		}
		savedElapsed := s.elapsed
		s.seq = append(s.seq, idx)
		s.dayOf[idx] = s.currentDay
		s.elapsed += walk + float64(s.m.pois[idx].DurationMinutes)
		s.cost += edge

		s.dfs()

		s.cost -= edge
		s.elapsed = savedElapsed
		s.dayOf[idx] = -1
		s.seq = s.seq[:len(s.seq)-1]
		if s.timedOut {
			return
		}
	}

	// Day-close decision: start the next day, provided one exists, the
	// current day holds at least one stop, and no same-day group straddles
	// the boundary.
	if s.currentDay+1 < s.m.days && len(s.seq) > s.dayStartPos && s.canCloseDayWith(s.dayOf, s.currentDay) {
		savedStart := s.dayStartPos
		savedElapsed := s.elapsed
		s.currentDay++
		s.dayStartPos = len(s.seq)
		s.elapsed = 0

		s.dfs()

		s.elapsed = savedElapsed
		s.dayStartPos = savedStart
		s.currentDay--
	}
}

// placementValidState checks the constraints for appending idx at the current
// search position.
func (s *searchState) placementValidState(idx int, walk float64) bool {
	for _, before := range s.m.mustPrecede[idx] {
		if s.dayOf[before] < 0 {
			return false
		}
	}
	if !s.m.openAt(idx, s.currentDay, s.elapsed+walk) {
		return false
	}
	return s.groupPlacementValid(idx, s.currentDay, s.seq, s.dayStartPos, s.dayOf)
}

// placementValid is the warm-start simulation variant operating on explicit
// state rather than the DFS fields.
func (s *searchState) placementValid(idx, day int, arrival float64, seq []int, dayStart int, placed map[int]bool, dayOf []int) bool {
	for _, before := range s.m.mustPrecede[idx] {
		if !placed[before] {
			return false
		}
	}
	if !s.m.openAt(idx, day, arrival) {
		return false
	}
	return s.groupPlacementValid(idx, day, seq, dayStart, dayOf)
}

func (s *searchState) groupPlacementValid(idx, day int, seq []int, dayStart int, dayOf []int) bool {
	g := s.m.groupOf[idx]

	// A mustVisitTogether group in progress pins the next placement to the
	// group until it completes.
	if len(seq) > dayStart {
		last := seq[len(seq)-1]
		if lg := s.m.groupOf[last]; lg != nil && lg.together && !s.groupComplete(lg, dayOf) {
			if g != lg {
				return false
			}
		}
	}

	if g == nil {
		return true
	}
	if g.sameDay {
		for _, member := range g.members {
			if dayOf[member] >= 0 && dayOf[member] != day {
				return false
			}
		}
	}
	if g.order == types.VisitOrderFixed || g.order == types.VisitOrderChronological {
		// Members must appear in the group's canonical order.
		reached := false
		for i := len(g.members) - 1; i >= 0; i-- {
			member := g.members[i]
			if member == idx {
				reached = true
				continue
			}
			if reached && dayOf[member] < 0 {
				return false
			}
		}
	}
	if g.together && len(seq) > dayStart {
		// Starting or continuing the group mid-day requires the previous
		// stop to be a member once any member is already placed.
		anyPlaced := false
		for _, member := range g.members {
			if dayOf[member] >= 0 {
				anyPlaced = true
				break
			}
		}
		if anyPlaced && !g.memberSet[seq[len(seq)-1]] {
			return false
		}
	}
	return true
}

func (s *searchState) groupComplete(g *group, dayOf []int) bool {
	for _, member := range g.members {
		if dayOf[member] < 0 {
			return false
		}
	}
	return true
}

// canCloseDayWith rejects a day boundary that would strand part of a
// same-day group: members already placed today with members still unplaced.
func (s *searchState) canCloseDayWith(dayOf []int, day int) bool {
	for i := range s.m.groups {
		g := &s.m.groups[i]
		if !g.sameDay {
			continue
		}
		placedToday := false
		unplaced := false
		for _, member := range g.members {
			switch {
			case dayOf[member] == day:
				placedToday = true
			case dayOf[member] < 0:
				unplaced = true
			}
		}
		if placedToday && unplaced {
			return false
		}
	}
	return true
}

// remainingBound is an admissible lower bound on the cost still to be paid:
// each unplaced POI needs an inbound edge except those that will open a day.
func (s *searchState) remainingBound() float64 {
	unplaced := make([]float64, 0, len(s.m.pois))
	for idx := range s.m.pois {
		if s.dayOf[idx] < 0 {
			unplaced = append(unplaced, s.m.minInbound[idx])
		}
	}
	if len(unplaced) == 0 {
		return 0
	}
	starts := s.m.days - s.currentDay - 1
	if len(s.seq) == s.dayStartPos {
		starts++
	}
	if starts >= len(unplaced) {
		return 0
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(unplaced)))
	total := 0.0
	for _, c := range unplaced[starts:] {
		total += c
	}
	return total
}

func (s *searchState) daysOfSeq() []int {
	days := make([]int, len(s.seq))
	for pos, idx := range s.seq {
		days[pos] = s.dayOf[idx]
	}
	return days
}

func (s *searchState) orderIDs(seq []int) []string {
	out := make([]string, len(seq))
	for i, idx := range seq {
		out[i] = s.m.pois[idx].ID
	}
	return out
}

func (s *searchState) splitDays(seq, days []int) [][]string {
	if len(seq) == 0 {
		return nil
	}
	out := [][]string{}
	current := []string{}
	for pos, idx := range seq {
		if pos > 0 && days[pos] != days[pos-1] {
			out = append(out, current)
			current = []string{}
		}
		current = append(current, s.m.pois[idx].ID)
	}
	out = append(out, current)
	return out
}
