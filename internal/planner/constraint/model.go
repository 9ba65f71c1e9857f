// Package constraint formulates itinerary sequencing as a constrained
// (POI, day, position) assignment problem and solves it with a deterministic
// depth-first branch-and-bound under a wall-clock budget. The model is built
// per planning call and discarded afterwards; there is no shared solver state
// between requests.
package constraint

import (
	"sort"
	"time"

	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/distancecache"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

// Input is the constraint optimizer's problem statement. Every candidate POI
// is required: the external candidate selector has already decided what is
// eligible, so the model assigns each POI exactly one (day, position).
// StartLocation and EndLocation are optional hints that add a walking cost to
// the tour's first and last stops.
type Input struct {
	POIs                []types.POI
	Groups              []types.ComboTicketGroup
	Days                int
	PerDayBudgetMinutes int
	StartDate           *time.Time
	StartLocation       *types.Coordinates
	EndLocation         *types.Coordinates
	Cfg                 config.PlannerConfig
	Model               *distancecache.Model
}

// precedence is a single directional ordering requirement: the POI at index
// Before must be sequenced ahead of the POI at index After.
type precedence struct {
	Before, After int
}

// group is a combo ticket group resolved to POI indices.
type group struct {
	id              string
	members         []int
	memberSet       map[int]bool
	sameDay         bool
	together        bool
	order           types.VisitOrder
	maxSeparationHr *float64
}

// model is the per-request arena: every index, constraint and edge cost the
// search needs, precomputed once.
type model struct {
	cfg    config.PlannerConfig
	pois   []*types.POI
	index  map[string]int
	days   int
	budget float64

	// edgeCost[i][j] is the weighted cost of visiting j directly after i.
	// Lower is better; derived from normalized distance and directional
	// coherence so minimizing total edge cost maximizes the weighted score.
	edgeCost [][]float64
	// walkMinutes[i][j] feeds arrival estimation.
	walkMinutes [][]float64

	// startCost[j] is paid when j opens the tour, endCost[j] when j closes
	// it. Zero without the corresponding location hint.
	startCost []float64
	endCost   []float64

	// minInbound[j] is the cheapest possible inbound edge cost for j,
	// used as the admissible remaining-cost bound during search.
	minInbound []float64

	precedences []precedence
	// mustPrecede[j] lists every index that must be sequenced before j.
	mustPrecede [][]int

	groups     []group
	groupOf    map[int]*group
	dayWeekday func(day int) (time.Weekday, bool)
}

// buildModel assembles the arena. POIs are sorted by id first so the whole
// search is deterministic regardless of input order.
func buildModel(in Input) *model {
	pois := make([]*types.POI, 0, len(in.POIs))
	for i := range in.POIs {
		pois = append(pois, &in.POIs[i])
	}
	sort.Slice(pois, func(i, j int) bool { return pois[i].ID < pois[j].ID })

	m := &model{
		cfg:    in.Cfg,
		pois:   pois,
		index:  make(map[string]int, len(pois)),
		days:   in.Days,
		budget: float64(in.PerDayBudgetMinutes),
	}
	if m.days <= 0 {
		m.days = 1
	}
	if m.budget <= 0 {
		m.budget = float64(in.Cfg.PerDayBudgetMinutes)
	}
	for i, p := range pois {
		m.index[p.ID] = i
	}

	m.buildEdges(in)
	m.buildPrecedences(in)
	m.buildGroups(in)
	m.buildCalendar(in)
	return m
}

func (m *model) buildEdges(in Input) {
	n := len(m.pois)
	m.edgeCost = make([][]float64, n)
	m.walkMinutes = make([][]float64, n)
	m.minInbound = make([]float64, n)
	for i := 0; i < n; i++ {
		m.edgeCost[i] = make([]float64, n)
		m.walkMinutes[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			distScore := in.Model.NormalizedDistanceScore(m.pois[i], m.pois[j])
			coh := in.Model.Coherence(m.pois[i], m.pois[j])
			m.edgeCost[i][j] = in.Cfg.DistanceWeight*(1-distScore) + in.Cfg.CoherenceWeight*(1-coh)
			m.walkMinutes[i][j] = in.Model.Distance(m.pois[i], m.pois[j]).DurationMinutes
		}
	}
	for j := 0; j < n; j++ {
		best := -1.0
		for i := 0; i < n; i++ {
			if i == j {
				continue
			}
			if best < 0 || m.edgeCost[i][j] < best {
				best = m.edgeCost[i][j]
			}
		}
		if best < 0 {
			best = 0
		}
		m.minInbound[j] = best
	}

	m.startCost = make([]float64, n)
	m.endCost = make([]float64, n)
	for j := 0; j < n; j++ {
		if in.StartLocation != nil {
			m.startCost[j] = in.Cfg.DistanceWeight * (1 - in.Model.PointScore(*in.StartLocation, m.pois[j]))
		}
		if in.EndLocation != nil {
			m.endCost[j] = in.Cfg.DistanceWeight * (1 - in.Model.PointScore(*in.EndLocation, m.pois[j]))
		}
	}
}

// buildPrecedences derives ordering constraints from deduplicated directional
// coherence: for each unordered pair, when either direction reaches the
// configured threshold, exactly one constraint is added in the stronger
// direction. Emitting both directions is what made the original formulation
// infeasible, so ties resolve by id order and never produce a second edge.
func (m *model) buildPrecedences(in Input) {
	n := len(m.pois)
	m.mustPrecede = make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			forward := in.Model.Coherence(m.pois[i], m.pois[j])
			backward := in.Model.Coherence(m.pois[j], m.pois[i])
			if forward < in.Cfg.PrecedenceThreshold && backward < in.Cfg.PrecedenceThreshold {
				continue
			}
			if forward >= backward {
				// i sorts before j, so equal strengths keep id order.
				m.precedences = append(m.precedences, precedence{Before: i, After: j})
				m.mustPrecede[j] = append(m.mustPrecede[j], i)
			} else {
				m.precedences = append(m.precedences, precedence{Before: j, After: i})
				m.mustPrecede[i] = append(m.mustPrecede[i], j)
			}
		}
	}
}

func (m *model) buildGroups(in Input) {
	m.groupOf = make(map[int]*group)
	for _, g := range in.Groups {
		resolved := group{
			id:              g.ID,
			memberSet:       make(map[int]bool),
			sameDay:         g.SameDayRequired,
			together:        g.MustVisitTogether,
			order:           g.VisitOrder,
			maxSeparationHr: g.MaxSeparationHours,
		}
		for _, member := range g.Members {
			if idx, ok := m.index[member]; ok {
				resolved.members = append(resolved.members, idx)
				resolved.memberSet[idx] = true
			}
		}
		if len(resolved.members) < 2 {
			// Unenforceable; the planner has already warned about it.
			continue
		}
		if resolved.order == types.VisitOrderChronological {
			sort.Slice(resolved.members, func(a, b int) bool {
				return chronoLess(m.pois[resolved.members[a]], m.pois[resolved.members[b]])
			})
		}
		m.groups = append(m.groups, resolved)
	}
	for i := range m.groups {
		for _, member := range m.groups[i].members {
			m.groupOf[member] = &m.groups[i]
		}
	}
}

func chronoLess(a, b *types.POI) bool {
	switch {
	case a.ApproxYear == nil && b.ApproxYear == nil:
		return a.ID < b.ID
	case a.ApproxYear == nil:
		return false
	case b.ApproxYear == nil:
		return true
	case *a.ApproxYear != *b.ApproxYear:
		return *a.ApproxYear < *b.ApproxYear
	default:
		return a.ID < b.ID
	}
}

// buildCalendar resolves each trip day to a weekday when a start date is
// known. Without one, opening-hour checks accept a time of day that is open
// on any weekday.
func (m *model) buildCalendar(in Input) {
	if in.StartDate == nil {
		m.dayWeekday = func(int) (time.Weekday, bool) { return 0, false }
		return
	}
	start := *in.StartDate
	m.dayWeekday = func(day int) (time.Weekday, bool) {
		return start.AddDate(0, 0, day).Weekday(), true
	}
}

// openAt checks a POI's opening periods against an estimated arrival minute
// (from day start) on a given trip day. Arrival estimates come from the
// actual accumulated durations and walks of preceding same-day stops, never
// a flat per-slot constant.
func (m *model) openAt(poiIdx, day int, arrivalFromDayStart float64) bool {
	poi := m.pois[poiIdx]
	if len(poi.OpeningPeriods) == 0 {
		return true
	}
	minuteOfDay := m.cfg.DayStartMinutes + int(arrivalFromDayStart)
	if weekday, known := m.dayWeekday(day); known {
		return poi.OpenAt(weekday, minuteOfDay)
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if poi.OpenAt(wd, minuteOfDay) {
			return true
		}
	}
	return false
}
