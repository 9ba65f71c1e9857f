// Package schedule partitions a flat visiting sequence into day-buckets
// under a per-day time budget, keeping same-day combo ticket groups intact.
package schedule

import (
	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/distancecache"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

// Input carries everything needed to day-partition a sequence.
type Input struct {
	Order               []string
	POIs                []types.POI
	Groups              []types.ComboTicketGroup
	PerDayBudgetMinutes int
	Cfg                 config.PlannerConfig
	Model               *distancecache.Model
}

// day accumulates one day-bucket while walking the sequence. Walk distances
// are tracked per stop so a rollback can rebuild the day's totals exactly.
type day struct {
	stops   []types.Stop
	walkKms []float64
}

func (d *day) elapsedMinutes() float64 {
	total := 0.0
	for _, s := range d.stops {
		total += s.WalkFromPreviousMinutes + float64(s.DurationMinutes)
	}
	return total
}

func (d *day) walkingKm() float64 {
	total := 0.0
	for _, km := range d.walkKms {
		total += km
	}
	return total
}

func (d *day) toPlan() types.DayPlan {
	return types.DayPlan{
		Stops:          append([]types.Stop{}, d.stops...),
		TotalHours:     d.elapsedMinutes() / 60,
		TotalWalkingKm: d.walkingKm(),
	}
}

// truncate drops the stops from position first onward and reports how many
// were removed.
func (d *day) truncate(first int) int {
	removed := len(d.stops) - first
	d.stops = d.stops[:first]
	d.walkKms = d.walkKms[:first]
	return removed
}

// Partition walks the sequence accumulating visit and walking time and closes
// the current day when the next stop would exceed the budget. An already
// scheduled stop is never removed to fit: the stop that triggers the overflow
// check lands at the start of the next day. Same-day combo groups are never
// split across the boundary; when a group member would overflow, the day
// closes before the group's first member instead of mid-group.
func Partition(in Input) []types.DayPlan {
	if len(in.Order) == 0 {
		return nil
	}

	budget := in.PerDayBudgetMinutes
	if budget <= 0 {
		budget = in.Cfg.PerDayBudgetMinutes
	}

	byID := make(map[string]*types.POI, len(in.POIs))
	for i := range in.POIs {
		byID[in.POIs[i].ID] = &in.POIs[i]
	}
	groupOf := sameDayGroupIndex(in.Groups)

	var plans []types.DayPlan
	current := &day{}

	for idx := 0; idx < len(in.Order); idx++ {
		poi := byID[in.Order[idx]]

		walkMinutes := 0.0
		walkKm := 0.0
		if len(current.stops) > 0 {
			prev := byID[current.stops[len(current.stops)-1].PoiID]
			entry := in.Model.Distance(prev, poi)
			walkMinutes = entry.DurationMinutes
			walkKm = entry.DistanceKm
		}

		overflow := len(current.stops) > 0 &&
			current.elapsedMinutes()+walkMinutes+float64(poi.DurationMinutes) > float64(budget)
		if overflow {
			// If the overflowing stop belongs to a same-day group already
			// started in this day, roll the whole group over to the next day
			// rather than splitting it at the boundary.
			if gid, ok := groupOf[poi.ID]; ok {
				if first := firstGroupMemberInDay(current, groupOf, gid); first > 0 {
					idx -= current.truncate(first)
				}
			}
			plans = append(plans, current.toPlan())
			current = &day{}
			idx--
			continue
		}

		current.stops = append(current.stops, types.Stop{
			PoiID:                   poi.ID,
			ArrivalEstimateMinutes:  int(current.elapsedMinutes() + walkMinutes),
			DurationMinutes:         poi.DurationMinutes,
			WalkFromPreviousMinutes: walkMinutes,
		})
		current.walkKms = append(current.walkKms, walkKm)
	}
	plans = append(plans, current.toPlan())

	return plans
}

// BuildDays assembles day plans from explicit per-day orders, as chosen by
// the constraint solver, using the same arrival accounting as Partition. The
// solver may close a day earlier than the budget requires (e.g. for opening
// hours), so its boundaries are preserved rather than re-derived.
func BuildDays(dayOrders [][]string, in Input) []types.DayPlan {
	byID := make(map[string]*types.POI, len(in.POIs))
	for i := range in.POIs {
		byID[in.POIs[i].ID] = &in.POIs[i]
	}

	plans := make([]types.DayPlan, 0, len(dayOrders))
	for _, order := range dayOrders {
		d := &day{}
		for _, id := range order {
			poi := byID[id]
			walkMinutes := 0.0
			walkKm := 0.0
			if len(d.stops) > 0 {
				prev := byID[d.stops[len(d.stops)-1].PoiID]
				entry := in.Model.Distance(prev, poi)
				walkMinutes = entry.DurationMinutes
				walkKm = entry.DistanceKm
			}
			d.stops = append(d.stops, types.Stop{
				PoiID:                   poi.ID,
				ArrivalEstimateMinutes:  int(d.elapsedMinutes() + walkMinutes),
				DurationMinutes:         poi.DurationMinutes,
				WalkFromPreviousMinutes: walkMinutes,
			})
			d.walkKms = append(d.walkKms, walkKm)
		}
		plans = append(plans, d.toPlan())
	}
	return plans
}

// sameDayGroupIndex maps each member POI id to its sameDayRequired group id.
func sameDayGroupIndex(groups []types.ComboTicketGroup) map[string]string {
	out := make(map[string]string)
	for _, g := range groups {
		if !g.SameDayRequired {
			continue
		}
		for _, member := range g.Members {
			out[member] = g.ID
		}
	}
	return out
}

// firstGroupMemberInDay returns the position of the earliest stop in the day
// belonging to the given group, or -1 when none is placed yet.
func firstGroupMemberInDay(d *day, groupOf map[string]string, gid string) int {
	for i, stop := range d.stops {
		if groupOf[stop.PoiID] == gid {
			return i
		}
	}
	return -1
}
