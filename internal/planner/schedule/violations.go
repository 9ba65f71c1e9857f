package schedule

import (
	"fmt"

	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

// Violations reports the soft constraints a day-partitioned itinerary could
// not honor. These never fail a planning call; they are surfaced on the
// itinerary for the caller to judge. A zero perDayBudgetMinutes falls back to
// the configured default.
func Violations(days []types.DayPlan, pois []types.POI, groups []types.ComboTicketGroup, requestedDays, perDayBudgetMinutes int, cfg config.PlannerConfig) []string {
	byID := make(map[string]*types.POI, len(pois))
	for i := range pois {
		byID[pois[i].ID] = &pois[i]
	}

	dayOf := make(map[string]int)
	arrivalOf := make(map[string]int)
	for d, plan := range days {
		for _, stop := range plan.Stops {
			dayOf[stop.PoiID] = d
			arrivalOf[stop.PoiID] = stop.ArrivalEstimateMinutes
		}
	}

	var out []string

	if requestedDays > 0 && len(days) > requestedDays {
		out = append(out, fmt.Sprintf("itinerary needs %d days but %d were requested", len(days), requestedDays))
	}

	// A single stop longer than the whole budget is allowed to stand alone;
	// only multi-stop days are held to the budget. Re-optimization can
	// overrun it by splicing a longer replacement into a full day.
	budget := perDayBudgetMinutes
	if budget <= 0 {
		budget = cfg.PerDayBudgetMinutes
	}
	for d, plan := range days {
		if len(plan.Stops) > 1 && plan.TotalHours*60 > float64(budget) {
			out = append(out, fmt.Sprintf("day %d exceeds the per-day budget of %d minutes", d+1, budget))
		}
	}

	for _, g := range groups {
		scheduled := make([]string, 0, len(g.Members))
		for _, member := range g.Members {
			if _, ok := dayOf[member]; ok {
				scheduled = append(scheduled, member)
			}
		}
		if len(scheduled) < 2 {
			continue
		}

		if g.SameDayRequired {
			first := dayOf[scheduled[0]]
			for _, member := range scheduled[1:] {
				if dayOf[member] != first {
					out = append(out, fmt.Sprintf("combo group %s spans multiple days", g.ID))
					break
				}
			}
		}

		if g.MaxSeparationHours != nil {
			minArrival, maxArrival := arrivalOf[scheduled[0]], arrivalOf[scheduled[0]]
			sameDay := true
			for _, member := range scheduled[1:] {
				if dayOf[member] != dayOf[scheduled[0]] {
					sameDay = false
					break
				}
				if arrivalOf[member] < minArrival {
					minArrival = arrivalOf[member]
				}
				if arrivalOf[member] > maxArrival {
					maxArrival = arrivalOf[member]
				}
			}
			switch {
			case !sameDay && !g.SameDayRequired:
				// Members on different days are always further apart than
				// any separation limit. The sameDayRequired case is already
				// reported above.
				out = append(out, fmt.Sprintf("combo group %s spans multiple days, exceeding max separation of %.1f hours", g.ID, *g.MaxSeparationHours))
			case sameDay && float64(maxArrival-minArrival) > *g.MaxSeparationHours*60:
				out = append(out, fmt.Sprintf("combo group %s exceeds max separation of %.1f hours", g.ID, *g.MaxSeparationHours))
			}
		}
	}

	// Booking preferred windows are advisory; a stop landing outside every
	// window is recorded, not rescheduled.
	for _, plan := range days {
		for _, stop := range plan.Stops {
			poi, ok := byID[stop.PoiID]
			if !ok || poi.Booking == nil || len(poi.Booking.PreferredWindows) == 0 {
				continue
			}
			minuteOfDay := cfg.DayStartMinutes + stop.ArrivalEstimateMinutes
			inWindow := false
			for _, w := range poi.Booking.PreferredWindows {
				if minuteOfDay >= w.StartMinutes && minuteOfDay <= w.EndMinutes {
					inWindow = true
					break
				}
			}
			if !inWindow {
				out = append(out, fmt.Sprintf("poi %s arrival falls outside its preferred booking windows", stop.PoiID))
			}
		}
	}

	return out
}
