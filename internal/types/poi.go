package types

import "time"

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpeningPeriod describes one weekly opening window. Times are minutes from
// midnight local time. A weekday with no period means the POI is closed that day.
type OpeningPeriod struct {
	DayOfWeek    time.Weekday `json:"day_of_week"`
	OpenMinutes  int          `json:"open_minutes"`
	CloseMinutes int          `json:"close_minutes"`
}

// TimeWindow is a preferred visiting window, minutes from midnight.
type TimeWindow struct {
	StartMinutes int `json:"start_minutes"`
	EndMinutes   int `json:"end_minutes"`
}

// BookingInfo carries ticket booking metadata from the catalog provider.
type BookingInfo struct {
	Required         bool         `json:"required"`
	PreferredWindows []TimeWindow `json:"preferred_windows,omitempty"`
}

// POI is a candidate point of interest as supplied by the catalog provider.
// It is read-only input to the optimizer and never mutated internally.
type POI struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Coordinates     *Coordinates    `json:"coordinates,omitempty"`
	OpeningPeriods  []OpeningPeriod `json:"opening_periods,omitempty"`
	Booking         *BookingInfo    `json:"booking,omitempty"`
	ThemeTags       []string        `json:"theme_tags,omitempty"`

	// ThemePeriod is the coarse historical period label ("1st century",
	// "renaissance", ...). ApproxYear is the approximate construction year,
	// negative for BCE. Both feed coherence scoring only, never hard ordering.
	ThemePeriod string `json:"theme_period,omitempty"`
	ApproxYear  *int   `json:"approx_year,omitempty"`
}

// HasCoordinates reports whether the POI carries usable coordinates.
func (p *POI) HasCoordinates() bool {
	return p.Coordinates != nil
}

// OpenAt reports whether the POI is open at the given weekday and minute of
// day. A POI with no opening periods at all is treated as always open.
func (p *POI) OpenAt(day time.Weekday, minuteOfDay int) bool {
	if len(p.OpeningPeriods) == 0 {
		return true
	}
	for _, period := range p.OpeningPeriods {
		if period.DayOfWeek != day {
			continue
		}
		if minuteOfDay >= period.OpenMinutes && minuteOfDay < period.CloseMinutes {
			return true
		}
	}
	return false
}

// VisitOrder constrains the order of members inside a combo ticket group.
type VisitOrder string

const (
	VisitOrderFlexible      VisitOrder = "flexible"
	VisitOrderFixed         VisitOrder = "fixed"
	VisitOrderChronological VisitOrder = "chronological"
)

// ComboTicketGroup is a named set of POIs sharing a ticket. A group with
// fewer than 2 members resolvable against the candidate set is dropped with
// a warning and never partially enforced.
type ComboTicketGroup struct {
	ID                 string     `json:"id"`
	Members            []string   `json:"members"`
	MustVisitTogether  bool       `json:"must_visit_together"`
	MaxSeparationHours *float64   `json:"max_separation_hours,omitempty"`
	VisitOrder         VisitOrder `json:"visit_order"`
	SameDayRequired    bool       `json:"same_day_required"`
}
