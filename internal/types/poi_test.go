package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpenAtAlwaysOpenWithoutPeriods(t *testing.T) {
	p := &POI{ID: "square"}
	assert.True(t, p.OpenAt(time.Monday, 0))
	assert.True(t, p.OpenAt(time.Sunday, 1439))
}

func TestOpenAtChecksWeekdayAndWindow(t *testing.T) {
	p := &POI{
		ID: "museum",
		OpeningPeriods: []OpeningPeriod{
			{DayOfWeek: time.Tuesday, OpenMinutes: 540, CloseMinutes: 1080},
		},
	}

	assert.True(t, p.OpenAt(time.Tuesday, 540))
	assert.True(t, p.OpenAt(time.Tuesday, 1079))
	assert.False(t, p.OpenAt(time.Tuesday, 1080), "closing minute is exclusive")
	assert.False(t, p.OpenAt(time.Tuesday, 539))
	assert.False(t, p.OpenAt(time.Monday, 600), "closed on other weekdays")
}

func TestItineraryStopAccessors(t *testing.T) {
	it := &Itinerary{
		Days: []DayPlan{
			{Stops: []Stop{{PoiID: "a"}, {PoiID: "b"}}},
			{Stops: []Stop{{PoiID: "c"}}},
		},
	}
	assert.Equal(t, 3, it.StopCount())
	assert.Equal(t, []string{"a", "b", "c"}, it.PoiIDs())
}
