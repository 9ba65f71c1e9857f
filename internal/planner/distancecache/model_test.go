package distancecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

func intPtr(v int) *int { return &v }

func poiAt(id string, lat, lng float64) *types.POI {
	return &types.POI{
		ID:          id,
		Coordinates: &types.Coordinates{Latitude: lat, Longitude: lng},
	}
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.Equal(t, "a|b", PairKey("b", "a"))
}

func TestDistanceComputesHaversineEstimate(t *testing.T) {
	model := NewModel(config.Defaults())

	// Colosseum to Pantheon, roughly 1.8 km apart.
	colosseum := poiAt("colosseum", 41.8902, 12.4922)
	pantheon := poiAt("pantheon", 41.8986, 12.4769)

	entry := model.Distance(colosseum, pantheon)
	assert.InDelta(t, 1.6, entry.DistanceKm, 0.3)
	assert.Greater(t, entry.DurationMinutes, 15.0)
	assert.Less(t, entry.DurationMinutes, 30.0)
}

func TestDistanceIsSymmetric(t *testing.T) {
	model := NewModel(config.Defaults())
	a := poiAt("a", 41.89, 12.49)
	b := poiAt("b", 41.90, 12.47)

	assert.Equal(t, model.Distance(a, b), model.Distance(b, a))
}

func TestDistanceFallsBackToDefaultWithoutCoordinates(t *testing.T) {
	cfg := config.Defaults()
	model := NewModel(cfg)

	a := &types.POI{ID: "a"}
	b := poiAt("b", 41.90, 12.47)

	entry := model.Distance(a, b)
	assert.Equal(t, cfg.DefaultDistanceKm, entry.DistanceKm)
}

func TestDistanceZeroForSamePOI(t *testing.T) {
	model := NewModel(config.Defaults())
	a := poiAt("a", 41.89, 12.49)
	assert.Equal(t, types.DistanceEntry{}, model.Distance(a, a))
}

func TestPreloadedEntriesAreReusedNotRecomputed(t *testing.T) {
	model := NewModel(config.Defaults())

	// A marker value no haversine computation would produce.
	marker := types.DistanceEntry{DistanceKm: 42, DurationMinutes: 560}
	model.Preload(map[string]types.DistanceEntry{PairKey("a", "b"): marker})

	a := poiAt("a", 41.89, 12.49)
	b := poiAt("b", 41.90, 12.47)
	assert.Equal(t, marker, model.Distance(a, b))
	assert.Empty(t, model.Delta(), "preloaded entries must not be reported as freshly computed")
}

func TestDeltaReportsOnlyNewPairs(t *testing.T) {
	model := NewModel(config.Defaults())
	model.Preload(map[string]types.DistanceEntry{PairKey("a", "b"): {DistanceKm: 1}})

	a := poiAt("a", 41.89, 12.49)
	c := poiAt("c", 41.91, 12.50)
	model.Distance(a, c)

	delta := model.Delta()
	require.Len(t, delta, 1)
	assert.Contains(t, delta, PairKey("a", "c"))

	snapshot := model.Snapshot()
	assert.Len(t, snapshot, 2)
}

func TestCoherenceIsDirectional(t *testing.T) {
	model := NewModel(config.Defaults())

	older := &types.POI{ID: "older", ApproxYear: intPtr(50), ThemePeriod: "1st century"}
	newer := &types.POI{ID: "newer", ApproxYear: intPtr(80), ThemePeriod: "1st century"}

	forward := model.Coherence(older, newer)
	backward := model.Coherence(newer, older)

	// Chronological order is rewarded only in the forward direction; the
	// shared period and 50-year proximity bonuses apply both ways.
	assert.Equal(t, 1.0, forward)
	assert.Equal(t, 0.5, backward)
}

func TestCoherenceComponents(t *testing.T) {
	model := NewModel(config.Defaults())

	tests := []struct {
		name string
		a, b *types.POI
		want float64
	}{
		{
			name: "chronological precedence only",
			a:    &types.POI{ID: "a", ApproxYear: intPtr(100)},
			b:    &types.POI{ID: "b", ApproxYear: intPtr(1500)},
			want: 0.5,
		},
		{
			name: "same period only",
			a:    &types.POI{ID: "a", ThemePeriod: "baroque"},
			b:    &types.POI{ID: "b", ThemePeriod: "baroque"},
			want: 0.3,
		},
		{
			name: "within fifty years, reverse chronology",
			a:    &types.POI{ID: "a", ApproxYear: intPtr(1520)},
			b:    &types.POI{ID: "b", ApproxYear: intPtr(1500)},
			want: 0.2,
		},
		{
			name: "different periods, distant dates",
			a:    &types.POI{ID: "a", ApproxYear: intPtr(1900), ThemePeriod: "modern"},
			b:    &types.POI{ID: "b", ApproxYear: intPtr(100), ThemePeriod: "roman"},
			want: 0.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, model.Coherence(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCoherenceNeutralWhenMetadataMissing(t *testing.T) {
	model := NewModel(config.Defaults())

	a := &types.POI{ID: "a", ApproxYear: intPtr(100)}
	b := &types.POI{ID: "b"}
	assert.Equal(t, NeutralCoherence, model.Coherence(a, b))
	assert.Equal(t, NeutralCoherence, model.Coherence(&types.POI{ID: "x"}, &types.POI{ID: "y"}))
}

func TestNormalizedDistanceScore(t *testing.T) {
	cfg := config.Defaults()
	model := NewModel(cfg)

	near1 := poiAt("n1", 41.8900, 12.4900)
	near2 := poiAt("n2", 41.8901, 12.4901)
	far := poiAt("far", 48.8566, 2.3522) // Paris, way past the considered maximum

	assert.InDelta(t, 1.0, model.NormalizedDistanceScore(near1, near2), 0.01)
	assert.Equal(t, 0.0, model.NormalizedDistanceScore(near1, far))
}
