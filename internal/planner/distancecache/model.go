// Package distancecache provides the pairwise walking-distance cache and the
// directional narrative-coherence score that both optimizers consume.
package distancecache

import (
	"math"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/go-itinerary-optimizer/config"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

// NeutralCoherence is returned when either POI lacks the metadata needed to
// score the pair.
const NeutralCoherence = 0.5

// Model computes and caches pairwise walking distances and scores directional
// coherence. Distance lookups are read-through: concurrent misses for the
// same pair compute once and later writes are idempotent, so no locking is
// needed beyond atomic insertion.
type Model struct {
	cfg   config.PlannerConfig
	cache *gocache.Cache
	group singleflight.Group

	mu    sync.Mutex
	fresh map[string]types.DistanceEntry
}

func NewModel(cfg config.PlannerConfig) *Model {
	return &Model{
		cfg:   cfg,
		cache: gocache.New(cfg.DistanceCacheTTL, 2*cfg.DistanceCacheTTL),
		fresh: make(map[string]types.DistanceEntry),
	}
}

// PairKey returns the unordered cache key for two POI ids.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// Preload seeds the cache from entries persisted alongside a saved itinerary.
// Preloaded entries are not reported by Delta.
func (m *Model) Preload(entries map[string]types.DistanceEntry) {
	for key, entry := range entries {
		m.cache.SetDefault(key, entry)
	}
}

// Distance returns the symmetric walking estimate between two POIs, computing
// and caching a great-circle estimate on first need. POIs without coordinates
// fall back to the configured default distance rather than failing.
func (m *Model) Distance(a, b *types.POI) types.DistanceEntry {
	if a.ID == b.ID {
		return types.DistanceEntry{}
	}
	key := PairKey(a.ID, b.ID)
	if cached, ok := m.cache.Get(key); ok {
		return cached.(types.DistanceEntry)
	}

	v, _, _ := m.group.Do(key, func() (interface{}, error) {
		entry := m.compute(a, b)
		m.cache.SetDefault(key, entry)
		m.mu.Lock()
		m.fresh[key] = entry
		m.mu.Unlock()
		return entry, nil
	})
	return v.(types.DistanceEntry)
}

func (m *Model) compute(a, b *types.POI) types.DistanceEntry {
	km := m.cfg.DefaultDistanceKm
	if a.HasCoordinates() && b.HasCoordinates() {
		km = haversineKm(
			a.Coordinates.Latitude, a.Coordinates.Longitude,
			b.Coordinates.Latitude, b.Coordinates.Longitude,
		)
	}
	return types.DistanceEntry{
		DistanceKm:      km,
		DurationMinutes: km / m.cfg.WalkingSpeedKmh * 60,
	}
}

// Coherence scores how well b follows a narratively, in [0,1]. The score is
// directional: chronological precedence is awarded only in the a-before-b
// direction. It must never be collapsed into a symmetric pair score, which
// would produce mutually reinforcing ordering requirements downstream.
func (m *Model) Coherence(a, b *types.POI) float64 {
	bothYears := a.ApproxYear != nil && b.ApproxYear != nil
	bothPeriods := a.ThemePeriod != "" && b.ThemePeriod != ""
	if !bothYears && !bothPeriods {
		return NeutralCoherence
	}

	score := 0.0
	if bothYears {
		if *a.ApproxYear < *b.ApproxYear {
			score += 0.5
		}
		if math.Abs(float64(*a.ApproxYear-*b.ApproxYear)) <= 50 {
			score += 0.2
		}
	}
	if bothPeriods && a.ThemePeriod == b.ThemePeriod {
		score += 0.3
	}
	return math.Min(score, 1.0)
}

// NormalizedDistanceScore maps a pairwise distance onto [0,1], where closer
// pairs score higher.
func (m *Model) NormalizedDistanceScore(a, b *types.POI) float64 {
	entry := m.Distance(a, b)
	return 1 - math.Min(entry.DistanceKm/m.cfg.MaxConsideredDistanceKm, 1)
}

// PointScore maps the distance between a raw coordinate and a POI onto [0,1],
// closer scoring higher. Used for start/end location hints; hint pairs are
// computed directly and never enter the persisted pairwise cache.
func (m *Model) PointScore(c types.Coordinates, p *types.POI) float64 {
	km := m.cfg.DefaultDistanceKm
	if p.HasCoordinates() {
		km = haversineKm(c.Latitude, c.Longitude, p.Coordinates.Latitude, p.Coordinates.Longitude)
	}
	return 1 - math.Min(km/m.cfg.MaxConsideredDistanceKm, 1)
}

// Snapshot returns every cached entry, for persisting alongside an itinerary.
func (m *Model) Snapshot() map[string]types.DistanceEntry {
	items := m.cache.Items()
	out := make(map[string]types.DistanceEntry, len(items))
	for key, item := range items {
		out[key] = item.Object.(types.DistanceEntry)
	}
	return out
}

// Delta returns only the entries computed since construction or the last
// Preload, bounding persistence cost to the size of the change.
func (m *Model) Delta() map[string]types.DistanceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.DistanceEntry, len(m.fresh))
	for key, entry := range m.fresh {
		out[key] = entry
	}
	return out
}

// haversineKm calculates the great-circle distance between two coordinates.
// Returns distance in kilometers.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth's radius in kilometers

	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}
