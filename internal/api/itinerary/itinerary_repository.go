package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

var ErrItineraryNotFound = errors.New("itinerary not found")

var _ Repository = (*RepositoryImpl)(nil)

// Repository persists itinerary versions and their distance caches. A
// replacement always creates a new version row; persisted versions are never
// mutated in place.
type Repository interface {
	SaveItinerary(ctx context.Context, itinerary *types.Itinerary, cache map[string]types.DistanceEntry) error
	GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error)
	GetDistanceCache(ctx context.Context, itineraryID uuid.UUID) (map[string]types.DistanceEntry, error)
	SaveDistanceCacheDelta(ctx context.Context, itineraryID uuid.UUID, delta map[string]types.DistanceEntry) error
}

// PgxPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it too, which keeps the repository testable without a database.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewRepository(pgpool PgxPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) SaveItinerary(ctx context.Context, itinerary *types.Itinerary, cache map[string]types.DistanceEntry) error {
	ctx, span := otel.Tracer("Repository").Start(ctx, "SaveItinerary", trace.WithAttributes(
		attribute.String("itinerary.id", itinerary.ID.String()),
		attribute.Int("itinerary.days", len(itinerary.Days)),
	))
	defer span.End()

	document, err := json.Marshal(itinerary)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal itinerary document: %w", err)
	}

	query := `
        INSERT INTO itineraries (id, document, solver_status, overall_score, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err = r.pgpool.Exec(ctx, query,
		itinerary.ID, document, string(itinerary.SolverStatus), itinerary.Scores.Overall, itinerary.CreatedAt,
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert itinerary")
		return fmt.Errorf("failed to insert itinerary: %w", err)
	}

	if err = r.upsertCacheEntries(ctx, itinerary.ID, cache); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist distance cache")
		return err
	}

	span.SetStatus(codes.Ok, "Itinerary saved")
	return nil
}

func (r *RepositoryImpl) GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "GetItinerary", trace.WithAttributes(
		attribute.String("itinerary.id", itineraryID.String()),
	))
	defer span.End()

	query := `SELECT document FROM itineraries WHERE id = $1`
	var document []byte
	err := r.pgpool.QueryRow(ctx, query, itineraryID).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "Itinerary not found")
			return nil, ErrItineraryNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query itinerary")
		return nil, fmt.Errorf("failed to query itinerary: %w", err)
	}

	var itinerary types.Itinerary
	if err = json.Unmarshal(document, &itinerary); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal itinerary document: %w", err)
	}

	span.SetStatus(codes.Ok, "Itinerary retrieved")
	return &itinerary, nil
}

func (r *RepositoryImpl) GetDistanceCache(ctx context.Context, itineraryID uuid.UUID) (map[string]types.DistanceEntry, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "GetDistanceCache", trace.WithAttributes(
		attribute.String("itinerary.id", itineraryID.String()),
	))
	defer span.End()

	query := `
        SELECT pair_key, distance_km, duration_minutes
        FROM distance_cache_entries
        WHERE itinerary_id = $1`
	rows, err := r.pgpool.Query(ctx, query, itineraryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query distance cache")
		return nil, fmt.Errorf("failed to query distance cache: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]types.DistanceEntry)
	for rows.Next() {
		var key string
		var entry types.DistanceEntry
		if err = rows.Scan(&key, &entry.DistanceKm, &entry.DurationMinutes); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan distance cache entry: %w", err)
		}
		cache[key] = entry
	}
	if rows.Err() != nil {
		span.RecordError(rows.Err())
		return nil, fmt.Errorf("failed to iterate distance cache: %w", rows.Err())
	}

	span.SetAttributes(attribute.Int("cache.entries", len(cache)))
	span.SetStatus(codes.Ok, "Distance cache retrieved")
	return cache, nil
}

func (r *RepositoryImpl) SaveDistanceCacheDelta(ctx context.Context, itineraryID uuid.UUID, delta map[string]types.DistanceEntry) error {
	ctx, span := otel.Tracer("Repository").Start(ctx, "SaveDistanceCacheDelta", trace.WithAttributes(
		attribute.String("itinerary.id", itineraryID.String()),
		attribute.Int("delta.entries", len(delta)),
	))
	defer span.End()

	if err := r.upsertCacheEntries(ctx, itineraryID, delta); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist cache delta")
		return err
	}
	span.SetStatus(codes.Ok, "Cache delta saved")
	return nil
}

// upsertCacheEntries inserts computed pair distances; existing pairs are left
// untouched since identical inputs always yield the same computed distance.
func (r *RepositoryImpl) upsertCacheEntries(ctx context.Context, itineraryID uuid.UUID, entries map[string]types.DistanceEntry) error {
	query := `
        INSERT INTO distance_cache_entries (itinerary_id, pair_key, distance_km, duration_minutes)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (itinerary_id, pair_key) DO NOTHING`
	for key, entry := range entries {
		if _, err := r.pgpool.Exec(ctx, query, itineraryID, key, entry.DistanceKm, entry.DurationMinutes); err != nil {
			return fmt.Errorf("failed to upsert distance cache entry %s: %w", key, err)
		}
	}
	return nil
}
