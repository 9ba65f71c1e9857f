package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-optimizer/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service defines the business logic contract for itinerary planning.
type Service interface {
	PlanItinerary(ctx context.Context, req types.PlanningRequest) (*types.Itinerary, error)
	GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error)
	ReplaceItineraryPOIs(ctx context.Context, itineraryID uuid.UUID, subs []types.Replacement, req types.PlanningRequest) (*types.ReoptimizeResult, error)
}

type ServiceImpl struct {
	logger     *slog.Logger
	planner    *planner.Planner
	repository Repository
}

func NewServiceImpl(pl *planner.Planner, repository Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		planner:    pl,
		repository: repository,
	}
}

// PlanItinerary runs the optimization pipeline and persists the resulting
// itinerary together with its distance cache. Nothing is persisted until a
// fully day-scheduled result exists.
func (s *ServiceImpl) PlanItinerary(ctx context.Context, req types.PlanningRequest) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "PlanItinerary", trace.WithAttributes(
		attribute.Int("request.candidates", len(req.CandidatePOIs)),
		attribute.Int("request.days", req.Days),
		attribute.String("request.mode", string(req.Mode)),
	))
	defer span.End()

	start := time.Now()
	result, err := s.planner.Plan(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Planning failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Planning failed")
		return nil, fmt.Errorf("failed to plan itinerary: %w", err)
	}

	m := metrics.Get()
	m.PlansTotal.Add(ctx, 1)
	m.PlanDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if result.Itinerary.SolverStatus == types.StatusFallback {
		m.SolverFallbacksTotal.Add(ctx, 1)
	}

	if err = s.repository.SaveItinerary(ctx, result.Itinerary, result.DistanceCache); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save itinerary")
		return nil, fmt.Errorf("failed to save itinerary: %w", err)
	}

	span.SetAttributes(
		attribute.String("itinerary.id", result.Itinerary.ID.String()),
		attribute.String("itinerary.solver_status", string(result.Itinerary.SolverStatus)),
	)
	span.SetStatus(codes.Ok, "Itinerary planned")
	return result.Itinerary, nil
}

func (s *ServiceImpl) GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GetItinerary", trace.WithAttributes(
		attribute.String("itinerary.id", itineraryID.String()),
	))
	defer span.End()

	itinerary, err := s.repository.GetItinerary(ctx, itineraryID)
	if err != nil {
		if !errors.Is(err, ErrItineraryNotFound) {
			s.logger.ErrorContext(ctx, "Repository failed to get itinerary", slog.Any("error", err))
			span.RecordError(err)
		}
		return nil, err
	}

	span.SetStatus(codes.Ok, "Itinerary retrieved")
	return itinerary, nil
}

// ReplaceItineraryPOIs re-optimizes a saved itinerary after substitutions and
// persists the result as a new version, extending the stored distance cache
// with only the newly computed pairs.
func (s *ServiceImpl) ReplaceItineraryPOIs(ctx context.Context, itineraryID uuid.UUID, subs []types.Replacement, req types.PlanningRequest) (*types.ReoptimizeResult, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "ReplaceItineraryPOIs", trace.WithAttributes(
		attribute.String("itinerary.id", itineraryID.String()),
		attribute.Int("substitutions", len(subs)),
	))
	defer span.End()

	saved, err := s.repository.GetItinerary(ctx, itineraryID)
	if err != nil {
		if !errors.Is(err, ErrItineraryNotFound) {
			s.logger.ErrorContext(ctx, "Repository failed to load itinerary for replacement", slog.Any("error", err))
			span.RecordError(err)
		}
		return nil, err
	}

	cache, err := s.repository.GetDistanceCache(ctx, itineraryID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to load distance cache", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load distance cache: %w", err)
	}

	result, err := s.planner.Replan(ctx, saved, subs, req, cache)
	if err != nil {
		s.logger.ErrorContext(ctx, "Re-optimization failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Re-optimization failed")
		return nil, fmt.Errorf("failed to re-optimize itinerary: %w", err)
	}
	metrics.Get().ReplansTotal.Add(ctx, 1)

	// An empty substitution list is a no-op; do not persist a new version.
	if result.Itinerary.ID == saved.ID {
		span.SetStatus(codes.Ok, "No substitutions, itinerary unchanged")
		return result, nil
	}

	if err = s.repository.SaveItinerary(ctx, result.Itinerary, cache); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new itinerary version", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save new itinerary version: %w", err)
	}
	if err = s.repository.SaveDistanceCacheDelta(ctx, result.Itinerary.ID, result.CacheDelta); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save distance cache delta", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save distance cache delta: %w", err)
	}

	span.SetAttributes(attribute.String("reopt.strategy", string(result.StrategyUsed)))
	span.SetStatus(codes.Ok, "Itinerary re-optimized")
	return result, nil
}
