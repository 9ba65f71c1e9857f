package itinerary

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-optimizer/internal/api"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner/reopt"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

type HandlerImpl struct {
	itineraryService Service
	logger           *slog.Logger
}

func NewHandlerImpl(itineraryService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		itineraryService: itineraryService,
		logger:           logger,
	}
}

// ReplaceRequest carries the substitutions plus the planning context needed
// to re-optimize (candidate data for all remaining and replacement POIs).
type ReplaceRequest struct {
	Substitutions []types.Replacement   `json:"substitutions"`
	Request       types.PlanningRequest `json:"request"`
}

// PlanItinerary handles POST /itineraries/plan.
func (h *HandlerImpl) PlanItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "PlanItinerary", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/itineraries/plan"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "PlanItinerary"))

	var req types.PlanningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.ErrorContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	itinerary, err := h.itineraryService.PlanItinerary(ctx, req)
	if err != nil {
		if isInputError(err) {
			l.WarnContext(ctx, "Planning request rejected", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		l.ErrorContext(ctx, "Failed to plan itinerary", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to plan itinerary")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, itinerary)
}

// GetItinerary handles GET /itineraries/{itineraryID}.
func (h *HandlerImpl) GetItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetItinerary", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/itineraries/{itineraryID}"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetItinerary"))

	itineraryID, err := uuid.Parse(chi.URLParam(r, "itineraryID"))
	if err != nil {
		l.ErrorContext(ctx, "Invalid itinerary ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid itinerary ID format")
		return
	}

	itinerary, err := h.itineraryService.GetItinerary(ctx, itineraryID)
	if err != nil {
		if errors.Is(err, ErrItineraryNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Itinerary not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get itinerary", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to get itinerary")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, itinerary)
}

// ReplaceItineraryPOIs handles POST /itineraries/{itineraryID}/replace.
func (h *HandlerImpl) ReplaceItineraryPOIs(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "ReplaceItineraryPOIs", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/itineraries/{itineraryID}/replace"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "ReplaceItineraryPOIs"))

	itineraryID, err := uuid.Parse(chi.URLParam(r, "itineraryID"))
	if err != nil {
		l.ErrorContext(ctx, "Invalid itinerary ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid itinerary ID format")
		return
	}

	var req ReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.ErrorContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.itineraryService.ReplaceItineraryPOIs(ctx, itineraryID, req.Substitutions, req.Request)
	if err != nil {
		switch {
		case errors.Is(err, ErrItineraryNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "Itinerary not found")
		case isInputError(err):
			l.WarnContext(ctx, "Replacement request rejected", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			l.ErrorContext(ctx, "Failed to replace itinerary POIs", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to replace itinerary POIs")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, result)
}

// isInputError distinguishes request errors (fixable by the caller) from
// internal failures.
func isInputError(err error) bool {
	return errors.Is(err, planner.ErrEmptyCandidates) ||
		errors.Is(err, planner.ErrUnknownMustInclude) ||
		errors.Is(err, planner.ErrInvalidDays) ||
		errors.Is(err, reopt.ErrUnknownOriginal) ||
		errors.Is(err, reopt.ErrUnknownPOI) ||
		errors.Is(err, reopt.ErrInvalidDay)
}
