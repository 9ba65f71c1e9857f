package itinerary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-optimizer/internal/planner"
	"github.com/FACorreiaa/go-itinerary-optimizer/internal/types"
)

type MockService struct {
	mock.Mock
}

var _ Service = (*MockService)(nil)

func (m *MockService) PlanItinerary(ctx context.Context, req types.PlanningRequest) (*types.Itinerary, error) {
	args := m.Called(ctx, req)
	var it *types.Itinerary
	if v := args.Get(0); v != nil {
		it = v.(*types.Itinerary)
	}
	return it, args.Error(1)
}

func (m *MockService) GetItinerary(ctx context.Context, itineraryID uuid.UUID) (*types.Itinerary, error) {
	args := m.Called(ctx, itineraryID)
	var it *types.Itinerary
	if v := args.Get(0); v != nil {
		it = v.(*types.Itinerary)
	}
	return it, args.Error(1)
}

func (m *MockService) ReplaceItineraryPOIs(ctx context.Context, itineraryID uuid.UUID, subs []types.Replacement, req types.PlanningRequest) (*types.ReoptimizeResult, error) {
	args := m.Called(ctx, itineraryID, subs, req)
	var res *types.ReoptimizeResult
	if v := args.Get(0); v != nil {
		res = v.(*types.ReoptimizeResult)
	}
	return res, args.Error(1)
}

func newTestRouter(svc Service) *chi.Mux {
	h := NewHandlerImpl(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Post("/itineraries/plan", h.PlanItinerary)
	r.Get("/itineraries/{itineraryID}", h.GetItinerary)
	r.Post("/itineraries/{itineraryID}/replace", h.ReplaceItineraryPOIs)
	return r
}

func TestPlanItineraryHandlerCreated(t *testing.T) {
	mockSvc := new(MockService)
	it := &types.Itinerary{ID: uuid.New(), SolverStatus: types.StatusFeasible}
	mockSvc.On("PlanItinerary", mock.Anything, mock.Anything).Return(it, nil).Once()

	body, _ := json.Marshal(types.PlanningRequest{Days: 1, Mode: types.ModeHeuristic})
	req := httptest.NewRequest(http.MethodPost, "/itineraries/plan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var got types.Itinerary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, it.ID, got.ID)
	mockSvc.AssertExpectations(t)
}

func TestPlanItineraryHandlerBadJSON(t *testing.T) {
	mockSvc := new(MockService)
	req := httptest.NewRequest(http.MethodPost, "/itineraries/plan", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "PlanItinerary", mock.Anything, mock.Anything)
}

func TestPlanItineraryHandlerInputErrorIsUnprocessable(t *testing.T) {
	mockSvc := new(MockService)
	mockSvc.On("PlanItinerary", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("failed to plan itinerary: %w", planner.ErrEmptyCandidates)).Once()

	body, _ := json.Marshal(types.PlanningRequest{})
	req := httptest.NewRequest(http.MethodPost, "/itineraries/plan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetItineraryHandlerInvalidID(t *testing.T) {
	mockSvc := new(MockService)
	req := httptest.NewRequest(http.MethodGet, "/itineraries/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "GetItinerary", mock.Anything, mock.Anything)
}

func TestGetItineraryHandlerNotFound(t *testing.T) {
	mockSvc := new(MockService)
	id := uuid.New()
	mockSvc.On("GetItinerary", mock.Anything, id).Return(nil, ErrItineraryNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/itineraries/"+id.String(), nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplaceItineraryHandlerCreated(t *testing.T) {
	mockSvc := new(MockService)
	id := uuid.New()
	result := &types.ReoptimizeResult{
		Itinerary:    &types.Itinerary{ID: uuid.New()},
		StrategyUsed: types.StrategyLocalSwap,
	}
	mockSvc.On("ReplaceItineraryPOIs", mock.Anything, id, mock.Anything, mock.Anything).Return(result, nil).Once()

	body, _ := json.Marshal(ReplaceRequest{
		Substitutions: []types.Replacement{{OriginalPoiID: "a", ReplacementPoiID: "b", Day: 0}},
	})
	req := httptest.NewRequest(http.MethodPost, "/itineraries/"+id.String()+"/replace", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var got types.ReoptimizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.StrategyLocalSwap, got.StrategyUsed)
	mockSvc.AssertExpectations(t)
}
