package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hazardhub/hazardhub/internal/api/models"
	"github.com/hazardhub/hazardhub/internal/api/response"
	"github.com/hazardhub/hazardhub/internal/route"
)

// RouteHandler handles route endpoints.
type RouteHandler struct {
	service *route.Service
	logger  zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service *route.Service, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{service: service, logger: logger}
}

// CreateRoute handles POST /v1/routes - store a route for a trip.
func (h *RouteHandler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	input := route.CreateInput{
		TripID:            req.TripID,
		Polyline:          req.Polyline,
		Waypoints:         req.Waypoints,
		DistanceMeters:    req.DistanceMeters,
		DurationSeconds:   req.DurationSeconds,
		SafetyScore:       req.SafetyScore,
		SafetyAnalysis:    req.SafetyAnalysis,
		HazardsConsidered: req.HazardsConsidered,
	}
	if req.FromSuggestion != nil {
		input = route.InputFromSuggestion(req.TripID, enrichedRouteFromModel(*req.FromSuggestion))
	}

	rt, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, r, "/v1/routes/"+rt.ID, routeToModel(rt))
}

// GetRoute handles GET /v1/routes/{routeId}.
func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := h.service.Get(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, routeToModel(rt))
}

// UpdateRoute handles PUT /v1/routes/{routeId}. The route's trip never changes.
func (h *RouteHandler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	rt, err := h.service.Update(r.Context(), chi.URLParam(r, "routeId"), route.UpdateInput{
		Polyline:          req.Polyline,
		Waypoints:         req.Waypoints,
		DistanceMeters:    req.DistanceMeters,
		DurationSeconds:   req.DurationSeconds,
		SafetyScore:       req.SafetyScore,
		SafetyAnalysis:    req.SafetyAnalysis,
		HazardsConsidered: req.HazardsConsidered,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, routeToModel(rt))
}

// DeleteRoute handles DELETE /v1/routes/{routeId}.
func (h *RouteHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "routeId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// SelectRoute handles POST /v1/routes/{routeId}/select - make the route the trip's selected route.
// Concurrent selects on one trip are last-writer-wins; 409 only if the race outlasts the retry window.
func (h *RouteHandler) SelectRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := h.service.Select(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, routeToModel(rt))
}

// ListTripRoutes handles GET /v1/trips/{tripId}/routes.
func (h *RouteHandler) ListTripRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.service.ListByTrip(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]models.Route, 0, len(routes))
	for _, rt := range routes {
		items = append(items, routeToModel(rt))
	}
	response.JSON(w, r, http.StatusOK, models.RouteListResponse{Items: items})
}

// GetSelectedRoute handles GET /v1/trips/{tripId}/routes/selected.
func (h *RouteHandler) GetSelectedRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := h.service.GetSelected(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, routeToModel(rt))
}

func (h *RouteHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *route.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "validation failed", routeFieldErrors(validationErr.Errors))
	case errors.Is(err, route.ErrRouteNotFound):
		response.Fail(w, r, http.StatusNotFound, models.CodeRouteNotFound, "route not found")
	case errors.Is(err, route.ErrSelectionConflict):
		response.Fail(w, r, http.StatusConflict, models.CodeSelectionConflict, "another route of the trip was selected concurrently, retry")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("route request failed")
		response.InternalError(w, r, "failed to process route request")
	}
}

func routeFieldErrors(in []route.FieldError) []models.FieldError {
	out := make([]models.FieldError, len(in))
	for i, fe := range in {
		out[i] = models.FieldError{Field: fe.Field, Message: fe.Message}
	}
	return out
}

func routeToModel(rt *route.Route) models.Route {
	hazards := rt.HazardsConsidered
	if hazards == nil {
		hazards = []string{}
	}
	return models.Route{
		ID:                rt.ID,
		TripID:            rt.TripID,
		Polyline:          rt.Polyline,
		Waypoints:         rt.Waypoints,
		DistanceMeters:    rt.DistanceMeters,
		DurationSeconds:   rt.DurationSeconds,
		SafetyScore:       rt.SafetyScore,
		SafetyAnalysis:    rt.SafetyAnalysis,
		HazardsConsidered: hazards,
		IsSelected:        rt.IsSelected,
		CreatedAt:         models.Timestamp(rt.CreatedAt),
		UpdatedAt:         models.Timestamp(rt.UpdatedAt),
	}
}
