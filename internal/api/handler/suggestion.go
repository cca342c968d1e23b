package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hazardhub/hazardhub/internal/api/models"
	"github.com/hazardhub/hazardhub/internal/api/response"
	"github.com/hazardhub/hazardhub/internal/directions"
	"github.com/hazardhub/hazardhub/internal/genai"
	"github.com/hazardhub/hazardhub/internal/hazard"
	"github.com/hazardhub/hazardhub/internal/suggestion"
)

// SuggestionHandler handles AI route suggestion endpoints.
type SuggestionHandler struct {
	service *suggestion.Service
	logger  zerolog.Logger
}

// NewSuggestionHandler creates a new SuggestionHandler.
func NewSuggestionHandler(service *suggestion.Service, logger zerolog.Logger) *SuggestionHandler {
	return &SuggestionHandler{service: service, logger: logger}
}

// SuggestRoutes handles POST /v1/ai/suggest-routes - propose hazard-aware routes for a trip.
func (h *SuggestionHandler) SuggestRoutes(w http.ResponseWriter, r *http.Request) {
	var req models.SuggestRoutesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrors []models.FieldError
	if req.Origin == nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "origin", Message: "is required", Code: "REQUIRED"})
	}
	if req.Destination == nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "destination", Message: "is required", Code: "REQUIRED"})
	}
	hazards, hazardErrors := hazardsFromModel(req.Hazards)
	fieldErrors = append(fieldErrors, hazardErrors...)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	// An unknown vehicle is left empty and reported by the service's validation.
	vehicle, _ := directions.ParseVehicle(req.VehicleType)
	sreq := suggestion.Request{
		Origin:      locationFromModel(*req.Origin),
		Destination: locationFromModel(*req.Destination),
		Vehicle:     vehicle,
		UserMessage: req.UserMessage,
	}

	var (
		resp *suggestion.Response
		err  error
	)
	if req.Hazards == nil {
		resp, err = h.service.SuggestForTrip(r.Context(), sreq)
	} else {
		resp, err = h.service.SuggestRoutes(r.Context(), sreq, hazards)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	routes := make([]models.SuggestedRoute, 0, len(resp.Routes))
	for _, er := range resp.Routes {
		routes = append(routes, suggestedRouteToModel(er))
	}
	response.JSON(w, r, http.StatusOK, models.SuggestRoutesResponse{
		GeneratedAt:       models.Timestamp(time.Now().UTC()),
		Message:           resp.Message,
		Routes:            routes,
		Model:             resp.Model,
		HazardsConsidered: resp.HazardsConsidered,
	})
}

func (h *SuggestionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *suggestion.ValidationError
		providerErr   *suggestion.ProviderError
		parseErr      *suggestion.ParseError
	)
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "validation failed", suggestionFieldErrors(validationErr.Errors))
	case errors.As(err, &providerErr):
		if errors.Is(err, genai.ErrUnavailable) || errors.Is(err, genai.ErrRateLimited) {
			response.Fail(w, r, http.StatusServiceUnavailable, models.CodeGeneratorUnavailable, "route suggestions are temporarily unavailable")
			return
		}
		response.Fail(w, r, http.StatusBadGateway, models.CodeGeneratorFailed, "route generation failed")
	case errors.As(err, &parseErr):
		h.logger.Warn().Err(err).Msg("suggestion rejected as malformed")
		response.Fail(w, r, http.StatusBadGateway, models.CodeMalformedSuggestion, "route suggestion could not be understood")
	case errors.Is(err, suggestion.ErrNoHazardSource):
		response.Fail(w, r, http.StatusServiceUnavailable, models.CodeNoHazardSource, "hazard lookup is not configured, send hazards with the request")
	case errors.Is(err, context.DeadlineExceeded):
		response.Fail(w, r, http.StatusServiceUnavailable, models.CodeSuggestionTimeout, "route suggestion timed out")
	default:
		h.logger.Error().Err(err).Msg("route suggestion failed")
		response.InternalError(w, r, "failed to suggest routes")
	}
}

func suggestionFieldErrors(in []suggestion.FieldError) []models.FieldError {
	out := make([]models.FieldError, len(in))
	for i, fe := range in {
		out[i] = models.FieldError{Field: fe.Field, Message: fe.Message}
	}
	return out
}

func locationFromModel(l models.Location) suggestion.Location {
	return suggestion.Location{Lat: l.Latitude, Lng: l.Longitude, Address: l.Address}
}

func hazardsFromModel(in []models.HazardSummary) ([]hazard.Summary, []models.FieldError) {
	if in == nil {
		return nil, nil
	}
	var errs []models.FieldError
	out := make([]hazard.Summary, 0, len(in))
	for i, hz := range in {
		severity, err := hazard.ParseSeverity(hz.Severity)
		if err != nil {
			errs = append(errs, models.FieldError{
				Field:   fmt.Sprintf("hazards[%d].severity", i),
				Message: "must be one of LOW, MEDIUM, HIGH, CRITICAL",
			})
		}
		if hz.AffectedRadiusMeters < 0 {
			errs = append(errs, models.FieldError{
				Field:   fmt.Sprintf("hazards[%d].affectedRadiusMeters", i),
				Message: "must not be negative",
			})
		}
		id := hz.ID
		if id == "" {
			id = fmt.Sprintf("hazard_%d", i)
		}
		out = append(out, hazard.Summary{
			ID:                   id,
			Latitude:             hz.Latitude,
			Longitude:            hz.Longitude,
			Severity:             severity,
			Description:          hz.Description,
			AffectedRadiusMeters: hz.AffectedRadiusMeters,
			Address:              hz.Address,
		})
	}
	return out, errs
}

func suggestedRouteToModel(er suggestion.EnrichedRoute) models.SuggestedRoute {
	onPath := er.HazardsOnPath
	if onPath == nil {
		onPath = []string{}
	}
	m := models.SuggestedRoute{
		Name:               er.Name,
		RecommendationTier: string(er.Tier),
		SafetyScore:        er.SafetyScore,
		EfficiencyScore:    er.EfficiencyScore,
		RankScore:          er.RankScore,
		AISummary:          er.AISummary,
		HazardCount:        er.HazardCount,
		Mode:               string(er.Mode),
		Polyline:           er.Polyline,
		DistanceMeters:     er.DistanceMeters,
		DurationSeconds:    er.DurationSeconds,
		HazardsOnPath:      onPath,
	}
	if p := er.DirectionsParams; p != nil {
		m.DirectionsParams = &models.DirectionsParams{
			Origin:      p.Origin,
			Destination: p.Destination,
			Waypoints:   p.Waypoints,
			Mode:        p.Mode,
		}
	}
	return m
}

func enrichedRouteFromModel(m models.SuggestedRoute) suggestion.EnrichedRoute {
	er := suggestion.EnrichedRoute{
		Candidate: suggestion.Candidate{
			Name:            m.Name,
			Tier:            suggestion.Tier(m.RecommendationTier),
			SafetyScore:     m.SafetyScore,
			EfficiencyScore: m.EfficiencyScore,
			RankScore:       m.RankScore,
			AISummary:       m.AISummary,
			HazardCount:     m.HazardCount,
		},
		Mode:            directions.Mode(m.Mode),
		Polyline:        m.Polyline,
		DistanceMeters:  m.DistanceMeters,
		DurationSeconds: m.DurationSeconds,
		HazardsOnPath:   m.HazardsOnPath,
	}
	if p := m.DirectionsParams; p != nil {
		er.DirectionsParams = &suggestion.DirectionsParams{
			Origin:      p.Origin,
			Destination: p.Destination,
			Waypoints:   p.Waypoints,
			Mode:        p.Mode,
		}
	}
	return er
}
