package suggestion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hazardhub/hazardhub/internal/directions"
	"github.com/hazardhub/hazardhub/internal/genai"
	"github.com/hazardhub/hazardhub/internal/hazard"
	"github.com/hazardhub/hazardhub/internal/telemetry"
	"github.com/hazardhub/hazardhub/pkg/polyline"
)

// MaxUserMessageLength bounds the free-text preference in characters.
const MaxUserMessageLength = 1000

// Reasons recorded when a candidate is dropped during enrichment.
const (
	DropNoDirectionsParams = "no_directions_params"
	DropDirectionsError    = "directions_error"
	DropNoPolyline         = "no_polyline"
)

// ErrNoHazardSource is returned by SuggestForTrip when the service has no hazard source.
var ErrNoHazardSource = errors.New("no hazard source configured")

const tracerName = "github.com/hazardhub/hazardhub/internal/suggestion"

// ServiceConfig holds configuration for the suggestion service.
type ServiceConfig struct {
	// Generator proposes candidate routes.
	Generator genai.Generator

	// Directions resolves candidate geometry.
	Directions directions.Provider

	// Hazards supplies hazards for SuggestForTrip (optional).
	Hazards hazard.Source

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records candidate outcomes (optional).
	Metrics *telemetry.SuggestionMetrics

	// MaxConcurrency bounds concurrent directions calls per request (default: 4).
	MaxConcurrency int

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service orchestrates generation, parsing, policy and enrichment.
type Service struct {
	generator      genai.Generator
	directions     directions.Provider
	hazards        hazard.Source
	logger         zerolog.Logger
	metrics        *telemetry.SuggestionMetrics
	maxConcurrency int
	now            func() time.Time
	tracer         trace.Tracer
}

// NewService creates a new suggestion service.
func NewService(cfg ServiceConfig) *Service {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		generator:      cfg.Generator,
		directions:     cfg.Directions,
		hazards:        cfg.Hazards,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		maxConcurrency: maxConcurrency,
		now:            now,
		tracer:         telemetry.Tracer(tracerName),
	}
}

// SuggestForTrip looks up active hazards in the trip corridor and suggests routes around them.
func (s *Service) SuggestForTrip(ctx context.Context, req Request) (*Response, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if s.hazards == nil {
		return nil, ErrNoHazardSource
	}

	corridor := hazard.CorridorFor(
		polyline.Coordinate{Lat: req.Origin.Lat, Lon: req.Origin.Lng},
		polyline.Coordinate{Lat: req.Destination.Lat, Lon: req.Destination.Lng},
	)
	hazards, err := s.hazards.FindActiveNear(ctx, corridor, s.now())
	if err != nil {
		return nil, fmt.Errorf("finding hazards in corridor: %w", err)
	}

	s.logger.Debug().
		Float64("corridor_radius_m", corridor.RadiusMeters).
		Int("hazards", len(hazards)).
		Msg("resolved hazard corridor")

	return s.SuggestRoutes(ctx, req, hazards)
}

// SuggestRoutes asks the model for candidate routes around the given hazards and
// resolves their geometry. Candidates whose geometry cannot be resolved are
// dropped; a generation or parse failure fails the whole call.
func (s *Service) SuggestRoutes(ctx context.Context, req Request, hazards []hazard.Summary) (resp *Response, err error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "suggestion.SuggestRoutes", trace.WithAttributes(
		attribute.String("vehicle", string(req.Vehicle)),
		attribute.Int("hazards", len(hazards)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	userPrompt, err := BuildUserPrompt(req, hazards)
	if err != nil {
		return nil, err
	}

	raw, err := s.generator.Generate(ctx, genai.GenerateRequest{
		SystemPrompt: SystemPrompt,
		UserPrompt:   userPrompt,
		JSON:         true,
	})
	if errors.Is(err, genai.ErrEmptyResponse) {
		s.logger.Warn().Err(err).Str("provider", s.generator.Name()).Msg("model answered without candidates")
		return nil, &ParseError{Err: fmt.Errorf("%w: %w", ErrNoCandidates, err)}
	}
	if err != nil {
		s.logger.Error().Err(err).Str("provider", s.generator.Name()).Msg("route generation failed")
		return nil, &ProviderError{Provider: s.generator.Name(), Err: err}
	}

	proposal, err := Parse(raw)
	if err != nil {
		var output string
		if raw != nil {
			output = truncate(raw.Text, 500)
		}
		s.logger.Error().Err(err).Str("model_output", output).Msg("unusable route suggestion")
		return nil, err
	}
	s.metrics.RecordCandidates(ctx, len(proposal.Candidates))

	for _, c := range proposal.Candidates {
		if c.ModelRankScore != nil && math.Abs(*c.ModelRankScore-c.RankScore) > 0.5 {
			s.logger.Debug().
				Str("route", c.Name).
				Float64("model_rank", *c.ModelRankScore).
				Float64("rank", c.RankScore).
				Msg("model rank disagrees with formula, using formula")
		}
	}

	routes, err := s.enrichAll(ctx, req, proposal.Candidates, hazards)
	if err != nil {
		return nil, err
	}
	if len(hazards) == 0 {
		routes = applyNoHazardPolicy(routes)
	}

	span.SetAttributes(
		attribute.Int("candidates", len(proposal.Candidates)),
		attribute.Int("routes", len(routes)),
	)
	s.logger.Info().
		Int("candidates", len(proposal.Candidates)).
		Int("routes", len(routes)).
		Int("hazards", len(hazards)).
		Msg("route suggestion complete")

	return &Response{
		Message:           proposal.Message,
		Routes:            routes,
		Model:             raw.Model,
		HazardsConsidered: len(hazards),
	}, nil
}

// enrichAll resolves geometry for each candidate concurrently. The result keeps
// candidate order and omits dropped candidates.
func (s *Service) enrichAll(ctx context.Context, req Request, candidates []Candidate, hazards []hazard.Summary) ([]EnrichedRoute, error) {
	results := make([]*EnrichedRoute, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			results[i] = s.enrich(ctx, req, c, hazards)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	routes := make([]EnrichedRoute, 0, len(results))
	for _, r := range results {
		if r != nil {
			routes = append(routes, *r)
		}
	}
	return routes, nil
}

// enrich returns nil when the candidate has to be dropped.
func (s *Service) enrich(ctx context.Context, req Request, c Candidate, hazards []hazard.Summary) *EnrichedRoute {
	log := s.logger.With().Str("route", c.Name).Logger()

	if c.DirectionsParams == nil {
		s.drop(ctx, log, DropNoDirectionsParams, nil)
		return nil
	}
	params := c.DirectionsParams

	origin := strings.TrimSpace(params.Origin)
	if origin == "" {
		origin = req.Origin.LatLng()
	}
	destination := strings.TrimSpace(params.Destination)
	if destination == "" {
		destination = req.Destination.LatLng()
	}
	mode := directions.NormalizeMode(params.Mode, req.Vehicle, log)

	resp, err := s.directions.GetRoute(ctx, directions.Request{
		Origin:      origin,
		Destination: destination,
		Waypoints:   params.Waypoints,
		Mode:        mode,
	})
	if err != nil {
		s.drop(ctx, log, DropDirectionsError, err)
		return nil
	}

	encoded := directions.Polyline(resp)
	if encoded == "" {
		s.drop(ctx, log, DropNoPolyline, nil)
		return nil
	}

	route := &EnrichedRoute{
		Candidate:       c,
		Mode:            mode,
		Polyline:        encoded,
		DistanceMeters:  directions.TotalDistanceMeters(resp),
		DurationSeconds: directions.TotalDurationSeconds(resp),
	}

	onPath, critical := hazardsOnPath(encoded, hazards)
	route.HazardsOnPath = onPath
	if critical && req.Vehicle.Vulnerable() && route.Tier != TierRisky {
		log.Warn().
			Str("tier", string(route.Tier)).
			Strs("hazards_on_path", onPath).
			Msg("critical hazard on path, forcing RISKY tier")
		s.metrics.RecordTierForced(ctx, string(route.Tier), string(TierRisky))
		route.Tier = TierRisky
	}

	log.Debug().
		Str("mode", string(mode)).
		Int("distance_m", route.DistanceMeters).
		Int("duration_s", route.DurationSeconds).
		Int("hazards_on_path", len(onPath)).
		Msg("enriched route")
	return route
}

func (s *Service) drop(ctx context.Context, log zerolog.Logger, reason string, err error) {
	log.Warn().Err(err).Str("reason", reason).Msg("dropping candidate route")
	s.metrics.RecordDropped(ctx, reason)
}

// Validate checks a request before anything is attempted.
func Validate(req Request) error {
	var errs []FieldError
	errs = append(errs, validateLocation(req.Origin, "origin")...)
	errs = append(errs, validateLocation(req.Destination, "destination")...)

	if !req.Vehicle.Valid() {
		errs = append(errs, FieldError{
			Field:   "vehicleType",
			Message: "must be one of CAR, BICYCLE, WALKING",
		})
	}
	if utf8.RuneCountInString(req.UserMessage) > MaxUserMessageLength {
		errs = append(errs, FieldError{
			Field:   "userMessage",
			Message: fmt.Sprintf("must be at most %d characters", MaxUserMessageLength),
		})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateLocation(l Location, prefix string) []FieldError {
	var errs []FieldError
	if math.IsNaN(l.Lat) || l.Lat < -90 || l.Lat > 90 {
		errs = append(errs, FieldError{Field: prefix + ".latitude", Message: "must be between -90 and 90"})
	}
	if math.IsNaN(l.Lng) || l.Lng < -180 || l.Lng > 180 {
		errs = append(errs, FieldError{Field: prefix + ".longitude", Message: "must be between -180 and 180"})
	}
	return errs
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
