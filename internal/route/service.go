package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hazardhub/hazardhub/internal/events"
)

// selectRetryWindow bounds how long Select keeps retrying after losing a race
// to a concurrent select on the same trip.
const selectRetryWindow = 2 * time.Second

// ServiceConfig holds configuration for the route service.
type ServiceConfig struct {
	Repository Repository

	// Publisher receives route.selected events (default: events.NopPublisher).
	Publisher events.Publisher

	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service provides route operations.
type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new route service.
func NewService(cfg ServiceConfig) *Service {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repository,
		publisher: publisher,
		logger:    cfg.Logger,
		now:       now,
	}
}

// Create validates and stores a new, unselected route.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Route, error) {
	if fieldErrors := validateCreateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := s.now().UTC()
	rt := &Route{
		ID:                "rte_" + uuid.New().String()[:22],
		TripID:            strings.TrimSpace(input.TripID),
		Polyline:          input.Polyline,
		Waypoints:         input.Waypoints,
		DistanceMeters:    input.DistanceMeters,
		DurationSeconds:   input.DurationSeconds,
		SafetyScore:       input.SafetyScore,
		SafetyAnalysis:    input.SafetyAnalysis,
		HazardsConsidered: input.HazardsConsidered,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, rt); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("route_id", rt.ID).
		Str("trip_id", rt.TripID).
		Msg("route created")
	return rt, nil
}

// Get retrieves a route by ID.
func (s *Service) Get(ctx context.Context, id string) (*Route, error) {
	return s.repo.Get(ctx, id)
}

// ListByTrip retrieves all routes of a trip.
func (s *Service) ListByTrip(ctx context.Context, tripID string) ([]*Route, error) {
	return s.repo.ListByTrip(ctx, tripID)
}

// GetSelected retrieves the selected route of a trip.
func (s *Service) GetSelected(ctx context.Context, tripID string) (*Route, error) {
	return s.repo.GetSelected(ctx, tripID)
}

// Update applies a partial update. The trip of a route never changes.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Route, error) {
	rt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if fieldErrors := validateUpdateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if input.Polyline != nil {
		rt.Polyline = *input.Polyline
	}
	if input.Waypoints != nil {
		rt.Waypoints = input.Waypoints
	}
	if input.DistanceMeters != nil {
		rt.DistanceMeters = *input.DistanceMeters
	}
	if input.DurationSeconds != nil {
		rt.DurationSeconds = *input.DurationSeconds
	}
	if input.SafetyScore != nil {
		rt.SafetyScore = *input.SafetyScore
	}
	if input.SafetyAnalysis != nil {
		rt.SafetyAnalysis = input.SafetyAnalysis
	}
	if input.HazardsConsidered != nil {
		rt.HazardsConsidered = input.HazardsConsidered
	}
	rt.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// Delete deletes a route by ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Select makes the route the only selected route of its trip. The selection is
// two atomic steps: unselect every route of the trip, then select this one.
// If a concurrent select wins between the steps, the pair is retried, so the
// last select to run wins. Each lost race means another select finished, so
// retries stop once the competing selects have.
// Selecting an already selected route is a no-op.
func (s *Service) Select(ctx context.Context, id string) (*Route, error) {
	rt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rt.IsSelected {
		return rt, nil
	}

	log := s.logger.With().Str("route_id", id).Str("trip_id", rt.TripID).Logger()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = selectRetryWindow

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if err := s.repo.ClearSelected(ctx, rt.TripID); err != nil {
			return backoff.Permanent(err)
		}
		err := s.repo.MarkSelected(ctx, rt.TripID, id)
		if err != nil && !errors.Is(err, ErrSelectionConflict) {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Debug().Int("attempt", attempt).Msg("concurrent selection, retrying")
		}
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}

	selected, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("route selected")
	s.publishSelected(ctx, selected)
	return selected, nil
}

// publishSelected is best effort; a broker failure does not undo the selection.
func (s *Service) publishSelected(ctx context.Context, rt *Route) {
	env, err := events.NewEnvelope(events.TypeRouteSelected, rt.TripID, events.RouteSelected{
		RouteID:     rt.ID,
		TripID:      rt.TripID,
		SafetyScore: rt.SafetyScore,
		SelectedAt:  rt.UpdatedAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build route.selected event")
		return
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Error().
			Err(err).
			Str("route_id", rt.ID).
			Str("event_type", env.Type).
			Msg("failed to publish event")
	}
}

func validateCreateInput(input CreateInput) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(input.TripID) == "" {
		errs = append(errs, FieldError{Field: "tripId", Message: "is required"})
	}
	if input.Polyline == "" {
		errs = append(errs, FieldError{Field: "polyline", Message: "is required"})
	}
	if input.DistanceMeters <= 0 {
		errs = append(errs, FieldError{Field: "distanceMeters", Message: "must be greater than 0"})
	}
	if input.DurationSeconds <= 0 {
		errs = append(errs, FieldError{Field: "durationSeconds", Message: "must be greater than 0"})
	}
	if !validSafetyScore(input.SafetyScore) {
		errs = append(errs, FieldError{Field: "safetyScore", Message: "must be between 0 and 1"})
	}

	return errs
}

func validateUpdateInput(input UpdateInput) []FieldError {
	var errs []FieldError

	if input.Polyline != nil && *input.Polyline == "" {
		errs = append(errs, FieldError{Field: "polyline", Message: "cannot be empty"})
	}
	if input.DistanceMeters != nil && *input.DistanceMeters <= 0 {
		errs = append(errs, FieldError{Field: "distanceMeters", Message: "must be greater than 0"})
	}
	if input.DurationSeconds != nil && *input.DurationSeconds <= 0 {
		errs = append(errs, FieldError{Field: "durationSeconds", Message: "must be greater than 0"})
	}
	if input.SafetyScore != nil && !validSafetyScore(*input.SafetyScore) {
		errs = append(errs, FieldError{Field: "safetyScore", Message: "must be between 0 and 1"})
	}

	return errs
}

func validSafetyScore(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field error(s)", len(e.Errors))
}
