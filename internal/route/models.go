// Package route stores the routes a traveller can choose between for a trip and
// keeps at most one of them selected.
package route

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrRouteNotFound = errors.New("route not found")
	// ErrSelectionConflict is returned when another route of the trip was
	// selected between clearing and marking.
	ErrSelectionConflict = errors.New("another route of the trip is selected")
)

// Route is a persisted route option for a trip.
type Route struct {
	ID     string
	TripID string

	Polyline        string
	Waypoints       map[string]any
	DistanceMeters  int
	DurationSeconds int

	// SafetyScore is on a 0-1 scale.
	SafetyScore       float64
	SafetyAnalysis    map[string]any
	HazardsConsidered []string

	IsSelected bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// clone returns a deep enough copy that callers cannot mutate stored state.
func (r *Route) clone() *Route {
	cpy := *r
	cpy.Waypoints = cloneMap(r.Waypoints)
	cpy.SafetyAnalysis = cloneMap(r.SafetyAnalysis)
	if r.HazardsConsidered != nil {
		cpy.HazardsConsidered = append([]string(nil), r.HazardsConsidered...)
	}
	return &cpy
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SafetyScoreFromSuggestion converts a 0-100 suggestion score to the 0-1 scale routes are stored in.
func SafetyScoreFromSuggestion(score float64) float64 {
	switch {
	case score <= 0:
		return 0
	case score >= 100:
		return 1
	}
	return score / 100
}

// CreateInput holds the fields of a new route.
type CreateInput struct {
	TripID            string
	Polyline          string
	Waypoints         map[string]any
	DistanceMeters    int
	DurationSeconds   int
	SafetyScore       float64
	SafetyAnalysis    map[string]any
	HazardsConsidered []string
}

// UpdateInput holds a partial update. Nil fields are left unchanged. The trip
// a route belongs to cannot be changed.
type UpdateInput struct {
	Polyline          *string
	Waypoints         map[string]any
	DistanceMeters    *int
	DurationSeconds   *int
	SafetyScore       *float64
	SafetyAnalysis    map[string]any
	HazardsConsidered []string
}
