package models

// Route is a stored route option for a trip.
type Route struct {
	ID                string         `json:"id"`
	TripID            string         `json:"tripId"`
	Polyline          string         `json:"polyline"`
	Waypoints         map[string]any `json:"waypoints"`
	DistanceMeters    int            `json:"distanceMeters"`
	DurationSeconds   int            `json:"durationSeconds"`
	SafetyScore       float64        `json:"safetyScore"`
	SafetyAnalysis    map[string]any `json:"safetyAnalysis"`
	HazardsConsidered []string       `json:"hazardsConsidered"`
	IsSelected        bool           `json:"isSelected"`
	CreatedAt         Timestamp      `json:"createdAt"`
	UpdatedAt         Timestamp      `json:"updatedAt"`
}

// RouteCreateRequest is the request body for POST /v1/routes.
// When FromSuggestion is set the route fields are taken from the suggestion
// and only TripID is read from the body.
type RouteCreateRequest struct {
	TripID            string          `json:"tripId"`
	Polyline          string          `json:"polyline"`
	Waypoints         map[string]any  `json:"waypoints,omitempty"`
	DistanceMeters    int             `json:"distanceMeters"`
	DurationSeconds   int             `json:"durationSeconds"`
	SafetyScore       float64         `json:"safetyScore"`
	SafetyAnalysis    map[string]any  `json:"safetyAnalysis,omitempty"`
	HazardsConsidered []string        `json:"hazardsConsidered,omitempty"`
	FromSuggestion    *SuggestedRoute `json:"fromSuggestion,omitempty"`
}

// RouteUpdateRequest is the request body for PUT /v1/routes/{routeId}.
// Omitted fields are left unchanged. A tripId in the body is ignored.
type RouteUpdateRequest struct {
	Polyline          *string        `json:"polyline,omitempty"`
	Waypoints         map[string]any `json:"waypoints,omitempty"`
	DistanceMeters    *int           `json:"distanceMeters,omitempty"`
	DurationSeconds   *int           `json:"durationSeconds,omitempty"`
	SafetyScore       *float64       `json:"safetyScore,omitempty"`
	SafetyAnalysis    map[string]any `json:"safetyAnalysis,omitempty"`
	HazardsConsidered []string       `json:"hazardsConsidered,omitempty"`
}

// RouteListResponse is the response for listing the routes of a trip.
type RouteListResponse struct {
	Items []Route `json:"items"`
}
