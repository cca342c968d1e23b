package models

// Location is a trip endpoint.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// HazardSummary is a hazard supplied by the caller with a suggestion request.
type HazardSummary struct {
	ID                   string  `json:"id,omitempty"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	Severity             string  `json:"severity"`
	Description          string  `json:"description"`
	AffectedRadiusMeters float64 `json:"affectedRadiusMeters"`
	Address              string  `json:"address,omitempty"`
}

// SuggestRoutesRequest is the request body for POST /v1/ai/suggest-routes.
// When Hazards is omitted the server looks up active hazards in the trip corridor;
// an empty list means the caller knows of no hazards.
type SuggestRoutesRequest struct {
	Origin      *Location       `json:"origin"`
	Destination *Location       `json:"destination"`
	VehicleType string          `json:"vehicleType"`
	UserMessage string          `json:"userMessage,omitempty"`
	Hazards     []HazardSummary `json:"hazards"`
}

// DirectionsParams are the directions query a suggested route was resolved with.
type DirectionsParams struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Waypoints   string  `json:"waypoints,omitempty"`
	Mode        *string `json:"mode,omitempty"`
}

// SuggestedRoute is a ranked route option with resolved geometry. Scores are 0-100.
type SuggestedRoute struct {
	Name               string            `json:"name"`
	RecommendationTier string            `json:"recommendationTier"`
	SafetyScore        float64           `json:"safetyScore"`
	EfficiencyScore    float64           `json:"efficiencyScore"`
	RankScore          float64           `json:"rankScore"`
	AISummary          string            `json:"aiSummary"`
	HazardCount        int               `json:"hazardCount"`
	DirectionsParams   *DirectionsParams `json:"directionsParams,omitempty"`
	Mode               string            `json:"mode"`
	Polyline           string            `json:"polyline"`
	DistanceMeters     int               `json:"distanceMeters"`
	DurationSeconds    int               `json:"durationSeconds"`
	HazardsOnPath      []string          `json:"hazardsOnPath"`
}

// SuggestRoutesResponse is the response for POST /v1/ai/suggest-routes.
type SuggestRoutesResponse struct {
	GeneratedAt       Timestamp        `json:"generatedAt"`
	Message           string           `json:"message"`
	Routes            []SuggestedRoute `json:"routes"`
	Model             string           `json:"model,omitempty"`
	HazardsConsidered int              `json:"hazardsConsidered"`
}
