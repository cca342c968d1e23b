package googlemaps

// directionsResponse is the subset of the Directions API JSON this client reads.
type directionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Routes       []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary          string `json:"summary"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []directionsLeg `json:"legs"`
}

type directionsLeg struct {
	Distance textValue `json:"distance"`
	Duration textValue `json:"duration"`
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}
