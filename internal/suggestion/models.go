// Package suggestion turns a trip request and nearby hazards into ranked,
// geometry-backed route options.
//
// The pipeline asks a generative model for candidate routes, parses its
// untrusted JSON, enforces the scoring and tier rules, and resolves each
// candidate's real geometry through a directions provider.
package suggestion

import (
	"fmt"
	"strconv"

	"github.com/hazardhub/hazardhub/internal/directions"
)

// Location is a trip endpoint.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// LatLng formats the location as "lat,lng" the way the directions provider expects it.
func (l Location) LatLng() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}

// Request is a route suggestion request. Hazards are passed separately.
type Request struct {
	Origin      Location
	Destination Location
	Vehicle     directions.Vehicle
	UserMessage string
}

// Tier is a coarse recommendation bucket.
type Tier string

// Recommendation tiers.
const (
	TierRecommended Tier = "RECOMMENDED"
	TierAlternative Tier = "ALTERNATIVE"
	TierRisky       Tier = "RISKY"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierRecommended, TierAlternative, TierRisky:
		return true
	}
	return false
}

// DirectionsParams are the model's instructions for the directions call.
type DirectionsParams struct {
	Origin      string
	Destination string
	// Waypoints is optional, e.g. "via:43.038,-76.128|via:43.034,-76.124".
	Waypoints string
	// Mode is the model's free-text travel mode; nil when omitted.
	Mode *string
}

// Candidate is a model-proposed route before geometry is attached.
// Scores are on a 0-100 scale.
type Candidate struct {
	Name            string
	Tier            Tier
	SafetyScore     float64
	EfficiencyScore float64
	RankScore       float64
	// ModelRankScore is the rank the model claimed; advisory only.
	ModelRankScore *float64
	AISummary      string
	HazardCount    int
	// DirectionsParams is nil when the model omitted it.
	DirectionsParams *DirectionsParams
}

// EnrichedRoute is a candidate with geometry resolved by the directions provider.
type EnrichedRoute struct {
	Candidate
	Mode            directions.Mode
	Polyline        string
	DistanceMeters  int
	DurationSeconds int
	// HazardsOnPath holds the IDs of hazards whose affected radius the geometry crosses.
	HazardsOnPath []string
}

// Proposal is the parsed model output.
type Proposal struct {
	Message    string
	Candidates []Candidate
}

// Response is the result of a suggestion request.
type Response struct {
	Message string
	Routes  []EnrichedRoute
	// Model is the model version that produced the candidates.
	Model string
	// HazardsConsidered is the number of hazards sent to the model.
	HazardsConsidered int
}

// String implements fmt.Stringer for logging.
func (c Candidate) String() string {
	return fmt.Sprintf("%s [%s safety=%.1f efficiency=%.1f rank=%.2f]",
		c.Name, c.Tier, c.SafetyScore, c.EfficiencyScore, c.RankScore)
}
