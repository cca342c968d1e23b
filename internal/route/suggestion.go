package route

import (
	"github.com/hazardhub/hazardhub/internal/suggestion"
)

// InputFromSuggestion turns an accepted suggestion into the input for a new route.
// Scores are converted to the 0-1 scale; the model's reasoning goes into SafetyAnalysis.
func InputFromSuggestion(tripID string, s suggestion.EnrichedRoute) CreateInput {
	waypoints := map[string]any{"mode": string(s.Mode)}
	if p := s.DirectionsParams; p != nil {
		waypoints["origin"] = p.Origin
		waypoints["destination"] = p.Destination
		if p.Waypoints != "" {
			waypoints["waypoints"] = p.Waypoints
		}
	}

	hazards := s.HazardsOnPath
	if hazards == nil {
		hazards = []string{}
	}

	return CreateInput{
		TripID:          tripID,
		Polyline:        s.Polyline,
		Waypoints:       waypoints,
		DistanceMeters:  s.DistanceMeters,
		DurationSeconds: s.DurationSeconds,
		SafetyScore:     SafetyScoreFromSuggestion(s.SafetyScore),
		SafetyAnalysis: map[string]any{
			"name":               s.Name,
			"recommendationTier": string(s.Tier),
			"safetyScore":        s.SafetyScore,
			"efficiencyScore":    s.EfficiencyScore,
			"rankScore":          s.RankScore,
			"hazardCount":        s.HazardCount,
			"aiSummary":          s.AISummary,
		},
		HazardsConsidered: hazards,
	}
}
