package suggestion

import (
	"math"

	"github.com/hazardhub/hazardhub/internal/hazard"
	"github.com/hazardhub/hazardhub/pkg/polyline"
)

// Score weights of the rank formula.
const (
	SafetyWeight     = 0.75
	EfficiencyWeight = 0.25
)

// RankScore returns 0.75·safety + 0.25·efficiency, rounded to two decimals.
func RankScore(safety, efficiency float64) float64 {
	return math.Round((SafetyWeight*safety+EfficiencyWeight*efficiency)*100) / 100
}

// TierForScores derives a tier when the model did not name one.
func TierForScores(safety, rank float64) Tier {
	switch {
	case safety < 40:
		return TierRisky
	case rank >= 75:
		return TierRecommended
	default:
		return TierAlternative
	}
}

// applyNoHazardPolicy reduces the resolved routes to a single RECOMMENDED route
// with full safety. The first RECOMMENDED route is kept, else the best ranked one.
// It runs after enrichment so a candidate without geometry never hides one with it.
func applyNoHazardPolicy(routes []EnrichedRoute) []EnrichedRoute {
	if len(routes) == 0 {
		return routes
	}

	best := -1
	for i, r := range routes {
		if r.Tier == TierRecommended {
			best = i
			break
		}
	}
	if best < 0 {
		best = 0
		for i, r := range routes {
			if r.RankScore > routes[best].RankScore {
				best = i
			}
		}
	}

	kept := routes[best]
	kept.Tier = TierRecommended
	kept.SafetyScore = 100
	kept.HazardCount = 0
	kept.RankScore = RankScore(kept.SafetyScore, kept.EfficiencyScore)
	return []EnrichedRoute{kept}
}

// hazardsOnPath returns the IDs of hazards whose affected radius the decoded
// geometry enters, and whether any of them is CRITICAL.
func hazardsOnPath(encoded string, hazards []hazard.Summary) (ids []string, critical bool) {
	if len(hazards) == 0 || encoded == "" {
		return nil, false
	}
	coords, err := polyline.Decode(encoded)
	if err != nil || len(coords) == 0 {
		return nil, false
	}

	for _, h := range hazards {
		radius := h.AffectedRadiusMeters
		if radius <= 0 {
			radius = hazard.DefaultAffectedRadiusMeters
		}
		p := polyline.Coordinate{Lat: h.Latitude, Lon: h.Longitude}
		if polyline.PassesWithin(coords, p, radius) {
			ids = append(ids, h.ID)
			if h.Severity == hazard.SeverityCritical {
				critical = true
			}
		}
	}
	return ids, critical
}
