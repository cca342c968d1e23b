package suggestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazardhub/hazardhub/internal/hazard"
)

// SystemPrompt fixes the model's role, the response schema, the scoring formula and the tier rules.
const SystemPrompt = `You are the route safety planner of HazardHub. Travellers ask you for routes that keep them away from reported hazards.

You have no map data and cannot compute geometry or distances. For every route you propose you return parameters for the Google Directions API; the backend calls it and attaches the real polyline, distance and duration. You steer a route around a hazard by adding "via:" waypoints.

HAZARDS are given as a JSON array. Each element has exactly these fields:
  latitude, longitude       hazard position
  severity                  LOW, MEDIUM, HIGH or CRITICAL
  description               free text
  affectedRadiusMeters      radius of the danger zone; keep avoidance waypoints outside it
  address                   may be an empty string

VEHICLES:
  CAR      driving; exposed to road-level hazards (flooding, ice, debris, damaged roads)
  BICYCLE  cycling; exposed to every road hazard plus poor visibility and missing bike lanes
  WALKING  walking; the most exposed traveller, keep the widest distance from hazards

INPUT: current location and destination as "lat,lng" with an optional address in parentheses, the vehicle, the hazard array (possibly []), and an optional user message with preferences such as "avoid highways". Honour the user message when present.

DIRECTIONS PARAMETERS for each route ("directionsParams"):
  origin       "lat,lng"
  destination  "lat,lng"
  waypoints    optional, pipe separated, e.g. "via:lat,lng|via:lat,lng". Always use the "via:" prefix so no stop is created. Place avoidance waypoints 200 to 500 metres from the hazard, on the side away from the direct route.
  mode         "driving" for CAR, "bicycling" for BICYCLE, "walking" for WALKING

SCORES, all on a 0 to 100 scale:
  safetyScore      from the number and severity of hazards near the route; 100 means no hazard near it
  efficiencyScore  how direct the route is; 100 is the most direct path
  rankScore        safetyScore * 0.75 + efficiencyScore * 0.25

TIERS ("recommendationTier"):
  RECOMMENDED  highest rankScore, avoids all or nearly all hazards
  ALTERNATIVE  moderate safety with a good efficiency tradeoff
  RISKY        passes through or very near a HIGH or CRITICAL hazard. A route for BICYCLE or WALKING with a CRITICAL hazard in its corridor MUST be RISKY.

Respond with JSON only, in exactly this shape:
{
  "message": "short conversational summary for the traveller",
  "routes": [
    {
      "name": "human readable route name",
      "recommendationTier": "RECOMMENDED|ALTERNATIVE|RISKY",
      "rankScore": 0,
      "safetyScore": 0,
      "efficiencyScore": 0,
      "aiSummary": "one to three sentences explaining the scores",
      "hazardCount": 0,
      "directionsParams": {"origin": "lat,lng", "destination": "lat,lng", "waypoints": "via:lat,lng", "mode": "driving|bicycling|walking"}
    }
  ]
}

RULES:
- Propose 2 or 3 routes when possible: the safest, a balanced one and the most direct.
- When the hazard array is empty, propose exactly 1 route with safetyScore 100 and tier RECOMMENDED.
- Never include polylines, distances or durations.`

const userPromptTemplate = `Current location: <current_location>
Destination: <destination>
Vehicle type: <vehicle>
Active hazards in the area: <hazards>
User message: <user_message>

Example response:
{
  "message": "I found 2 options. The safer one loops around the flooded underpass on Park St and adds about 4 minutes.",
  "routes": [
    {
      "name": "Around the underpass via Elm Ave",
      "recommendationTier": "RECOMMENDED",
      "rankScore": 88.75,
      "safetyScore": 100,
      "efficiencyScore": 55,
      "aiSummary": "Stays 400 m west of the CRITICAL flooding on Park St at the cost of a longer detour.",
      "hazardCount": 0,
      "directionsParams": {"origin": "43.0370,-76.1336", "destination": "43.0300,-76.1260", "waypoints": "via:43.0380,-76.1280|via:43.0340,-76.1240", "mode": "driving"}
    },
    {
      "name": "Direct via Park St",
      "recommendationTier": "RISKY",
      "rankScore": 31.25,
      "safetyScore": 5,
      "efficiencyScore": 100,
      "aiSummary": "Shortest path, but it runs straight through the flooded underpass.",
      "hazardCount": 1,
      "directionsParams": {"origin": "43.0370,-76.1336", "destination": "43.0300,-76.1260", "mode": "driving"}
    }
  ]
}`

// promptHazard is the hazard shape the model is told about.
type promptHazard struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	Severity             string  `json:"severity"`
	Description          string  `json:"description"`
	AffectedRadiusMeters float64 `json:"affectedRadiusMeters"`
	Address              string  `json:"address"`
}

// BuildUserPrompt interpolates the request and hazards into the prompt template.
func BuildUserPrompt(req Request, hazards []hazard.Summary) (string, error) {
	items := make([]promptHazard, 0, len(hazards))
	for _, h := range hazards {
		items = append(items, promptHazard{
			Latitude:             h.Latitude,
			Longitude:            h.Longitude,
			Severity:             h.Severity.String(),
			Description:          h.Description,
			AffectedRadiusMeters: h.AffectedRadiusMeters,
			Address:              h.Address,
		})
	}
	hazardsJSON, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encoding hazards: %w", err)
	}

	userMessage := strings.TrimSpace(req.UserMessage)
	if userMessage == "" {
		userMessage = "None"
	}

	r := strings.NewReplacer(
		"<current_location>", describeLocation(req.Origin),
		"<destination>", describeLocation(req.Destination),
		"<vehicle>", string(req.Vehicle),
		"<hazards>", string(hazardsJSON),
		"<user_message>", userMessage,
	)
	return r.Replace(userPromptTemplate), nil
}

func describeLocation(l Location) string {
	s := l.LatLng()
	if addr := strings.TrimSpace(l.Address); addr != "" {
		s += " (" + addr + ")"
	}
	return s
}
