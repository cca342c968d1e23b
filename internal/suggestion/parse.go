package suggestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hazardhub/hazardhub/internal/genai"
)

// ErrNotNumeric is returned by ToNumber for values that are neither numbers nor numeric strings.
var ErrNotNumeric = errors.New("value is not numeric")

// ToNumber coerces a decoded JSON value to float64. Numbers and numeric strings
// are accepted; everything else, including NaN and infinities, is ErrNotNumeric.
func ToNumber(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, n.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v)
	}
	return f, nil
}

// Parse decodes the model's JSON answer into a Proposal. Every failure is a
// *ParseError wrapping ErrNoCandidates or ErrMalformedSuggestion.
// Ranks are recomputed from the scores; the model's rank is kept as ModelRankScore.
func Parse(raw *genai.RawResponse) (*Proposal, error) {
	if raw == nil || strings.TrimSpace(raw.Text) == "" {
		return nil, &ParseError{Err: fmt.Errorf("%w: empty model output", ErrNoCandidates)}
	}

	dec := json.NewDecoder(strings.NewReader(stripCodeFence(raw.Text)))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, malformed("", "invalid JSON: %v", err)
	}
	if doc == nil {
		return nil, malformed("", "top-level value must be an object")
	}

	message, err := optionalString(doc, "message", "message")
	if err != nil {
		return nil, err
	}

	rawRoutes, ok := doc["routes"]
	if !ok || rawRoutes == nil {
		return nil, malformed("routes", "missing")
	}
	items, ok := rawRoutes.([]any)
	if !ok {
		return nil, malformed("routes", "must be an array, got %T", rawRoutes)
	}
	if len(items) == 0 {
		return nil, &ParseError{Field: "routes", Err: ErrNoCandidates}
	}

	candidates := make([]Candidate, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("routes[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(field, "must be an object, got %T", item)
		}
		c, err := parseCandidate(field, obj)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return &Proposal{Message: message, Candidates: candidates}, nil
}

func parseCandidate(field string, obj map[string]any) (Candidate, error) {
	var c Candidate
	var err error

	if c.Name, err = optionalString(obj, "name", field+".name"); err != nil {
		return c, err
	}
	if c.AISummary, err = optionalString(obj, "aiSummary", field+".aiSummary"); err != nil {
		return c, err
	}

	tier, err := optionalString(obj, "recommendationTier", field+".recommendationTier")
	if err != nil {
		return c, err
	}
	if tier != "" {
		c.Tier = Tier(strings.ToUpper(strings.TrimSpace(tier)))
		if !c.Tier.Valid() {
			return c, malformed(field+".recommendationTier", "unknown tier %q", tier)
		}
	}

	if c.SafetyScore, err = score(obj, "safetyScore", field); err != nil {
		return c, err
	}
	if c.EfficiencyScore, err = score(obj, "efficiencyScore", field); err != nil {
		return c, err
	}
	c.RankScore = RankScore(c.SafetyScore, c.EfficiencyScore)

	if v, ok := obj["rankScore"]; ok && v != nil {
		claimed, err := ToNumber(v)
		if err != nil {
			return c, malformed(field+".rankScore", "%v", err)
		}
		c.ModelRankScore = &claimed
	}

	if v, ok := obj["hazardCount"]; ok && v != nil {
		n, err := ToNumber(v)
		if err != nil {
			return c, malformed(field+".hazardCount", "%v", err)
		}
		if n < 0 {
			return c, malformed(field+".hazardCount", "must not be negative, got %v", n)
		}
		c.HazardCount = int(math.Round(n))
	}

	if c.Tier == "" {
		c.Tier = TierForScores(c.SafetyScore, c.RankScore)
	}

	if v, ok := obj["directionsParams"]; ok && v != nil {
		params, ok := v.(map[string]any)
		if !ok {
			return c, malformed(field+".directionsParams", "must be an object, got %T", v)
		}
		dp, err := parseDirectionsParams(field+".directionsParams", params)
		if err != nil {
			return c, err
		}
		c.DirectionsParams = dp
	}

	return c, nil
}

func parseDirectionsParams(field string, obj map[string]any) (*DirectionsParams, error) {
	var dp DirectionsParams
	var err error
	if dp.Origin, err = optionalString(obj, "origin", field+".origin"); err != nil {
		return nil, err
	}
	if dp.Destination, err = optionalString(obj, "destination", field+".destination"); err != nil {
		return nil, err
	}
	if dp.Waypoints, err = optionalString(obj, "waypoints", field+".waypoints"); err != nil {
		return nil, err
	}
	if v, ok := obj["mode"]; ok && v != nil {
		mode, ok := v.(string)
		if !ok {
			return nil, malformed(field+".mode", "must be a string, got %T", v)
		}
		dp.Mode = &mode
	}
	return &dp, nil
}

// score reads a required 0-100 score.
func score(obj map[string]any, key, field string) (float64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, malformed(field+"."+key, "missing")
	}
	f, err := ToNumber(v)
	if err != nil {
		return 0, malformed(field+"."+key, "%v", err)
	}
	if f < 0 || f > 100 {
		return 0, malformed(field+"."+key, "must be within [0,100], got %v", f)
	}
	return f, nil
}

func optionalString(obj map[string]any, key, field string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed(field, "must be a string, got %T", v)
	}
	return s, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
