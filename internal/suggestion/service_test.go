package suggestion_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardhub/hazardhub/internal/directions"
	"github.com/hazardhub/hazardhub/internal/genai"
	"github.com/hazardhub/hazardhub/internal/genai/gemini"
	"github.com/hazardhub/hazardhub/internal/hazard"
	"github.com/hazardhub/hazardhub/internal/provider/resilience"
	"github.com/hazardhub/hazardhub/internal/suggestion"
	"github.com/hazardhub/hazardhub/pkg/polyline"
)

var (
	tripStart = polyline.Coordinate{Lat: 43.0370, Lon: -76.1336}
	tripEnd   = polyline.Coordinate{Lat: 43.0300, Lon: -76.1260}
	// Lies on the straight segment between tripStart and tripEnd.
	onPathPoint = polyline.Midpoint(tripStart, tripEnd)
	// A detour that keeps well north of the straight segment.
	detour = []polyline.Coordinate{tripStart, {Lat: 43.0420, Lon: -76.1200}, tripEnd}
)

// fakeGenerator returns a fixed answer and counts calls.
type fakeGenerator struct {
	text  string
	err   error
	calls atomic.Int32
	last  genai.GenerateRequest
	mu    sync.Mutex
}

func (g *fakeGenerator) Generate(_ context.Context, req genai.GenerateRequest) (*genai.RawResponse, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.last = req
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return &genai.RawResponse{Text: g.text, Model: "fake-model"}, nil
}

func (g *fakeGenerator) Name() string { return "fake" }

// fakeDirections answers by waypoints. Unknown waypoints resolve to the direct line.
type fakeDirections struct {
	mu       sync.Mutex
	routes   map[string][]polyline.Coordinate
	failures map[string]error
	delays   map[string]time.Duration
	requests []directions.Request
	calls    atomic.Int32
}

func newFakeDirections() *fakeDirections {
	return &fakeDirections{
		routes:   map[string][]polyline.Coordinate{},
		failures: map[string]error{},
		delays:   map[string]time.Duration{},
	}
}

func (d *fakeDirections) GetRoute(ctx context.Context, req directions.Request) (*directions.ProviderResponse, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.requests = append(d.requests, req)
	coords, ok := d.routes[req.Waypoints]
	failure := d.failures[req.Waypoints]
	delay := d.delays[req.Waypoints]
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		coords = []polyline.Coordinate{tripStart, tripEnd}
	}
	return &directions.ProviderResponse{
		Status: "OK",
		Routes: []directions.Route{{
			OverviewPolyline: polyline.Encode(coords),
			Legs:             []directions.Leg{{DistanceMeters: 1000, DurationSeconds: 240}},
		}},
		Provider: "fake",
	}, nil
}

func (d *fakeDirections) Name() string { return "fake" }

func (d *fakeDirections) requestFor(waypoints string) (directions.Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.requests {
		if r.Waypoints == waypoints {
			return r, true
		}
	}
	return directions.Request{}, false
}

func tripRequest(vehicle directions.Vehicle) suggestion.Request {
	return suggestion.Request{
		Origin:      suggestion.Location{Lat: tripStart.Lat, Lng: tripStart.Lon},
		Destination: suggestion.Location{Lat: tripEnd.Lat, Lng: tripEnd.Lon},
		Vehicle:     vehicle,
	}
}

func criticalOnPath() hazard.Summary {
	return hazard.Summary{
		ID:                   "hzd_flood",
		Latitude:             onPathPoint.Lat,
		Longitude:            onPathPoint.Lon,
		Severity:             hazard.SeverityCritical,
		Description:          "Flooded underpass",
		AffectedRadiusMeters: 50,
	}
}

// routeJSON renders one candidate of a model answer.
func routeJSON(name, tier string, safety, efficiency float64, waypoints, mode string) string {
	return fmt.Sprintf(`{"name":%q,"recommendationTier":%q,"safetyScore":%v,"efficiencyScore":%v,"aiSummary":"s","hazardCount":0,`+
		`"directionsParams":{"origin":"43.0370,-76.1336","destination":"43.0300,-76.1260","waypoints":%q,"mode":%q}}`,
		name, tier, safety, efficiency, waypoints, mode)
}

func answer(message string, routes ...string) string {
	out := fmt.Sprintf(`{"message":%q,"routes":[`, message)
	for i, r := range routes {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out + "]}"
}

func newService(gen genai.Generator, dir directions.Provider, src hazard.Source) *suggestion.Service {
	return suggestion.NewService(suggestion.ServiceConfig{
		Generator:  gen,
		Directions: dir,
		Hazards:    src,
		Logger:     zerolog.Nop(),
	})
}

func TestSuggestRoutes_KeepsOrderAndDropsFailedCandidates(t *testing.T) {
	gen := &fakeGenerator{text: answer("3 options",
		routeJSON("Safe", "RECOMMENDED", 100, 55, "via:1,1", "driving"),
		routeJSON("Balanced", "ALTERNATIVE", 60, 90, "via:2,2", "driving"),
		routeJSON("Direct", "RISKY", 5, 100, "via:3,3", "driving"),
	)}
	dir := newFakeDirections()
	dir.failures["via:2,2"] = &directions.ProviderError{Provider: "fake", Status: "ZERO_RESULTS", Err: directions.ErrNoRoute}
	dir.delays["via:1,1"] = 30 * time.Millisecond

	svc := newService(gen, dir, nil)
	resp, err := svc.SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), []hazard.Summary{criticalOnPath()})
	require.NoError(t, err)

	assert.Equal(t, "3 options", resp.Message)
	assert.Equal(t, "fake-model", resp.Model)
	assert.Equal(t, 1, resp.HazardsConsidered)
	require.Len(t, resp.Routes, 2)
	assert.Equal(t, "Safe", resp.Routes[0].Name, "slow first candidate stays first")
	assert.Equal(t, "Direct", resp.Routes[1].Name)
	assert.Equal(t, 88.75, resp.Routes[0].RankScore)
	assert.Equal(t, 31.25, resp.Routes[1].RankScore)
	assert.Equal(t, int32(3), dir.calls.Load())

	for _, r := range resp.Routes {
		assert.NotEmpty(t, r.Polyline)
		assert.Equal(t, 1000, r.DistanceMeters)
		assert.Equal(t, 240, r.DurationSeconds)
	}
}

func TestSuggestRoutes_NoHazardsKeepsSingleRecommendedRoute(t *testing.T) {
	gen := &fakeGenerator{text: answer("all clear",
		routeJSON("Balanced", "ALTERNATIVE", 70, 90, "via:2,2", "driving"),
		routeJSON("Main", "RECOMMENDED", 90, 80, "via:1,1", "driving"),
		routeJSON("Other", "RECOMMENDED", 95, 60, "via:3,3", "driving"),
	)}
	dir := newFakeDirections()

	resp, err := newService(gen, dir, nil).SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), nil)
	require.NoError(t, err)

	require.Len(t, resp.Routes, 1)
	r := resp.Routes[0]
	assert.Equal(t, "Main", r.Name, "first RECOMMENDED candidate wins")
	assert.Equal(t, suggestion.TierRecommended, r.Tier)
	assert.Equal(t, 100.0, r.SafetyScore)
	assert.Equal(t, 0, r.HazardCount)
	assert.Equal(t, 95.0, r.RankScore)
	assert.Equal(t, 0, resp.HazardsConsidered)
	assert.Contains(t, gen.last.UserPrompt, "Active hazards in the area: []")
}

func TestSuggestRoutes_NoHazardsFallsBackWhenPreferredRouteFails(t *testing.T) {
	gen := &fakeGenerator{text: answer("all clear",
		routeJSON("Main", "RECOMMENDED", 90, 80, "via:1,1", "driving"),
		routeJSON("Other", "ALTERNATIVE", 70, 60, "via:2,2", "driving"),
		routeJSON("Scenic", "ALTERNATIVE", 80, 40, "via:3,3", "driving"),
	)}
	dir := newFakeDirections()
	dir.failures["via:1,1"] = &directions.ProviderError{Provider: "fake", Status: "ZERO_RESULTS", Err: directions.ErrNoRoute}

	resp, err := newService(gen, dir, nil).SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), nil)
	require.NoError(t, err)

	require.Len(t, resp.Routes, 1)
	r := resp.Routes[0]
	assert.Equal(t, "Scenic", r.Name, "best ranked survivor wins")
	assert.Equal(t, suggestion.TierRecommended, r.Tier)
	assert.Equal(t, 100.0, r.SafetyScore)
	assert.Equal(t, 85.0, r.RankScore)
	assert.NotEmpty(t, r.Polyline)
}

func TestSuggestRoutes_NoHazardsWithoutRecommendedKeepsBestRank(t *testing.T) {
	gen := &fakeGenerator{text: answer("",
		routeJSON("Slow", "ALTERNATIVE", 70, 20, "via:1,1", "driving"),
		routeJSON("Quick", "ALTERNATIVE", 70, 90, "via:2,2", "driving"),
	)}

	resp, err := newService(gen, newFakeDirections(), nil).SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), nil)
	require.NoError(t, err)

	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "Quick", resp.Routes[0].Name)
	assert.Equal(t, suggestion.TierRecommended, resp.Routes[0].Tier)
}

func TestSuggestRoutes_CriticalHazardForcesRiskyForVulnerableTravellers(t *testing.T) {
	text := answer("two ways",
		routeJSON("Detour", "RECOMMENDED", 95, 60, "via:43.0420,-76.1200", "bicycling"),
		routeJSON("Straight", "RECOMMENDED", 80, 100, "", "bicycling"),
	)
	hazards := []hazard.Summary{criticalOnPath()}

	tests := []struct {
		vehicle       directions.Vehicle
		wantStraight  suggestion.Tier
		wantOnPathIDs []string
	}{
		{directions.VehicleBicycle, suggestion.TierRisky, []string{"hzd_flood"}},
		{directions.VehicleWalking, suggestion.TierRisky, []string{"hzd_flood"}},
		{directions.VehicleCar, suggestion.TierRecommended, []string{"hzd_flood"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.vehicle), func(t *testing.T) {
			dir := newFakeDirections()
			dir.routes["via:43.0420,-76.1200"] = detour

			resp, err := newService(&fakeGenerator{text: text}, dir, nil).
				SuggestRoutes(context.Background(), tripRequest(tt.vehicle), hazards)
			require.NoError(t, err)
			require.Len(t, resp.Routes, 2)

			assert.Equal(t, suggestion.TierRecommended, resp.Routes[0].Tier)
			assert.Empty(t, resp.Routes[0].HazardsOnPath)

			assert.Equal(t, tt.wantStraight, resp.Routes[1].Tier)
			assert.Equal(t, tt.wantOnPathIDs, resp.Routes[1].HazardsOnPath)
		})
	}
}

func TestSuggestRoutes_NonCriticalHazardDoesNotForceTier(t *testing.T) {
	h := criticalOnPath()
	h.Severity = hazard.SeverityHigh
	gen := &fakeGenerator{text: answer("", routeJSON("Straight", "ALTERNATIVE", 60, 100, "", "walking"))}

	resp, err := newService(gen, newFakeDirections(), nil).
		SuggestRoutes(context.Background(), tripRequest(directions.VehicleWalking), []hazard.Summary{h})
	require.NoError(t, err)

	require.Len(t, resp.Routes, 1)
	assert.Equal(t, suggestion.TierAlternative, resp.Routes[0].Tier)
	assert.Equal(t, []string{"hzd_flood"}, resp.Routes[0].HazardsOnPath)
}

func TestSuggestRoutes_ModeNormalization(t *testing.T) {
	gen := &fakeGenerator{text: answer("",
		routeJSON("A", "RECOMMENDED", 90, 90, "via:1,1", "bike"),
		routeJSON("B", "ALTERNATIVE", 60, 90, "via:2,2", "Walking"),
		routeJSON("C", "ALTERNATIVE", 60, 90, "via:3,3", "hovercraft"),
	)}
	dir := newFakeDirections()

	_, err := newService(gen, dir, nil).
		SuggestRoutes(context.Background(), tripRequest(directions.VehicleBicycle), []hazard.Summary{{ID: "far", Latitude: 10, Longitude: 10}})
	require.NoError(t, err)

	for waypoints, want := range map[string]directions.Mode{
		"via:1,1": directions.ModeBicycling,
		"via:2,2": directions.ModeWalking,
		"via:3,3": directions.ModeBicycling,
	} {
		req, ok := dir.requestFor(waypoints)
		require.True(t, ok, waypoints)
		assert.Equal(t, want, req.Mode, waypoints)
	}
}

func TestSuggestRoutes_MissingDirectionsParams(t *testing.T) {
	gen := &fakeGenerator{text: `{"message":"m","routes":[
		{"name":"No params","recommendationTier":"RECOMMENDED","safetyScore":90,"efficiencyScore":90},
		{"name":"Blank endpoints","recommendationTier":"ALTERNATIVE","safetyScore":60,"efficiencyScore":90,"directionsParams":{"waypoints":"via:9,9"}}
	]}`}
	dir := newFakeDirections()

	resp, err := newService(gen, dir, nil).
		SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), []hazard.Summary{{ID: "far", Latitude: 10, Longitude: 10}})
	require.NoError(t, err)

	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "Blank endpoints", resp.Routes[0].Name)
	assert.Equal(t, int32(1), dir.calls.Load())

	req, ok := dir.requestFor("via:9,9")
	require.True(t, ok)
	assert.Equal(t, "43.037,-76.1336", req.Origin, "origin falls back to the request")
	assert.Equal(t, "43.03,-76.126", req.Destination)
	assert.Equal(t, directions.ModeDriving, req.Mode, "mode falls back to the vehicle")
}

func TestSuggestRoutes_AllCandidatesDropped(t *testing.T) {
	gen := &fakeGenerator{text: answer("here you go",
		routeJSON("A", "RECOMMENDED", 90, 90, "via:1,1", "driving"),
		routeJSON("B", "ALTERNATIVE", 60, 90, "via:2,2", "driving"),
	)}
	dir := newFakeDirections()
	dir.failures["via:1,1"] = directions.ErrProviderUnavailable
	dir.failures["via:2,2"] = directions.ErrNoRoute

	resp, err := newService(gen, dir, nil).
		SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), []hazard.Summary{criticalOnPath()})
	require.NoError(t, err)

	assert.Equal(t, "here you go", resp.Message)
	assert.Empty(t, resp.Routes)
}

func TestSuggestRoutes_MalformedAnswerFailsBeforeDirections(t *testing.T) {
	tests := map[string]struct {
		text     string
		sentinel error
	}{
		"missing routes": {`{"message":"sorry"}`, suggestion.ErrMalformedSuggestion},
		"prose":          {`I cannot help with that.`, suggestion.ErrMalformedSuggestion},
		"empty routes":   {`{"routes":[]}`, suggestion.ErrNoCandidates},
		"bad score":      {answer("", routeJSON("A", "RECOMMENDED", 150, 90, "", "driving")), suggestion.ErrMalformedSuggestion},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := newFakeDirections()
			_, err := newService(&fakeGenerator{text: tt.text}, dir, nil).
				SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), nil)

			assert.ErrorIs(t, err, tt.sentinel)
			var perr *suggestion.ParseError
			assert.ErrorAs(t, err, &perr)
			assert.Equal(t, int32(0), dir.calls.Load())
		})
	}
}

func TestSuggestRoutes_GeminiAnswerWithoutCandidates(t *testing.T) {
	for name, body := range map[string]string{
		"empty list":    `{"candidates":[]}`,
		"omitted":       `{"modelVersion":"gemini-2.0-flash"}`,
		"blank content": `{"candidates":[{"content":{"parts":[{"text":" "}]}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			t.Cleanup(server.Close)

			gen := gemini.NewClient(gemini.ClientConfig{
				APIKey:     "gemini-key",
				BaseURL:    server.URL,
				HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
				Logger:     zerolog.Nop(),
			})
			dir := newFakeDirections()

			_, err := newService(gen, dir, nil).SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), nil)

			assert.ErrorIs(t, err, suggestion.ErrNoCandidates)
			var parseErr *suggestion.ParseError
			assert.ErrorAs(t, err, &parseErr)
			var providerErr *suggestion.ProviderError
			assert.False(t, errors.As(err, &providerErr))
			assert.Equal(t, int32(0), dir.calls.Load())
		})
	}
}

// nilGenerator answers with neither a response nor an error.
type nilGenerator struct{}

func (nilGenerator) Generate(context.Context, genai.GenerateRequest) (*genai.RawResponse, error) {
	return nil, nil
}

func (nilGenerator) Name() string { return "nil" }

func TestSuggestRoutes_NilGeneratorResponse(t *testing.T) {
	_, err := newService(nilGenerator{}, newFakeDirections(), nil).
		SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), nil)

	assert.ErrorIs(t, err, suggestion.ErrNoCandidates)
}

func TestSuggestRoutes_GeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: &genai.Error{Provider: "fake", StatusCode: 503, Err: genai.ErrUnavailable}}
	dir := newFakeDirections()

	_, err := newService(gen, dir, nil).SuggestRoutes(context.Background(), tripRequest(directions.VehicleCar), nil)

	var perr *suggestion.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fake", perr.Provider)
	assert.ErrorIs(t, err, genai.ErrUnavailable)
	assert.Equal(t, int32(0), dir.calls.Load())
}

func TestSuggestRoutes_InvalidRequest(t *testing.T) {
	gen := &fakeGenerator{text: answer("", routeJSON("A", "RECOMMENDED", 90, 90, "", "driving"))}
	req := tripRequest("TRAIN")
	req.Origin.Lat = 91

	_, err := newService(gen, newFakeDirections(), nil).SuggestRoutes(context.Background(), req, nil)

	var verr *suggestion.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"origin.latitude", "vehicleType"}, fields)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestValidate(t *testing.T) {
	long := make([]rune, suggestion.MaxUserMessageLength+1)
	for i := range long {
		long[i] = 'é'
	}

	tests := []struct {
		name   string
		mutate func(*suggestion.Request)
		fields []string
	}{
		{"valid", func(*suggestion.Request) {}, nil},
		{"destination longitude", func(r *suggestion.Request) { r.Destination.Lng = -181 }, []string{"destination.longitude"}},
		{"empty vehicle", func(r *suggestion.Request) { r.Vehicle = "" }, []string{"vehicleType"}},
		{"long message", func(r *suggestion.Request) { r.UserMessage = string(long) }, []string{"userMessage"}},
		{"max message", func(r *suggestion.Request) { r.UserMessage = string(long[1:]) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tripRequest(directions.VehicleWalking)
			tt.mutate(&req)

			err := suggestion.Validate(req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *suggestion.ValidationError
			require.True(t, errors.As(err, &verr))
			got := make([]string, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestSuggestRoutes_CanceledContext(t *testing.T) {
	gen := &fakeGenerator{text: answer("", routeJSON("A", "RECOMMENDED", 90, 90, "via:1,1", "driving"))}
	dir := newFakeDirections()
	dir.delays["via:1,1"] = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newService(gen, dir, nil).SuggestRoutes(ctx, tripRequest(directions.VehicleCar), []hazard.Summary{criticalOnPath()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSuggestForTrip(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	src := hazard.NewInMemorySource(
		hazard.Record{Summary: criticalOnPath(), Status: hazard.StatusActive},
		hazard.Record{Summary: hazard.Summary{ID: "hzd_old", Latitude: onPathPoint.Lat, Longitude: onPathPoint.Lon, Severity: hazard.SeverityLow}, Status: hazard.StatusActive, ExpiresAt: &expired},
		hazard.Record{Summary: hazard.Summary{ID: "hzd_pending", Latitude: onPathPoint.Lat, Longitude: onPathPoint.Lon, Severity: hazard.SeverityLow}, Status: hazard.StatusPending},
		hazard.Record{Summary: hazard.Summary{ID: "hzd_far", Latitude: 40.7128, Longitude: -74.0060, Severity: hazard.SeverityHigh, Description: "Bridge closed"}, Status: hazard.StatusActive},
	)
	gen := &fakeGenerator{text: answer("", routeJSON("Straight", "ALTERNATIVE", 60, 100, "", "bicycling"))}

	resp, err := newService(gen, newFakeDirections(), src).SuggestForTrip(context.Background(), tripRequest(directions.VehicleBicycle))
	require.NoError(t, err)

	assert.Equal(t, 1, resp.HazardsConsidered)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, suggestion.TierRisky, resp.Routes[0].Tier)
	assert.Contains(t, gen.last.UserPrompt, "Flooded underpass")
	assert.NotContains(t, gen.last.UserPrompt, "Bridge closed")
}

func TestSuggestForTrip_NoSource(t *testing.T) {
	_, err := newService(&fakeGenerator{}, newFakeDirections(), nil).SuggestForTrip(context.Background(), tripRequest(directions.VehicleCar))
	assert.ErrorIs(t, err, suggestion.ErrNoHazardSource)
}
