// Package googlemaps implements directions.Provider on the Google Directions API.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hazardhub/hazardhub/internal/directions"
	"github.com/hazardhub/hazardhub/internal/provider/resilience"
	"github.com/hazardhub/hazardhub/internal/telemetry"
)

const (
	// ProviderName identifies this directions provider.
	ProviderName = "googlemaps"

	// DefaultBaseURL is the Google Maps Platform base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	directionsPath = "/maps/api/directions/json"
)

// ClientConfig holds configuration for the Google Directions client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client registered with Registry.
	HTTPClient *resilience.Client

	// Registry receives the default client for health reporting (optional).
	Registry *resilience.Registry

	// Timeout bounds each HTTP call of the default client (default: 10 seconds).
	Timeout time.Duration

	// Metrics records request durations (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Directions API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	metrics    *telemetry.ProviderMetrics
	logger     zerolog.Logger
}

// NewClient creates a new Google Directions client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Registry = cfg.Registry
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetRoute fetches directions. Any status other than OK is returned as a
// *directions.ProviderError.
func (c *Client) GetRoute(ctx context.Context, req directions.Request) (resp *directions.ProviderResponse, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(ctx, ProviderName, "directions", time.Since(start), err)
	}()

	q := url.Values{}
	q.Set("origin", req.Origin)
	q.Set("destination", req.Destination)
	q.Set("mode", string(req.Mode))
	if strings.TrimSpace(req.Waypoints) != "" {
		q.Set("waypoints", req.Waypoints)
	}
	q.Set("key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+directionsPath+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Info().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Str("waypoints", req.Waypoints).
		Str("mode", string(req.Mode)).
		Msg("calling directions API")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &directions.ProviderError{
			Provider: ProviderName,
			Message:  redact(err),
			Err:      directions.ErrProviderUnavailable,
		}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4<<10))
		return nil, httpStatusError(httpResp.StatusCode, body)
	}

	var raw directionsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&raw); err != nil {
		return nil, &directions.ProviderError{
			Provider: ProviderName,
			Message:  "decoding response: " + err.Error(),
			Err:      directions.ErrProviderStatus,
		}
	}

	if raw.Status != "OK" {
		c.logger.Error().Str("status", raw.Status).Str("error_message", raw.ErrorMessage).Msg("directions API error")
		return nil, statusError(raw.Status, raw.ErrorMessage)
	}

	c.logger.Info().Int("routes", len(raw.Routes)).Msg("directions API returned routes")
	return toProviderResponse(&raw), nil
}

func toProviderResponse(raw *directionsResponse) *directions.ProviderResponse {
	out := &directions.ProviderResponse{
		Status:    raw.Status,
		Routes:    make([]directions.Route, 0, len(raw.Routes)),
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
	for _, r := range raw.Routes {
		route := directions.Route{
			Summary:          r.Summary,
			OverviewPolyline: r.OverviewPolyline.Points,
			Legs:             make([]directions.Leg, 0, len(r.Legs)),
		}
		for _, l := range r.Legs {
			route.Legs = append(route.Legs, directions.Leg{
				DistanceMeters:  l.Distance.Value,
				DurationSeconds: l.Duration.Value,
			})
		}
		out.Routes = append(out.Routes, route)
	}
	return out
}

// statusError maps a Directions API status to a provider error.
func statusError(status, message string) error {
	sentinel := directions.ErrProviderStatus
	switch status {
	case "ZERO_RESULTS", "NOT_FOUND":
		sentinel = directions.ErrNoRoute
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		sentinel = directions.ErrRateLimited
	case "INVALID_REQUEST", "MAX_WAYPOINTS_EXCEEDED", "MAX_ROUTE_LENGTH_EXCEEDED":
		sentinel = directions.ErrInvalidRequest
	case "UNKNOWN_ERROR":
		sentinel = directions.ErrProviderUnavailable
	}
	if message == "" {
		message = "directions API returned " + status
	}
	return &directions.ProviderError{
		Provider: ProviderName,
		Status:   status,
		Message:  message,
		Err:      sentinel,
	}
}

func httpStatusError(code int, body []byte) error {
	var raw directionsResponse
	msg := http.StatusText(code)
	if err := json.Unmarshal(body, &raw); err == nil && raw.ErrorMessage != "" {
		msg = raw.ErrorMessage
	}

	sentinel := directions.ErrProviderStatus
	switch {
	case code == http.StatusTooManyRequests:
		sentinel = directions.ErrRateLimited
	case code >= 500:
		sentinel = directions.ErrProviderUnavailable
	}
	return &directions.ProviderError{
		Provider: ProviderName,
		Status:   fmt.Sprintf("HTTP_%d", code),
		Message:  msg,
		Err:      sentinel,
	}
}

// redact drops the request URL, which carries the API key, from transport errors.
func redact(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Op + ": " + uerr.Err.Error()
	}
	return err.Error()
}

// Ensure Client implements directions.Provider.
var _ directions.Provider = (*Client)(nil)
