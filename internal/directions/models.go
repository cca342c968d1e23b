// Package directions resolves real route geometry, distance and duration
// from an external directions provider.
package directions

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for directions operations.
var (
	// ErrProviderUnavailable indicates the provider is unreachable or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("directions provider unavailable")
	// ErrProviderStatus indicates the provider answered with a non-OK status.
	ErrProviderStatus = errors.New("directions provider returned non-OK status")
	// ErrNoRoute indicates the provider found no route between the given points.
	ErrNoRoute = errors.New("no route found between the given points")
	// ErrRateLimited indicates the provider quota has been exceeded.
	ErrRateLimited = errors.New("directions provider rate limit exceeded")
	// ErrInvalidRequest indicates the request was rejected as malformed.
	ErrInvalidRequest = errors.New("invalid directions request")
)

// Provider defines the interface for directions providers.
type Provider interface {
	// GetRoute retrieves routes between two points, optionally through waypoints.
	GetRoute(ctx context.Context, req Request) (*ProviderResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Request is a directions query. Origin and destination are "lat,lng" strings
// as produced by the suggestion model; they are passed through unchanged.
type Request struct {
	Origin      string
	Destination string
	// Waypoints is a pipe-separated list, e.g. "via:43.03,-76.12|via:43.02,-76.13".
	Waypoints string
	Mode      Mode
}

// ProviderResponse is the provider's answer, reduced to the fields this service reads.
type ProviderResponse struct {
	Status    string
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is one alternative returned by the provider.
type Route struct {
	Summary          string
	OverviewPolyline string
	Legs             []Leg
}

// Leg is the part of a route between two consecutive stops.
type Leg struct {
	DistanceMeters  int
	DurationSeconds int
}

// ProviderError wraps a failed directions call.
type ProviderError struct {
	Provider string // Provider that generated the error
	Status   string // Provider status, e.g. ZERO_RESULTS, or HTTP_503
	Message  string // Human-readable error message
	Err      error  // Underlying sentinel
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.Status != "" {
		msg += " (" + e.Status + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *ProviderError) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimited)
}
