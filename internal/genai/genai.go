// Package genai defines the boundary to a generative text model.
package genai

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for generation.
var (
	// ErrUnavailable indicates the model endpoint is unreachable or the circuit is open.
	ErrUnavailable = errors.New("generative model unavailable")
	// ErrRateLimited indicates the model quota has been exceeded.
	ErrRateLimited = errors.New("generative model rate limit exceeded")
	// ErrRejected indicates the model rejected the request (bad key, bad request, blocked prompt).
	ErrRejected = errors.New("generative model rejected the request")
	// ErrEmptyResponse indicates the model answered without any text.
	ErrEmptyResponse = errors.New("generative model returned no text")
)

// Generator produces text from a system and a user prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*RawResponse, error)
	// Name returns the generator identifier for logging and metrics.
	Name() string
}

// GenerateRequest is one prompt to the model.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	// JSON asks the model to answer with a JSON document only.
	JSON bool
}

// RawResponse is the model's untrusted text output.
type RawResponse struct {
	Text         string
	Model        string
	FinishReason string
}

// Error wraps a failed generation call.
type Error struct {
	Provider   string
	StatusCode int // HTTP status, 0 for transport failures
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
