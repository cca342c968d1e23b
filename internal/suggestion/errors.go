package suggestion

import (
	"errors"
	"fmt"
)

// Parse failure categories.
var (
	// ErrNoCandidates indicates the model proposed no routes.
	ErrNoCandidates = errors.New("model proposed no candidate routes")
	// ErrMalformedSuggestion indicates the model output does not match the response schema.
	ErrMalformedSuggestion = errors.New("malformed route suggestion")
)

// FieldError describes one invalid request field.
type FieldError struct {
	// Field is the JSON path of the field, e.g. "origin.latitude".
	Field   string
	Message string
}

// ValidationError reports invalid caller input. Nothing was attempted.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0].Field + " " + e.Errors[0].Message
	}
	return fmt.Sprintf("validation failed: %d invalid fields", len(e.Errors))
}

// ProviderError reports a failed call to the generative model or directions provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return "provider " + e.Provider + " failed: " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports unusable model output. It wraps ErrNoCandidates or
// ErrMalformedSuggestion.
type ParseError struct {
	// Field locates the problem, e.g. "routes[1].safetyScore"; empty for document-level problems.
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "parsing suggestion: " + e.Err.Error()
	}
	return "parsing suggestion: " + e.Field + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func malformed(field, format string, args ...any) *ParseError {
	return &ParseError{
		Field: field,
		Err:   fmt.Errorf("%w: "+format, append([]any{ErrMalformedSuggestion}, args...)...),
	}
}
