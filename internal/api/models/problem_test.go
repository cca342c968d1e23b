package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardhub/hazardhub/internal/api/models"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblem_WithDetail(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithDetail("origin.lat must be between -90 and 90")

	assert.Equal(t, "origin.lat must be between -90 and 90", p.Detail)
}

func TestProblem_WithInstance(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithInstance("/v1/ai/suggest-routes")

	assert.Equal(t, "/v1/ai/suggest-routes", p.Instance)
}

func TestProblem_WithErrors(t *testing.T) {
	fieldErrors := []models.FieldError{
		{Field: "origin.lat", Message: "must be between -90 and 90", Code: "OUT_OF_RANGE"},
		{Field: "origin.lon", Message: "required", Code: "REQUIRED"},
	}

	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithErrors(fieldErrors)

	require.Len(t, p.Errors, 2)
	assert.Equal(t, "origin.lat", p.Errors[0].Field)
	assert.Equal(t, "must be between -90 and 90", p.Errors[0].Message)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "tripId", Message: "is required"},
	})
	p.Instance = "/v1/routes"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/routes", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "tripId", result.Errors[0].Field)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		status  int
		typeURI string
		title   string
		code    string
	}{
		{"bad request", models.NewBadRequest("req_123", "invalid data", nil), http.StatusBadRequest, models.ProblemTypeValidation, "Validation error", models.CodeValidationFailed},
		{"not found", models.NewNotFound("req_123", "invalid data"), http.StatusNotFound, models.ProblemTypeNotFound, "Not found", ""},
		{"conflict", models.NewConflict("req_123", "invalid data"), http.StatusConflict, models.ProblemTypeConflict, "Conflict", ""},
		{"too many", models.NewTooManyRequests("req_123", "invalid data"), http.StatusTooManyRequests, models.ProblemTypeTooManyRequests, "Too many requests", models.CodeRateLimited},
		{"internal", models.NewInternalError("req_123", "invalid data"), http.StatusInternalServerError, models.ProblemTypeInternal, "Internal server error", ""},
		{"bad gateway", models.NewBadGateway("req_123", "invalid data"), http.StatusBadGateway, models.ProblemTypeBadGateway, "Upstream error", ""},
		{"unavailable", models.NewServiceUnavailable("req_123", "invalid data"), http.StatusServiceUnavailable, models.ProblemTypeUnavailable, "Service unavailable", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.typeURI, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.code, tt.problem.Code)
			assert.Equal(t, "invalid data", tt.problem.Detail)
			assert.Equal(t, "req_123", tt.problem.TraceID)
		})
	}
}

func TestForStatus(t *testing.T) {
	p := models.ForStatus(http.StatusUnsupportedMediaType, "req_1", "")
	assert.Equal(t, models.ProblemTypeUnsupportedMedia, p.Type)
	assert.Empty(t, p.Detail)

	p = models.ForStatus(http.StatusTeapot, "req_1", "short and stout")
	assert.Equal(t, "about:blank", p.Type)
	assert.Equal(t, "I'm a teapot", p.Title)
	assert.Equal(t, "short and stout", p.Detail)
}

func TestProblem_CodeSerialization(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewServiceUnavailable("", "model overloaded").WithCode(models.CodeGeneratorUnavailable).Write(w)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.CodeGeneratorUnavailable, body["code"])
	assert.Empty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	models.NewConflict("req_1", "").Write(w)
	body = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "code")
	assert.NotContains(t, body, "detail")
}
