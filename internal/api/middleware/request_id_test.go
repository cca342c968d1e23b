package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hazardhub/hazardhub/internal/api/middleware"
)

func serveWithRequestID(header string) (ctxID string, rec *httptest.ResponseRecorder) {
	h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = middleware.GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/routes/rte_1", http.NoBody)
	if header != "" {
		req.Header.Set(middleware.RequestIDHeader, header)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ctxID, rec
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	id, rec := serveWithRequestID("")

	assert.True(t, strings.HasPrefix(id, "req_"), id)
	assert.Len(t, id, len("req_")+32)
	assert.Equal(t, id, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRequestID_CallerSuppliedID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		kept   bool
	}{
		{"plain", "trip-planner.42_a", true},
		{"uuid", "0af76519-16cd-43dd-8448-eb211c80319c", true},
		{"spaces", "not an id", false},
		{"newline injection", "abc\nlevel=error", false},
		{"too long", strings.Repeat("a", 129), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, rec := serveWithRequestID(tt.header)

			if tt.kept {
				assert.Equal(t, tt.header, id)
			} else {
				assert.NotEqual(t, tt.header, id)
				assert.True(t, strings.HasPrefix(id, "req_"), id)
			}
			assert.Equal(t, id, rec.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestGetRequestID_EmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _ := serveWithRequestID("")
		assert.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}
