package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "dualbudget/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.7" })
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/profiles", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, strings.HasPrefix(seen, "req_"), "generated id %q", seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
}

func TestMiddleware_KeepsValidIncomingID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		kept     bool
	}{
		{"plain", "abc-123_X", true},
		{"injection", "abc\nlevel=ERROR", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := NewMiddleware(nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.kept, seen == tt.incoming)
		})
	}
}

func TestMiddleware_ScopesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := applog.New(applog.Config{Component: applog.ComponentHTTP, Format: "json", Output: &buf})

	h := applog.Middleware(base)(NewMiddleware(nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Handling")
		http.Error(w, "boom", http.StatusInternalServerError)
	})))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-fixed")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.Equal(t, 2, strings.Count(out, `"request_id":"req-fixed"`), out)
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"status_code":500`)
}

func TestMiddleware_Metrics(t *testing.T) {
	m := NewMiddleware(nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			w.WriteHeader(http.StatusOK)
		}
	}))

	for _, p := range []string{"/ok", "/fail", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	got := m.GetMetrics()
	assert.Equal(t, int64(3), got.TotalRequests)
	assert.Equal(t, int64(1), got.ServerErrors)
	assert.Zero(t, Metrics{}.AverageResponseTime())
}
