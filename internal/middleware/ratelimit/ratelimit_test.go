package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, cfg Config, now *time.Time) *Limiter {
	t.Helper()
	rl := NewLimiter(cfg)
	rl.now = func() time.Time { return *now }
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllow_WindowResets(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, Config{RequestsPerMinute: 3}, &now)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.1.1.1"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "clients are limited independently")

	// Steady traffic does not extend the window.
	now = now.Add(59 * time.Second)
	assert.False(t, rl.Allow("1.1.1.1"))
	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))

	assert.Equal(t, Metrics{Rejected: 2, ClientCount: 2}, rl.GetMetrics())
}

func TestNewLimiter_Defaults(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	assert.Equal(t, 60, rl.requestsPerMinute)
	assert.Equal(t, 5*time.Minute, rl.cleanupInterval)
	assert.False(t, rl.limitReads)
}

func TestCleanupStaleEntries(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, DefaultConfig(), &now)

	rl.Allow("old")
	now = now.Add(9 * time.Minute)
	rl.Allow("recent")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestStop_Idempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}

func TestMiddleware_LimitsWritesOnly(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, Config{RequestsPerMinute: 1}, &now)
	ip := func(*http.Request) string { return "9.9.9.9" }
	h := rl.Middleware(ip, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 4)
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodGet, http.MethodPut} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/api/x", nil))
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 200, 429}, codes)
}

func TestMiddleware_CustomRejection(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, Config{RequestsPerMinute: 1, LimitReads: true}, &now)
	onLimit := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }
	h := rl.Middleware(func(*http.Request) string { return "a" }, onLimit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
