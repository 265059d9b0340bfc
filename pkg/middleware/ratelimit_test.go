package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/pkg/config"
	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/observability"
)

func newTestRateLimiter(t *testing.T, limit int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.RateLimitConfig{
		Enabled:           true,
		RequestsPerWindow: limit,
		WindowDuration:    time.Minute,
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewRateLimiter(client, cfg, logger), mr
}

func rateLimitedHandler(rl *RateLimiter) http.Handler {
	return rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequestAs(handler http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	if userID != "" {
		req = req.WithContext(contextkeys.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 3)
	handler := rateLimitedHandler(rl)

	for i := 0; i < 3; i++ {
		rec := doRequestAs(handler, "user-1")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequestAs(handler, "user-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiterIsolatesUsers(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 1)
	handler := rateLimitedHandler(rl)

	require.Equal(t, http.StatusOK, doRequestAs(handler, "user-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequestAs(handler, "user-1").Code)

	// A different user has their own window
	assert.Equal(t, http.StatusOK, doRequestAs(handler, "user-2").Code)
}

func TestRateLimiterAnonymousKeyedByIP(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 1)
	handler := rateLimitedHandler(rl)

	require.Equal(t, http.StatusOK, doRequestAs(handler, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequestAs(handler, "").Code)
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl, mr := newTestRateLimiter(t, 1)
	handler := rateLimitedHandler(rl)

	require.Equal(t, http.StatusOK, doRequestAs(handler, "user-1").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequestAs(handler, "user-1").Code)

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, doRequestAs(handler, "user-1").Code)
}

func TestRateLimiterFailsOpenWhenRedisDown(t *testing.T) {
	rl, mr := newTestRateLimiter(t, 1)
	handler := rateLimitedHandler(rl)
	mr.Close()

	// Redis unavailable must not block requests
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequestAs(handler, "user-1").Code)
	}
}

func TestRateLimiterSetsHeaders(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 10)
	handler := rateLimitedHandler(rl)

	rec := doRequestAs(handler, "user-1")
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"socket peer", "192.168.1.5:1234", nil, "192.168.1.5"},
		{"x-forwarded-for", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"x-forwarded-for chain", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "203.0.113.7"},
		{"x-real-ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
