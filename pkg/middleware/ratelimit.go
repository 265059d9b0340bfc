package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/huddlehq/huddle/pkg/config"
	"github.com/huddlehq/huddle/pkg/contextkeys"
	"github.com/huddlehq/huddle/pkg/httputil"
	"github.com/huddlehq/huddle/pkg/observability"
)

// RateLimiter is a Redis-backed fixed-window rate limiter. Counters are
// shared across instances; Redis failures fail open so a cache outage
// never takes the API down with it.
type RateLimiter struct {
	redis  *redis.Client
	cfg    config.RateLimitConfig
	logger *observability.Logger
	prefix string
}

// NewRateLimiter creates a Redis-backed rate limiter
func NewRateLimiter(redisClient *redis.Client, cfg config.RateLimitConfig, logger *observability.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		cfg:    cfg,
		logger: logger,
		prefix: "huddle:ratelimit",
	}
}

// allow increments the caller's window counter and reports whether the
// request is within the limit, along with the remaining quota.
func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, int, error) {
	redisKey := rl.prefix + ":" + key

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.cfg.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("rate limit counter: %w", err)
	}

	count := incr.Val()
	remaining := rl.cfg.RequestsPerWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(rl.cfg.RequestsPerWindow), remaining, nil
}

func (rl *RateLimiter) ttl(ctx context.Context, key string) time.Duration {
	ttl, err := rl.redis.TTL(ctx, rl.prefix+":"+key).Result()
	if err != nil || ttl < 0 {
		return rl.cfg.WindowDuration
	}
	return ttl
}

// Handler wraps an HTTP handler with rate limiting. Authenticated
// requests are limited per user, anonymous requests per client IP.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key := "ip:" + clientIP(r)
		if userID := contextkeys.UserID(ctx); userID != "" {
			key = "user:" + userID
		}

		allowed, remaining, err := rl.allow(ctx, key)
		if err != nil {
			// Fail open on Redis errors
			rl.logger.WithError(err).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			ttl := rl.ttl(ctx, key)
			w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HealthCheck verifies Redis connectivity
func (rl *RateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}

// clientIP resolves the originating client address, preferring proxy
// headers over the socket peer
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
