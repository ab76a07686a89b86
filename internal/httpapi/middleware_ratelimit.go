package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RateLimitMiddleware applies the limit stored on the authenticated token.
// Requests without a token or with an empty limit pass through.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  zerolog.Logger

	// parsed caches ParseRateLimit results by their source string; a nil
	// entry marks a limit that failed to parse.
	parsed sync.Map
}

// NewRateLimitMiddleware creates a rate limiting middleware over limiter.
func NewRateLimitMiddleware(limiter *RateLimiter, logger zerolog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger.With().Str("middleware", "ratelimit").Logger(),
	}
}

func (m *RateLimitMiddleware) limitFor(tokenID, raw string) *RateLimit {
	if raw == "" {
		return nil
	}
	if cached, ok := m.parsed.Load(raw); ok {
		return cached.(*RateLimit)
	}

	limit, err := ParseRateLimit(raw)
	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("token_id", tokenID).
			Str("rate_limit", raw).
			Msg("Ignoring malformed token rate limit")
		limit = nil
	}
	m.parsed.Store(raw, limit)
	return limit
}

// Handler wraps next with the limit check.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := GetAuthenticatedToken(r.Context())
		if token == nil {
			next.ServeHTTP(w, r)
			return
		}
		limit := m.limitFor(token.TokenID, token.RateLimit)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed := m.limiter.Allow(token.TokenID, limit)
		reset := m.limiter.ResetTime(token.TokenID, limit)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		h.Set("X-RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Requests, int(limit.Window.Seconds())))

		if allowed {
			h.Set("X-RateLimit-Remaining", strconv.Itoa(m.limiter.Remaining(token.TokenID, limit)))
			next.ServeHTTP(w, r)
			return
		}

		wait := retryAfterSeconds(reset, time.Now())
		h.Set("X-RateLimit-Remaining", "0")
		h.Set("Retry-After", strconv.Itoa(wait))

		m.logger.Warn().
			Str("token_id", token.TokenID).
			Str("path", r.URL.Path).
			Int("retry_after_seconds", wait).
			Msg("Rate limit exceeded")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// retryAfterSeconds rounds up to whole seconds, never below one.
func retryAfterSeconds(reset, now time.Time) int {
	d := reset.Sub(now)
	secs := int(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		return 1
	}
	return secs
}
