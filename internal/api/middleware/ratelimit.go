package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/riskdesk/riskdesk/internal/api/models"
)

// RateLimitConfig is a fixed-window request budget.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// PerMinute returns a limit of n requests per minute. Non-positive n yields
// the zero config, which callers treat as "use the default".
func PerMinute(n int) RateLimitConfig {
	if n <= 0 {
		return RateLimitConfig{}
	}
	return RateLimitConfig{RequestLimit: n, WindowLength: time.Minute}
}

// OrDefault returns c, or def when c is unset.
func (c RateLimitConfig) OrDefault(def RateLimitConfig) RateLimitConfig {
	if c.RequestLimit <= 0 || c.WindowLength <= 0 {
		return def
	}
	return c
}

// Budgets used when configuration leaves a class unset.
var (
	AdminRateLimit     = PerMinute(10)
	ExpensiveRateLimit = PerMinute(30) // image classification
	StandardRateLimit  = PerMinute(100)
)

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg.WindowLength)),
	)
}

// RateLimitBySubject creates a rate limiter keyed by the token subject.
// Falls back to IP-based rate limiting for unauthenticated requests, so it
// must run after Auth to see the subject.
func RateLimitBySubject(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyBySubjectOrIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg.WindowLength)),
	)
}

func keyBySubjectOrIP(r *http.Request) (string, error) {
	if subject := GetSubject(r.Context()); subject != "" {
		return "sub:" + subject, nil
	}
	return httprate.KeyByRealIP(r)
}

// rateLimitExceeded writes an RFC7807 Problem. Retry-After is the full window
// since httprate does not expose the reset time to the limit handler.
func rateLimitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
