package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/routecast/routecast/internal/api/models"
)

// APIKeyHeader carries the caller's weather provider key.
const APIKeyHeader = "X-Weather-Api-Key"

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// ScoringRateLimit applies to endpoints that fan out to the weather
	// provider (30 req/min).
	ScoringRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// UploadRateLimit applies to multipart GPX uploads (10 req/min).
	UploadRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to cheap read endpoints (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter keyed on the client IP (as resolved
// by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitHandler(cfg)),
	)
}

// RateLimitByAPIKey creates a rate limiter keyed on a hash of the caller's
// weather API key, falling back to the client IP when no key is sent.
func RateLimitByAPIKey(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByAPIKeyOrIP),
		httprate.WithLimitHandler(limitHandler(cfg)),
	)
}

// keyByAPIKeyOrIP never returns the raw key so it cannot leak into limiter
// state.
func keyByAPIKeyOrIP(r *http.Request) (string, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		sum := sha256.Sum256([]byte(key))
		return "key:" + hex.EncodeToString(sum[:8]), nil
	}
	return httprate.KeyByRealIP(r)
}

// limitHandler writes an RFC7807 problem when the limit is exceeded.
func limitHandler(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path

		// httprate does not expose the reset time; the full window is an
		// upper bound.
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
