package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"starter/internal/models"
)

// Response header names.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Middleware returns HTTP middleware that admits or rejects each request
// through limiter. Rejected requests never reach next.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Check(r)
			if !Apply(w, r, limiter, d) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Apply writes the rate limit headers for d. When d is a rejection it also
// writes the 429 response and returns false; the caller must stop handling
// the request.
func Apply(w http.ResponseWriter, r *http.Request, limiter *Limiter, d Decision) bool {
	cfg := limiter.Config()

	// Always set rate limit headers
	w.Header().Set(HeaderLimit, strconv.Itoa(cfg.MaxRequests))
	w.Header().Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	w.Header().Set(HeaderReset, strconv.FormatInt(d.ResetAt.Unix(), 10))

	if d.Allowed {
		return true
	}

	retryAfterSecs := retryAfterSeconds(d.RetryAfter(limiter.Now()))
	w.Header().Set(HeaderRetryAfter, strconv.FormatInt(retryAfterSecs, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	if err := json.NewEncoder(w).Encode(models.NewRateLimitResponse(cfg.Message)); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}

	trace.SpanFromContext(r.Context()).AddEvent("ratelimit.rejected",
		trace.WithAttributes(
			attribute.String("ratelimit.limiter", cfg.Name),
			attribute.Int("ratelimit.limit", cfg.MaxRequests),
			attribute.Int64("ratelimit.retry_after", retryAfterSecs),
		),
	)

	slog.Warn("Rate limit exceeded",
		"limiter", cfg.Name,
		"key", d.Key,
		"limit", cfg.MaxRequests,
		"retry_after", retryAfterSecs,
	)
	return false
}

// retryAfterSeconds rounds up to whole seconds.
func retryAfterSeconds(wait time.Duration) int64 {
	if wait <= 0 {
		return 0
	}
	return int64((wait + time.Second - 1) / time.Second)
}
