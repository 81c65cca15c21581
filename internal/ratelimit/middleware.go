package ratelimit

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"pastel/internal/auth"
)

type Options struct {
	// Skip bypasses rate limiting entirely.
	Skip bool
	// Endpoint overrides the policy key derived from the request path.
	Endpoint string
}

// Middleware gates a mutating endpoint with the plan-tiered fixed-window
// policy. A failure of the limiter itself is logged and the request is
// let through: the feature stays available during a persistence outage.
func Middleware(limiter *Limiter, users *auth.Users, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip {
				next.ServeHTTP(w, r)
				return
			}

			sub, ok := auth.SubjectFromContext(r.Context())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "Unauthorized"})
				return
			}

			user, err := users.FindOrCreate(r.Context(), sub)
			if err != nil {
				log.Printf("[ratelimit] user lookup error, failing open: %v\n", err)
				next.ServeHTTP(w, r)
				return
			}

			endpoint := opts.Endpoint
			if endpoint == "" {
				endpoint = EndpointFromPath(r.URL.Path)
			}

			res, err := limiter.Check(r.Context(), user.ID, endpoint, user.Plan)
			if err != nil {
				log.Printf("[ratelimit] check error, failing open: %v\n", err)
				next.ServeHTTP(w, r)
				return
			}

			if !res.Success {
				setLimitHeaders(w, res)
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":      "Rate limit exceeded",
					"message":    fmt.Sprintf("You have exceeded the rate limit for %s. Please try again later.", endpoint),
					"limit":      res.Limit,
					"remaining":  res.Remaining,
					"reset":      res.Reset.Format(time.RFC3339),
					"retryAfter": res.RetryAfter,
				})
				return
			}

			setLimitHeaders(w, res)
			next.ServeHTTP(w, r)
		})
	}
}

func setLimitHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", res.Reset.Format(time.RFC3339))
}
