package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dverstak/triage/internal/api/response"
	"github.com/dverstak/triage/internal/cache"
)

// rateWindow is the fixed counting window. Counters expire with the window,
// so a quiet minute resets the budget.
const rateWindow = time.Minute

const defaultRequestsPerMinute = 60

// RateLimit caps requests per API key per minute, counted in Redis.
type RateLimit struct {
	cache     cache.Cache
	perWindow int
}

func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, perWindow: requestsPerMin}
}

// Limit enforces the per-key budget. Requests without an authenticated key
// prefix in context pass through untouched, as do requests when Redis is
// unreachable. A polling client that overruns gets a 429 with Retry-After.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(prefix), rateWindow)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(rl.perWindow) - count
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.perWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateWindow).Unix(), 10))

		if count > int64(rl.perWindow) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
