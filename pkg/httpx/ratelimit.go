package httpx

import (
	"math"
	"net/http"
	"strconv"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/ratelimit"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// RateLimitMiddleware takes one token from lim for every request, keyed by
// keyFn. Denied requests get 429 with Retry-After in whole seconds. If the
// limiter itself fails the request is refused with 503 rather than let
// through unmetered.
func RateLimitMiddleware(lim ratelimit.Limiter, keyFn KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyFn(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			d, err := lim.Allow(ctx, key)
			if err != nil {
				log.Error("rate limiter unavailable", slogx.Err(err))
				WriteProblem(w, http.StatusServiceUnavailable, "Rate limiter unavailable. Please try again later.")
				return
			}

			if !d.Allowed {
				retryAfter := max(int(math.Ceil(d.RetryAfter.Seconds())), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteProblem(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
