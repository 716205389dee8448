package core

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tradehax/internal/gate"
	"tradehax/internal/ratelimit"
	"tradehax/internal/types"
)

// RateLimit enforces a fixed-window per-caller limit for an endpoint class.
// The key is derived from the class name and the caller's network address, so
// separate classes meter independently.
//
// Every response (allowed or denied) carries:
//   - X-RateLimit-Limit: the window's maximum request count.
//   - X-RateLimit-Remaining: requests left in the current window.
//
// Denied requests additionally carry Retry-After (whole seconds, rounded up)
// and a 429 rate_limit_exceeded body.
func (s *Server) RateLimit(class string, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := gate.CallerAddress(r)
			result := s.Limiter.Enforce(ratelimit.Key(class, addr), max, window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				s.Logger.Warn("rate limit exceeded",
					slog.String("class", class),
					slog.String("caller", addr),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)

				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))

				Error(w, r, types.NewAppErrorWithDetails(
					types.ErrCodeRateLimited,
					"rate limit exceeded, retry after the reported delay",
					nil,
					map[string]any{"retry_after_seconds": result.RetryAfter},
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
