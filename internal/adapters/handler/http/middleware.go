package http

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/fintrack/internal/adapters/ratelimit"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

type contextKey string

// UserIDKey holds the authenticated user's uuid.UUID in the request context.
const UserIDKey contextKey = "user_id"

func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

// RequireAuth rejects requests without a valid session cookie.
func RequireAuth(auth ports.AuthService, cookieName string, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				writeFailure(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			session, err := auth.CheckSession(r.Context(), cookie.Value)
			if err != nil {
				writeError(w, r, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit throttles by client IP. A failing limiter refuses the request
// rather than letting it through.
func RateLimit(limiter ratelimit.Limiter, rule ratelimit.Rule, message string, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := limiter.Allow(r.Context(), rule, clientIP(r))
			if err != nil {
				log.Error(r.Context(), "rate limiter unavailable", "rule", rule.Name, "error", err.Error())
				writeFailure(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			if !decision.Allowed {
				seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeFailure(w, http.StatusTooManyRequests, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
