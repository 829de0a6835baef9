package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/oneonone-bot/internal/api/response"
	"github.com/Rrens/oneonone-bot/internal/repository/redis"
	"github.com/Rrens/oneonone-bot/internal/security"
)

// TokenValidator checks Bot Connector bearer tokens
type TokenValidator interface {
	Validate(ctx context.Context, authHeader, serviceURL string) (*security.BotClaims, error)
}

// AuthMiddleware rejects activities that were not sent by the Bot Connector
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware. A nil validator lets
// every request through, which is how the emulator is used locally.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Authenticate validates the Authorization header against the decoded activity
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.validator == nil {
			next.ServeHTTP(w, r)
			return
		}

		var serviceURL string
		if activity, ok := GetActivity(r.Context()); ok {
			serviceURL = activity.ServiceURL
		}

		if _, err := m.validator.Validate(r.Context(), r.Header.Get("Authorization"), serviceURL); err != nil {
			log.Warn().Err(err).Str("service_url", serviceURL).Msg("Rejected activity")
			response.Unauthorized(w, "invalid or missing bot token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Limiter counts messages per key
type Limiter interface {
	Allow(ctx context.Context, key string) (redis.Decision, error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies rate limiting based on the chat user sending the activity
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		activity, ok := GetActivity(r.Context())
		if !ok || activity.From.ID == "" {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := m.limiter.Allow(r.Context(), activity.From.ID)
		if err != nil {
			// If rate limiter fails, allow the request but log the error
			log.Error().Err(err).Msg("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", decision.ResetAt.UTC().Format("2006-01-02T15:04:05Z"))

		if !decision.Allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
