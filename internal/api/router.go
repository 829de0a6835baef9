package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/oneonone-bot/internal/api/handler"
	customMiddleware "github.com/Rrens/oneonone-bot/internal/api/middleware"
	"github.com/Rrens/oneonone-bot/internal/config"
)

// Dependencies are the collaborators the HTTP surface needs
type Dependencies struct {
	Store        handler.Pinger
	Conversation handler.Conversation
	Replier      handler.Replier
	// Validator checks inbound bot tokens; nil disables the check.
	Validator customMiddleware.TokenValidator
	// Limiter throttles chat users; nil disables rate limiting.
	Limiter customMiddleware.Limiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.MiddlewareTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	}

	// CORS
	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	messagesHandler := handler.NewMessagesHandler(deps.Conversation, deps.Replier)
	authMiddleware := customMiddleware.NewAuthMiddleware(deps.Validator)

	r.Get("/", handler.Root)

	// Bot Framework messaging endpoint
	r.Route("/api/messages", func(r chi.Router) {
		r.Use(customMiddleware.DecodeActivity)
		r.Use(authMiddleware.Authenticate)
		if deps.Limiter != nil {
			r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
		}
		r.Post("/", messagesHandler.Receive)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Store))
	})

	return r
}
