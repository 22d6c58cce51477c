package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eunoia-wellness/companion/internal/middleware"
	"github.com/eunoia-wellness/companion/internal/service"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

// RouterConfig wires the router.
type RouterConfig struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Safety        *service.SafetyService
	Checks        map[string]Check

	// JWTSecret enables bearer authentication on /api when set.
	JWTSecret string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	Logger *logger.Logger
}

// NewRouter builds the backend stub's HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	healthHandler := NewHealthHandler(cfg.Checks)
	conversationHandler := NewConversationHandler(cfg.Conversations, cfg.Logger)
	streamHandler := NewStreamHandler(cfg.Messages, cfg.Logger)
	safetyHandler := NewSafetyHandler(cfg.Safety, cfg.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/chat", streamHandler.Chat)
		r.Get("/chat/history/{user_id}", conversationHandler.History)
		r.Get("/conversation/{id}", conversationHandler.Get)
		r.Post("/safety/risk-event", safetyHandler.ReportRiskEvent)
	})

	return r
}
