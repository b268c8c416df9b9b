package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carelinkhq/telecare-platform/internal/consultation"
	httpmiddleware "github.com/carelinkhq/telecare-platform/internal/http/middleware"
	"github.com/carelinkhq/telecare-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConsultationHandler *consultation.Handler
	MetricsHandler      http.Handler
	AuthJWTSecret       string
	CORSAllowedOrigins  []string

	// Requests per second per caller on the triage endpoint; zero disables
	// rate limiting.
	TriageRateLimit float64
	TriageBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.ConsultationHandler.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated API
	r.Route("/api", func(api chi.Router) {
		if cfg.AuthJWTSecret != "" {
			api.Use(httpmiddleware.BearerAuth(cfg.AuthJWTSecret))
		}

		api.Group(func(chat chi.Router) {
			if cfg.TriageRateLimit > 0 {
				chat.Use(httpmiddleware.RateLimit(cfg.TriageRateLimit, cfg.TriageBurst))
			}
			chat.Post("/triage/message", cfg.ConsultationHandler.HandleTriageMessage)
		})

		api.Route("/consultations/{id}", func(c chi.Router) {
			c.Post("/handoff", cfg.ConsultationHandler.HandleHandoff)
			c.Post("/video", cfg.ConsultationHandler.HandleStartVideoCall)
			c.Post("/complete", cfg.ConsultationHandler.HandleComplete)
			c.Get("/messages", cfg.ConsultationHandler.HandleTranscript)
		})
	})

	return r
}
