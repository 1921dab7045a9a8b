package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/nightlife-concierge/internal/http/middleware"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

// WebhookChannel is an inbound chat channel with Meta-style verification.
type WebhookChannel interface {
	HandleVerification(w http.ResponseWriter, r *http.Request)
	HandleWebhook(w http.ResponseWriter, r *http.Request)
}

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	WhatsApp            WebhookChannel
	ConversationHandler *conversation.Handler
	AdminUsers          *handlers.AdminUsersHandler
	MetricsHandler      http.Handler

	AdminAuthSecret  string
	SimulatorToken   string
	WebhookRateLimit float64
	WebhookRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WhatsApp != nil {
			public.Get("/webhooks/whatsapp", cfg.WhatsApp.HandleVerification)
			public.With(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst)).
				Post("/webhooks/whatsapp", cfg.WhatsApp.HandleWebhook)
		}
	})

	if cfg.ConversationHandler != nil {
		r.Route("/conversations", func(conv chi.Router) {
			conv.Use(requireSimulatorToken(cfg.SimulatorToken))
			conv.Post("/messages", cfg.ConversationHandler.Message)
			conv.Get("/jobs/{jobID}", cfg.ConversationHandler.JobStatus)
		})
	}

	if cfg.AdminUsers != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/users/{userID}", func(u chi.Router) {
				u.Get("/profile", cfg.AdminUsers.GetProfile)
				u.Get("/history", cfg.AdminUsers.GetHistory)
				u.Delete("/cursor", cfg.AdminUsers.ResetCursor)
				u.Get("/recommendations", cfg.AdminUsers.ListRecommendations)
			})
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
