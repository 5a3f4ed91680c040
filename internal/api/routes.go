package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if hc != nil {
		r.Get("/health", hc.HandleHealth)
		r.Get("/health/live", hc.HandleLiveness)
		r.Get("/health/ready", hc.HandleReadiness)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/events", h.HandleEvent)

		r.Post("/leads", h.CreateLead)
		r.Get("/leads/{id}", h.GetLead)

		r.Route("/routing-rules", func(r chi.Router) {
			r.Get("/", h.ListRoutingRules)
			r.Post("/", h.CreateRoutingRule)
			r.Delete("/{id}", h.DeleteRoutingRule)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/{id}", h.GetCampaign)
			r.Put("/{id}/status", h.UpdateCampaignStatus)
			r.Post("/{id}/mailboxes", h.LinkCampaignMailboxes)
		})

		r.Post("/mailboxes", h.RegisterMailbox)
		r.Get("/mailboxes/{id}", h.GetMailbox)
		r.Get("/domains/{id}", h.GetDomain)
		r.Put("/domains/{id}/pause", h.PauseDomain)

		r.Get("/gate/{campaignID}/{leadID}", h.CheckGate)
		r.Get("/audit", h.ListAudit)
	})

	return r
}
