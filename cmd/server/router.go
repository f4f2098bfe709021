package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/planforge/planforge-api/internal/api"
	"github.com/planforge/planforge-api/internal/api/middleware"
	"github.com/planforge/planforge-api/internal/telemetry"
)

// newRouter assembles the HTTP routing tree. The billing webhook is
// authenticated by event semantics (idempotency ledger), not bearer tokens,
// so it sits outside the auth group.
func newRouter(
	authMiddleware *middleware.AuthMiddleware,
	jobHandler *api.JobHandler,
	progressHandler *api.ProgressHandler,
	webhookHandler *api.WebhookHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/billing", webhookHandler.HandleBillingEvent)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/plans/generate", jobHandler.GenerateWeeklyPlan)
			r.Post("/plans/regenerate", jobHandler.RegenerateWeeklyPlan)
			r.Post("/plans/days/regenerate", jobHandler.RegenerateDay)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Get("/progress", progressHandler.Stream)
		})
	})

	return r
}
