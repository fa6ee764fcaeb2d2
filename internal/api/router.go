// Package api assembles the HTTP surface of the hub.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reunite/hub/internal/api/handlers"
	"github.com/reunite/hub/internal/api/middleware"
	"github.com/reunite/hub/internal/observability"
)

// RouterDeps holds the handlers and middleware inputs of the router.
type RouterDeps struct {
	Health     *handlers.HealthHandler
	Sightings  *handlers.SightingsHandler
	Cases      *handlers.CasesHandler
	AdminCases *handlers.CasesHandler
	Admin      *handlers.AdminHandler
	Auth       middleware.Authenticator
	// Metrics may be nil when metrics are disabled.
	Metrics observability.HTTPMetrics
	// MetricsHandler serves /metrics when Prometheus is enabled.
	MetricsHandler http.Handler
	MaxBodyBytes   int64
}

// NewRouter builds the route tree. Public: /health and /metrics. Everything under
// /v1 needs a bearer API key; /v1/admin additionally needs an admin user.
func NewRouter(deps RouterDeps) http.Handler {
	var tooLarge middleware.RequestBodyTooLargeRecorder
	if deps.Metrics != nil {
		tooLarge = deps.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.Metrics(deps.Metrics))

	r.Get("/health", deps.Health.Check)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.MaxBody(deps.MaxBodyBytes, tooLarge))
		r.Use(middleware.Auth(deps.Auth))

		r.Route("/sightings", func(r chi.Router) {
			r.Post("/", deps.Sightings.Create)
			r.Get("/", deps.Sightings.List)
			r.Get("/{id}", deps.Sightings.Get)
			r.Post("/{id}/reprocess", deps.Sightings.Reprocess)
		})

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", deps.Cases.Create)
			r.Get("/", deps.Cases.List)
			r.Get("/{id}", deps.Cases.Get)
			r.Patch("/{id}", deps.Cases.Update)
			r.Delete("/{id}", deps.Cases.Delete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminOnly)

			r.Get("/stats", deps.Admin.Stats)

			r.Get("/cases", deps.AdminCases.List)
			r.Get("/cases/{id}", deps.AdminCases.Get)
			r.Delete("/cases/{id}", deps.AdminCases.Delete)
			r.Post("/cases/{id}/found", deps.Admin.MarkFound)
			r.Get("/cases/{id}/location-history", deps.Admin.LocationHistory)

			r.Get("/matches", deps.Admin.ListMatches)
			r.Patch("/matches/{id}", deps.Admin.VerifyMatch)
		})
	})

	return r
}
