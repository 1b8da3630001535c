/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin frontends
  5. RateLimit:  Per-IP token bucket on the ingestion routes only

ROUTE GROUPS:
  /api/punches/*       Punch ingestion (single + batch)
  /api/employees/*     Day records and hour breakdowns
  /api/exceptions/*    Manual reconciliation queue
  /api/settlements/*   Period lifecycle: run, finalize, reopen, results
  /api/policies/*      Policy hot reload
  /api/health          Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	ingestLimit := NewRateLimiter(50, 200)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Punch ingestion
		r.Route("/punches", func(r chi.Router) {
			r.Use(ingestLimit.Handler)
			r.Post("/", h.SubmitPunch)
			r.Post("/batch", h.SubmitPunchBatch)
		})

		// Employee day records and breakdowns
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/days/{date}", h.GetDayRecord)
			r.Post("/days/{date}/recompute", h.RecomputeDay)
			r.Get("/breakdowns", h.ListBreakdowns)
			r.Get("/breakdowns/{date}", h.GetBreakdown)
		})

		// Exception queue
		r.Route("/exceptions", func(r chi.Router) {
			r.Get("/", h.ListExceptions)
			r.Post("/{id}/resolve", h.ResolveException)
		})

		// Settlement lifecycle
		r.Route("/settlements", func(r chi.Router) {
			r.Post("/", h.CreatePeriod)
			r.Get("/{periodID}", h.GetPeriod)
			r.Post("/{periodID}/run", h.RunSettlement)
			r.Post("/{periodID}/finalize", h.FinalizeSettlement)
			r.Post("/{periodID}/reopen", h.ReopenSettlement)
			r.Get("/{periodID}/results", h.ListResults)
		})

		// Admin routes
		r.Post("/policies/reload", h.ReloadPolicies)
		r.Get("/health", h.Health)
	})

	return r
}
