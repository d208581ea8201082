package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Graphs
		r.Post("/graphs", h.CreateGraph)
		r.Get("/graphs", h.ListGraphs)
		r.Get("/graphs/{id}", h.GetGraph)

		// Conflict analysis and resolution (nested under graphs)
		r.Post("/graphs/{id}/conflicts/analyze", h.AnalyzeConflicts)
		r.Post("/graphs/{id}/conflicts/resolve", h.ResolveConflicts)
		r.Get("/graphs/{id}/strategies", h.StrategyHistory)

		// Plans
		r.Post("/graphs/{id}/plans", h.CreatePlan)
		r.Get("/plans", h.ListPlans)
		r.Get("/plans/{id}", h.GetPlan)
		r.Post("/plans/{id}/execute", h.ExecutePlan)
		r.Post("/plans/{id}/optimize", h.OptimizeExecution)
	})
}
