package reportinghttp

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the reporting endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", h.GetReport)
		r.Get("/export", h.Export)
	})
}
