package leads

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the dashboard pages under the router's prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/export.csv", h.ExportCSV)
	r.Get("/export.pdf", h.ExportPDF)
	r.Post("/refresh", h.Refresh)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/toggle", h.Toggle)
	r.Post("/{id}/delete", h.Delete)
	r.Post("/{id}/assign", h.Assign)
}

// MountAPIRoutes registers the read-only JSON endpoints.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/", h.APIList)
	r.Get("/{id}", h.APIShow)
}
