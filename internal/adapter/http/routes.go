package http

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the versioned REST surface to r. Write routes
// assume the RequestID and Idempotency middleware are already installed
// on the parent router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", h.GetVersion)
		r.Get("/status", h.GetStatus)

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.SendMessage)
			r.Get("/{id}", h.GetMessage)
		})

		r.Route("/handoffs", func(r chi.Router) {
			r.Post("/", h.InitiateHandoff)
			r.Get("/{id}", h.GetHandoff)
			r.Post("/{id}/validate", h.ValidateHandoff)
			r.Post("/{id}/complete", h.CompleteHandoff)
		})
	})
}
