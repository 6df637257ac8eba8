package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Events
		r.Get("/events", h.ListEvents)
		r.Post("/events", h.CreateEvent)
		r.Get("/events/{id}", h.GetEvent)
		r.Put("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)

		// Event lifecycle
		r.Post("/events/{id}/submit", h.SubmitEvent)
		r.Post("/events/{id}/approve", h.ApproveEvent)
		r.Post("/events/{id}/reject", h.RejectEvent)

		// Registrations (nested under events)
		r.Post("/events/{id}/registrations", h.Register)
		r.Get("/events/{id}/registrations", h.ListRegistrations)

		// Registrations (direct access)
		r.Get("/registrations/{id}", h.GetRegistration)
		r.Post("/registrations/{id}/cancel", h.CancelRegistration)
		r.Post("/registrations/{id}/approve", h.ApproveRegistration)
		r.Post("/registrations/{id}/reject", h.RejectRegistration)
		r.Post("/registrations/{id}/attend", h.AttendRegistration)

		// Event board (nested under events)
		r.Get("/events/{id}/posts", h.ListPosts)
		r.Post("/events/{id}/posts", h.CreatePost)

		// Posts (direct access)
		r.Get("/posts/{id}", h.GetPost)
		r.Delete("/posts/{id}", h.DeletePost)
		r.Get("/posts/{id}/comments", h.ListComments)
		r.Post("/posts/{id}/comments", h.CreateComment)
		r.Post("/posts/{id}/like", h.ToggleLike)

		// Comments (direct access)
		r.Delete("/comments/{id}", h.DeleteComment)
	})
}
