package http

import (
	"net/http"

	"github.com/gatherhq/gather/internal/adapter/ws"
	"github.com/gatherhq/gather/internal/service"
)

// Handlers bundles the service dependencies for all HTTP handlers.
type Handlers struct {
	events        *service.EventService
	registrations *service.RegistrationService
	posts         *service.PostService
	hub           *ws.Hub
}

// NewHandlers creates the handler set.
func NewHandlers(events *service.EventService, registrations *service.RegistrationService, posts *service.PostService, hub *ws.Hub) *Handlers {
	return &Handlers{
		events:        events,
		registrations: registrations,
		posts:         posts,
		hub:           hub,
	}
}

// Health reports liveness and gateway connection counts.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": h.hub.ConnectionCount(),
		"backplane":   h.hub.BackplaneActive(),
	})
}
