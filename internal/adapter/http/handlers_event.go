package http

import (
	"context"
	"net/http"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/event"
)

// ListEvents returns events, optionally filtered by ?status=.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	status := event.Status(r.URL.Query().Get("status"))
	events, err := h.events.List(r.Context(), status)
	if err != nil {
		writeDomainError(w, err, "events not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent returns a single event.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEvent creates a draft event for the acting user.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[event.CreateRequest](w, r)
	if !ok {
		return
	}

	e, err := h.events.Create(r.Context(), actor, req)
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEvent edits an event's mutable fields.
func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[event.UpdateRequest](w, r)
	if !ok {
		return
	}

	e, err := h.events.Update(r.Context(), actor, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEvent removes an event.
func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.events.Delete(r.Context(), actor, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitEvent moves a draft event into pending approval.
func (h *Handlers) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	h.eventTransition(w, r, h.events.Submit)
}

// ApproveEvent approves a submitted event.
func (h *Handlers) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	h.eventTransition(w, r, h.events.Approve)
}

// RejectEvent rejects a submitted event.
func (h *Handlers) RejectEvent(w http.ResponseWriter, r *http.Request) {
	h.eventTransition(w, r, h.events.Reject)
}

func (h *Handlers) eventTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor domain.Actor, id string) (*event.Event, error)) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	e, err := fn(r.Context(), actor, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}
