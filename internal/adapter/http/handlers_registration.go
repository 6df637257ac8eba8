package http

import (
	"context"
	"net/http"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/registration"
)

type registerRequest struct {
	Note string `json:"note"`
}

// Register applies the acting user to an event.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[registerRequest](w, r)
	if !ok {
		return
	}

	reg, err := h.registrations.Register(r.Context(), actor, urlParam(r, "id"), req.Note)
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ListRegistrations returns an event's registrations. Owner or approver only.
func (h *Handlers) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	regs, err := h.registrations.ListByEvent(r.Context(), actor, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

// GetRegistration returns a single registration.
func (h *Handlers) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "registration not found")
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CancelRegistration withdraws the acting user's registration.
func (h *Handlers) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	h.registrationTransition(w, r, h.registrations.Cancel)
}

// ApproveRegistration accepts a pending registration.
func (h *Handlers) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	h.registrationTransition(w, r, h.registrations.Approve)
}

// RejectRegistration declines a registration.
func (h *Handlers) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	h.registrationTransition(w, r, h.registrations.Reject)
}

// AttendRegistration marks an approved registration as attended.
func (h *Handlers) AttendRegistration(w http.ResponseWriter, r *http.Request) {
	h.registrationTransition(w, r, h.registrations.Attend)
}

func (h *Handlers) registrationTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor domain.Actor, id string) (*registration.Registration, error)) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	reg, err := fn(r.Context(), actor, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "registration not found")
		return
	}
	writeJSON(w, http.StatusOK, reg)
}
