// Package event defines the Event entity and its lifecycle rules.
package event

import (
	"fmt"
	"time"

	"github.com/gatherhq/gather/internal/domain"
)

// Status represents the lifecycle state of an event.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusCompleted       Status = "completed"
)

// Event represents a community event created by an organizer.
type Event struct {
	ID                  string    `json:"id"`
	CreatorID           string    `json:"creator_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Location            string    `json:"location"`
	Status              Status    `json:"status"`
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
	StartsAt            time.Time `json:"starts_at"`
	EndsAt              time.Time `json:"ends_at"`
	Version             int       `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new event.
type CreateRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	MaxParticipants int       `json:"max_participants"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
}

// Validate checks the create request fields.
func (r CreateRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if r.MaxParticipants <= 0 {
		return fmt.Errorf("%w: max_participants must be positive", domain.ErrValidation)
	}
	return nil
}

// UpdateRequest holds the mutable fields of an event.
type UpdateRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	MaxParticipants int       `json:"max_participants"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
}

// Remaining returns the number of open participant slots.
func (e *Event) Remaining() int {
	return e.MaxParticipants - e.CurrentParticipants
}

// IsFull reports whether the event has no remaining capacity.
func (e *Event) IsFull() bool {
	return e.CurrentParticipants >= e.MaxParticipants
}

// CanSubmit checks the submit transition: draft only, creator only.
func (e *Event) CanSubmit(actor domain.Actor) error {
	if actor.ID != e.CreatorID {
		return fmt.Errorf("submit event %s: %w", e.ID, domain.ErrForbidden)
	}
	if e.Status != StatusDraft {
		return fmt.Errorf("submit event %s from %s: %w", e.ID, e.Status, domain.ErrInvalidState)
	}
	return nil
}

// CanReview checks the approve/reject transition: pending_approval only,
// approver role only.
func (e *Event) CanReview(actor domain.Actor) error {
	if !actor.IsApprover() {
		return fmt.Errorf("review event %s: %w", e.ID, domain.ErrForbidden)
	}
	if e.Status != StatusPendingApproval {
		return fmt.Errorf("review event %s from %s: %w", e.ID, e.Status, domain.ErrInvalidState)
	}
	return nil
}

// CanComplete checks the approved -> completed transition, driven by an
// external scheduler once the event end time has passed.
func (e *Event) CanComplete() error {
	if e.Status != StatusApproved {
		return fmt.Errorf("complete event %s from %s: %w", e.ID, e.Status, domain.ErrInvalidState)
	}
	return nil
}

// CanModify checks edit/delete permission. The creator may modify while
// the event has not been approved or completed; an approver may always.
func (e *Event) CanModify(actor domain.Actor) error {
	if actor.IsApprover() {
		return nil
	}
	if actor.ID != e.CreatorID {
		return fmt.Errorf("modify event %s: %w", e.ID, domain.ErrForbidden)
	}
	if e.Status == StatusApproved || e.Status == StatusCompleted {
		return fmt.Errorf("modify event %s in %s: %w", e.ID, e.Status, domain.ErrForbidden)
	}
	return nil
}

// IsOwner reports whether the actor owns the event or can act on its behalf.
func (e *Event) IsOwner(actor domain.Actor) bool {
	return actor.ID == e.CreatorID || actor.IsApprover()
}
