// Package registration defines the Registration entity and its lifecycle rules.
package registration

import (
	"fmt"
	"time"

	"github.com/gatherhq/gather/internal/domain"
)

// Status represents the lifecycle state of a registration.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusAttended  Status = "attended"
)

// Registration represents a user's application to participate in an event.
// Registrations are never deleted, only transitioned.
type Registration struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id"`
	Status      Status     `json:"status"`
	Note        string     `json:"note,omitempty"`
	AppliedAt   time.Time  `json:"applied_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Occupying reports whether the registration counts against event capacity.
// Pending and approved registrations hold a slot; a slot is taken at
// creation time, not at approval time.
func (s Status) Occupying() bool {
	return s == StatusPending || s == StatusApproved
}

// Active reports whether the registration blocks a new one for the same
// (user, event) pair.
func (s Status) Active() bool {
	return s.Occupying() || s == StatusAttended
}

// CanCancel checks the cancel transition. Only the registrant may cancel,
// and not after attending or a prior cancellation.
func (r *Registration) CanCancel(actor domain.Actor) error {
	if actor.ID != r.UserID {
		return fmt.Errorf("cancel registration %s: %w", r.ID, domain.ErrForbidden)
	}
	if r.Status == StatusAttended || r.Status == StatusCancelled {
		return fmt.Errorf("cancel registration %s from %s: %w", r.ID, r.Status, domain.ErrInvalidState)
	}
	return nil
}

// CanApprove checks the approve transition: pending only.
func (r *Registration) CanApprove() error {
	if r.Status != StatusPending {
		return fmt.Errorf("approve registration %s from %s: %w", r.ID, r.Status, domain.ErrInvalidState)
	}
	return nil
}

// CanReject checks the reject transition: any state except cancelled and
// rejected.
func (r *Registration) CanReject() error {
	if r.Status == StatusCancelled || r.Status == StatusRejected {
		return fmt.Errorf("reject registration %s from %s: %w", r.ID, r.Status, domain.ErrInvalidState)
	}
	return nil
}

// CanAttend checks the attended transition: approved only.
func (r *Registration) CanAttend() error {
	if r.Status != StatusApproved {
		return fmt.Errorf("mark registration %s attended from %s: %w", r.ID, r.Status, domain.ErrInvalidState)
	}
	return nil
}
