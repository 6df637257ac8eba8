// Package domain provides shared domain-level sentinel errors and the
// actor model used for authorization checks inside lifecycle transitions.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidState indicates an illegal lifecycle transition.
var ErrInvalidState = errors.New("invalid state for this transition")

// ErrForbidden indicates the actor is not allowed to perform the operation.
var ErrForbidden = errors.New("forbidden")

// ErrConflict indicates a duplicate active registration or a concurrent
// modification detected by an optimistic version check.
var ErrConflict = errors.New("conflict: resource already exists or was modified")

// ErrCapacityExceeded indicates the event has no remaining capacity.
var ErrCapacityExceeded = errors.New("event capacity exceeded")

// ErrValidation indicates invalid input. Wrap it with details:
// fmt.Errorf("%w: title is required", domain.ErrValidation).
var ErrValidation = errors.New("validation failed")

// Role is the coarse authorization role attached to an actor.
// Authentication itself is an external concern; callers resolve the
// acting user upstream and pass an Actor into the service layer.
type Role string

const (
	// RoleMember is a regular platform user (volunteer).
	RoleMember Role = "member"
	// RoleApprover can review submitted events and moderate any content.
	RoleApprover Role = "approver"
)

// Actor identifies who is performing a mutating operation.
type Actor struct {
	ID   string
	Role Role
}

// IsApprover reports whether the actor holds the approver role.
func (a Actor) IsApprover() bool {
	return a.Role == RoleApprover
}
