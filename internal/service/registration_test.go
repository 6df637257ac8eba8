package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/event"
	"github.com/gatherhq/gather/internal/domain/registration"
)

func newRegistrationFixture() (*memStore, *RegistrationService) {
	store := newMemStore()
	svc := NewRegistrationService(store, nil, nil, nil)
	return store, svc
}

func eventCounter(t *testing.T, store *memStore, eventID string) int {
	t.Helper()
	e, err := store.GetEvent(context.Background(), eventID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	return e.CurrentParticipants
}

func TestRegisterTakesSlot(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 1)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "count me in")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Status != registration.StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}
	if got := eventCounter(t, store, e.ID); got != 1 {
		t.Fatalf("expected counter 1, got %d", got)
	}

	// Capacity 1 is taken; the next applicant is turned away.
	_, err = svc.Register(context.Background(), domain.Actor{ID: "bob"}, e.ID, "")
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestRegisterRequiresApprovedEvent(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusDraft, 5)

	_, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestDuplicateRegistrationConflicts(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 5)

	if _, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCancelReleasesSlotAndAllowsReRegister(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 1)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), domain.Actor{ID: "alice"}, r.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != registration.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := eventCounter(t, store, e.ID); got != 0 {
		t.Fatalf("expected counter 0 after cancel, got %d", got)
	}

	// The slot and the (user, event) pair are both free again.
	if _, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, ""); err != nil {
		t.Fatalf("re-register after cancel: %v", err)
	}
	if got := eventCounter(t, store, e.ID); got != 1 {
		t.Fatalf("expected counter 1 after re-register, got %d", got)
	}
}

func TestCancelForbiddenForOthers(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 5)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = svc.Cancel(context.Background(), domain.Actor{ID: "mallory"}, r.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRejectPendingReleasesSlot(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 1)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Rejecting a never-approved registration still frees its slot.
	rejected, err := svc.Reject(context.Background(), domain.Actor{ID: "owner"}, r.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != registration.StatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if got := eventCounter(t, store, e.ID); got != 0 {
		t.Fatalf("expected counter 0 after reject, got %d", got)
	}
}

func TestApproveKeepsSlotAttendReleasesIt(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 1)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	approved, err := svc.Approve(context.Background(), domain.Actor{ID: "owner"}, r.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != registration.StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	// pending -> approved stays occupying; the counter is unchanged.
	if got := eventCounter(t, store, e.ID); got != 1 {
		t.Fatalf("expected counter 1 after approve, got %d", got)
	}

	attended, err := svc.Attend(context.Background(), domain.Actor{ID: "owner"}, r.ID)
	if err != nil {
		t.Fatalf("attend: %v", err)
	}
	if attended.Status != registration.StatusAttended {
		t.Fatalf("expected attended, got %s", attended.Status)
	}
	if got := eventCounter(t, store, e.ID); got != 0 {
		t.Fatalf("expected counter 0 after attend, got %d", got)
	}
}

func TestApproveRequiresOwnerOrApprover(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 5)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = svc.Approve(context.Background(), domain.Actor{ID: "mallory"}, r.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// A platform approver may act on any event's registrations.
	if _, err := svc.Approve(context.Background(), domain.Actor{ID: "mod", Role: domain.RoleApprover}, r.ID); err != nil {
		t.Fatalf("approver approve: %v", err)
	}
}

func TestAttendRequiresApprovedRegistration(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 5)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = svc.Attend(context.Background(), domain.Actor{ID: "owner"}, r.ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRejectApprovedReleasesSlot(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 1)

	r, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Approve(context.Background(), domain.Actor{ID: "owner"}, r.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Reject(context.Background(), domain.Actor{ID: "owner"}, r.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := eventCounter(t, store, e.ID); got != 0 {
		t.Fatalf("expected counter 0 after rejecting approved, got %d", got)
	}
}

func TestListRegistrationsOwnerOnly(t *testing.T) {
	store, svc := newRegistrationFixture()
	e := store.seedEvent("owner", event.StatusApproved, 5)

	if _, err := svc.Register(context.Background(), domain.Actor{ID: "alice"}, e.ID, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.ListByEvent(context.Background(), domain.Actor{ID: "alice"}, e.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	regs, err := svc.ListByEvent(context.Background(), domain.Actor{ID: "owner"}, e.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(regs) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(regs))
	}
}
