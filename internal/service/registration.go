package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	gotel "github.com/gatherhq/gather/internal/adapter/otel"
	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/event"
	"github.com/gatherhq/gather/internal/domain/realtime"
	"github.com/gatherhq/gather/internal/domain/registration"
	"github.com/gatherhq/gather/internal/port/database"
	"github.com/gatherhq/gather/internal/port/notifier"
)

// RegistrationService governs the registration lifecycle:
// pending -> {approved, rejected, cancelled};
// approved -> {rejected, cancelled, attended}.
//
// The event's participant counter counts occupying (pending + approved)
// registrations. A slot is taken at creation time, so every transition
// out of an occupying status releases it, whatever the target status —
// including reject of a still-pending registration.
type RegistrationService struct {
	store    database.Store
	emitter  *Emitter
	notifier notifier.Notifier
	metrics  *gotel.Metrics
}

// NewRegistrationService creates a new RegistrationService. emitter,
// notifier and metrics may be nil.
func NewRegistrationService(store database.Store, emitter *Emitter, n notifier.Notifier, metrics *gotel.Metrics) *RegistrationService {
	return &RegistrationService{store: store, emitter: emitter, notifier: n, metrics: metrics}
}

// Get returns a registration by ID.
func (s *RegistrationService) Get(ctx context.Context, id string) (*registration.Registration, error) {
	return s.store.GetRegistration(ctx, id)
}

// ListByEvent returns an event's registrations. Owner or approver only.
func (s *RegistrationService) ListByEvent(ctx context.Context, actor domain.Actor, eventID string) ([]registration.Registration, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.IsOwner(actor) {
		return nil, fmt.Errorf("list registrations for event %s: %w", eventID, domain.ErrForbidden)
	}
	return s.store.ListRegistrationsByEvent(ctx, eventID)
}

// Register applies the acting user to an approved event. The capacity
// check and counter increment happen as one conditional write in the
// store, so concurrent registrations cannot overshoot capacity.
func (s *RegistrationService) Register(ctx context.Context, actor domain.Actor, eventID, note string) (*registration.Registration, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != event.StatusApproved {
		return nil, fmt.Errorf("register for event %s in %s: %w", eventID, e.Status, domain.ErrInvalidState)
	}

	r, err := s.store.CreateRegistration(ctx, eventID, actor.ID, note)
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, registration.StatusPending)
	s.emitEvent(ctx, eventID)
	s.notify(ctx, notifier.Notification{
		UserID:  e.CreatorID,
		EventID: eventID,
		Kind:    "registration.created",
		Message: "A volunteer applied to your event.",
	})
	return r, nil
}

// Cancel withdraws a registration. Registrant only; not after attending
// or a prior cancellation.
func (s *RegistrationService) Cancel(ctx context.Context, actor domain.Actor, id string) (*registration.Registration, error) {
	r, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.CanCancel(actor); err != nil {
		return nil, err
	}

	r, err = s.transition(ctx, r, registration.StatusCancelled)
	if err != nil {
		return nil, err
	}

	e, getErr := s.store.GetEvent(ctx, r.EventID)
	if getErr == nil {
		s.notify(ctx, notifier.Notification{
			UserID:  e.CreatorID,
			EventID: r.EventID,
			Kind:    "registration.cancelled",
			Message: "A volunteer withdrew from your event.",
		})
	}
	return r, nil
}

// Approve accepts a pending registration. Event owner or approver only;
// the counter is unchanged because the slot was taken at creation.
func (s *RegistrationService) Approve(ctx context.Context, actor domain.Actor, id string) (*registration.Registration, error) {
	r, err := s.authorizeOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := r.CanApprove(); err != nil {
		return nil, err
	}

	r, err = s.transition(ctx, r, registration.StatusApproved)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notifier.Notification{
		UserID:  r.UserID,
		EventID: r.EventID,
		Kind:    "registration.approved",
		Message: "Your registration was approved.",
	})
	return r, nil
}

// Reject declines a registration. Event owner or approver only. A
// rejected registration stops occupying its slot even when it was never
// approved.
func (s *RegistrationService) Reject(ctx context.Context, actor domain.Actor, id string) (*registration.Registration, error) {
	r, err := s.authorizeOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := r.CanReject(); err != nil {
		return nil, err
	}

	r, err = s.transition(ctx, r, registration.StatusRejected)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notifier.Notification{
		UserID:  r.UserID,
		EventID: r.EventID,
		Kind:    "registration.rejected",
		Message: "Your registration was declined.",
	})
	return r, nil
}

// Attend marks an approved registration as attended. Event owner or
// approver only.
func (s *RegistrationService) Attend(ctx context.Context, actor domain.Actor, id string) (*registration.Registration, error) {
	r, err := s.authorizeOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := r.CanAttend(); err != nil {
		return nil, err
	}

	r, err = s.transition(ctx, r, registration.StatusAttended)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notifier.Notification{
		UserID:  r.UserID,
		EventID: r.EventID,
		Kind:    "registration.attended",
		Message: "Thanks for attending!",
	})
	return r, nil
}

// transition applies the status change, releasing the slot when the
// prior status was occupying and the target is not. The store applies
// the counter change in the same transaction as the status change.
func (s *RegistrationService) transition(ctx context.Context, r *registration.Registration, to registration.Status) (*registration.Registration, error) {
	delta := 0
	if r.Status.Occupying() && !to.Occupying() {
		delta = -1
	}

	updated, err := s.store.TransitionRegistration(ctx, r.ID, []registration.Status{r.Status}, to, delta)
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, to)
	s.emitEvent(ctx, updated.EventID)
	return updated, nil
}

func (s *RegistrationService) authorizeOwner(ctx context.Context, actor domain.Actor, regID string) (*registration.Registration, error) {
	r, err := s.store.GetRegistration(ctx, regID)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEvent(ctx, r.EventID)
	if err != nil {
		return nil, err
	}
	if !e.IsOwner(actor) {
		return nil, fmt.Errorf("manage registration %s: %w", regID, domain.ErrForbidden)
	}
	return r, nil
}

// emitEvent broadcasts the affected event so channel subscribers see the
// updated participant counter.
func (s *RegistrationService) emitEvent(ctx context.Context, eventID string) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		slog.Warn("emit after registration transition: event reload failed", "event_id", eventID, "error", err)
		return
	}
	s.emitter.EmitEvent(ctx, realtime.ChangeUpdated, e)
}

// notify hands off to the side-channel; failures never abort the
// transition that produced the notification.
func (s *RegistrationService) notify(ctx context.Context, n notifier.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Error("user notification failed", "user_id", n.UserID, "kind", n.Kind, "error", err)
	}
}

func (s *RegistrationService) recordTransition(ctx context.Context, to registration.Status) {
	if s.metrics != nil {
		s.metrics.RegistrationTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", string(to))))
	}
}
