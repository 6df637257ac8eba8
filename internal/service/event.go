package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	gotel "github.com/gatherhq/gather/internal/adapter/otel"
	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/event"
	"github.com/gatherhq/gather/internal/domain/realtime"
	"github.com/gatherhq/gather/internal/port/database"
)

// EventService governs the event lifecycle:
// draft -> pending_approval -> {approved, rejected}; approved -> completed.
// Every successful transition triggers a manual emit of the updated event.
type EventService struct {
	store   database.Store
	emitter *Emitter
	metrics *gotel.Metrics
}

// NewEventService creates a new EventService. emitter and metrics may be nil.
func NewEventService(store database.Store, emitter *Emitter, metrics *gotel.Metrics) *EventService {
	return &EventService{store: store, emitter: emitter, metrics: metrics}
}

// List returns events, optionally filtered by status.
func (s *EventService) List(ctx context.Context, status event.Status) ([]event.Event, error) {
	return s.store.ListEvents(ctx, status)
}

// Get returns an event by ID.
func (s *EventService) Get(ctx context.Context, id string) (*event.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// Create creates a new event in draft for the acting user.
func (s *EventService) Create(ctx context.Context, actor domain.Actor, req event.CreateRequest) (*event.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e, err := s.store.CreateEvent(ctx, actor.ID, req)
	if err != nil {
		return nil, err
	}
	s.emitter.EmitEvent(ctx, realtime.ChangeCreated, e)
	return e, nil
}

// Update edits an event's mutable fields, subject to the modify rules.
func (s *EventService) Update(ctx context.Context, actor domain.Actor, id string, req event.UpdateRequest) (*event.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.CanModify(actor); err != nil {
		return nil, err
	}

	e.Title = req.Title
	e.Description = req.Description
	e.Location = req.Location
	e.MaxParticipants = req.MaxParticipants
	e.StartsAt = req.StartsAt
	e.EndsAt = req.EndsAt

	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.emitter.EmitEvent(ctx, realtime.ChangeUpdated, e)
	return e, nil
}

// Delete removes an event, subject to the modify rules.
func (s *EventService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := e.CanModify(actor); err != nil {
		return err
	}
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.emitter.EmitEvent(ctx, realtime.ChangeDeleted, e)
	return nil
}

// Submit moves a draft event to pending approval. Creator only.
func (s *EventService) Submit(ctx context.Context, actor domain.Actor, id string) (*event.Event, error) {
	return s.transition(ctx, id, event.StatusDraft, event.StatusPendingApproval,
		func(e *event.Event) error { return e.CanSubmit(actor) })
}

// Approve moves a submitted event to approved. Approver role only.
func (s *EventService) Approve(ctx context.Context, actor domain.Actor, id string) (*event.Event, error) {
	return s.transition(ctx, id, event.StatusPendingApproval, event.StatusApproved,
		func(e *event.Event) error { return e.CanReview(actor) })
}

// Reject moves a submitted event to rejected. Approver role only.
func (s *EventService) Reject(ctx context.Context, actor domain.Actor, id string) (*event.Event, error) {
	return s.transition(ctx, id, event.StatusPendingApproval, event.StatusRejected,
		func(e *event.Event) error { return e.CanReview(actor) })
}

// Complete moves an approved event to completed once its end time has
// passed. Invoked by the scheduler, not by a user, so there is no actor.
func (s *EventService) Complete(ctx context.Context, id string) (*event.Event, error) {
	return s.transition(ctx, id, event.StatusApproved, event.StatusCompleted,
		func(e *event.Event) error { return e.CanComplete() })
}

// CompleteDue completes every approved event whose end time has passed.
// Called periodically by the scheduler loop; returns how many events were
// completed. Losing a transition race to another instance is not an error.
func (s *EventService) CompleteDue(ctx context.Context, now time.Time) int {
	events, err := s.store.ListEvents(ctx, event.StatusApproved)
	if err != nil {
		slog.Error("completion sweep: list approved events failed", "error", err)
		return 0
	}

	completed := 0
	for i := range events {
		e := &events[i]
		if e.EndsAt.IsZero() || e.EndsAt.After(now) {
			continue
		}
		if _, err := s.Complete(ctx, e.ID); err != nil {
			if !errors.Is(err, domain.ErrConflict) {
				slog.Warn("completion sweep: complete failed", "event_id", e.ID, "error", err)
			}
			continue
		}
		completed++
	}
	return completed
}

// transition applies one guarded status change and emits the result. The
// store-level guard on the prior status means two concurrent reviewers
// cannot both win; the loser gets domain.ErrConflict.
func (s *EventService) transition(ctx context.Context, id string, from, to event.Status, check func(*event.Event) error) (*event.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := check(e); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEventStatus(ctx, id, from, to); err != nil {
		return nil, err
	}

	e.Status = to
	e.Version++

	if s.metrics != nil {
		s.metrics.EventTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", string(to))))
	}
	s.emitter.EmitEvent(ctx, realtime.ChangeUpdated, e)
	return e, nil
}
