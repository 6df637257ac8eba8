// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/gatherhq/gather/internal/domain/event"
	"github.com/gatherhq/gather/internal/domain/post"
	"github.com/gatherhq/gather/internal/domain/registration"
)

// Store is the port interface for database operations. Methods that move
// a registration between occupying and non-occupying states adjust the
// event's participant counter inside the same transaction, so the
// invariant current_participants == count(pending + approved) holds by
// construction.
type Store interface {
	// Events
	ListEvents(ctx context.Context, status event.Status) ([]event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	CreateEvent(ctx context.Context, creatorID string, req event.CreateRequest) (*event.Event, error)
	UpdateEvent(ctx context.Context, e *event.Event) error
	DeleteEvent(ctx context.Context, id string) error
	// UpdateEventStatus transitions the event status conditionally on the
	// expected prior status; returns domain.ErrConflict when the row was
	// concurrently moved out of that status.
	UpdateEventStatus(ctx context.Context, id string, from, to event.Status) error

	// Registrations
	GetRegistration(ctx context.Context, id string) (*registration.Registration, error)
	ListRegistrationsByEvent(ctx context.Context, eventID string) ([]registration.Registration, error)
	// CreateRegistration atomically checks capacity, increments the
	// participant counter and inserts a pending registration. Returns
	// domain.ErrCapacityExceeded when the conditional increment matches no
	// row and domain.ErrConflict on a duplicate active registration.
	CreateRegistration(ctx context.Context, eventID, userID, note string) (*registration.Registration, error)
	// TransitionRegistration sets the status conditionally on the expected
	// prior statuses and applies counterDelta to the event's participant
	// counter in the same transaction.
	TransitionRegistration(ctx context.Context, id string, from []registration.Status, to registration.Status, counterDelta int) (*registration.Registration, error)

	// Posts
	GetPost(ctx context.Context, id string) (*post.Post, error)
	ListPostsByEvent(ctx context.Context, eventID string) ([]post.Post, error)
	CreatePost(ctx context.Context, eventID, authorID string, req post.CreatePostRequest) (*post.Post, error)
	DeletePost(ctx context.Context, id string) error

	// Comments
	GetComment(ctx context.Context, id string) (*post.Comment, error)
	ListCommentsByPost(ctx context.Context, postID string) ([]post.Comment, error)
	CreateComment(ctx context.Context, postID, authorID string, req post.CreateCommentRequest) (*post.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// ToggleLike inserts or removes the (user, post) like pair and adjusts
	// the post's like counter in the same transaction. Returns whether the
	// post is liked after the call.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
}
