// Package post defines the Post, Comment and Like entities attached to events.
package post

import (
	"fmt"
	"time"

	"github.com/gatherhq/gather/internal/domain"
)

// Post is a message published on an event's board.
type Post struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a reply to a post. EventID is denormalized for channel routing
// and may be empty on records written before the column existed; consumers
// must fall back to resolving it through the owning post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	EventID   string    `json:"event_id,omitempty"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Like is a (user, post) uniqueness pair acting as a toggle.
type Like struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePostRequest holds the fields needed to create a post.
type CreatePostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Validate checks the create request fields.
func (r CreatePostRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	return nil
}

// CreateCommentRequest holds the fields needed to create a comment.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// Validate checks the create request fields.
func (r CreateCommentRequest) Validate() error {
	if r.Body == "" {
		return fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	return nil
}

// CanModerate checks delete permission on a post or comment: the author,
// the event owner, or an approver.
func CanModerate(actor domain.Actor, authorID, eventCreatorID string) error {
	if actor.IsApprover() || actor.ID == authorID || actor.ID == eventCreatorID {
		return nil
	}
	return fmt.Errorf("moderate content by %s: %w", authorID, domain.ErrForbidden)
}
