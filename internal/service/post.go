package service

import (
	"context"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/post"
	"github.com/gatherhq/gather/internal/domain/realtime"
	"github.com/gatherhq/gather/internal/port/database"
)

// PostService handles the event board: posts, comments and likes. Every
// mutation triggers a manual emit on the owning event's channel.
type PostService struct {
	store   database.Store
	emitter *Emitter
}

// NewPostService creates a new PostService. emitter may be nil.
func NewPostService(store database.Store, emitter *Emitter) *PostService {
	return &PostService{store: store, emitter: emitter}
}

// ListByEvent returns an event's posts.
func (s *PostService) ListByEvent(ctx context.Context, eventID string) ([]post.Post, error) {
	return s.store.ListPostsByEvent(ctx, eventID)
}

// Get returns a post by ID.
func (s *PostService) Get(ctx context.Context, id string) (*post.Post, error) {
	return s.store.GetPost(ctx, id)
}

// Create publishes a post on an event's board.
func (s *PostService) Create(ctx context.Context, actor domain.Actor, eventID string, req post.CreatePostRequest) (*post.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	p, err := s.store.CreatePost(ctx, eventID, actor.ID, req)
	if err != nil {
		return nil, err
	}
	s.emitter.EmitPost(ctx, realtime.ChangeCreated, p)
	return p, nil
}

// Delete removes a post. Author, event owner or approver only.
func (s *PostService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	e, err := s.store.GetEvent(ctx, p.EventID)
	if err != nil {
		return err
	}
	if err := post.CanModerate(actor, p.AuthorID, e.CreatorID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.emitter.EmitPost(ctx, realtime.ChangeDeleted, p)
	return nil
}

// ListComments returns a post's comments.
func (s *PostService) ListComments(ctx context.Context, postID string) ([]post.Comment, error) {
	return s.store.ListCommentsByPost(ctx, postID)
}

// CreateComment replies to a post.
func (s *PostService) CreateComment(ctx context.Context, actor domain.Actor, postID string, req post.CreateCommentRequest) (*post.Comment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	c, err := s.store.CreateComment(ctx, postID, actor.ID, req)
	if err != nil {
		return nil, err
	}
	s.emitter.EmitComment(ctx, realtime.ChangeCreated, c)
	return c, nil
}

// DeleteComment removes a comment. Author, event owner or approver only.
func (s *PostService) DeleteComment(ctx context.Context, actor domain.Actor, id string) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	p, err := s.store.GetPost(ctx, c.PostID)
	if err != nil {
		return err
	}
	e, err := s.store.GetEvent(ctx, p.EventID)
	if err != nil {
		return err
	}
	if err := post.CanModerate(actor, c.AuthorID, e.CreatorID); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.emitter.EmitComment(ctx, realtime.ChangeDeleted, c)
	return nil
}

// ToggleLike flips the acting user's like on a post and returns whether
// the post ends up liked.
func (s *PostService) ToggleLike(ctx context.Context, actor domain.Actor, postID string) (bool, error) {
	liked, err := s.store.ToggleLike(ctx, postID, actor.ID)
	if err != nil {
		return false, err
	}

	kind := realtime.ChangeUnliked
	if liked {
		kind = realtime.ChangeLiked
	}
	if p, err := s.store.GetPost(ctx, postID); err == nil {
		s.emitter.EmitPost(ctx, kind, p)
	}
	return liked, nil
}
