// Package service implements the use cases of the realtime core: the
// lifecycle services for events, registrations and posts, the manual emit
// path and the change bridge.
package service

import (
	"context"
	"log/slog"

	"github.com/gatherhq/gather/internal/domain/event"
	"github.com/gatherhq/gather/internal/domain/post"
	"github.com/gatherhq/gather/internal/domain/realtime"
	"github.com/gatherhq/gather/internal/port/broadcast"
)

// postResolver is the slice of the store the emitter needs to resolve a
// comment's owning event through its post.
type postResolver interface {
	GetPost(ctx context.Context, id string) (*post.Post, error)
}

// Emitter is the synchronous manual emit path. Mutating operations call
// it right after a successful transition so clients see the change
// without waiting for the asynchronous change feed; the same update will
// usually arrive a second time through the bridge, which clients absorb
// by treating notifications as refetch triggers.
//
// Every method is a no-op when the emitter or its broadcaster is nil, so
// application startup order never creates a hard dependency on the
// gateway.
type Emitter struct {
	broadcaster broadcast.Broadcaster
	posts       postResolver
}

// NewEmitter creates a manual emitter. broadcaster may be nil.
func NewEmitter(broadcaster broadcast.Broadcaster, posts postResolver) *Emitter {
	return &Emitter{broadcaster: broadcaster, posts: posts}
}

func (e *Emitter) active() bool {
	return e != nil && e.broadcaster != nil
}

// EmitEvent broadcasts an event change on the event's channel and a
// global refresh hint.
func (e *Emitter) EmitEvent(ctx context.Context, kind realtime.ChangeKind, ev *event.Event) {
	if !e.active() {
		return
	}
	e.broadcaster.Broadcast(ctx, realtime.EventChannel(ev.ID), realtime.EventUpdate, realtime.EventUpdatePayload{
		Type:    kind,
		EventID: ev.ID,
		Event:   ev,
	})
	e.broadcaster.BroadcastGlobal(ctx, realtime.EventsRefresh, realtime.RefreshPayload{Resource: "events"})
}

// EmitPost broadcasts a post change on its event's channel and a global
// refresh hint.
func (e *Emitter) EmitPost(ctx context.Context, kind realtime.ChangeKind, p *post.Post) {
	if !e.active() {
		return
	}
	e.broadcaster.Broadcast(ctx, realtime.EventChannel(p.EventID), realtime.PostUpdate, realtime.PostUpdatePayload{
		Type:    kind,
		EventID: p.EventID,
		Post:    p,
	})
	e.broadcaster.BroadcastGlobal(ctx, realtime.PostsRefresh, realtime.RefreshPayload{Resource: "posts"})
}

// EmitComment broadcasts a comment change on its event's channel and a
// global refresh hint. A comment without a denormalized event id is
// resolved through its owning post; when that fails the channel broadcast
// is dropped (the global hint still goes out).
func (e *Emitter) EmitComment(ctx context.Context, kind realtime.ChangeKind, c *post.Comment) {
	if !e.active() {
		return
	}
	e.broadcaster.BroadcastGlobal(ctx, realtime.CommentsRefresh, realtime.RefreshPayload{Resource: "comments"})

	eventID := c.EventID
	if eventID == "" && e.posts != nil {
		p, err := e.posts.GetPost(ctx, c.PostID)
		if err != nil {
			slog.Warn("emit comment: parent event lookup failed", "post_id", c.PostID, "error", err)
			return
		}
		eventID = p.EventID
	}
	if eventID == "" {
		slog.Warn("emit comment: no event id", "comment_id", c.ID, "post_id", c.PostID)
		return
	}

	e.broadcaster.Broadcast(ctx, realtime.EventChannel(eventID), realtime.CommentUpdate, realtime.CommentUpdatePayload{
		Type:    kind,
		EventID: eventID,
		PostID:  c.PostID,
		Comment: c,
	})
}
