package http

import (
	"net/http"

	"github.com/gatherhq/gather/internal/domain/post"
)

// ListPosts returns an event's board posts.
func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListByEvent(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// GetPost returns a single post.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePost publishes a post on an event's board.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[post.CreatePostRequest](w, r)
	if !ok {
		return
	}

	p, err := h.posts.Create(r.Context(), actor, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// DeletePost removes a post.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), actor, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "post not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComments returns a post's comments.
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.posts.ListComments(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// CreateComment replies to a post.
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[post.CreateCommentRequest](w, r)
	if !ok {
		return
	}

	c, err := h.posts.CreateComment(r.Context(), actor, urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "post not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteComment removes a comment.
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.posts.DeleteComment(r.Context(), actor, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike flips the acting user's like on a post.
func (h *Handlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	liked, err := h.posts.ToggleLike(r.Context(), actor, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}
