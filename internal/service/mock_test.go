package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/event"
	"github.com/gatherhq/gather/internal/domain/post"
	"github.com/gatherhq/gather/internal/domain/registration"
	"github.com/gatherhq/gather/internal/port/broadcast"
	"github.com/gatherhq/gather/internal/port/database"
)

// memStore is an in-memory Store that mirrors the transactional semantics
// of the real implementation: conditional status updates, the capacity
// check fused with the counter increment, and counter deltas applied
// together with registration transitions.
type memStore struct {
	mu       sync.Mutex
	nextID   int
	events   map[string]*event.Event
	regs     map[string]*registration.Registration
	posts    map[string]*post.Post
	comments map[string]*post.Comment
	likes    map[string]map[string]bool
}

var _ database.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string]*event.Event),
		regs:     make(map[string]*registration.Registration),
		posts:    make(map[string]*post.Post),
		comments: make(map[string]*post.Comment),
		likes:    make(map[string]map[string]bool),
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// seedEvent inserts an event directly, bypassing the lifecycle.
func (s *memStore) seedEvent(creatorID string, status event.Status, maxParticipants int) *event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &event.Event{
		ID:              s.id("evt"),
		CreatorID:       creatorID,
		Title:           "seeded",
		Status:          status,
		MaxParticipants: maxParticipants,
		Version:         1,
	}
	s.events[e.ID] = e
	return e
}

func (s *memStore) ListEvents(_ context.Context, status event.Status) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if status == "" || e.Status == status {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *memStore) GetEvent(_ context.Context, id string) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) CreateEvent(_ context.Context, creatorID string, req event.CreateRequest) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &event.Event{
		ID:              s.id("evt"),
		CreatorID:       creatorID,
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		Status:          event.StatusDraft,
		MaxParticipants: req.MaxParticipants,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		Version:         1,
	}
	s.events[e.ID] = e
	cp := *e
	return &cp, nil
}

func (s *memStore) UpdateEvent(_ context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[e.ID]
	if !ok {
		return fmt.Errorf("event %s: %w", e.ID, domain.ErrNotFound)
	}
	if cur.Version != e.Version {
		return fmt.Errorf("event %s: %w", e.ID, domain.ErrConflict)
	}
	cp := *e
	cp.Version++
	s.events[e.ID] = &cp
	e.Version = cp.Version
	return nil
}

func (s *memStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	delete(s.events, id)
	return nil
}

func (s *memStore) UpdateEventStatus(_ context.Context, id string, from, to event.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	if e.Status != from {
		return fmt.Errorf("event %s moved out of %s: %w", id, from, domain.ErrConflict)
	}
	e.Status = to
	e.Version++
	return nil
}

func (s *memStore) GetRegistration(_ context.Context, id string) (*registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, fmt.Errorf("registration %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ListRegistrationsByEvent(_ context.Context, eventID string) ([]registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []registration.Registration
	for _, r := range s.regs {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) CreateRegistration(_ context.Context, eventID, userID, note string) (*registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	for _, r := range s.regs {
		if r.EventID == eventID && r.UserID == userID && r.Status.Active() {
			return nil, fmt.Errorf("registration for %s by %s: %w", eventID, userID, domain.ErrConflict)
		}
	}
	if e.CurrentParticipants >= e.MaxParticipants {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrCapacityExceeded)
	}
	e.CurrentParticipants++
	r := &registration.Registration{
		ID:        s.id("reg"),
		EventID:   eventID,
		UserID:    userID,
		Status:    registration.StatusPending,
		Note:      note,
		AppliedAt: time.Now(),
	}
	s.regs[r.ID] = r
	cp := *r
	return &cp, nil
}

func (s *memStore) TransitionRegistration(_ context.Context, id string, from []registration.Status, to registration.Status, counterDelta int) (*registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, fmt.Errorf("registration %s: %w", id, domain.ErrNotFound)
	}
	matched := false
	for _, f := range from {
		if r.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("registration %s moved out of expected status: %w", id, domain.ErrConflict)
	}
	r.Status = to
	if e, ok := s.events[r.EventID]; ok {
		e.CurrentParticipants += counterDelta
		if e.CurrentParticipants < 0 {
			e.CurrentParticipants = 0
		}
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) GetPost(_ context.Context, id string) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ListPostsByEvent(_ context.Context, eventID string) ([]post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []post.Post
	for _, p := range s.posts {
		if p.EventID == eventID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) CreatePost(_ context.Context, eventID, authorID string, req post.CreatePostRequest) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &post.Post{
		ID:       s.id("post"),
		EventID:  eventID,
		AuthorID: authorID,
		Title:    req.Title,
		Body:     req.Body,
	}
	s.posts[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *memStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	delete(s.posts, id)
	return nil
}

func (s *memStore) GetComment(_ context.Context, id string) (*post.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) ListCommentsByPost(_ context.Context, postID string) ([]post.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []post.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memStore) CreateComment(_ context.Context, postID, authorID string, req post.CreateCommentRequest) (*post.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &post.Comment{
		ID:       s.id("cmt"),
		PostID:   postID,
		AuthorID: authorID,
		Body:     req.Body,
	}
	if p, ok := s.posts[postID]; ok {
		c.EventID = p.EventID
	}
	s.comments[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memStore) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	delete(s.comments, id)
	return nil
}

func (s *memStore) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return false, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}
	if s.likes[postID] == nil {
		s.likes[postID] = make(map[string]bool)
	}
	if s.likes[postID][userID] {
		delete(s.likes[postID], userID)
		p.LikeCount--
		return false, nil
	}
	s.likes[postID][userID] = true
	p.LikeCount++
	return true, nil
}

// recBroadcaster records broadcasts for assertions.
type recBroadcaster struct {
	mu     sync.Mutex
	sent   []recBroadcast
	global []recBroadcast
}

type recBroadcast struct {
	channel   string
	eventType string
	payload   any
}

var _ broadcast.Broadcaster = (*recBroadcaster)(nil)

func (b *recBroadcaster) Broadcast(_ context.Context, channel, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, recBroadcast{channel: channel, eventType: eventType, payload: payload})
}

func (b *recBroadcaster) BroadcastGlobal(_ context.Context, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, recBroadcast{eventType: eventType, payload: payload})
}

func (b *recBroadcaster) channelEvents(eventType string) []recBroadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recBroadcast
	for _, s := range b.sent {
		if s.eventType == eventType {
			out = append(out, s)
		}
	}
	return out
}
