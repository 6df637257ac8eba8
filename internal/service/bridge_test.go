package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gatherhq/gather/internal/domain/post"
	"github.com/gatherhq/gather/internal/domain/realtime"
	"github.com/gatherhq/gather/internal/port/cache"
	"github.com/gatherhq/gather/internal/port/changefeed"
)

// mockFeed captures subscriptions and lets tests inject changes.
type mockFeed struct {
	mu       sync.Mutex
	handlers map[string]changefeed.Handler
	failAll  bool
}

var _ changefeed.Feed = (*mockFeed)(nil)

func newMockFeed() *mockFeed {
	return &mockFeed{handlers: make(map[string]changefeed.Handler)}
}

func (f *mockFeed) Subscribe(_ context.Context, table string, handler changefeed.Handler) (func(), error) {
	if f.failAll {
		return nil, errors.New("subscribe refused")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[table] = handler
	return func() {}, nil
}

func (f *mockFeed) deliver(t *testing.T, ch changefeed.Change) {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[ch.Table]
	f.mu.Unlock()
	if h == nil {
		t.Fatalf("no handler for table %s", ch.Table)
	}
	if err := h(context.Background(), ch); err != nil {
		t.Fatalf("handler for %s: %v", ch.Table, err)
	}
}

// mapCache is a deterministic in-memory cache for tests.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ cache.Cache = (*mapCache)(nil)

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// countingResolver counts post lookups on top of a memStore.
type countingResolver struct {
	store *memStore
	mu    sync.Mutex
	calls int
}

func (r *countingResolver) GetPost(ctx context.Context, id string) (*post.Post, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.store.GetPost(ctx, id)
}

func TestBridgeSubscribesAllCollections(t *testing.T) {
	feed := newMockFeed()
	b := NewBridge(feed, newMemStore(), nil, &recBroadcaster{}, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	for _, table := range []string{"events", "posts", "comments"} {
		if feed.handlers[table] == nil {
			t.Fatalf("expected subscription for %s", table)
		}
	}
	if !b.Active() {
		t.Fatal("expected bridge active")
	}
}

func TestBridgeStartFailsWhenNothingSubscribes(t *testing.T) {
	feed := newMockFeed()
	feed.failAll = true
	b := NewBridge(feed, newMemStore(), nil, &recBroadcaster{}, nil)

	if err := b.Start(context.Background()); err == nil {
		t.Fatal("expected error when no collection subscribed")
	}
	if b.Active() {
		t.Fatal("expected bridge inactive")
	}
}

func TestBridgeEventChangeBroadcasts(t *testing.T) {
	feed := newMockFeed()
	bc := &recBroadcaster{}
	b := NewBridge(feed, newMemStore(), nil, bc, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	feed.deliver(t, changefeed.Change{Table: "events", Op: "UPDATE", ID: "e1"})

	updates := bc.channelEvents(realtime.EventUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 event:update, got %d", len(updates))
	}
	if updates[0].channel != realtime.EventChannel("e1") {
		t.Fatalf("expected channel for e1, got %q", updates[0].channel)
	}
	if len(bc.global) != 1 || bc.global[0].eventType != realtime.EventsRefresh {
		t.Fatalf("expected one events:refresh hint, got %+v", bc.global)
	}
}

func TestBridgeDeleteMapsToDeletedKind(t *testing.T) {
	feed := newMockFeed()
	bc := &recBroadcaster{}
	b := NewBridge(feed, newMemStore(), nil, bc, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	feed.deliver(t, changefeed.Change{Table: "posts", Op: "DELETE", ID: "p1", EventID: "e1"})

	updates := bc.channelEvents(realtime.PostUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 post:update, got %d", len(updates))
	}
	payload, ok := updates[0].payload.(realtime.PostUpdatePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", updates[0].payload)
	}
	if payload.Type != realtime.ChangeDeleted {
		t.Fatalf("expected deleted, got %s", payload.Type)
	}
}

func TestBridgeCommentParentResolutionUsesCache(t *testing.T) {
	store := newMemStore()
	p, err := store.CreatePost(context.Background(), "e1", "author", post.CreatePostRequest{Title: "hi"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	resolver := &countingResolver{store: store}

	feed := newMockFeed()
	bc := &recBroadcaster{}
	b := NewBridge(feed, resolver, newMapCache(), bc, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	// Two comment changes for the same post, neither carrying an event id.
	feed.deliver(t, changefeed.Change{Table: "comments", Op: "INSERT", ID: "c1", PostID: p.ID})
	feed.deliver(t, changefeed.Change{Table: "comments", Op: "INSERT", ID: "c2", PostID: p.ID})

	updates := bc.channelEvents(realtime.CommentUpdate)
	if len(updates) != 2 {
		t.Fatalf("expected 2 comment:update, got %d", len(updates))
	}
	for _, u := range updates {
		if u.channel != realtime.EventChannel("e1") {
			t.Fatalf("expected channel for e1, got %q", u.channel)
		}
	}
	if resolver.calls != 1 {
		t.Fatalf("expected 1 post lookup (second served from cache), got %d", resolver.calls)
	}
}

func TestBridgeDropsUnresolvableComment(t *testing.T) {
	feed := newMockFeed()
	bc := &recBroadcaster{}
	b := NewBridge(feed, newMemStore(), newMapCache(), bc, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	// The post is gone; normalization fails and the change is dropped
	// without erroring the subscription.
	feed.deliver(t, changefeed.Change{Table: "comments", Op: "INSERT", ID: "c1", PostID: "missing"})

	if got := len(bc.channelEvents(realtime.CommentUpdate)); got != 0 {
		t.Fatalf("expected no comment:update, got %d", got)
	}
	if len(bc.global) != 0 {
		t.Fatalf("expected no global hint for dropped change, got %+v", bc.global)
	}
}
