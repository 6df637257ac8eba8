package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gotel "github.com/gatherhq/gather/internal/adapter/otel"
	"github.com/gatherhq/gather/internal/domain/realtime"
	"github.com/gatherhq/gather/internal/port/broadcast"
	"github.com/gatherhq/gather/internal/port/cache"
	"github.com/gatherhq/gather/internal/port/changefeed"
)

// parentCacheTTL bounds how long a post -> event mapping is memoized.
const parentCacheTTL = 10 * time.Minute

// normalizeFunc reduces a raw change record to a domain notification.
// Returning (nil, nil) drops the change silently.
type normalizeFunc func(ctx context.Context, ch changefeed.Change) (*realtime.ChangeNotification, error)

// collection binds a resource kind to its storage table and normalizer.
type collection struct {
	table     string
	normalize normalizeFunc
}

// Bridge turns raw change-feed records into domain notifications and
// broadcasts them. It is the asynchronous twin of the manual emit path:
// both may deliver the same logical update, which clients treat as an
// idempotent refetch trigger.
//
// Each watched collection is subscribed independently; one failing
// subscription degrades that collection only.
type Bridge struct {
	feed        changefeed.Feed
	posts       postResolver
	cache       cache.Cache
	broadcaster broadcast.Broadcaster
	metrics     *gotel.Metrics

	registry map[realtime.ResourceKind]collection

	mu     sync.Mutex
	unsubs []func()
	active bool
}

// NewBridge creates a change bridge. cache and metrics may be nil.
func NewBridge(feed changefeed.Feed, posts postResolver, c cache.Cache, b broadcast.Broadcaster, metrics *gotel.Metrics) *Bridge {
	br := &Bridge{
		feed:        feed,
		posts:       posts,
		cache:       c,
		broadcaster: b,
		metrics:     metrics,
	}
	br.registry = map[realtime.ResourceKind]collection{
		realtime.KindEvent:   {table: "events", normalize: br.normalizeEvent},
		realtime.KindPost:    {table: "posts", normalize: br.normalizePost},
		realtime.KindComment: {table: "comments", normalize: br.normalizeComment},
	}
	return br
}

// Start subscribes every registered collection. A collection whose
// subscription fails is logged and skipped; Start errors only when no
// collection could be subscribed at all.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribed := 0
	for kind, col := range b.registry {
		unsub, err := b.feed.Subscribe(ctx, col.table, b.handlerFor(kind, col.normalize))
		if err != nil {
			slog.Error("bridge subscription failed", "collection", col.table, "error", err)
			continue
		}
		b.unsubs = append(b.unsubs, unsub)
		subscribed++
	}

	if subscribed == 0 {
		return fmt.Errorf("bridge: no collection subscribed")
	}
	b.active = true
	slog.Info("change bridge started", "collections", subscribed)
	return nil
}

// Stop unsubscribes all collections.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	b.active = false
}

// Active reports whether the bridge has at least one live subscription.
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// handlerFor wraps a normalizer so a failure is logged and dropped
// rather than terminating the collection's subscription.
func (b *Bridge) handlerFor(kind realtime.ResourceKind, normalize normalizeFunc) changefeed.Handler {
	return func(ctx context.Context, ch changefeed.Change) error {
		notif, err := normalize(ctx, ch)
		if err != nil {
			b.drop(ctx)
			slog.Warn("bridge dropped change", "kind", kind, "id", ch.ID, "error", err)
			return nil
		}
		if notif == nil {
			return nil
		}
		b.publish(ctx, notif)
		return nil
	}
}

func (b *Bridge) normalizeEvent(_ context.Context, ch changefeed.Change) (*realtime.ChangeNotification, error) {
	return &realtime.ChangeNotification{
		Kind:       realtime.KindEvent,
		Change:     changeKind(ch.Op),
		ResourceID: ch.ID,
		EventID:    ch.ID,
	}, nil
}

func (b *Bridge) normalizePost(_ context.Context, ch changefeed.Change) (*realtime.ChangeNotification, error) {
	if ch.EventID == "" {
		return nil, fmt.Errorf("post change %s has no event id", ch.ID)
	}
	return &realtime.ChangeNotification{
		Kind:       realtime.KindPost,
		Change:     changeKind(ch.Op),
		ResourceID: ch.ID,
		EventID:    ch.EventID,
	}, nil
}

// normalizeComment resolves the owning event through the post when the
// raw record does not carry it.
func (b *Bridge) normalizeComment(ctx context.Context, ch changefeed.Change) (*realtime.ChangeNotification, error) {
	eventID := ch.EventID
	if eventID == "" {
		var err error
		eventID, err = b.resolvePostEvent(ctx, ch.PostID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent of comment %s: %w", ch.ID, err)
		}
	}
	return &realtime.ChangeNotification{
		Kind:       realtime.KindComment,
		Change:     changeKind(ch.Op),
		ResourceID: ch.ID,
		ParentID:   ch.PostID,
		EventID:    eventID,
	}, nil
}

// resolvePostEvent looks up a post's event id, memoizing the mapping: a
// busy thread can produce a burst of comment changes for the same post.
func (b *Bridge) resolvePostEvent(ctx context.Context, postID string) (string, error) {
	if postID == "" {
		return "", fmt.Errorf("no post id on comment change")
	}
	key := "post_event:" + postID

	if b.cache != nil {
		if data, ok, err := b.cache.Get(ctx, key); err == nil && ok {
			return string(data), nil
		}
	}

	p, err := b.posts.GetPost(ctx, postID)
	if err != nil {
		return "", err
	}

	if b.cache != nil {
		if err := b.cache.Set(ctx, key, []byte(p.EventID), parentCacheTTL); err != nil {
			slog.Debug("parent cache set failed", "post_id", postID, "error", err)
		}
	}
	return p.EventID, nil
}

// publish broadcasts a normalized notification on the event channel and
// the matching global refresh hint.
func (b *Bridge) publish(ctx context.Context, n *realtime.ChangeNotification) {
	if b.metrics != nil {
		b.metrics.BridgeChanges.Add(ctx, 1)
	}

	channel := realtime.EventChannel(n.EventID)
	switch n.Kind {
	case realtime.KindEvent:
		b.broadcaster.Broadcast(ctx, channel, realtime.EventUpdate, realtime.EventUpdatePayload{
			Type:    n.Change,
			EventID: n.EventID,
		})
		b.broadcaster.BroadcastGlobal(ctx, realtime.EventsRefresh, realtime.RefreshPayload{Resource: "events"})
	case realtime.KindPost:
		b.broadcaster.Broadcast(ctx, channel, realtime.PostUpdate, realtime.PostUpdatePayload{
			Type:    n.Change,
			EventID: n.EventID,
		})
		b.broadcaster.BroadcastGlobal(ctx, realtime.PostsRefresh, realtime.RefreshPayload{Resource: "posts"})
	case realtime.KindComment:
		b.broadcaster.Broadcast(ctx, channel, realtime.CommentUpdate, realtime.CommentUpdatePayload{
			Type:    n.Change,
			EventID: n.EventID,
			PostID:  n.ParentID,
		})
		b.broadcaster.BroadcastGlobal(ctx, realtime.CommentsRefresh, realtime.RefreshPayload{Resource: "comments"})
	}
}

func (b *Bridge) drop(ctx context.Context) {
	if b.metrics != nil {
		b.metrics.BridgeDrops.Add(ctx, 1)
	}
}

func changeKind(op string) realtime.ChangeKind {
	switch op {
	case "INSERT":
		return realtime.ChangeCreated
	case "DELETE":
		return realtime.ChangeDeleted
	default:
		return realtime.ChangeUpdated
	}
}
