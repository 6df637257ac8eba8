// Package realtime defines the notification vocabulary shared by the
// gateway, the change bridge and the manual emit path: resource kinds,
// change kinds, wire event names, channel naming and payload shapes.
package realtime

// ResourceKind identifies a watched resource class. The change bridge
// dispatches on this enum rather than on raw collection name strings.
type ResourceKind string

const (
	KindEvent   ResourceKind = "event"
	KindPost    ResourceKind = "post"
	KindComment ResourceKind = "comment"
)

// ChangeKind labels what happened to a resource.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeLiked   ChangeKind = "liked"
	ChangeUnliked ChangeKind = "unliked"
)

// Wire event names. Clients treat every one of them as an idempotent
// trigger to refetch authoritative state, never as a delta to apply:
// the change bridge and the manual emit path intentionally deliver the
// same logical update twice (at-least-once).
const (
	EventReady    = "realtime:ready"
	EventError    = "realtime:error"
	EventUpdate   = "event:update"
	PostUpdate    = "post:update"
	CommentUpdate = "comment:update"

	EventsRefresh   = "events:refresh"
	PostsRefresh    = "posts:refresh"
	CommentsRefresh = "comments:refresh"
)

// EventChannel returns the broadcast channel key for an event id.
func EventChannel(eventID string) string {
	return "event:" + eventID
}

// ChangeNotification is the normalized form of a raw change-feed record.
// It is ephemeral: produced by the bridge or a manual emit, consumed once
// by the gateway and discarded.
type ChangeNotification struct {
	Kind       ResourceKind `json:"kind"`
	Change     ChangeKind   `json:"change"`
	ResourceID string       `json:"resource_id"`
	ParentID   string       `json:"parent_id,omitempty"`
	EventID    string       `json:"event_id,omitempty"`
}

// ReadyPayload is sent once on a successful connection join. It advertises
// which delivery paths are live so clients can fall back to polling.
type ReadyPayload struct {
	ResourceID      string   `json:"resourceId,omitempty"`
	BackplaneActive bool     `json:"backplaneActive"`
	BridgeActive    bool     `json:"bridgeActive"`
	Fallback        Fallback `json:"fallback"`
}

// Fallback describes the polling fallback clients should use when no
// push path is active.
type Fallback struct {
	Polling    bool `json:"polling"`
	IntervalMS int  `json:"intervalMs"`
}

// ErrorPayload is sent before closing a rejected connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EventUpdatePayload accompanies event:update.
type EventUpdatePayload struct {
	Type    ChangeKind `json:"type"`
	EventID string     `json:"eventId"`
	Event   any        `json:"event,omitempty"`
}

// PostUpdatePayload accompanies post:update.
type PostUpdatePayload struct {
	Type    ChangeKind `json:"type"`
	EventID string     `json:"eventId"`
	Post    any        `json:"post,omitempty"`
}

// CommentUpdatePayload accompanies comment:update.
type CommentUpdatePayload struct {
	Type    ChangeKind `json:"type"`
	EventID string     `json:"eventId"`
	PostID  string     `json:"postId"`
	Comment any        `json:"comment,omitempty"`
}

// RefreshPayload accompanies the global *:refresh hints.
type RefreshPayload struct {
	Resource string `json:"resource"`
}
