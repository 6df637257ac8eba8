// Package changefeed defines the port for consuming row-level change
// feeds from watched storage collections.
package changefeed

import "context"

// Change is a raw row-level mutation as reported by the storage layer.
// EventID and PostID are best-effort: older rows may not carry them, in
// which case consumers resolve parents themselves.
type Change struct {
	Table   string `json:"table"`
	Op      string `json:"op"` // "INSERT", "UPDATE" or "DELETE"
	ID      string `json:"id"`
	EventID string `json:"event_id,omitempty"`
	PostID  string `json:"post_id,omitempty"`
}

// Handler processes one change. A non-nil error is logged by the feed and
// must not terminate the subscription.
type Handler func(ctx context.Context, ch Change) error

// Feed delivers row-level changes for watched collections. Each
// collection's subscription is independently supervised: a failing
// handler or collection must not affect the others.
type Feed interface {
	// Subscribe registers a handler for changes on the given collection
	// and returns an unsubscribe function.
	Subscribe(ctx context.Context, table string, handler Handler) (func(), error)
}
