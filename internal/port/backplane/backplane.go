// Package backplane defines the port for sharing broadcasts across
// gateway instances. The backplane is optional: a gateway without one
// degrades to single-instance delivery, never to a hard failure.
package backplane

import "context"

// Message is a broadcast replicated across instances. Origin carries the
// publishing instance id so receivers can skip their own messages.
type Message struct {
	Origin  string `json:"origin"`
	Channel string `json:"channel,omitempty"`
	Global  bool   `json:"global,omitempty"`
	Data    []byte `json:"data"`
}

// Handler processes a message received from another instance.
type Handler func(ctx context.Context, msg Message)

// Backplane replicates broadcasts between gateway instances.
type Backplane interface {
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers the handler for messages published by any
	// instance and returns an unsubscribe function.
	Subscribe(ctx context.Context, handler Handler) (func(), error)

	Close() error
}
