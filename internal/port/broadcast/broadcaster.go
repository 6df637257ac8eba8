// Package broadcast defines the port for broadcasting real-time events to
// connected clients.
package broadcast

import "context"

// Broadcaster sends typed events to clients grouped by channel. Both
// methods are fire-and-forget: delivery failures are absorbed by the
// implementation and never propagate to the mutating code path.
type Broadcaster interface {
	// Broadcast sends a typed event to all clients joined to the channel.
	Broadcast(ctx context.Context, channel, eventType string, payload any)

	// BroadcastGlobal sends a typed event to every connected client.
	BroadcastGlobal(ctx context.Context, eventType string, payload any)
}
