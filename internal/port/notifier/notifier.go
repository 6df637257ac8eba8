// Package notifier defines the port for the outbound user notification
// side-channel. Rendering and delivering notification content to users
// is an external collaborator; the core only hands off a payload.
package notifier

import "context"

// Notification is a per-user message produced by a lifecycle transition.
type Notification struct {
	UserID  string `json:"user_id"`
	EventID string `json:"event_id"`
	Kind    string `json:"kind"` // e.g. "registration.approved"
	Message string `json:"message"`
}

// Notifier hands a notification to the delivery side-channel. Failures
// are logged by callers and never abort the transition that produced
// the notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
