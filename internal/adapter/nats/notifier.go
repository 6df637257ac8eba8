package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/gatherhq/gather/internal/port/notifier"
)

const (
	notifyStream  = "GATHER_NOTIFY"
	notifySubject = "notify.user."
)

// Notifier hands user notifications to the delivery side-channel over
// NATS JetStream. Unlike the backplane, notifications are durable: a
// delivery worker that is down picks them up on restart.
type Notifier struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// ConnectNotifier establishes a connection to NATS and ensures the
// notification stream exists.
func ConnectNotifier(ctx context.Context, url string) (*Notifier, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     notifyStream,
		Subjects: []string{notifySubject + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats notifier connected", "url", url, "stream", notifyStream)
	return &Notifier{nc: nc, js: js}, nil
}

// Notify publishes one notification to the per-user subject.
func (n *Notifier) Notify(ctx context.Context, notif notifier.Notification) error {
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if _, err := n.js.Publish(ctx, notifySubject+notif.UserID, data); err != nil {
		return fmt.Errorf("publish notification for %s: %w", notif.UserID, err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (n *Notifier) Close() error {
	n.nc.Close()
	return nil
}
