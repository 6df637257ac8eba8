// Package nats implements the fan-out backplane on core NATS pub/sub and
// the user notification queue on NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/gatherhq/gather/internal/port/backplane"
)

const backplaneSubject = "gather.realtime"

// Backplane replicates gateway broadcasts across instances using core
// NATS pub/sub. Replication is fire-and-forget: the backplane carries no
// durability, matching the at-least-once, refetch-on-notify contract.
type Backplane struct {
	nc *nats.Conn
}

// ConnectBackplane establishes a NATS connection for the backplane.
func ConnectBackplane(url string) (*Backplane, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	slog.Info("nats backplane connected", "url", url)
	return &Backplane{nc: nc}, nil
}

// Publish replicates one broadcast to all instances.
func (b *Backplane) Publish(_ context.Context, msg backplane.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal backplane message: %w", err)
	}
	if err := b.nc.Publish(backplaneSubject, data); err != nil {
		return fmt.Errorf("backplane publish: %w", err)
	}
	return nil
}

// Subscribe registers the handler for broadcasts from all instances.
func (b *Backplane) Subscribe(ctx context.Context, handler backplane.Handler) (func(), error) {
	sub, err := b.nc.Subscribe(backplaneSubject, func(m *nats.Msg) {
		var msg backplane.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("backplane message decode failed", "error", err)
			return
		}
		handler(ctx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("backplane subscribe: %w", err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("backplane unsubscribe failed", "error", err)
		}
	}, nil
}

// Close shuts down the NATS connection.
func (b *Backplane) Close() error {
	b.nc.Close()
	return nil
}
