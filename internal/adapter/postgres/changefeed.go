package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gatherhq/gather/internal/port/changefeed"
)

// notifyChannel matches the channel used by the notify_change() trigger
// function installed by the migrations.
const notifyChannel = "gather_changes"

// reconnectDelay is the pause between LISTEN connection attempts.
const reconnectDelay = 5 * time.Second

// Changefeed implements changefeed.Feed on Postgres LISTEN/NOTIFY. Row
// triggers on the watched tables emit a JSON description of each mutation;
// a dedicated connection listens and dispatches to per-table handlers.
type Changefeed struct {
	dsn string

	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]changefeed.Handler
}

// NewChangefeed creates a feed that will listen on its own connection.
// Call Run to start consuming notifications.
func NewChangefeed(dsn string) *Changefeed {
	return &Changefeed{
		dsn:      dsn,
		handlers: make(map[string]map[int]changefeed.Handler),
	}
}

// Subscribe registers a handler for changes on the given table.
func (f *Changefeed) Subscribe(_ context.Context, table string, handler changefeed.Handler) (func(), error) {
	if handler == nil {
		return nil, errors.New("changefeed: nil handler")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	if f.handlers[table] == nil {
		f.handlers[table] = make(map[int]changefeed.Handler)
	}
	f.handlers[table][id] = handler

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[table], id)
	}, nil
}

// Run listens for notifications until the context is cancelled,
// reconnecting after transient failures. It blocks and is meant to be
// started in its own goroutine.
func (f *Changefeed) Run(ctx context.Context) error {
	for {
		if err := f.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("changefeed listener failed, reconnecting", "error", err, "delay", reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *Changefeed) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, f.dsn)
	if err != nil {
		return fmt.Errorf("changefeed connect: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("changefeed listen: %w", err)
	}
	slog.Info("changefeed listening", "channel", notifyChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("changefeed wait: %w", err)
		}

		var ch changefeed.Change
		if err := json.Unmarshal([]byte(notification.Payload), &ch); err != nil {
			slog.Error("changefeed payload decode failed", "payload", notification.Payload, "error", err)
			continue
		}
		f.dispatch(ctx, ch)
	}
}

// dispatch fans a change out to the table's handlers. Handler errors and
// panics are logged and absorbed so one bad handler cannot take down the
// subscription for its collection, let alone the others.
func (f *Changefeed) dispatch(ctx context.Context, ch changefeed.Change) {
	f.mu.RLock()
	handlers := make([]changefeed.Handler, 0, len(f.handlers[ch.Table]))
	for _, h := range f.handlers[ch.Table] {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("changefeed handler panicked", "table", ch.Table, "panic", r)
				}
			}()
			if err := h(ctx, ch); err != nil {
				slog.Error("changefeed handler failed", "table", ch.Table, "id", ch.ID, "error", err)
			}
		}()
	}
}
