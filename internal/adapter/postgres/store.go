package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/event"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Events ---

const eventColumns = `id, creator_id, title, description, location, status, max_participants, current_participants, starts_at, ends_at, version, created_at, updated_at`

func scanEvent(scanner interface{ Scan(dest ...any) error }) (event.Event, error) {
	var e event.Event
	err := scanner.Scan(
		&e.ID, &e.CreatorID, &e.Title, &e.Description, &e.Location, &e.Status,
		&e.MaxParticipants, &e.CurrentParticipants, &e.StartsAt, &e.EndsAt,
		&e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (s *Store) ListEvents(ctx context.Context, status event.Status) ([]event.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events ORDER BY starts_at ASC`, eventColumns)
	args := []any{}
	if status != "" {
		query = fmt.Sprintf(`SELECT %s FROM events WHERE status = $1 ORDER BY starts_at ASC`, eventColumns)
		args = append(args, status)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns), id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get event %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &e, nil
}

func (s *Store) CreateEvent(ctx context.Context, creatorID string, req event.CreateRequest) (*event.Event, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO events (creator_id, title, description, location, status, max_participants, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING %s`, eventColumns),
		creatorID, req.Title, req.Description, req.Location, event.StatusDraft,
		req.MaxParticipants, req.StartsAt, req.EndsAt)

	e, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &e, nil
}

func (s *Store) UpdateEvent(ctx context.Context, e *event.Event) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET title = $2, description = $3, location = $4, max_participants = $5, starts_at = $6, ends_at = $7, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $8`,
		e.ID, e.Title, e.Description, e.Location, e.MaxParticipants, e.StartsAt, e.EndsAt, e.Version)
	if err != nil {
		return fmt.Errorf("update event %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update event %s: %w", e.ID, domain.ErrConflict)
	}
	e.Version++
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete event %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateEventStatus transitions the status guarded by the expected prior
// status, so two concurrent reviews cannot both win.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, from, to event.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET status = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return fmt.Errorf("transition event %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transition event %s to %s: %w", id, to, domain.ErrConflict)
	}
	return nil
}
