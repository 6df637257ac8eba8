package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/registration"
)

const registrationColumns = `id, event_id, user_id, status, note, applied_at, approved_at, completed_at`

func scanRegistration(scanner interface{ Scan(dest ...any) error }) (registration.Registration, error) {
	var r registration.Registration
	err := scanner.Scan(
		&r.ID, &r.EventID, &r.UserID, &r.Status, &r.Note,
		&r.AppliedAt, &r.ApprovedAt, &r.CompletedAt,
	)
	return r, err
}

func (s *Store) GetRegistration(ctx context.Context, id string) (*registration.Registration, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, registrationColumns), id)

	r, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get registration %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get registration %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]registration.Registration, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM registrations WHERE event_id = $1 ORDER BY applied_at ASC`, registrationColumns), eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var regs []registration.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// CreateRegistration applies the capacity check and the counter increment
// as one conditional UPDATE, then inserts the pending registration in the
// same transaction. A read-then-write here would let two concurrent
// registrations both pass the check and overshoot capacity.
func (s *Store) CreateRegistration(ctx context.Context, eventID, userID, note string) (*registration.Registration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin registration tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE events SET current_participants = current_participants + 1, updated_at = now()
		 WHERE id = $1 AND current_participants < max_participants`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("reserve slot on event %s: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the event is full or it does not exist; disambiguate.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check event %s: %w", eventID, err)
		}
		if !exists {
			return nil, fmt.Errorf("register for event %s: %w", eventID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("register for event %s: %w", eventID, domain.ErrCapacityExceeded)
	}

	row := tx.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO registrations (event_id, user_id, status, note)
		 VALUES ($1, $2, $3, $4)
		 RETURNING %s`, registrationColumns),
		eventID, userID, registration.StatusPending, note)

	r, err := scanRegistration(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("register user %s for event %s: %w", userID, eventID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit registration tx: %w", err)
	}
	return &r, nil
}

// TransitionRegistration moves a registration between statuses guarded by
// the expected prior statuses, adjusting the event participant counter in
// the same transaction. The counter therefore always equals the number of
// pending + approved registrations.
func (s *Store) TransitionRegistration(ctx context.Context, id string, from []registration.Status, to registration.Status, counterDelta int) (*registration.Registration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prior := make([]string, len(from))
	for i, st := range from {
		prior[i] = string(st)
	}

	row := tx.QueryRow(ctx,
		fmt.Sprintf(`UPDATE registrations SET status = $2,
		   approved_at = CASE WHEN $2 = 'approved' THEN now() ELSE approved_at END,
		   completed_at = CASE WHEN $2 = 'attended' THEN now() ELSE completed_at END
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING %s`, registrationColumns),
		id, to, prior)

	r, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transition registration %s to %s: %w", id, to, domain.ErrConflict)
		}
		return nil, fmt.Errorf("transition registration %s to %s: %w", id, to, err)
	}

	if counterDelta != 0 {
		_, err := tx.Exec(ctx,
			`UPDATE events SET current_participants = GREATEST(current_participants + $2, 0), updated_at = now()
			 WHERE id = $1`,
			r.EventID, counterDelta)
		if err != nil {
			return nil, fmt.Errorf("adjust participant counter on event %s: %w", r.EventID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition tx: %w", err)
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
