package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository persists events and RSVPs to Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectEvents = `
SELECT id, name, description, location, event_date, event_time, capacity, created_by, created_at, updated_at
FROM events`

const selectRSVPs = `
SELECT id, event_id, profile_id, status, created_at, updated_at
FROM rsvps`

// Create inserts a new event.
func (r *PostgresRepository) Create(ctx context.Context, event Event) (Event, error) {
	insert := `INSERT INTO events (id, name, description, location, event_date, event_time, capacity, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :location, :event_date, :event_time, :capacity, :created_by, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, insert, event); err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	return r.Get(ctx, event.ID)
}

// Get retrieves one event by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	var event Event
	if err := r.db.GetContext(ctx, &event, selectEvents+" WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// Update rewrites the editable columns of an event.
func (r *PostgresRepository) Update(ctx context.Context, event Event) (Event, error) {
	query := `UPDATE events
SET name = :name,
    description = :description,
    location = :location,
    event_date = :event_date,
    event_time = :event_time,
    capacity = :capacity,
    updated_at = :updated_at
WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return Event{}, fmt.Errorf("update event: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return Event{}, ErrNotFound
	}
	return r.Get(ctx, event.ID)
}

// Delete removes an event and, by cascade, its RSVPs.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns events by date, undated events last.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Event, error) {
	query := selectEvents
	args := []any{}
	if opts.From != nil {
		query += " WHERE event_date >= $1"
		args = append(args, *opts.From)
	}
	query += " ORDER BY event_date ASC NULLS LAST, name ASC"
	if opts.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, opts.Limit)
	}

	events := []Event{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Confirm locks the event row so concurrent RSVPs cannot overbook it.
func (r *PostgresRepository) Confirm(ctx context.Context, eventID, profileID uuid.UUID, now time.Time) (RSVP, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return RSVP{}, fmt.Errorf("begin rsvp: %w", err)
	}
	defer tx.Rollback()

	var capacity sql.NullInt64
	if err := tx.GetContext(ctx, &capacity, "SELECT capacity FROM events WHERE id = $1 FOR UPDATE", eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RSVP{}, ErrNotFound
		}
		return RSVP{}, fmt.Errorf("lock event: %w", err)
	}

	var status RSVPStatus
	err = tx.GetContext(ctx, &status, "SELECT status FROM rsvps WHERE event_id = $1 AND profile_id = $2", eventID, profileID)
	switch {
	case err == nil && status == RSVPConfirmed:
		return RSVP{}, ErrDuplicateRSVP
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return RSVP{}, fmt.Errorf("load rsvp: %w", err)
	}

	if capacity.Valid {
		var confirmed int64
		if err := tx.GetContext(ctx, &confirmed, "SELECT COUNT(*) FROM rsvps WHERE event_id = $1 AND status = 'confirmed'", eventID); err != nil {
			return RSVP{}, fmt.Errorf("count rsvps: %w", err)
		}
		if confirmed >= capacity.Int64 {
			return RSVP{}, ErrEventFull
		}
	}

	var rsvp RSVP
	upsert := `INSERT INTO rsvps (id, event_id, profile_id, status, created_at, updated_at)
VALUES ($1, $2, $3, 'confirmed', $4, $4)
ON CONFLICT (event_id, profile_id) DO UPDATE SET status = 'confirmed', updated_at = EXCLUDED.updated_at
RETURNING id, event_id, profile_id, status, created_at, updated_at`
	if err := tx.GetContext(ctx, &rsvp, upsert, uuid.New(), eventID, profileID, now); err != nil {
		return RSVP{}, fmt.Errorf("confirm rsvp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RSVP{}, fmt.Errorf("commit rsvp: %w", err)
	}
	return rsvp, nil
}

// Cancel releases a confirmed seat.
func (r *PostgresRepository) Cancel(ctx context.Context, eventID, profileID uuid.UUID, now time.Time) (RSVP, error) {
	var rsvp RSVP
	query := `UPDATE rsvps SET status = 'cancelled', updated_at = $3
WHERE event_id = $1 AND profile_id = $2 AND status = 'confirmed'
RETURNING id, event_id, profile_id, status, created_at, updated_at`
	if err := r.db.GetContext(ctx, &rsvp, query, eventID, profileID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RSVP{}, ErrRSVPNotFound
		}
		return RSVP{}, fmt.Errorf("cancel rsvp: %w", err)
	}
	return rsvp, nil
}

// GetRSVP returns the member's RSVP for an event in any status.
func (r *PostgresRepository) GetRSVP(ctx context.Context, eventID, profileID uuid.UUID) (RSVP, error) {
	var rsvp RSVP
	if err := r.db.GetContext(ctx, &rsvp, selectRSVPs+" WHERE event_id = $1 AND profile_id = $2", eventID, profileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RSVP{}, ErrRSVPNotFound
		}
		return RSVP{}, fmt.Errorf("get rsvp: %w", err)
	}
	return rsvp, nil
}

// ListRSVPs returns RSVPs oldest first.
func (r *PostgresRepository) ListRSVPs(ctx context.Context, filter RSVPFilter) ([]RSVP, error) {
	query := selectRSVPs
	clauses := []string{}
	args := []any{}

	if filter.EventID != nil {
		clauses = append(clauses, fmt.Sprintf("event_id = $%d", len(args)+1))
		args = append(args, *filter.EventID)
	}
	if filter.ProfileID != nil {
		clauses = append(clauses, fmt.Sprintf("profile_id = $%d", len(args)+1))
		args = append(args, *filter.ProfileID)
	}
	if filter.Status != nil {
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rsvps := []RSVP{}
	if err := r.db.SelectContext(ctx, &rsvps, query, args...); err != nil {
		return nil, fmt.Errorf("list rsvps: %w", err)
	}
	return rsvps, nil
}
