package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/shared"
)

// EventRepository implements calendar.Repository for PostgreSQL.
type EventRepository struct {
	q Querier
}

const eventColumns = `id, cycle_id, name, cohort, active, close_at, occurs_at, closed_at, created_at`

// Create stores an event. The close_at < occurs_at check backs up the
// domain validation.
func (r *EventRepository) Create(ctx context.Context, e *calendar.Event) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO calendar_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.CycleID, e.Name, string(e.Cohort), e.Active, e.CloseAt, e.OccursAt, e.ClosedAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetByID returns an event by ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*calendar.Event, error) {
	if !isUUID(id) {
		return nil, shared.ErrEventNotFound
	}
	e, err := scanEvent(r.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ListActive returns the flagged events of a cycle by start time.
func (r *EventRepository) ListActive(ctx context.Context, cycleID string) ([]*calendar.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE cycle_id = $1 AND active ORDER BY occurs_at, id`, cycleID)
}

// ListByCycle returns every event of a cycle by start time.
func (r *EventRepository) ListByCycle(ctx context.Context, cycleID string) ([]*calendar.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE cycle_id = $1 ORDER BY occurs_at, id`, cycleID)
}

// Update persists the flag and closed_at.
func (r *EventRepository) Update(ctx context.Context, e *calendar.Event) error {
	tag, err := r.q.Exec(ctx, `UPDATE calendar_events SET active = $2, closed_at = $3 WHERE id = $1`, e.ID, e.Active, e.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEventNotFound
	}
	return nil
}

// CloseExpired clears the flag of expired events in a single statement.
func (r *EventRepository) CloseExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		UPDATE calendar_events
		SET active = FALSE, closed_at = $1
		WHERE active AND close_at <= $1
		RETURNING id
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to close expired events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *EventRepository) list(ctx context.Context, query string, cycleID string) ([]*calendar.Event, error) {
	if !isUUID(cycleID) {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []*calendar.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row) (*calendar.Event, error) {
	var (
		e      calendar.Event
		cohort string
	)
	if err := row.Scan(&e.ID, &e.CycleID, &e.Name, &cohort, &e.Active, &e.CloseAt, &e.OccursAt, &e.ClosedAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Cohort = shared.Cohort(cohort)
	e.CloseAt = e.CloseAt.UTC()
	e.OccursAt = e.OccursAt.UTC()
	return &e, nil
}
