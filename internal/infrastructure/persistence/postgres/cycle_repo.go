package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/shared"
)

// CycleRepository implements cycle.Repository for PostgreSQL.
type CycleRepository struct {
	q Querier
}

const cycleColumns = `id, name, active, starts_on, ends_on, created_at`

// Create stores a new cycle.
func (r *CycleRepository) Create(ctx context.Context, c *cycle.Cycle) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO cycles (id, name, active, starts_on, ends_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Active, c.StartsOn, c.EndsOn, c.CreatedAt)
	if err != nil {
		if ViolatedConstraint(err) == constraintCycleName {
			return shared.ErrCycleAlreadyExists
		}
		return fmt.Errorf("failed to create cycle: %w", err)
	}
	return nil
}

// GetByID returns a cycle by ID.
func (r *CycleRepository) GetByID(ctx context.Context, id string) (*cycle.Cycle, error) {
	if !isUUID(id) {
		return nil, shared.ErrCycleNotFound
	}
	row := r.q.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id)
	c, err := scanCycle(row)
	if IsNoRows(err) {
		return nil, shared.ErrCycleNotFound
	}
	return c, err
}

// GetActive returns the active cycle.
func (r *CycleRepository) GetActive(ctx context.Context) (*cycle.Cycle, error) {
	row := r.q.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE active LIMIT 1`)
	c, err := scanCycle(row)
	if IsNoRows(err) {
		return nil, shared.ErrCycleNotActive
	}
	return c, err
}

// Activate deactivates every other cycle, then activates id. Must run
// inside a transaction.
func (r *CycleRepository) Activate(ctx context.Context, id string) error {
	if !isUUID(id) {
		return shared.ErrCycleNotFound
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cycles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check cycle: %w", err)
	}
	if !exists {
		return shared.ErrCycleNotFound
	}

	if _, err := r.q.Exec(ctx, `UPDATE cycles SET active = FALSE WHERE active AND id <> $1`, id); err != nil {
		return fmt.Errorf("failed to deactivate cycles: %w", translateConflict(err))
	}
	if _, err := r.q.Exec(ctx, `UPDATE cycles SET active = TRUE WHERE id = $1`, id); err != nil {
		if ViolatedConstraint(err) == constraintSingleActive {
			return shared.WrapError("cycle", "Activate", shared.ErrConcurrentModification, "another activation won", err)
		}
		return fmt.Errorf("failed to activate cycle: %w", translateConflict(err))
	}
	return nil
}

// List returns all cycles, newest first.
func (r *CycleRepository) List(ctx context.Context) ([]*cycle.Cycle, error) {
	rows, err := r.q.Query(ctx, `SELECT `+cycleColumns+` FROM cycles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var out []*cycle.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCycle(row pgx.Row) (*cycle.Cycle, error) {
	var c cycle.Cycle
	if err := row.Scan(&c.ID, &c.Name, &c.Active, &c.StartsOn, &c.EndsOn, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
