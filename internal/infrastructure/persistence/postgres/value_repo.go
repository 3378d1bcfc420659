package postgres

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/value"
)

// ValueRepository implements value.Repository for PostgreSQL.
type ValueRepository struct {
	q Querier
}

var valueColumns = []string{"id", "cycle_id", "name", "active", "reserved", "created_at"}

// Create stores a value with its folded name key.
func (r *ValueRepository) Create(ctx context.Context, v *value.Value) error {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("recognition_values")
	ib.Cols("id", "cycle_id", "name", "name_key", "active", "reserved", "created_at")
	ib.Values(v.ID, v.CycleID, v.Name, v.Key(), v.Active, v.Reserved, v.CreatedAt)

	query, args := ib.Build()
	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		if ViolatedConstraint(err) == constraintValueName {
			return shared.ErrValueAlreadyExists
		}
		return fmt.Errorf("failed to create value: %w", err)
	}
	return nil
}

// GetByID returns a value by ID.
func (r *ValueRepository) GetByID(ctx context.Context, id string) (*value.Value, error) {
	if !isUUID(id) {
		return nil, shared.ErrValueNotFound
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(valueColumns...).From("recognition_values").Where(sb.Equal("id", id))
	return r.getOne(ctx, sb)
}

// FindByName matches the folded name within a cycle.
func (r *ValueRepository) FindByName(ctx context.Context, cycleID, name string) (*value.Value, error) {
	if !isUUID(cycleID) {
		return nil, shared.ErrValueNotFound
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(valueColumns...).From("recognition_values").Where(
		sb.Equal("cycle_id", cycleID),
		sb.Equal("name_key", value.NameKey(name)),
	)
	return r.getOne(ctx, sb)
}

// ListByCycle returns the values of a cycle ordered by name.
func (r *ValueRepository) ListByCycle(ctx context.Context, cycleID string, includeInactive bool) ([]*value.Value, error) {
	if !isUUID(cycleID) {
		return nil, nil
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(valueColumns...).From("recognition_values")
	where := []string{sb.Equal("cycle_id", cycleID)}
	if !includeInactive {
		where = append(where, sb.Equal("active", true))
	}
	sb.Where(where...).OrderBy("name")

	query, args := sb.Build()
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list values: %w", err)
	}
	defer rows.Close()

	var out []*value.Value
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SetActive toggles a value.
func (r *ValueRepository) SetActive(ctx context.Context, id string, active bool) error {
	if !isUUID(id) {
		return shared.ErrValueNotFound
	}
	tag, err := r.q.Exec(ctx, `UPDATE recognition_values SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update value: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrValueNotFound
	}
	return nil
}

func (r *ValueRepository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*value.Value, error) {
	query, args := sb.Build()
	v, err := scanValue(r.q.QueryRow(ctx, query, args...))
	if IsNoRows(err) {
		return nil, shared.ErrValueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get value: %w", err)
	}
	return v, nil
}

func scanValue(row pgx.Row) (*value.Value, error) {
	var v value.Value
	if err := row.Scan(&v.ID, &v.CycleID, &v.Name, &v.Active, &v.Reserved, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
