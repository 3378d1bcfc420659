package postgres

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
)

// NominationRepository implements nomination.Repository for PostgreSQL.
type NominationRepository struct {
	q Querier
}

var nominationColumns = []string{
	"id", "seq", "cycle_id", "event_id", "nominator_id", "nominee_id", "value_id",
	"comment", "kind", "derived", "counted", "created_at", "updated_at",
}

// Create inserts a row and assigns Seq from the sequence.
func (r *NominationRepository) Create(ctx context.Context, n *nomination.Nomination) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO nominations (
			id, cycle_id, event_id, nominator_id, nominee_id, value_id,
			comment, kind, derived, counted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq
	`, n.ID, n.CycleID, n.EventID, nullable(n.NominatorID), n.NomineeID, n.ValueID,
		n.Comment, string(n.Kind), n.Derived, n.Counted, n.CreatedAt, n.UpdatedAt,
	).Scan(&n.Seq)
	if err != nil {
		return translateNominationErr("Create", err)
	}
	return nil
}

// GetByID returns a nomination by ID.
func (r *NominationRepository) GetByID(ctx context.Context, id string) (*nomination.Nomination, error) {
	if !isUUID(id) {
		return nil, shared.ErrNominationNotFound
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(nominationColumns...).From("nominations").Where(sb.Equal("id", id))
	return r.getOne(ctx, sb)
}

// Update persists the mutable columns.
func (r *NominationRepository) Update(ctx context.Context, n *nomination.Nomination) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("nominations")
	ub.Set(
		ub.Assign("value_id", n.ValueID),
		ub.Assign("comment", n.Comment),
		ub.Assign("counted", n.Counted),
		ub.Assign("updated_at", n.UpdatedAt),
	)
	ub.Where(ub.Equal("id", n.ID))

	query, args := ub.Build()
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return translateNominationErr("Update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNominationNotFound
	}
	return nil
}

// Delete removes a row.
func (r *NominationRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return shared.ErrNominationNotFound
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM nominations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete nomination: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNominationNotFound
	}
	return nil
}

// ExistsKey checks the uniqueness tuple among regular rows.
func (r *NominationRepository) ExistsKey(ctx context.Context, k nomination.Key, excludeID string) (bool, error) {
	if !isUUID(k.CycleID) || !isUUID(k.ValueID) {
		return false, nil
	}
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM nominations
			WHERE NOT derived
			  AND nominator_id = $1 AND nominee_id = $2 AND value_id = $3 AND cycle_id = $4
			  AND id::text <> $5
		)
	`, k.NominatorID, k.NomineeID, k.ValueID, k.CycleID, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check nomination: %w", err)
	}
	return exists, nil
}

// ListForNominee returns regular rows in insertion order.
func (r *NominationRepository) ListForNominee(ctx context.Context, cycleID, nomineeID string) ([]*nomination.Nomination, error) {
	if !isUUID(cycleID) {
		return nil, nil
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(nominationColumns...).From("nominations").Where(
		sb.Equal("cycle_id", cycleID),
		sb.Equal("nominee_id", nomineeID),
		sb.Equal("derived", false),
	).OrderBy("seq")
	return r.getMany(ctx, sb)
}

// GetDerived returns the excellence record of a nominee.
func (r *NominationRepository) GetDerived(ctx context.Context, cycleID, nomineeID string) (*nomination.Nomination, error) {
	if !isUUID(cycleID) {
		return nil, shared.ErrNominationNotFound
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(nominationColumns...).From("nominations").Where(
		sb.Equal("cycle_id", cycleID),
		sb.Equal("nominee_id", nomineeID),
		sb.Equal("derived", true),
	)
	return r.getOne(ctx, sb)
}

// SetCounted marks ids and clears the flag on the nominee's other rows.
func (r *NominationRepository) SetCounted(ctx context.Context, cycleID, nomineeID string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	_, err := r.q.Exec(ctx, `
		UPDATE nominations
		SET counted = (id::text = ANY($3::text[]))
		WHERE cycle_id = $1 AND nominee_id = $2 AND NOT derived
		  AND counted <> (id::text = ANY($3::text[]))
	`, cycleID, nomineeID, ids)
	if err != nil {
		return fmt.Errorf("failed to update counted flags: %w", err)
	}
	return nil
}

// List applies the filter with a dynamic query.
func (r *NominationRepository) List(ctx context.Context, f nomination.Filter) ([]*nomination.Nomination, error) {
	for _, id := range []string{f.CycleID, f.ValueID, f.EventID} {
		if id != "" && !isUUID(id) {
			return nil, nil
		}
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(nominationColumns...).From("nominations")

	where := []string{sb.Equal("cycle_id", f.CycleID)}
	if f.NomineeID != "" {
		where = append(where, sb.Equal("nominee_id", f.NomineeID))
	}
	if f.NominatorID != "" {
		where = append(where, sb.Equal("nominator_id", f.NominatorID))
	}
	if f.ValueID != "" {
		where = append(where, sb.Equal("value_id", f.ValueID))
	}
	if f.EventID != "" {
		where = append(where, sb.Equal("event_id", f.EventID))
	}
	if f.Kind != "" {
		where = append(where, sb.Equal("kind", string(f.Kind)))
	}
	switch {
	case f.OnlyDerived:
		where = append(where, sb.Equal("derived", true))
	case !f.IncludeDerived:
		where = append(where, sb.Equal("derived", false))
	}
	sb.Where(where...).OrderBy("seq")
	if f.Pagination.PageSize > 0 {
		sb.Limit(f.Pagination.Limit()).Offset(f.Pagination.Offset())
	}

	return r.getMany(ctx, sb)
}

func (r *NominationRepository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*nomination.Nomination, error) {
	query, args := sb.Build()
	n, err := scanNomination(r.q.QueryRow(ctx, query, args...))
	if IsNoRows(err) {
		return nil, shared.ErrNominationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nomination: %w", err)
	}
	return n, nil
}

func (r *NominationRepository) getMany(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]*nomination.Nomination, error) {
	query, args := sb.Build()
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nominations: %w", err)
	}
	defer rows.Close()

	var out []*nomination.Nomination
	for rows.Next() {
		n, err := scanNomination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNomination(row pgx.Row) (*nomination.Nomination, error) {
	var (
		n         nomination.Nomination
		nominator *string
		kind      string
	)
	if err := row.Scan(&n.ID, &n.Seq, &n.CycleID, &n.EventID, &nominator, &n.NomineeID, &n.ValueID,
		&n.Comment, &kind, &n.Derived, &n.Counted, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if nominator != nil {
		n.NominatorID = *nominator
	}
	n.Kind = nomination.Kind(kind)
	return &n, nil
}

// translateNominationErr maps index violations onto domain rejections.
func translateNominationErr(op string, err error) error {
	switch ViolatedConstraint(err) {
	case constraintNominationTuple:
		return shared.WrapError("nomination", op, shared.ErrDuplicateNomination, "duplicate nomination", err)
	case constraintDerivedRecord:
		return shared.WrapError("nomination", op, shared.ErrConcurrentModification, "excellence record already exists", err)
	}
	return fmt.Errorf("failed to %s nomination: %w", op, translateConflict(err))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
