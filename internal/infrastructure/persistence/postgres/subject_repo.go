package postgres

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
)

// SubjectRepository implements subject.Directory for PostgreSQL.
type SubjectRepository struct {
	q Querier
}

const subjectColumns = `id, cycle_id, kind, display_name, email, cohort, grade, group_name, level, active, updated_at`

// Lookup returns a subject by its ID within a cycle.
func (r *SubjectRepository) Lookup(ctx context.Context, cycleID, id string) (*subject.Subject, error) {
	if !isUUID(cycleID) {
		return nil, shared.ErrSubjectNotFound
	}
	row := r.q.QueryRow(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE cycle_id = $1 AND id = $2`, cycleID, id)
	s, err := scanSubject(row)
	if IsNoRows(err) {
		return nil, shared.ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup subject: %w", err)
	}
	return s, nil
}

// Upsert inserts or replaces a subject by cycle and ID.
func (r *SubjectRepository) Upsert(ctx context.Context, s *subject.Subject) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO subjects (`+subjectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (cycle_id, id) DO UPDATE SET
			kind = EXCLUDED.kind,
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			cohort = EXCLUDED.cohort,
			grade = EXCLUDED.grade,
			group_name = EXCLUDED.group_name,
			level = EXCLUDED.level,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, s.ID, s.CycleID, string(s.Kind), s.DisplayName, s.Email, string(s.Cohort),
		s.Grade, s.Group, s.Level, s.Active, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subject: %w", err)
	}
	return nil
}

// ListByCycle returns the subjects of a cycle ordered by name.
func (r *SubjectRepository) ListByCycle(ctx context.Context, cycleID string, kind subject.Kind) ([]*subject.Subject, error) {
	if !isUUID(cycleID) {
		return nil, nil
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(subjectColumns).From("subjects")
	where := []string{sb.Equal("cycle_id", cycleID)}
	if kind != "" {
		where = append(where, sb.Equal("kind", string(kind)))
	}
	sb.Where(where...).OrderBy("display_name")

	query, args := sb.Build()
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var out []*subject.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubject(row pgx.Row) (*subject.Subject, error) {
	var (
		s      subject.Subject
		kind   string
		cohort string
	)
	if err := row.Scan(&s.ID, &s.CycleID, &kind, &s.DisplayName, &s.Email, &cohort,
		&s.Grade, &s.Group, &s.Level, &s.Active, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Kind = subject.Kind(kind)
	s.Cohort = shared.Cohort(cohort)
	return &s, nil
}
