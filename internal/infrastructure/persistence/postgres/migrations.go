package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Constraint names referenced by error translation.
const (
	constraintCycleName       = "cycles_name_key"
	constraintSingleActive    = "cycles_single_active"
	constraintValueName       = "values_cycle_name_key"
	constraintNominationTuple = "nominations_regular_tuple"
	constraintDerivedRecord   = "nominations_derived_per_nominee"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CYCLES, VALUES, SUBJECTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS cycles (
    id UUID PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT FALSE,
    starts_on DATE,
    ends_on DATE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT cycles_name_key UNIQUE (name)
);

-- At most one active cycle.
CREATE UNIQUE INDEX IF NOT EXISTS cycles_single_active ON cycles ((active)) WHERE active;

CREATE TABLE IF NOT EXISTS recognition_values (
    id UUID PRIMARY KEY,
    cycle_id UUID NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
    name VARCHAR(50) NOT NULL,
    name_key VARCHAR(50) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    reserved BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT values_cycle_name_key UNIQUE (cycle_id, name_key)
);

CREATE TABLE IF NOT EXISTS subjects (
    id VARCHAR(64) NOT NULL,
    cycle_id UUID NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
    kind VARCHAR(10) NOT NULL,
    display_name VARCHAR(150) NOT NULL,
    email VARCHAR(150) NOT NULL DEFAULT '',
    cohort VARCHAR(50) NOT NULL DEFAULT '',
    grade VARCHAR(20) NOT NULL DEFAULT '',
    group_name VARCHAR(10) NOT NULL DEFAULT '',
    level VARCHAR(50) NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (cycle_id, id),
    CONSTRAINT valid_subject_kind CHECK (kind IN ('student', 'staff'))
);

CREATE INDEX IF NOT EXISTS idx_subjects_cycle_kind ON subjects(cycle_id, kind);
`

const migration001Down = `
DROP TABLE IF EXISTS subjects;
DROP TABLE IF EXISTS recognition_values;
DROP TABLE IF EXISTS cycles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: EVENTS AND NOMINATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS calendar_events (
    id UUID PRIMARY KEY,
    cycle_id UUID NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL DEFAULT '',
    cohort VARCHAR(50) NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    close_at TIMESTAMP WITH TIME ZONE NOT NULL,
    occurs_at TIMESTAMP WITH TIME ZONE NOT NULL,
    closed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT event_boundary CHECK (close_at < occurs_at)
);

CREATE INDEX IF NOT EXISTS idx_events_open ON calendar_events(cycle_id, occurs_at) WHERE active;
CREATE INDEX IF NOT EXISTS idx_events_expiring ON calendar_events(close_at) WHERE active;

CREATE TABLE IF NOT EXISTS nominations (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL UNIQUE,
    cycle_id UUID NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
    event_id UUID REFERENCES calendar_events(id) ON DELETE SET NULL,
    nominator_id VARCHAR(64),
    nominee_id VARCHAR(64) NOT NULL,
    value_id UUID NOT NULL REFERENCES recognition_values(id),
    comment TEXT NOT NULL DEFAULT '',
    kind VARCHAR(10) NOT NULL,
    derived BOOLEAN NOT NULL DEFAULT FALSE,
    counted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT valid_nomination_kind CHECK (kind IN ('student', 'staff')),
    CONSTRAINT no_self_nomination CHECK (nominator_id IS NULL OR nominator_id <> nominee_id),
    CONSTRAINT derived_shape CHECK (derived = (nominator_id IS NULL)),
    CONSTRAINT derived_not_counted CHECK (NOT (derived AND counted)),
    FOREIGN KEY (cycle_id, nominator_id) REFERENCES subjects(cycle_id, id),
    FOREIGN KEY (cycle_id, nominee_id) REFERENCES subjects(cycle_id, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS nominations_regular_tuple
    ON nominations(nominator_id, nominee_id, value_id, cycle_id) WHERE NOT derived;
CREATE UNIQUE INDEX IF NOT EXISTS nominations_derived_per_nominee
    ON nominations(nominee_id, cycle_id) WHERE derived;

CREATE INDEX IF NOT EXISTS idx_nominations_nominee ON nominations(cycle_id, nominee_id, seq);
CREATE INDEX IF NOT EXISTS idx_nominations_nominator ON nominations(cycle_id, nominator_id);
CREATE INDEX IF NOT EXISTS idx_nominations_event ON nominations(event_id);
`

const migration002Down = `
DROP TABLE IF EXISTS nominations;
DROP TABLE IF EXISTS calendar_events;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_cycles_values_subjects",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_events_nominations",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Pool().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		mig := mig
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}
