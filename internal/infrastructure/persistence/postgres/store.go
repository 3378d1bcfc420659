package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/domain/value"
)

// Store implements uow.Store on a pgx pool.
type Store struct {
	conn *Connection
	opts TxOptions
}

// NewStore creates a Store running read-committed transactions.
// Writers of one nominee are serialized by LockNominee instead of by
// the isolation level.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn, opts: DefaultTxOptions()}
}

// WithTx implements uow.Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx uow.Tx) error) error {
	err := s.conn.WithTx(ctx, s.opts, func(tx pgx.Tx) error {
		return fn(&txRepos{q: tx})
	})
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return translateConflict(err)
}

// Ping implements uow.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

type txRepos struct {
	q Querier
}

func (t *txRepos) Cycles() cycle.Repository           { return &CycleRepository{q: t.q} }
func (t *txRepos) Values() value.Repository           { return &ValueRepository{q: t.q} }
func (t *txRepos) Subjects() subject.Directory        { return &SubjectRepository{q: t.q} }
func (t *txRepos) Events() calendar.Repository        { return &EventRepository{q: t.q} }
func (t *txRepos) Nominations() nomination.Repository { return &NominationRepository{q: t.q} }

// LockNominee takes a transaction-scoped advisory lock keyed on the pair.
func (t *txRepos) LockNominee(ctx context.Context, cycleID, nomineeID string) error {
	_, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "nominee:"+cycleID+":"+nomineeID)
	if err != nil {
		return translateConflict(err)
	}
	return nil
}
