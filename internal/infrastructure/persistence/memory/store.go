// Package memory provides an in-memory transactional store implementing
// uow.Store. Each transaction works on a copy of the state that replaces
// the committed state only when fn succeeds. Transactions are serialized,
// which makes LockNominee a no-op.
package memory

import (
	"context"
	"sync"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/domain/value"
)

// subjectKey scopes a subject ID to its cycle.
type subjectKey struct {
	cycleID string
	id      string
}

type memoryState struct {
	cycles      map[string]cycle.Cycle
	values      map[string]value.Value
	subjects    map[subjectKey]subject.Subject
	events      map[string]calendar.Event
	nominations map[string]nomination.Nomination
	seq         int64
}

func newMemoryState() memoryState {
	return memoryState{
		cycles:      make(map[string]cycle.Cycle),
		values:      make(map[string]value.Value),
		subjects:    make(map[subjectKey]subject.Subject),
		events:      make(map[string]calendar.Event),
		nominations: make(map[string]nomination.Nomination),
	}
}

func (s memoryState) clone() memoryState {
	cp := memoryState{
		cycles:      make(map[string]cycle.Cycle, len(s.cycles)),
		values:      make(map[string]value.Value, len(s.values)),
		subjects:    make(map[subjectKey]subject.Subject, len(s.subjects)),
		events:      make(map[string]calendar.Event, len(s.events)),
		nominations: make(map[string]nomination.Nomination, len(s.nominations)),
		seq:         s.seq,
	}
	for k, v := range s.cycles {
		cp.cycles[k] = v
	}
	for k, v := range s.values {
		cp.values[k] = v
	}
	for k, v := range s.subjects {
		cp.subjects[k] = v
	}
	for k, v := range s.events {
		cp.events[k] = v
	}
	for k, v := range s.nominations {
		cp.nominations[k] = v
	}
	return cp
}

// Store is the in-memory uow.Store.
type Store struct {
	mu    sync.Mutex
	state memoryState
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// WithTx implements uow.Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx uow.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Ping implements uow.Store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type transaction struct {
	state memoryState
}

func (t *transaction) Cycles() cycle.Repository           { return cycleRepo{t} }
func (t *transaction) Values() value.Repository           { return valueRepo{t} }
func (t *transaction) Subjects() subject.Directory        { return subjectRepo{t} }
func (t *transaction) Events() calendar.Repository        { return eventRepo{t} }
func (t *transaction) Nominations() nomination.Repository { return nominationRepo{t} }

func (t *transaction) LockNominee(ctx context.Context, cycleID, nomineeID string) error {
	return ctx.Err()
}
