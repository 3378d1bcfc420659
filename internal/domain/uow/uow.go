// Package uow defines the transactional boundary shared by every
// nomination operation: gate checks, the ledger write and the tier
// recomputation commit or roll back together.
package uow

import (
	"context"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/value"
)

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Cycles() cycle.Repository
	Values() value.Repository
	Subjects() subject.Directory
	Events() calendar.Repository
	Nominations() nomination.Repository

	// LockNominee serializes writers of one (cycle, nominee) pair until
	// the transaction ends.
	LockNominee(ctx context.Context, cycleID, nomineeID string) error
}

// Store runs fn in a transaction. fn's error rolls everything back.
// Serialization conflicts surface as shared.ErrConcurrentModification.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
