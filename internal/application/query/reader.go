// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/infrastructure/metrics"
	"github.com/valores-hub/nominations/pkg/timeutil"
	"github.com/valores-hub/nominations/pkg/tracing"
)

// Reader runs queries against a consistent snapshot of the store.
type Reader struct {
	store   uow.Store
	clock   timeutil.Clock
	metrics *metrics.Recorder
}

// NewReader creates a Reader. A nil clock uses the system clock.
func NewReader(store uow.Store, clock timeutil.Clock, m *metrics.Recorder) *Reader {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Reader{store: store, clock: clock, metrics: m}
}

func (r *Reader) read(ctx context.Context, op string, fn func(ctx context.Context, tx uow.Tx) error) error {
	ctx, span := tracing.StartSpan(ctx, "query."+op)
	defer span.End()

	started := time.Now()
	err := r.store.WithTx(ctx, func(tx uow.Tx) error { return fn(ctx, tx) })
	r.metrics.Operation(op, started, shared.Reason(err), err != nil)
	if err != nil {
		tracing.RecordError(span, err)
	}
	return err
}

// NominationDTO is the read model of one ledger row.
type NominationDTO struct {
	ID          string    `json:"id"`
	CycleID     string    `json:"cycle_id"`
	EventID     string    `json:"event_id,omitempty"`
	NominatorID string    `json:"nominator_id,omitempty"`
	NomineeID   string    `json:"nominee_id"`
	ValueID     string    `json:"value_id"`
	ValueName   string    `json:"value_name,omitempty"`
	Comment     string    `json:"comment"`
	Kind        string    `json:"kind"`
	Derived     bool      `json:"derived"`
	Counted     bool      `json:"counted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToNominationDTO converts a ledger row.
func ToNominationDTO(n *nomination.Nomination) NominationDTO {
	return NominationDTO{
		ID:          n.ID,
		CycleID:     n.CycleID,
		EventID:     n.EventRef(),
		NominatorID: n.NominatorID,
		NomineeID:   n.NomineeID,
		ValueID:     n.ValueID,
		Comment:     n.Comment,
		Kind:        string(n.Kind),
		Derived:     n.Derived,
		Counted:     n.Counted,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}
