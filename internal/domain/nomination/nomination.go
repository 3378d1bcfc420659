// Package nomination models the recognition ledger. Regular nominations are
// written by staff; excellence records are derived and owned by the
// promotion engine.
package nomination

import (
	"context"
	"strings"
	"time"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
)

// MaxCommentLength bounds free-text comments.
const MaxCommentLength = 2000

// Kind mirrors the nominee's subject kind.
type Kind string

const (
	KindStudent Kind = "student"
	KindStaff   Kind = "staff"
)

// KindOf returns the nomination kind for a nominee.
func KindOf(nominee *subject.Subject) Kind {
	if nominee.IsStaff() {
		return KindStaff
	}
	return KindStudent
}

// Nomination is one ledger row.
type Nomination struct {
	ID          string
	Seq         int64 // insertion order, assigned by the store
	CycleID     string
	EventID     *string
	NominatorID string
	NomineeID   string
	ValueID     string
	Comment     string
	Kind        Kind
	Derived     bool
	Counted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Draft is the caller's request to create a nomination.
type Draft struct {
	NominatorID string
	NomineeID   string
	ValueID     string
	Comment     string
	EventID     string // optional explicit event
}

// Normalize trims the free-text fields.
func (d Draft) Normalize() Draft {
	d.NominatorID = strings.TrimSpace(d.NominatorID)
	d.NomineeID = strings.TrimSpace(d.NomineeID)
	d.ValueID = strings.TrimSpace(d.ValueID)
	d.EventID = strings.TrimSpace(d.EventID)
	d.Comment = strings.TrimSpace(d.Comment)
	return d
}

// New builds a regular nomination admitted under eventID at now.
func New(cycleID, eventID string, d Draft, kind Kind, now time.Time) *Nomination {
	now = now.UTC()
	n := &Nomination{
		ID:          shared.NewID(),
		CycleID:     cycleID,
		NominatorID: d.NominatorID,
		NomineeID:   d.NomineeID,
		ValueID:     d.ValueID,
		Comment:     d.Comment,
		Kind:        kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if eventID != "" {
		id := eventID
		n.EventID = &id
	}
	return n
}

// NewDerived builds an excellence record for nominee, stamped at now.
func NewDerived(cycleID, nomineeID, valueID, comment string, kind Kind, now time.Time) *Nomination {
	now = now.UTC()
	return &Nomination{
		ID:        shared.NewID(),
		CycleID:   cycleID,
		NomineeID: nomineeID,
		ValueID:   valueID,
		Comment:   comment,
		Kind:      kind,
		Derived:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key is the uniqueness tuple among regular nominations.
type Key struct {
	NominatorID string
	NomineeID   string
	ValueID     string
	CycleID     string
}

// Key returns the uniqueness tuple.
func (n *Nomination) Key() Key {
	return Key{NominatorID: n.NominatorID, NomineeID: n.NomineeID, ValueID: n.ValueID, CycleID: n.CycleID}
}

// EventRef returns the owning event ID or "".
func (n *Nomination) EventRef() string {
	if n.EventID == nil {
		return ""
	}
	return *n.EventID
}

// Filter narrows List queries. Empty fields match everything.
type Filter struct {
	CycleID        string
	NomineeID      string
	NominatorID    string
	ValueID        string
	EventID        string
	Kind           Kind
	IncludeDerived bool
	OnlyDerived    bool
	Pagination     shared.Pagination
}

// Repository is the storage contract for the ledger.
type Repository interface {
	// Create inserts a row and assigns Seq. A clash on the uniqueness tuple
	// returns ErrDuplicateNomination.
	Create(ctx context.Context, n *Nomination) error

	// GetByID returns ErrNominationNotFound if missing.
	GetByID(ctx context.Context, id string) (*Nomination, error)

	// Update persists value, comment, counted flag and UpdatedAt.
	Update(ctx context.Context, n *Nomination) error

	Delete(ctx context.Context, id string) error

	// ExistsKey reports whether a regular nomination with k exists,
	// ignoring excludeID.
	ExistsKey(ctx context.Context, k Key, excludeID string) (bool, error)

	// ListForNominee returns the regular nominations of nominee in cycle
	// ordered by insertion.
	ListForNominee(ctx context.Context, cycleID, nomineeID string) ([]*Nomination, error)

	// GetDerived returns the excellence record or ErrNominationNotFound.
	GetDerived(ctx context.Context, cycleID, nomineeID string) (*Nomination, error)

	// SetCounted sets the counted flag on ids and clears it on every other
	// regular nomination of nominee in cycle.
	SetCounted(ctx context.Context, cycleID, nomineeID string, ids []string) error

	List(ctx context.Context, f Filter) ([]*Nomination, error)
}
