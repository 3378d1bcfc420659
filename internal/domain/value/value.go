// Package value models the recognizable values of a cycle (Respeto,
// Colaboración, ...). Names are unique per cycle regardless of case.
package value

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/valores-hub/nominations/internal/domain/shared"
)

// DefaultSeed is the value set installed by SeedValues.
var DefaultSeed = []string{"Responsabilidad", "Respeto", "Colaboración", "Empatía"}

// Value is a recognizable value owned by one cycle.
type Value struct {
	ID        string
	CycleID   string
	Name      string
	Active    bool
	Reserved  bool // the synthetic excellence value
	CreatedAt time.Time
}

// New returns an active value for cycleID.
func New(cycleID, name string) (*Value, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("value", "New", shared.ErrEmptyValue, "value name is required")
	}
	if cycleID == "" {
		return nil, shared.NewDomainError("value", "New", shared.ErrInvalidID, "cycle is required")
	}
	return &Value{
		ID:        shared.NewID(),
		CycleID:   cycleID,
		Name:      name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewReserved returns the excellence value for cycleID, created at now.
func NewReserved(cycleID, name string, now time.Time) (*Value, error) {
	v, err := New(cycleID, name)
	if err != nil {
		return nil, err
	}
	v.Reserved = true
	v.CreatedAt = now.UTC()
	return v, nil
}

// Key returns the case-insensitive lookup key for the value name.
func (v *Value) Key() string {
	return NameKey(v.Name)
}

// Nominable reports whether staff may pick this value.
func (v *Value) Nominable() bool {
	return v.Active && !v.Reserved
}

// NameKey folds a name for case-insensitive comparison. "EMPATÍA",
// "empatía" and the decomposed form of "Empatía" share one key.
func NameKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// Repository is the storage contract for values.
type Repository interface {
	// Create returns ErrValueAlreadyExists on a case-insensitive name clash.
	Create(ctx context.Context, v *Value) error

	// GetByID returns ErrValueNotFound if missing.
	GetByID(ctx context.Context, id string) (*Value, error)

	// FindByName matches case-insensitively. Returns ErrValueNotFound if missing.
	FindByName(ctx context.Context, cycleID, name string) (*Value, error)

	ListByCycle(ctx context.Context, cycleID string, includeInactive bool) ([]*Value, error)

	SetActive(ctx context.Context, id string, active bool) error
}
