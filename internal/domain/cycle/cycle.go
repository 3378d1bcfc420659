// Package cycle models the school cycle. Exactly one cycle is active at a
// time and every other record is scoped to a cycle.
package cycle

import (
	"context"
	"strings"
	"time"

	"github.com/valores-hub/nominations/internal/domain/shared"
)

// Cycle is a school year such as "2024-2025".
type Cycle struct {
	ID        string
	Name      string
	Active    bool
	StartsOn  *time.Time
	EndsOn    *time.Time
	CreatedAt time.Time
}

// New validates the name and returns an inactive cycle.
func New(name string, startsOn, endsOn *time.Time) (*Cycle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("cycle", "New", shared.ErrEmptyValue, "cycle name is required")
	}
	if startsOn != nil && endsOn != nil && endsOn.Before(*startsOn) {
		return nil, shared.NewDomainError("cycle", "New", shared.ErrInvalidInput, "cycle ends before it starts")
	}
	return &Cycle{
		ID:        shared.NewID(),
		Name:      name,
		StartsOn:  startsOn,
		EndsOn:    endsOn,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Repository is the storage contract for cycles.
type Repository interface {
	// Create stores a new cycle. Returns ErrCycleAlreadyExists on a name clash.
	Create(ctx context.Context, c *Cycle) error

	// GetByID returns ErrCycleNotFound if missing.
	GetByID(ctx context.Context, id string) (*Cycle, error)

	// GetActive returns ErrCycleNotActive when no cycle is active.
	GetActive(ctx context.Context) (*Cycle, error)

	// Activate marks id as the only active cycle.
	Activate(ctx context.Context, id string) error

	List(ctx context.Context) ([]*Cycle, error)
}
