// Package calendar models nomination windows ("asambleas"). An event is
// open while its flag is set and its close time has not passed.
package calendar

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/valores-hub/nominations/internal/domain/shared"
)

// State is the admission state of an event at a given instant.
type State string

const (
	StateScheduled State = "scheduled"
	StateOpen      State = "open"
	StateClosed    State = "closed"
)

// Event is a time-windowed nomination period.
type Event struct {
	ID        string
	CycleID   string
	Name      string
	Cohort    shared.Cohort
	Active    bool
	CloseAt   time.Time // stored in UTC
	OccursAt  time.Time // stored in UTC
	ClosedAt  *time.Time
	CreatedAt time.Time
}

// New validates the window. closeAt must be strictly before occursAt.
func New(cycleID, name string, cohort shared.Cohort, closeAt, occursAt time.Time, active bool) (*Event, error) {
	if cycleID == "" {
		return nil, shared.NewDomainError("calendar", "New", shared.ErrInvalidID, "cycle is required")
	}
	if closeAt.IsZero() || occursAt.IsZero() || !closeAt.Before(occursAt) {
		return nil, shared.ErrEventBoundaryInvalid
	}
	return &Event{
		ID:        shared.NewID(),
		CycleID:   cycleID,
		Name:      strings.TrimSpace(name),
		Cohort:    cohort,
		Active:    active,
		CloseAt:   closeAt.UTC(),
		OccursAt:  occursAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IsOpen reports whether nominations are admitted at now.
// At now == CloseAt the event is already closed.
func (e *Event) IsOpen(now time.Time) bool {
	return e.Active && now.Before(e.CloseAt)
}

// IsExpired reports whether the close time has passed.
func (e *Event) IsExpired(now time.Time) bool {
	return !now.Before(e.CloseAt)
}

// State returns the admission state at now.
func (e *Event) State(now time.Time) State {
	switch {
	case e.IsOpen(now):
		return StateOpen
	case e.IsExpired(now) || e.ClosedAt != nil:
		return StateClosed
	default:
		return StateScheduled
	}
}

// Admits reports whether the event applies to a subject of cohort.
func (e *Event) Admits(cohort shared.Cohort) bool {
	return e.Cohort.Covers(cohort)
}

// Open sets the flag. It fails once the close time has passed because
// CloseAt is immutable.
func (e *Event) Open(now time.Time) error {
	if e.IsExpired(now) {
		return shared.ErrEventReopenExpired
	}
	e.Active = true
	e.ClosedAt = nil
	return nil
}

// Close clears the flag.
func (e *Event) Close(now time.Time) {
	if !e.Active {
		return
	}
	e.Active = false
	t := now.UTC()
	e.ClosedAt = &t
}

// SelectAdmitting picks the earliest-starting event that is open at now
// and admits cohort. Ties on OccursAt are broken by ID.
func SelectAdmitting(events []*Event, cohort shared.Cohort, now time.Time) *Event {
	var candidates []*Event
	for _, e := range events {
		if e.IsOpen(now) && e.Admits(cohort) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].OccursAt.Equal(candidates[j].OccursAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].OccursAt.Before(candidates[j].OccursAt)
	})
	return candidates[0]
}

// Repository is the storage contract for events.
type Repository interface {
	Create(ctx context.Context, e *Event) error

	// GetByID returns ErrEventNotFound if missing.
	GetByID(ctx context.Context, id string) (*Event, error)

	// ListActive returns the flagged events of a cycle, open or not.
	ListActive(ctx context.Context, cycleID string) ([]*Event, error)

	ListByCycle(ctx context.Context, cycleID string) ([]*Event, error)

	// Update persists the flag and ClosedAt.
	Update(ctx context.Context, e *Event) error

	// CloseExpired clears the flag of every event whose close time is at or
	// before now and returns their IDs.
	CloseExpired(ctx context.Context, now time.Time) ([]string, error)
}
