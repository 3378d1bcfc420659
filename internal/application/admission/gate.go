// Package admission decides whether a nomination may be written now. The
// check is a pure read of the event calendar; closing expired events is a
// separate scheduled sweep.
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/shared"
)

// CheckAdmission returns the event admitting a subject of cohort in cycleID
// at now, or ErrNoOpenEvent.
func CheckAdmission(ctx context.Context, events calendar.Repository, cycleID string, cohort shared.Cohort, now time.Time) (*calendar.Event, error) {
	active, err := events.ListActive(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	e := calendar.SelectAdmitting(active, cohort, now)
	if e == nil {
		return nil, shared.ErrNoOpenEvent
	}
	return e, nil
}

// Admit resolves the owning event for a new or edited nomination. With an
// explicit eventID that event must belong to the cycle, cover the cohort and
// be open; otherwise the earliest admitting event is chosen.
func Admit(ctx context.Context, events calendar.Repository, cycleID string, cohort shared.Cohort, eventID string, now time.Time) (*calendar.Event, error) {
	if eventID == "" {
		return CheckAdmission(ctx, events, cycleID, cohort, now)
	}

	e, err := events.GetByID(ctx, eventID)
	if errors.Is(err, shared.ErrEventNotFound) {
		return nil, shared.ErrNoOpenEvent
	}
	if err != nil {
		return nil, err
	}
	if e.CycleID != cycleID || !e.Admits(cohort) {
		return nil, shared.ErrNoOpenEvent
	}
	if !e.IsOpen(now) {
		return nil, shared.ErrEventClosed
	}
	return e, nil
}

// EnsureOpen checks that an existing nomination's event still accepts
// changes. A missing event counts as closed.
func EnsureOpen(ctx context.Context, events calendar.Repository, eventID string, now time.Time) error {
	if eventID == "" {
		return shared.ErrEventClosed
	}
	e, err := events.GetByID(ctx, eventID)
	if errors.Is(err, shared.ErrEventNotFound) {
		return shared.ErrEventClosed
	}
	if err != nil {
		return err
	}
	if !e.IsOpen(now) {
		return shared.ErrEventClosed
	}
	return nil
}
