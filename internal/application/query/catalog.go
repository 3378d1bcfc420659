package query

import (
	"context"
	"time"

	"github.com/valores-hub/nominations/internal/application/admission"
	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG QUERIES
// Values and events of a cycle, and the admission check used by clients
// before they show the nomination form.
// ══════════════════════════════════════════════════════════════════════════════

// ValueDTO is the read model of a value.
type ValueDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Reserved bool   `json:"reserved,omitempty"`
}

// EventDTO is the read model of an event.
type EventDTO struct {
	ID       string    `json:"id"`
	CycleID  string    `json:"cycle_id"`
	Name     string    `json:"name"`
	Cohort   string    `json:"cohort,omitempty"`
	Active   bool      `json:"active"`
	State    string    `json:"state"`
	CloseAt  time.Time `json:"close_at"`
	OccursAt time.Time `json:"occurs_at"`
}

// ToEventDTO converts an event, computing its state at now.
func ToEventDTO(e *calendar.Event, now time.Time) EventDTO {
	return EventDTO{
		ID:       e.ID,
		CycleID:  e.CycleID,
		Name:     e.Name,
		Cohort:   e.Cohort.String(),
		Active:   e.Active,
		State:    string(e.State(now)),
		CloseAt:  e.CloseAt,
		OccursAt: e.OccursAt,
	}
}

// CatalogHandler serves values, events and admission checks.
type CatalogHandler struct {
	reader *Reader
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(reader *Reader) *CatalogHandler {
	return &CatalogHandler{reader: reader}
}

// ListValues returns the values of a cycle. The reserved excellence value
// is listed only with includeInactive.
func (h *CatalogHandler) ListValues(ctx context.Context, cycleID string, includeInactive bool) ([]ValueDTO, error) {
	out := []ValueDTO{}
	err := h.reader.read(ctx, "list_values", func(ctx context.Context, tx uow.Tx) error {
		vs, err := tx.Values().ListByCycle(ctx, cycleID, includeInactive)
		if err != nil {
			return err
		}
		for _, v := range vs {
			if v.Reserved && !includeInactive {
				continue
			}
			out = append(out, ValueDTO{ID: v.ID, Name: v.Name, Active: v.Active, Reserved: v.Reserved})
		}
		return nil
	})
	return out, err
}

// ListEvents returns the events of a cycle ordered by start time.
func (h *CatalogHandler) ListEvents(ctx context.Context, cycleID string) ([]EventDTO, error) {
	now := h.reader.clock.Now()
	out := []EventDTO{}
	err := h.reader.read(ctx, "list_events", func(ctx context.Context, tx uow.Tx) error {
		es, err := tx.Events().ListByCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		for _, e := range es {
			out = append(out, ToEventDTO(e, now))
		}
		return nil
	})
	return out, err
}

// CheckAdmission returns the event that would admit a nomination for a
// subject of cohort right now, or ErrNoOpenEvent.
func (h *CatalogHandler) CheckAdmission(ctx context.Context, cycleID string, cohort shared.Cohort) (*EventDTO, error) {
	now := h.reader.clock.Now()
	var dto *EventDTO
	err := h.reader.read(ctx, "check_admission", func(ctx context.Context, tx uow.Tx) error {
		e, err := admission.CheckAdmission(ctx, tx.Events(), cycleID, cohort, now)
		if err != nil {
			return err
		}
		d := ToEventDTO(e, now)
		dto = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}
