package command

import (
	"context"
	"strings"
	"time"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE EVENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateEventCommand schedules a nomination window.
type CreateEventCommand struct {
	Actor shared.Actor `validate:"-"`

	CycleID string `validate:"required"`
	Name    string `validate:"required,max=200"`
	Cohort  shared.Cohort

	// CloseAt and OccursAt are instants; callers convert local input with
	// timeutil.ParseLocal.
	CloseAt  time.Time `validate:"required"`
	OccursAt time.Time `validate:"required"`

	// Inactive creates the event with its flag cleared.
	Inactive bool
}

// Validate validates the command.
func (c CreateEventCommand) Validate() error {
	return validateCommand("CreateEvent", c)
}

// CreateEventHandler handles the CreateEventCommand.
type CreateEventHandler struct {
	exec *Executor
}

// NewCreateEventHandler creates a new CreateEventHandler.
func NewCreateEventHandler(exec *Executor) *CreateEventHandler {
	return &CreateEventHandler{exec: exec}
}

// Handle executes the create event command.
func (h *CreateEventHandler) Handle(ctx context.Context, cmd CreateEventCommand) (*calendar.Event, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Cohort = shared.NewCohort(string(cmd.Cohort))
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	e, err := calendar.New(cmd.CycleID, cmd.Name, cmd.Cohort, cmd.CloseAt, cmd.OccursAt, !cmd.Inactive)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = h.exec.Now()

	err = h.exec.Run(ctx, "create_event", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		if _, err := tx.Cycles().GetByID(ctx, cmd.CycleID); err != nil {
			return nil, err
		}
		return nil, tx.Events().Create(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("event created",
		logger.EventID(e.ID),
		logger.CycleID(e.CycleID),
		logger.String("cohort", e.Cohort.String()),
		logger.Time("close_at", e.CloseAt),
	)
	return e, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SET EVENT ACTIVE COMMAND
// Manual hatches: Open -> Closed at any time, Closed -> Open only while the
// close time has not passed.
// ══════════════════════════════════════════════════════════════════════════════

// SetEventActiveCommand toggles an event's flag.
type SetEventActiveCommand struct {
	Actor   shared.Actor `validate:"-"`
	EventID string       `validate:"required"`
	Active  bool
}

// Validate validates the command.
func (c SetEventActiveCommand) Validate() error {
	return validateCommand("SetEventActive", c)
}

// SetEventActiveHandler handles the SetEventActiveCommand.
type SetEventActiveHandler struct {
	exec *Executor
}

// NewSetEventActiveHandler creates a new SetEventActiveHandler.
func NewSetEventActiveHandler(exec *Executor) *SetEventActiveHandler {
	return &SetEventActiveHandler{exec: exec}
}

// Handle executes the set event active command.
func (h *SetEventActiveHandler) Handle(ctx context.Context, cmd SetEventActiveCommand) (*calendar.Event, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var updated *calendar.Event
	err := h.exec.Run(ctx, "set_event_active", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		e, err := tx.Events().GetByID(ctx, cmd.EventID)
		if err != nil {
			return nil, err
		}
		now := h.exec.Now()
		if cmd.Active {
			if err := e.Open(now); err != nil {
				return nil, err
			}
		} else {
			e.Close(now)
		}
		if err := tx.Events().Update(ctx, e); err != nil {
			return nil, err
		}
		updated = e
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("event toggled", logger.EventID(updated.ID), logger.Bool("active", updated.Active))
	return updated, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE EXPIRED EVENTS
// The scheduled sweep: clears the flag of every event whose close time has
// passed. Admission never depends on it having run.
// ══════════════════════════════════════════════════════════════════════════════

// CloseExpiredEventsResult lists the events closed by one sweep.
type CloseExpiredEventsResult struct {
	ClosedIDs []string
	SweptAt   time.Time
}

// CloseExpiredEventsHandler runs the expiry sweep.
type CloseExpiredEventsHandler struct {
	exec *Executor
}

// NewCloseExpiredEventsHandler creates a new CloseExpiredEventsHandler.
func NewCloseExpiredEventsHandler(exec *Executor) *CloseExpiredEventsHandler {
	return &CloseExpiredEventsHandler{exec: exec}
}

// Handle closes expired events as of the executor's clock.
func (h *CloseExpiredEventsHandler) Handle(ctx context.Context) (*CloseExpiredEventsResult, error) {
	result := &CloseExpiredEventsResult{SweptAt: h.exec.Now()}
	err := h.exec.Run(ctx, "close_expired_events", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		ids, err := tx.Events().CloseExpired(ctx, result.SweptAt)
		if err != nil {
			return nil, err
		}
		result.ClosedIDs = ids
		if len(ids) == 0 {
			return nil, nil
		}
		return []shared.Event{shared.NewEventsClosedEvent(ids)}, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.metrics.EventsClosed(len(result.ClosedIDs))
	if len(result.ClosedIDs) > 0 {
		h.exec.log.Info("expired events closed", logger.Strings("event_ids", result.ClosedIDs))
	}
	return result, nil
}
