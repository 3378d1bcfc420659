package command

import (
	"context"
	"errors"

	"github.com/valores-hub/nominations/internal/application/admission"
	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE NOMINATION COMMAND
// A staff member recognizes a student or a colleague for a value. The gate
// checks, the insert and the tier recomputation share one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// CreateNominationCommand contains the data to create a nomination.
type CreateNominationCommand struct {
	Actor shared.Actor `validate:"-"`

	// CycleID is the cycle the caller resolved as active.
	CycleID string

	NominatorID string `validate:"required"`
	NomineeID   string `validate:"required"`
	ValueID     string `validate:"required"`
	Comment     string `validate:"max=2000"`

	// EventID optionally pins the owning event.
	EventID string

	CorrelationID string `validate:"-"`
}

// Validate validates the command.
func (c CreateNominationCommand) Validate() error {
	return validateCommand("CreateNomination", c)
}

func (c CreateNominationCommand) draft() nomination.Draft {
	return nomination.Draft{
		NominatorID: c.NominatorID,
		NomineeID:   c.NomineeID,
		ValueID:     c.ValueID,
		Comment:     c.Comment,
		EventID:     c.EventID,
	}.Normalize()
}

// CreateNominationResult contains the result of creating a nomination.
type CreateNominationResult struct {
	Nomination *nomination.Nomination
	Event      *calendar.Event

	// Tier is the excellence outcome for the nominee.
	Tier promotion.Outcome

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateNominationHandler handles the CreateNominationCommand.
type CreateNominationHandler struct {
	exec   *Executor
	engine *promotion.Engine
}

// NewCreateNominationHandler creates a new CreateNominationHandler.
func NewCreateNominationHandler(exec *Executor, engine *promotion.Engine) *CreateNominationHandler {
	return &CreateNominationHandler{exec: exec, engine: engine}
}

// Handle executes the create nomination command.
func (h *CreateNominationHandler) Handle(ctx context.Context, cmd CreateNominationCommand) (*CreateNominationResult, error) {
	if cmd.CycleID == "" {
		return nil, shared.ErrCycleNotActive
	}
	d := cmd.draft()
	cmd.NominatorID, cmd.NomineeID, cmd.ValueID, cmd.Comment = d.NominatorID, d.NomineeID, d.ValueID, d.Comment
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !cmd.Actor.CanActAs(d.NominatorID) {
		return nil, shared.ErrNotAuthorized
	}

	var result *CreateNominationResult
	err := h.exec.Run(ctx, "create_nomination", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		result = &CreateNominationResult{}
		now := h.exec.Now()

		if err := requireActiveCycle(ctx, tx, cmd.CycleID); err != nil {
			return nil, err
		}
		nominator, nominee, err := loadParties(ctx, tx, cmd.CycleID, d.NominatorID, d.NomineeID)
		if err != nil {
			return nil, err
		}
		if err := requireNominableValue(ctx, tx, h.engine, cmd.CycleID, d.ValueID); err != nil {
			return nil, err
		}
		ev, err := admission.Admit(ctx, tx.Events(), cmd.CycleID, nominee.Cohort, d.EventID, now)
		if err != nil {
			return nil, err
		}
		if nominator.ID == nominee.ID {
			return nil, shared.ErrSelfNomination
		}

		if err := tx.LockNominee(ctx, cmd.CycleID, nominee.ID); err != nil {
			return nil, err
		}
		n := nomination.New(cmd.CycleID, ev.ID, d, nomination.KindOf(nominee), now)
		exists, err := tx.Nominations().ExistsKey(ctx, n.Key(), "")
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.ErrDuplicateNomination
		}
		if err := tx.Nominations().Create(ctx, n); err != nil {
			return nil, err
		}

		tier, err := h.engine.Recompute(ctx, tx, cmd.CycleID, nominee.ID, now)
		if err != nil {
			return nil, err
		}
		n.Counted = counted(tier, n.ID)

		created := shared.NewNominationChangedEvent(shared.EventNominationCreated, n.ID, n.CycleID, n.NominatorID, n.NomineeID, n.ValueID)
		if cmd.CorrelationID != "" {
			created.BaseEvent = created.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}

		result.Nomination = n
		result.Event = ev
		result.Tier = tier
		result.Events = append([]shared.Event{created}, tier.Events...)
		return result.Events, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("nomination created",
		logger.NominationID(result.Nomination.ID),
		logger.CycleID(cmd.CycleID),
		logger.NominatorID(result.Nomination.NominatorID),
		logger.NomineeID(result.Nomination.NomineeID),
		logger.EventID(result.Event.ID),
		logger.String("tier_action", string(result.Tier.Plan.Action)),
	)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GATE CHECKS
// ══════════════════════════════════════════════════════════════════════════════

func requireActiveCycle(ctx context.Context, tx uow.Tx, cycleID string) error {
	c, err := tx.Cycles().GetByID(ctx, cycleID)
	if errors.Is(err, shared.ErrCycleNotFound) {
		return shared.ErrCycleNotActive
	}
	if err != nil {
		return err
	}
	if !c.Active {
		return shared.ErrCycleNotActive
	}
	return nil
}

// loadParties resolves the nominator and nominee. The nominator must be a
// staff subject of the cycle and, for staff-to-staff nominations, active.
func loadParties(ctx context.Context, tx uow.Tx, cycleID, nominatorID, nomineeID string) (*subject.Subject, *subject.Subject, error) {
	nominator, err := lookupInCycle(ctx, tx, cycleID, nominatorID)
	if err != nil {
		return nil, nil, err
	}
	if !nominator.IsStaff() {
		return nil, nil, shared.WrapError("subject", "Lookup", shared.ErrSubjectNotFound, "nominator is not staff", nil)
	}
	nominee, err := lookupInCycle(ctx, tx, cycleID, nomineeID)
	if err != nil {
		return nil, nil, err
	}
	if nominee.IsStaff() && !nominator.Active {
		return nil, nil, shared.ErrSubjectInactive
	}
	return nominator, nominee, nil
}

func lookupInCycle(ctx context.Context, tx uow.Tx, cycleID, id string) (*subject.Subject, error) {
	return tx.Subjects().Lookup(ctx, cycleID, id)
}

// requireNominableValue checks that valueID is an active, non-reserved value
// of the cycle.
func requireNominableValue(ctx context.Context, tx uow.Tx, engine *promotion.Engine, cycleID, valueID string) error {
	v, err := tx.Values().GetByID(ctx, valueID)
	if errors.Is(err, shared.ErrValueNotFound) {
		return shared.WrapError("value", "Check", shared.ErrValueInactive, "value not found", nil)
	}
	if err != nil {
		return err
	}
	if v.CycleID != cycleID {
		return shared.WrapError("value", "Check", shared.ErrValueInactive, "value belongs to another cycle", shared.ErrCrossCycle)
	}
	if v.Reserved || engine.IsExcellenceName(v.Name) {
		return shared.WrapError("value", "Check", shared.ErrValueInactive, "value is reserved", shared.ErrValueReserved)
	}
	if !v.Active {
		return shared.ErrValueInactive
	}
	return nil
}

func counted(tier promotion.Outcome, id string) bool {
	for _, n := range tier.Plan.Contributors {
		if n.ID == id {
			return true
		}
	}
	return false
}
