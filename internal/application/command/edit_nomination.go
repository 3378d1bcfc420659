package command

import (
	"context"
	"strings"

	"github.com/valores-hub/nominations/internal/application/admission"
	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDIT NOMINATION COMMAND
// Changes the value or comment of a regular nomination while its event is
// still open. Excellence records cannot be edited.
// ══════════════════════════════════════════════════════════════════════════════

// EditNominationCommand contains the data to edit a nomination.
type EditNominationCommand struct {
	Actor shared.Actor `validate:"-"`

	CycleID      string
	NominationID string `validate:"required"`
	ValueID      string `validate:"required"`
	Comment      string `validate:"max=2000"`

	CorrelationID string `validate:"-"`
}

// Validate validates the command.
func (c EditNominationCommand) Validate() error {
	return validateCommand("EditNomination", c)
}

// EditNominationResult contains the result of editing a nomination.
type EditNominationResult struct {
	Nomination *nomination.Nomination
	Tier       promotion.Outcome
	Events     []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EditNominationHandler handles the EditNominationCommand.
type EditNominationHandler struct {
	exec   *Executor
	engine *promotion.Engine
}

// NewEditNominationHandler creates a new EditNominationHandler.
func NewEditNominationHandler(exec *Executor, engine *promotion.Engine) *EditNominationHandler {
	return &EditNominationHandler{exec: exec, engine: engine}
}

// Handle executes the edit nomination command.
func (h *EditNominationHandler) Handle(ctx context.Context, cmd EditNominationCommand) (*EditNominationResult, error) {
	if cmd.CycleID == "" {
		return nil, shared.ErrCycleNotActive
	}
	cmd.NominationID = strings.TrimSpace(cmd.NominationID)
	cmd.ValueID = strings.TrimSpace(cmd.ValueID)
	cmd.Comment = strings.TrimSpace(cmd.Comment)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *EditNominationResult
	err := h.exec.Run(ctx, "edit_nomination", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		result = &EditNominationResult{}
		now := h.exec.Now()

		if err := requireActiveCycle(ctx, tx, cmd.CycleID); err != nil {
			return nil, err
		}
		n, err := loadRegular(ctx, tx, cmd.CycleID, cmd.NominationID)
		if err != nil {
			return nil, err
		}
		if !cmd.Actor.CanActAs(n.NominatorID) {
			return nil, shared.ErrNotAuthorized
		}

		if err := requireNominableValue(ctx, tx, h.engine, cmd.CycleID, cmd.ValueID); err != nil {
			return nil, err
		}
		nominee, err := lookupInCycle(ctx, tx, cmd.CycleID, n.NomineeID)
		if err != nil {
			return nil, err
		}
		if _, err := admission.Admit(ctx, tx.Events(), cmd.CycleID, nominee.Cohort, n.EventRef(), now); err != nil {
			return nil, err
		}
		if n.NominatorID == n.NomineeID {
			return nil, shared.ErrSelfNomination
		}

		if err := tx.LockNominee(ctx, cmd.CycleID, n.NomineeID); err != nil {
			return nil, err
		}
		k := n.Key()
		k.ValueID = cmd.ValueID
		exists, err := tx.Nominations().ExistsKey(ctx, k, n.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.ErrDuplicateNomination
		}

		n.ValueID = cmd.ValueID
		n.Comment = cmd.Comment
		n.UpdatedAt = now
		if err := tx.Nominations().Update(ctx, n); err != nil {
			return nil, err
		}

		tier, err := h.engine.Recompute(ctx, tx, cmd.CycleID, n.NomineeID, now)
		if err != nil {
			return nil, err
		}
		n.Counted = counted(tier, n.ID)

		edited := shared.NewNominationChangedEvent(shared.EventNominationEdited, n.ID, n.CycleID, n.NominatorID, n.NomineeID, n.ValueID)
		if cmd.CorrelationID != "" {
			edited.BaseEvent = edited.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}

		result.Nomination = n
		result.Tier = tier
		result.Events = append([]shared.Event{edited}, tier.Events...)
		return result.Events, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("nomination edited",
		logger.NominationID(result.Nomination.ID),
		logger.NomineeID(result.Nomination.NomineeID),
		logger.String("tier_action", string(result.Tier.Plan.Action)),
	)
	return result, nil
}

// loadRegular fetches a nomination of cycleID that callers may mutate.
func loadRegular(ctx context.Context, tx uow.Tx, cycleID, id string) (*nomination.Nomination, error) {
	n, err := tx.Nominations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.CycleID != cycleID {
		return nil, shared.ErrNominationNotFound
	}
	if n.Derived {
		return nil, shared.ErrDerivedRecordImmutable
	}
	return n, nil
}
