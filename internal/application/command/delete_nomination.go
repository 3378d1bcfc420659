package command

import (
	"context"
	"strings"

	"github.com/valores-hub/nominations/internal/application/admission"
	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE NOMINATION COMMAND
// Removes a regular nomination. The nominator may delete while the owning
// event is open; administrators may delete at any time.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteNominationCommand contains the data to delete a nomination.
type DeleteNominationCommand struct {
	Actor shared.Actor `validate:"-"`

	// CycleID scopes the lookup. Deleting does not require the cycle to be
	// active.
	CycleID      string `validate:"required"`
	NominationID string `validate:"required"`

	CorrelationID string `validate:"-"`
}

// Validate validates the command.
func (c DeleteNominationCommand) Validate() error {
	return validateCommand("DeleteNomination", c)
}

// DeleteNominationResult contains the result of deleting a nomination.
type DeleteNominationResult struct {
	NominationID string
	NomineeID    string
	Tier         promotion.Outcome
	Events       []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DeleteNominationHandler handles the DeleteNominationCommand.
type DeleteNominationHandler struct {
	exec   *Executor
	engine *promotion.Engine
}

// NewDeleteNominationHandler creates a new DeleteNominationHandler.
func NewDeleteNominationHandler(exec *Executor, engine *promotion.Engine) *DeleteNominationHandler {
	return &DeleteNominationHandler{exec: exec, engine: engine}
}

// Handle executes the delete nomination command.
func (h *DeleteNominationHandler) Handle(ctx context.Context, cmd DeleteNominationCommand) (*DeleteNominationResult, error) {
	cmd.NominationID = strings.TrimSpace(cmd.NominationID)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *DeleteNominationResult
	err := h.exec.Run(ctx, "delete_nomination", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		now := h.exec.Now()
		n, err := loadRegular(ctx, tx, cmd.CycleID, cmd.NominationID)
		if err != nil {
			return nil, err
		}
		if !cmd.Actor.CanActAs(n.NominatorID) {
			return nil, shared.ErrNotAuthorized
		}
		if !cmd.Actor.Admin {
			if err := admission.EnsureOpen(ctx, tx.Events(), n.EventRef(), now); err != nil {
				return nil, err
			}
		}

		if err := tx.LockNominee(ctx, n.CycleID, n.NomineeID); err != nil {
			return nil, err
		}
		if err := tx.Nominations().Delete(ctx, n.ID); err != nil {
			return nil, err
		}
		tier, err := h.engine.Recompute(ctx, tx, n.CycleID, n.NomineeID, now)
		if err != nil {
			return nil, err
		}

		deleted := shared.NewNominationChangedEvent(shared.EventNominationDeleted, n.ID, n.CycleID, n.NominatorID, n.NomineeID, n.ValueID)
		if cmd.CorrelationID != "" {
			deleted.BaseEvent = deleted.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}

		result = &DeleteNominationResult{
			NominationID: n.ID,
			NomineeID:    n.NomineeID,
			Tier:         tier,
			Events:       append([]shared.Event{deleted}, tier.Events...),
		}
		return result.Events, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("nomination deleted",
		logger.NominationID(result.NominationID),
		logger.NomineeID(result.NomineeID),
		logger.String("tier_action", string(result.Tier.Plan.Action)),
	)
	return result, nil
}
