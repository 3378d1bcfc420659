package command

import (
	"context"
	"strings"
	"time"

	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE CYCLE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateCycleCommand registers a school cycle.
type CreateCycleCommand struct {
	Actor shared.Actor `validate:"-"`

	Name     string `validate:"required,max=100"`
	StartsOn *time.Time
	EndsOn   *time.Time

	// Activate makes the new cycle the active one in the same transaction.
	Activate bool
}

// Validate validates the command.
func (c CreateCycleCommand) Validate() error {
	return validateCommand("CreateCycle", c)
}

// CreateCycleHandler handles the CreateCycleCommand.
type CreateCycleHandler struct {
	exec *Executor
}

// NewCreateCycleHandler creates a new CreateCycleHandler.
func NewCreateCycleHandler(exec *Executor) *CreateCycleHandler {
	return &CreateCycleHandler{exec: exec}
}

// Handle executes the create cycle command.
func (h *CreateCycleHandler) Handle(ctx context.Context, cmd CreateCycleCommand) (*cycle.Cycle, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var created *cycle.Cycle
	err := h.exec.Run(ctx, "create_cycle", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		c, err := cycle.New(cmd.Name, cmd.StartsOn, cmd.EndsOn)
		if err != nil {
			return nil, err
		}
		c.CreatedAt = h.exec.Now()
		if err := tx.Cycles().Create(ctx, c); err != nil {
			return nil, err
		}
		created = c
		if !cmd.Activate {
			return nil, nil
		}
		if err := tx.Cycles().Activate(ctx, c.ID); err != nil {
			return nil, err
		}
		c.Active = true
		return []shared.Event{shared.NewCycleActivatedEvent(c.ID, c.Name)}, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("cycle created", logger.CycleID(created.ID), logger.String("name", created.Name), logger.Bool("active", created.Active))
	return created, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVATE CYCLE COMMAND
// Exactly one cycle is active: activating one deactivates every other in
// the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ActivateCycleCommand switches the active cycle.
type ActivateCycleCommand struct {
	Actor   shared.Actor `validate:"-"`
	CycleID string       `validate:"required"`
}

// Validate validates the command.
func (c ActivateCycleCommand) Validate() error {
	return validateCommand("ActivateCycle", c)
}

// ActivateCycleHandler handles the ActivateCycleCommand.
type ActivateCycleHandler struct {
	exec *Executor
}

// NewActivateCycleHandler creates a new ActivateCycleHandler.
func NewActivateCycleHandler(exec *Executor) *ActivateCycleHandler {
	return &ActivateCycleHandler{exec: exec}
}

// Handle executes the activate cycle command.
func (h *ActivateCycleHandler) Handle(ctx context.Context, cmd ActivateCycleCommand) (*cycle.Cycle, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var activated *cycle.Cycle
	err := h.exec.Run(ctx, "activate_cycle", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		if err := tx.Cycles().Activate(ctx, cmd.CycleID); err != nil {
			return nil, err
		}
		c, err := tx.Cycles().GetByID(ctx, cmd.CycleID)
		if err != nil {
			return nil, err
		}
		activated = c
		return []shared.Event{shared.NewCycleActivatedEvent(c.ID, c.Name)}, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("cycle activated", logger.CycleID(activated.ID), logger.String("name", activated.Name))
	return activated, nil
}
