package command

import (
	"context"
	"errors"
	"strings"

	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/domain/value"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE VALUE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateValueCommand adds a value to a cycle's catalog.
type CreateValueCommand struct {
	Actor   shared.Actor `validate:"-"`
	CycleID string       `validate:"required"`
	Name    string       `validate:"required,max=100"`
}

// Validate validates the command.
func (c CreateValueCommand) Validate() error {
	return validateCommand("CreateValue", c)
}

// CreateValueHandler handles the CreateValueCommand.
type CreateValueHandler struct {
	exec   *Executor
	engine *promotion.Engine
}

// NewCreateValueHandler creates a new CreateValueHandler.
func NewCreateValueHandler(exec *Executor, engine *promotion.Engine) *CreateValueHandler {
	return &CreateValueHandler{exec: exec, engine: engine}
}

// Handle executes the create value command.
func (h *CreateValueHandler) Handle(ctx context.Context, cmd CreateValueCommand) (*value.Value, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if h.engine.IsExcellenceName(cmd.Name) {
		return nil, shared.ErrValueReserved
	}

	var created *value.Value
	err := h.exec.Run(ctx, "create_value", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		if _, err := tx.Cycles().GetByID(ctx, cmd.CycleID); err != nil {
			return nil, err
		}
		v, err := value.New(cmd.CycleID, cmd.Name)
		if err != nil {
			return nil, err
		}
		v.CreatedAt = h.exec.Now()
		if err := tx.Values().Create(ctx, v); err != nil {
			return nil, err
		}
		created = v
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("value created", logger.CycleID(created.CycleID), logger.String("value", created.Name))
	return created, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SET VALUE ACTIVE COMMAND
// Deactivated values stop accepting nominations; existing ones are kept.
// ══════════════════════════════════════════════════════════════════════════════

// SetValueActiveCommand toggles a value.
type SetValueActiveCommand struct {
	Actor   shared.Actor `validate:"-"`
	ValueID string       `validate:"required"`
	Active  bool
}

// Validate validates the command.
func (c SetValueActiveCommand) Validate() error {
	return validateCommand("SetValueActive", c)
}

// SetValueActiveHandler handles the SetValueActiveCommand.
type SetValueActiveHandler struct {
	exec *Executor
}

// NewSetValueActiveHandler creates a new SetValueActiveHandler.
func NewSetValueActiveHandler(exec *Executor) *SetValueActiveHandler {
	return &SetValueActiveHandler{exec: exec}
}

// Handle executes the set value active command.
func (h *SetValueActiveHandler) Handle(ctx context.Context, cmd SetValueActiveCommand) (*value.Value, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var updated *value.Value
	err := h.exec.Run(ctx, "set_value_active", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		v, err := tx.Values().GetByID(ctx, cmd.ValueID)
		if err != nil {
			return nil, err
		}
		if v.Reserved {
			return nil, shared.ErrValueReserved
		}
		if err := tx.Values().SetActive(ctx, v.ID, cmd.Active); err != nil {
			return nil, err
		}
		v.Active = cmd.Active
		updated = v
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SEED VALUES COMMAND
// Installs the school's standing values into a cycle. Names already
// present are left untouched.
// ══════════════════════════════════════════════════════════════════════════════

// SeedValuesCommand seeds a cycle's catalog.
type SeedValuesCommand struct {
	Actor   shared.Actor `validate:"-"`
	CycleID string       `validate:"required"`

	// Names defaults to value.DefaultSeed.
	Names []string `validate:"dive,required,max=100"`
}

// Validate validates the command.
func (c SeedValuesCommand) Validate() error {
	return validateCommand("SeedValues", c)
}

// SeedValuesResult reports what the seed did.
type SeedValuesResult struct {
	Created []*value.Value
	Skipped []string
}

// SeedValuesHandler handles the SeedValuesCommand.
type SeedValuesHandler struct {
	exec     *Executor
	engine   *promotion.Engine
	defaults []string
}

// NewSeedValuesHandler creates a new SeedValuesHandler. An empty defaults
// list falls back to value.DefaultSeed.
func NewSeedValuesHandler(exec *Executor, engine *promotion.Engine, defaults []string) *SeedValuesHandler {
	if len(defaults) == 0 {
		defaults = value.DefaultSeed
	}
	return &SeedValuesHandler{exec: exec, engine: engine, defaults: defaults}
}

// Handle executes the seed values command.
func (h *SeedValuesHandler) Handle(ctx context.Context, cmd SeedValuesCommand) (*SeedValuesResult, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if len(cmd.Names) == 0 {
		cmd.Names = h.defaults
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *SeedValuesResult
	err := h.exec.Run(ctx, "seed_values", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		result = &SeedValuesResult{}
		if _, err := tx.Cycles().GetByID(ctx, cmd.CycleID); err != nil {
			return nil, err
		}
		for _, name := range cmd.Names {
			if h.engine.IsExcellenceName(name) {
				result.Skipped = append(result.Skipped, name)
				continue
			}
			_, err := tx.Values().FindByName(ctx, cmd.CycleID, name)
			if err == nil {
				result.Skipped = append(result.Skipped, name)
				continue
			}
			if !errors.Is(err, shared.ErrValueNotFound) {
				return nil, err
			}
			v, err := value.New(cmd.CycleID, name)
			if err != nil {
				return nil, err
			}
			v.CreatedAt = h.exec.Now()
			if err := tx.Values().Create(ctx, v); err != nil {
				return nil, err
			}
			result.Created = append(result.Created, v)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("values seeded",
		logger.CycleID(cmd.CycleID),
		logger.Int("created", len(result.Created)),
		logger.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}
