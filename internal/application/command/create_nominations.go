package command

import (
	"context"
	"strings"

	"github.com/valores-hub/nominations/internal/application/admission"
	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// CreateNominationsCommand recognizes one nominee for several values with a
// shared comment. Either every value is recorded or none is. At most ten
// distinct values are accepted per request.
type CreateNominationsCommand struct {
	Actor shared.Actor `validate:"-"`

	CycleID string

	NominatorID string   `validate:"required"`
	NomineeID   string   `validate:"required"`
	ValueIDs    []string `validate:"required,min=1,max=10,unique,dive,required"`
	Comment     string   `validate:"max=2000"`
	EventID     string

	CorrelationID string `validate:"-"`
}

// Validate validates the command.
func (c CreateNominationsCommand) Validate() error {
	return validateCommand("CreateNominations", c)
}

// CreateNominationsResult lists the rows in the order of ValueIDs.
type CreateNominationsResult struct {
	Nominations []*nomination.Nomination
	Event       *calendar.Event
	Tier        promotion.Outcome
	Events      []shared.Event
}

// CreateNominationsHandler handles the CreateNominationsCommand.
type CreateNominationsHandler struct {
	exec   *Executor
	engine *promotion.Engine
}

// NewCreateNominationsHandler creates a new CreateNominationsHandler.
func NewCreateNominationsHandler(exec *Executor, engine *promotion.Engine) *CreateNominationsHandler {
	return &CreateNominationsHandler{exec: exec, engine: engine}
}

// Handle runs the single-nomination checks for every value, then
// recomputes the nominee's tier once.
func (h *CreateNominationsHandler) Handle(ctx context.Context, cmd CreateNominationsCommand) (*CreateNominationsResult, error) {
	if cmd.CycleID == "" {
		return nil, shared.ErrCycleNotActive
	}
	base := nomination.Draft{
		NominatorID: cmd.NominatorID,
		NomineeID:   cmd.NomineeID,
		Comment:     cmd.Comment,
		EventID:     cmd.EventID,
	}.Normalize()
	cmd.NominatorID, cmd.NomineeID, cmd.Comment = base.NominatorID, base.NomineeID, base.Comment
	cmd.ValueIDs = append([]string(nil), cmd.ValueIDs...)
	for i := range cmd.ValueIDs {
		cmd.ValueIDs[i] = strings.TrimSpace(cmd.ValueIDs[i])
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !cmd.Actor.CanActAs(base.NominatorID) {
		return nil, shared.ErrNotAuthorized
	}

	var result *CreateNominationsResult
	err := h.exec.Run(ctx, "create_nominations", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		result = &CreateNominationsResult{}
		now := h.exec.Now()

		if err := requireActiveCycle(ctx, tx, cmd.CycleID); err != nil {
			return nil, err
		}
		nominator, nominee, err := loadParties(ctx, tx, cmd.CycleID, base.NominatorID, base.NomineeID)
		if err != nil {
			return nil, err
		}
		for _, valueID := range cmd.ValueIDs {
			if err := requireNominableValue(ctx, tx, h.engine, cmd.CycleID, valueID); err != nil {
				return nil, err
			}
		}
		ev, err := admission.Admit(ctx, tx.Events(), cmd.CycleID, nominee.Cohort, base.EventID, now)
		if err != nil {
			return nil, err
		}
		if nominator.ID == nominee.ID {
			return nil, shared.ErrSelfNomination
		}

		if err := tx.LockNominee(ctx, cmd.CycleID, nominee.ID); err != nil {
			return nil, err
		}
		var events []shared.Event
		for _, valueID := range cmd.ValueIDs {
			d := base
			d.ValueID = valueID
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
			created := shared.NewNominationChangedEvent(shared.EventNominationCreated, n.ID, n.CycleID, n.NominatorID, n.NomineeID, n.ValueID)
			if cmd.CorrelationID != "" {
				created.BaseEvent = created.BaseEvent.WithCorrelationID(cmd.CorrelationID)
			}
			events = append(events, created)
			result.Nominations = append(result.Nominations, n)
		}

		tier, err := h.engine.Recompute(ctx, tx, cmd.CycleID, nominee.ID, now)
		if err != nil {
			return nil, err
		}
		for _, n := range result.Nominations {
			n.Counted = counted(tier, n.ID)
		}

		result.Event = ev
		result.Tier = tier
		result.Events = append(events, tier.Events...)
		return result.Events, nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.Nominations))
	for _, n := range result.Nominations {
		ids = append(ids, n.ID)
	}
	h.exec.log.Info("nominations created",
		logger.Strings("nomination_ids", ids),
		logger.CycleID(cmd.CycleID),
		logger.NominatorID(cmd.NominatorID),
		logger.NomineeID(cmd.NomineeID),
		logger.EventID(result.Event.ID),
		logger.String("tier_action", string(result.Tier.Plan.Action)),
	)
	return result, nil
}
