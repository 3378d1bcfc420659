package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT SUBJECTS COMMAND
// Feeds the subject directory from the school's roster import. Re-running
// an import refreshes names, cohorts and active flags in place.
// ══════════════════════════════════════════════════════════════════════════════

// SubjectInput is one roster row.
type SubjectInput struct {
	ID          string `validate:"required"`
	Kind        string `validate:"required,oneof=student staff"`
	DisplayName string `validate:"required,max=200"`
	Email       string `validate:"omitempty,email"`
	Cohort      string
	Grade       string
	Group       string
	Level       string
	Inactive    bool
}

// UpsertSubjectsCommand imports a batch of subjects into one cycle.
type UpsertSubjectsCommand struct {
	Actor    shared.Actor   `validate:"-"`
	CycleID  string         `validate:"required"`
	Subjects []SubjectInput `validate:"required,min=1,dive"`
}

// Validate validates the command.
func (c UpsertSubjectsCommand) Validate() error {
	return validateCommand("UpsertSubjects", c)
}

// UpsertSubjectsResult counts the rows written.
type UpsertSubjectsResult struct {
	Upserted int
}

// UpsertSubjectsHandler handles the UpsertSubjectsCommand.
type UpsertSubjectsHandler struct {
	exec *Executor
}

// NewUpsertSubjectsHandler creates a new UpsertSubjectsHandler.
func NewUpsertSubjectsHandler(exec *Executor) *UpsertSubjectsHandler {
	return &UpsertSubjectsHandler{exec: exec}
}

// Handle executes the upsert subjects command. The batch is all or nothing.
func (h *UpsertSubjectsHandler) Handle(ctx context.Context, cmd UpsertSubjectsCommand) (*UpsertSubjectsResult, error) {
	if err := cmd.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	for i := range cmd.Subjects {
		in := &cmd.Subjects[i]
		in.ID = strings.TrimSpace(in.ID)
		in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
		in.DisplayName = strings.TrimSpace(in.DisplayName)
		in.Email = strings.TrimSpace(in.Email)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &UpsertSubjectsResult{}
	err := h.exec.Run(ctx, "upsert_subjects", func(ctx context.Context, tx uow.Tx) ([]shared.Event, error) {
		result.Upserted = 0
		if _, err := tx.Cycles().GetByID(ctx, cmd.CycleID); err != nil {
			return nil, err
		}
		for i, in := range cmd.Subjects {
			s, err := subject.New(in.ID, cmd.CycleID, subject.Kind(in.Kind), in.DisplayName, shared.NewCohort(in.Cohort))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			s.Email = in.Email
			s.Grade = strings.TrimSpace(in.Grade)
			s.Group = strings.TrimSpace(in.Group)
			s.Level = strings.TrimSpace(in.Level)
			s.Active = !in.Inactive
			s.UpdatedAt = h.exec.Now()
			if err := tx.Subjects().Upsert(ctx, s); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			result.Upserted++
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	h.exec.log.Info("subjects upserted", logger.CycleID(cmd.CycleID), logger.Int("count", result.Upserted))
	return result, nil
}
