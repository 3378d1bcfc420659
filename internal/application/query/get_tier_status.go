package query

import (
	"context"
	"errors"

	"github.com/valores-hub/nominations/internal/domain/recognition"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TIER STATUS QUERY
// How far a nominee is from the excellence tier, and the record if granted.
// ══════════════════════════════════════════════════════════════════════════════

// GetTierStatusQuery identifies a nominee in a cycle.
type GetTierStatusQuery struct {
	CycleID   string
	NomineeID string
}

// TierStatusDTO describes a nominee's standing.
type TierStatusDTO struct {
	NomineeID    string         `json:"nominee_id"`
	CycleID      string         `json:"cycle_id"`
	Count        int            `json:"count"`
	Threshold    int            `json:"threshold"`
	Remaining    int            `json:"remaining"`
	Excellence   *NominationDTO `json:"excellence,omitempty"`
	Contributors []string       `json:"contributors"`
}

// GetTierStatusHandler handles GetTierStatusQuery.
type GetTierStatusHandler struct {
	reader *Reader
	rules  recognition.Rules
}

// NewGetTierStatusHandler creates a new GetTierStatusHandler.
func NewGetTierStatusHandler(reader *Reader, rules recognition.Rules) *GetTierStatusHandler {
	return &GetTierStatusHandler{reader: reader, rules: rules}
}

// Handle executes the query.
func (h *GetTierStatusHandler) Handle(ctx context.Context, q GetTierStatusQuery) (*TierStatusDTO, error) {
	if q.CycleID == "" {
		return nil, shared.ErrCycleNotActive
	}
	if q.NomineeID == "" {
		return nil, shared.NewDomainError("query", "GetTierStatus", shared.ErrInvalidID, "nominee is required")
	}

	status := &TierStatusDTO{NomineeID: q.NomineeID, CycleID: q.CycleID, Threshold: h.rules.Threshold}
	err := h.reader.read(ctx, "get_tier_status", func(ctx context.Context, tx uow.Tx) error {
		if _, err := tx.Subjects().Lookup(ctx, q.CycleID, q.NomineeID); err != nil {
			return err
		}

		regular, err := tx.Nominations().ListForNominee(ctx, q.CycleID, q.NomineeID)
		if err != nil {
			return err
		}
		status.Count = len(regular)
		status.Contributors = []string{}
		for _, n := range recognition.InsertionOrder(regular) {
			if n.Counted {
				status.Contributors = append(status.Contributors, n.ID)
			}
		}

		record, err := tx.Nominations().GetDerived(ctx, q.CycleID, q.NomineeID)
		switch {
		case err == nil:
			dto := ToNominationDTO(record)
			dto.ValueName = h.rules.ExcellenceName
			status.Excellence = &dto
		case !errors.Is(err, shared.ErrNominationNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if status.Count < status.Threshold {
		status.Remaining = status.Threshold - status.Count
	}
	return status, nil
}
