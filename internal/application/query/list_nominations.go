package query

import (
	"context"
	"errors"

	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST NOMINATIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListNominationsQuery filters the ledger of one cycle.
type ListNominationsQuery struct {
	CycleID        string
	NomineeID      string
	NominatorID    string
	ValueID        string
	EventID        string
	Kind           string
	IncludeDerived bool
	OnlyDerived    bool
	Page           int
	PageSize       int
}

// Validate checks the query.
func (q ListNominationsQuery) Validate() error {
	if q.CycleID == "" {
		return shared.ErrCycleNotActive
	}
	if q.Kind != "" && q.Kind != string(nomination.KindStudent) && q.Kind != string(nomination.KindStaff) {
		return shared.NewDomainError("query", "ListNominations", shared.ErrInvalidInput, "kind must be student or staff")
	}
	return nil
}

// ListNominationsResult is one page of the ledger.
type ListNominationsResult struct {
	Items    []NominationDTO `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ListNominationsHandler handles ListNominationsQuery.
type ListNominationsHandler struct {
	reader *Reader
}

// NewListNominationsHandler creates a new ListNominationsHandler.
func NewListNominationsHandler(reader *Reader) *ListNominationsHandler {
	return &ListNominationsHandler{reader: reader}
}

// Handle executes the query.
func (h *ListNominationsHandler) Handle(ctx context.Context, q ListNominationsQuery) (*ListNominationsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	page := shared.NewPagination(q.Page, q.PageSize)
	result := &ListNominationsResult{Page: page.Page, PageSize: page.PageSize}

	err := h.reader.read(ctx, "list_nominations", func(ctx context.Context, tx uow.Tx) error {
		rows, err := tx.Nominations().List(ctx, nomination.Filter{
			CycleID:        q.CycleID,
			NomineeID:      q.NomineeID,
			NominatorID:    q.NominatorID,
			ValueID:        q.ValueID,
			EventID:        q.EventID,
			Kind:           nomination.Kind(q.Kind),
			IncludeDerived: q.IncludeDerived,
			OnlyDerived:    q.OnlyDerived,
			Pagination:     page,
		})
		if err != nil {
			return err
		}
		names, err := valueNames(ctx, tx, rows)
		if err != nil {
			return err
		}
		result.Items = make([]NominationDTO, 0, len(rows))
		for _, n := range rows {
			dto := ToNominationDTO(n)
			dto.ValueName = names[n.ValueID]
			result.Items = append(result.Items, dto)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func valueNames(ctx context.Context, tx uow.Tx, rows []*nomination.Nomination) (map[string]string, error) {
	names := make(map[string]string)
	for _, n := range rows {
		if _, ok := names[n.ValueID]; ok {
			continue
		}
		v, err := tx.Values().GetByID(ctx, n.ValueID)
		switch {
		case err == nil:
			names[n.ValueID] = v.Name
		case errors.Is(err, shared.ErrValueNotFound):
			names[n.ValueID] = ""
		default:
			return nil, err
		}
	}
	return names, nil
}
