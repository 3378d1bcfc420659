package query

import (
	"context"
	"sort"

	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/uow"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOGNITION BOARD QUERY
// The export view: one entry per recognized subject. Once a subject holds
// the excellence record, the nominations folded into it are not listed
// again.
// ══════════════════════════════════════════════════════════════════════════════

// RecognitionBoardQuery selects a cycle and optionally a cohort.
type RecognitionBoardQuery struct {
	CycleID string
	Cohort  string
	Kind    string
}

// BoardEntry is one recognized subject.
type BoardEntry struct {
	NomineeID   string          `json:"nominee_id"`
	DisplayName string          `json:"display_name"`
	Kind        string          `json:"kind"`
	Cohort      string          `json:"cohort,omitempty"`
	Grade       string          `json:"grade,omitempty"`
	Group       string          `json:"group,omitempty"`
	Excellence  *NominationDTO  `json:"excellence,omitempty"`
	Nominations []NominationDTO `json:"nominations"`
}

// RecognitionBoardHandler handles RecognitionBoardQuery.
type RecognitionBoardHandler struct {
	reader *Reader
}

// NewRecognitionBoardHandler creates a new RecognitionBoardHandler.
func NewRecognitionBoardHandler(reader *Reader) *RecognitionBoardHandler {
	return &RecognitionBoardHandler{reader: reader}
}

// Handle executes the query. Entries are ordered by display name.
func (h *RecognitionBoardHandler) Handle(ctx context.Context, q RecognitionBoardQuery) ([]BoardEntry, error) {
	if q.CycleID == "" {
		return nil, shared.ErrCycleNotActive
	}
	cohort := shared.NewCohort(q.Cohort)

	var board []BoardEntry
	err := h.reader.read(ctx, "recognition_board", func(ctx context.Context, tx uow.Tx) error {
		subjects, err := tx.Subjects().ListByCycle(ctx, q.CycleID, subject.Kind(q.Kind))
		if err != nil {
			return err
		}
		rows, err := tx.Nominations().List(ctx, nomination.Filter{
			CycleID:        q.CycleID,
			Kind:           nomination.Kind(q.Kind),
			IncludeDerived: true,
		})
		if err != nil {
			return err
		}
		names, err := valueNames(ctx, tx, rows)
		if err != nil {
			return err
		}

		byNominee := make(map[string][]*nomination.Nomination)
		for _, n := range rows {
			byNominee[n.NomineeID] = append(byNominee[n.NomineeID], n)
		}

		for _, s := range subjects {
			if !cohort.IsAll() && !cohort.Covers(s.Cohort) {
				continue
			}
			ns := byNominee[s.ID]
			if len(ns) == 0 {
				continue
			}
			board = append(board, buildEntry(s, ns, names))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(board, func(i, j int) bool { return board[i].DisplayName < board[j].DisplayName })
	return board, nil
}

func buildEntry(s *subject.Subject, ns []*nomination.Nomination, names map[string]string) BoardEntry {
	entry := BoardEntry{
		NomineeID:   s.ID,
		DisplayName: s.DisplayName,
		Kind:        string(s.Kind),
		Cohort:      s.Cohort.String(),
		Grade:       s.Grade,
		Group:       s.Group,
		Nominations: []NominationDTO{},
	}
	for _, n := range ns {
		if n.Derived {
			dto := ToNominationDTO(n)
			dto.ValueName = names[n.ValueID]
			entry.Excellence = &dto
		}
	}
	for _, n := range ns {
		if n.Derived || (entry.Excellence != nil && n.Counted) {
			continue
		}
		dto := ToNominationDTO(n)
		dto.ValueName = names[n.ValueID]
		entry.Nominations = append(entry.Nominations, dto)
	}
	return entry
}
