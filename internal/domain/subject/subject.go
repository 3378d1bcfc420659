// Package subject is the read model of the people a nomination can name:
// students and staff, each scoped to a cycle.
package subject

import (
	"context"
	"strings"
	"time"

	"github.com/valores-hub/nominations/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Kind distinguishes students from staff.
type Kind string

const (
	KindStudent Kind = "student"
	KindStaff   Kind = "staff"
)

// IsValid checks the kind.
func (k Kind) IsValid() bool {
	return k == KindStudent || k == KindStaff
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SUBJECT
// ══════════════════════════════════════════════════════════════════════════════

// Subject is a student or a staff member within one cycle.
type Subject struct {
	ID          string
	CycleID     string
	Kind        Kind
	DisplayName string
	Email       string
	Cohort      shared.Cohort
	Grade       string
	Group       string
	Level       string
	Active      bool
	UpdatedAt   time.Time
}

// New validates a directory entry.
func New(id, cycleID string, kind Kind, displayName string, cohort shared.Cohort) (*Subject, error) {
	if id == "" {
		id = shared.NewID()
	}
	if cycleID == "" {
		return nil, shared.NewDomainError("subject", "New", shared.ErrInvalidID, "cycle is required")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("subject", "New", shared.ErrInvalidInput, "unknown subject kind")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, shared.NewDomainError("subject", "New", shared.ErrEmptyValue, "display name is required")
	}
	return &Subject{
		ID:          id,
		CycleID:     cycleID,
		Kind:        kind,
		DisplayName: displayName,
		Cohort:      cohort,
		Active:      true,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// IsStaff reports whether the subject is staff.
func (s *Subject) IsStaff() bool {
	return s.Kind == KindStaff
}

// IsActiveStaff reports whether the subject may act as a nominator.
func (s *Subject) IsActiveStaff() bool {
	return s.IsStaff() && s.Active
}

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// Directory is the storage contract for subjects.
type Directory interface {
	// Lookup returns ErrSubjectNotFound if the cycle has no such subject.
	Lookup(ctx context.Context, cycleID, id string) (*Subject, error)

	// Upsert inserts or replaces a subject by cycle and ID. The same ID may
	// exist in several cycles.
	Upsert(ctx context.Context, s *Subject) error

	// ListByCycle returns subjects of a cycle, optionally filtered by kind.
	ListByCycle(ctx context.Context, cycleID string, kind Kind) ([]*Subject, error)
}
