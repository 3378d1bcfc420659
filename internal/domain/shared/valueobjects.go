// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID checks that id is a well-formed UUID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Cohort Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Cohort is a free-form group label such as "Bloque 1" or "3A".
// The empty cohort means "every cohort".
type Cohort string

// String returns the string representation.
func (c Cohort) String() string {
	return string(c)
}

// IsAll reports whether the cohort is unscoped.
func (c Cohort) IsAll() bool {
	return c == ""
}

// Covers reports whether an event scoped to c admits a subject in other.
func (c Cohort) Covers(other Cohort) bool {
	return c.IsAll() || strings.EqualFold(string(c), string(other))
}

// NewCohort trims the label.
func NewCohort(value string) Cohort {
	return Cohort(strings.TrimSpace(value))
}

// ═══════════════════════════════════════════════════════════════════════════
// Actor Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Actor is the capability handed to every mutating operation. It is
// resolved by the transport layer; the core never reads session state.
type Actor struct {
	SubjectID string
	Admin     bool
}

// SystemActor is used by background jobs.
var SystemActor = Actor{SubjectID: "system", Admin: true}

// CanActAs reports whether the actor may act on behalf of subjectID.
func (a Actor) CanActAs(subjectID string) bool {
	return a.Admin || (a.SubjectID != "" && a.SubjectID == subjectID)
}

// RequireAdmin returns ErrNotAuthorized for non-admin actors.
func (a Actor) RequireAdmin() error {
	if !a.Admin {
		return ErrNotAuthorized
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
