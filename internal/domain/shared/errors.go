// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "nomination", "calendar", "cycle"
	Op      string // Operation that failed, e.g., "Create", "Edit"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Rejection reasons returned by the nomination lifecycle. Each one is a
// recoverable outcome the caller can show to the user as-is.
var (
	ErrCycleNotActive       = NewDomainError("cycle", "GetActive", ErrInvalidState, "no active cycle")
	ErrNoOpenEvent          = NewDomainError("calendar", "CheckAdmission", ErrInvalidState, "no open event for cohort")
	ErrEventClosed          = NewDomainError("calendar", "CheckAdmission", ErrExpiredWindow, "event is closed")
	ErrSubjectNotFound      = NewDomainError("subject", "Lookup", ErrNotFound, "subject not found")
	ErrSubjectInactive      = NewDomainError("subject", "Lookup", ErrInvalidState, "subject is not active")
	ErrValueInactive        = NewDomainError("value", "Check", ErrInvalidState, "value is not active")
	ErrSelfNomination       = NewDomainError("nomination", "Create", ErrInvalidInput, "cannot nominate self")
	ErrDuplicateNomination  = NewDomainError("nomination", "Create", ErrAlreadyExists, "nomination already exists")
	ErrEventBoundaryInvalid = NewDomainError("calendar", "CreateEvent", ErrInvalidInput, "close time must be before event time")
)

// ErrExpiredWindow is the kind behind a closed admission window.
var ErrExpiredWindow = errors.New("window expired")

// Lookup and administration errors.
var (
	ErrNotAuthorized          = NewDomainError("actor", "Authorize", ErrForbidden, "actor is not allowed to perform this action")
	ErrCycleNotFound          = NewDomainError("cycle", "Find", ErrNotFound, "cycle not found")
	ErrCycleAlreadyExists     = NewDomainError("cycle", "Create", ErrAlreadyExists, "cycle already exists")
	ErrValueNotFound          = NewDomainError("value", "Find", ErrNotFound, "value not found")
	ErrValueAlreadyExists     = NewDomainError("value", "Create", ErrAlreadyExists, "value already exists in cycle")
	ErrValueReserved          = NewDomainError("value", "Check", ErrInvalidInput, "value is reserved for the excellence tier")
	ErrEventNotFound          = NewDomainError("calendar", "Find", ErrNotFound, "event not found")
	ErrEventReopenExpired     = NewDomainError("calendar", "SetActive", ErrStateTransition, "event cannot reopen after its close time")
	ErrNominationNotFound     = NewDomainError("nomination", "Find", ErrNotFound, "nomination not found")
	ErrDerivedRecordImmutable = NewDomainError("nomination", "Mutate", ErrForbidden, "excellence records are maintained automatically")
	ErrCrossCycle             = NewDomainError("nomination", "Create", ErrInvalidInput, "record belongs to another cycle")
)

// Reason returns a stable machine-readable code for a rejection, or "" for
// errors that are not part of the rejection taxonomy.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCycleNotActive):
		return "cycle_not_active"
	case errors.Is(err, ErrNoOpenEvent):
		return "no_open_event"
	case errors.Is(err, ErrEventClosed):
		return "event_closed"
	case errors.Is(err, ErrSubjectNotFound):
		return "subject_not_found"
	case errors.Is(err, ErrSubjectInactive):
		return "subject_inactive"
	case errors.Is(err, ErrValueInactive), errors.Is(err, ErrValueReserved):
		return "value_inactive"
	case errors.Is(err, ErrSelfNomination):
		return "self_nomination"
	case errors.Is(err, ErrDuplicateNomination):
		return "duplicate_nomination"
	case errors.Is(err, ErrEventBoundaryInvalid):
		return "event_boundary_invalid"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrDerivedRecordImmutable):
		return "derived_record_immutable"
	}
	return ""
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue)
}

// IsRejection reports whether err is a recoverable business rejection.
func IsRejection(err error) bool {
	return Reason(err) != ""
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
