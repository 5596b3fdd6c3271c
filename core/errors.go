/*
errors.go - Centralized error types for the worklog core

PURPOSE:
  All sentinel errors in one place. Stores, the reconciliation core and
  the HTTP layer wrap these with context via fmt.Errorf("...: %w", err)
  and test for them with errors.Is.

ERROR CATEGORIES:
  1. Validation errors - bad client input (dates, durations, edit window)
  2. Lookup errors     - missing tasks, days, sessions
  3. Source errors     - a collaborator could not be reached (retryable)

SEE ALSO:
  - timeline/loader.go: SourceError wraps ErrSourceUnavailable
  - api/handlers.go: writeError maps these to HTTP status codes
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a task, timesheet day or entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrNegativeDuration is returned when an entry logs fewer than zero hours.
	ErrNegativeDuration = errors.New("duration must not be negative")

	// ErrEditWindowClosed is returned when a task is edited more than
	// TaskEditWindow after it was created.
	ErrEditWindowClosed = errors.New("task edit window closed")

	// ErrDuplicateDay is returned when a second timesheet day is created
	// for the same employee and date.
	ErrDuplicateDay = errors.New("timesheet day already exists")

	// ErrSourceUnavailable is returned when one of the four reconciliation
	// sources failed to load. The caller may retry.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStaleSelection is returned when data arrives for an employee that
	// is no longer selected.
	ErrStaleSelection = errors.New("selection changed while loading")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrNegativeDuration) ||
		errors.Is(err, ErrEditWindowClosed)
}

// IsConflict returns true if the write collides with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateDay) || errors.Is(err, ErrStaleSelection)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
