/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Downstream packages (settlement, api) wrap these with extra context.

ERROR CATEGORIES:
  1. Ingestion errors  - Unmapped codes, duplicate punches
  2. Data-quality errors - Invalid time ranges, incomplete records
  3. Store errors      - Persistence failures

PROPAGATION CONTRACT (from the taxonomy):
  - Ingestion errors are returned synchronously to the producer with an
    accept/reject verdict so the source system can alert.
  - Calculation errors are collected per employee and never halt
    processing of unrelated employees.
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnmappedActionCode is returned when a source submits an action
	// code absent from its vocabulary table. The raw event is queued for
	// manual review, never silently dropped or guessed.
	ErrUnmappedActionCode = errors.New("unmapped action code")

	// ErrDuplicateDetected is returned when a punch arrives within the
	// proximity window of an equal-or-higher-priority canonical record.
	// Expected and recoverable; no state change occurs.
	ErrDuplicateDetected = errors.New("duplicate punch detected")

	// ErrInvalidTimeRange is returned when a check-out instant precedes
	// its check-in even after the overnight adjustment. Data-quality
	// error, never silently clamped.
	ErrInvalidTimeRange = errors.New("check-out before check-in")

	// ErrIncompleteDayRecord marks a day missing its check-in or
	// check-out. Deferred, not fatal: the day surfaces in the exceptions
	// queue and blocks settlement finalization until resolved.
	ErrIncompleteDayRecord = errors.New("incomplete day record")

	// ErrMissingPolicyConfig is returned when required work-policy values
	// (hourly rate, standard weekly hours) are absent. The affected
	// settlement period halts rather than defaulting silently.
	ErrMissingPolicyConfig = errors.New("missing work policy configuration")

	// ErrRecordNotFound is returned when a referenced record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrPeriodFinalized is returned when writing into a finalized
	// settlement period. Requires an explicit reopen.
	ErrPeriodFinalized = errors.New("settlement period is finalized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnmappedCodeError reports a code a source's vocabulary doesn't know.
type UnmappedCodeError struct {
	Source  Source
	RawCode string
	PunchID string
}

func (e *UnmappedCodeError) Error() string {
	return fmt.Sprintf("unmapped action code %q from source %s (punch %s)", e.RawCode, e.Source, e.PunchID)
}

func (e *UnmappedCodeError) Unwrap() error { return ErrUnmappedActionCode }

// DuplicateError reports a rejected punch and the canonical record it
// conflicted with.
type DuplicateError struct {
	EmployeeID      EmployeeID
	WorkDate        WorkDate
	Action          Action
	ConflictPunchID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s for %s on %s (conflicts with punch %s)",
		e.Action, e.EmployeeID, e.WorkDate, e.ConflictPunchID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateDetected }

// InvalidRangeError reports a check-out that precedes its check-in.
type InvalidRangeError struct {
	EmployeeID EmployeeID
	WorkDate   WorkDate
	CheckIn    ClockTime
	CheckOut   ClockTime
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid time range for %s on %s: out %s before in %s",
		e.EmployeeID, e.WorkDate, e.CheckOut, e.CheckIn)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidTimeRange }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to producer input and
// should map to a 4xx verdict rather than a 5xx failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnmappedActionCode) ||
		errors.Is(err, ErrDuplicateDetected) ||
		errors.Is(err, ErrInvalidTimeRange)
}

// IsDataQuality reports whether the error should land in the exceptions
// queue for manual reconciliation.
func IsDataQuality(err error) bool {
	return errors.Is(err, ErrUnmappedActionCode) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrIncompleteDayRecord)
}
