/*
store.go - Persistence interfaces for the attendance engine

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage. Method
  names are distinct across interfaces so one store struct can
  implement all of them.

KEY INTERFACES:
  PunchLog:       Append-only log of every ingested raw punch
  DayStore:       Canonical day records (read/save, never delete)
  BreakdownStore: Derived per-day hour breakdowns
  ReviewQueue:    Exceptions awaiting manual reconciliation

APPEND-ONLY PUNCH LOG:
  Raw punches are immutable once ingested. The log has AppendPunch and
  reads only - no Update, no Delete. The punch ID doubles as the
  idempotency key: appending a seen ID is rejected, which makes
  redelivery safe.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - attendance/store: In-memory for testing/dev
*/
package attendance

import (
	"context"
	"time"
)

// =============================================================================
// PUNCH LOG - Append-only raw event trail
// =============================================================================

type PunchLog interface {
	// AppendPunch persists a raw punch. Returns ErrDuplicateDetected if
	// the punch ID was already logged. This is the ONLY write operation.
	AppendPunch(ctx context.Context, ev PunchEvent) error

	// PunchSeen reports whether a punch ID has been logged.
	PunchSeen(ctx context.Context, punchID string) (bool, error)

	// PunchesByDay returns all logged punches captured on an employee's
	// calendar day.
	PunchesByDay(ctx context.Context, emp EmployeeID, date WorkDate) ([]PunchEvent, error)
}

// =============================================================================
// DAY STORE - Canonical day records
// =============================================================================

type DayStore interface {
	// GetDay returns the current revision of a day record, or
	// ErrRecordNotFound.
	GetDay(ctx context.Context, emp EmployeeID, date WorkDate) (*CanonicalDayRecord, error)

	// SaveDay upserts a day record under its bumped revision. Records
	// are never deleted, only superseded.
	SaveDay(ctx context.Context, rec *CanonicalDayRecord) error

	// ListDays returns an employee's records with dates in [from, to].
	ListDays(ctx context.Context, emp EmployeeID, from, to WorkDate) ([]*CanonicalDayRecord, error)

	// ListUnreconciledDays returns records in [from, to] across all
	// employees that are not Complete. Used by the exception scanner and
	// by settlement finalization.
	ListUnreconciledDays(ctx context.Context, from, to WorkDate) ([]*CanonicalDayRecord, error)
}

// =============================================================================
// BREAKDOWN STORE - Derived per-day hour buckets
// =============================================================================

type BreakdownStore interface {
	// SaveBreakdown upserts a breakdown. Breakdowns are derived rows,
	// recomputed whenever the source day record changes.
	SaveBreakdown(ctx context.Context, b *WorkHourBreakdown) error

	GetBreakdown(ctx context.Context, emp EmployeeID, date WorkDate) (*WorkHourBreakdown, error)

	ListBreakdowns(ctx context.Context, emp EmployeeID, from, to WorkDate) ([]*WorkHourBreakdown, error)

	// EmployeesInRange returns the distinct employees that have any
	// breakdown with a work date in [from, to].
	EmployeesInRange(ctx context.Context, from, to WorkDate) ([]EmployeeID, error)
}

// =============================================================================
// REVIEW QUEUE - Exceptions awaiting manual reconciliation
// =============================================================================

type ReviewReason string

const (
	ReviewUnmappedCode  ReviewReason = "unmapped_code"
	ReviewInvalidRange  ReviewReason = "invalid_range"
	ReviewIncompleteDay ReviewReason = "incomplete_day"
)

type ReviewEntry struct {
	ID         string
	EmployeeID EmployeeID
	WorkDate   WorkDate
	Reason     ReviewReason
	Detail     string
	CreatedAt  time.Time
	Resolved   bool
	ResolvedBy string
	ResolvedAt *time.Time
}

type ReviewQueue interface {
	AppendReview(ctx context.Context, entry ReviewEntry) error
	ListReviews(ctx context.Context, unresolvedOnly bool) ([]ReviewEntry, error)
	ResolveReview(ctx context.Context, id, actor string) error
}
