/*
Package settlement rolls daily hour breakdowns up into multi-week
settlement periods and computes the flexible-work overtime allowance.

PURPOSE:
  Under a flexible-work arrangement a quarter's schedule is judged as a
  whole: actual average weekly hours are compared to the standard, and
  only the systemic excess is compensated. Night hours already paid as
  night allowance are subtracted first so no hour is compensated twice.

KEY CONCEPTS IN THIS FILE (types.go):
  - Period: A multi-week settlement window with lifecycle status
  - Result: Per-employee outcome of aggregating a period
  - EmployeeError: Isolated per-employee failure inside a batch run

SEE ALSO:
  - aggregator.go: The roll-up computation and finalization rules
*/
package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// SETTLEMENT PERIOD
// =============================================================================

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Period is a multi-week settlement window (e.g., a calendar quarter).
type Period struct {
	ID        attendance.PeriodID
	StartDate attendance.WorkDate
	EndDate   attendance.WorkDate
	Status    Status
}

// Weeks normalizes the period length to weeks; partial boundary weeks
// are prorated by actual calendar days / 7.
func (p Period) Weeks() decimal.Decimal {
	days := attendance.DaysBetween(p.StartDate, p.EndDate)
	return decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(7))
}

// NewQuarter builds the default 12-week period starting at a date.
func NewQuarter(id attendance.PeriodID, start attendance.WorkDate) Period {
	return Period{
		ID:        id,
		StartDate: start,
		EndDate:   start.AddDays(12*7 - 1),
		Status:    StatusPlanned,
	}
}

// =============================================================================
// SETTLEMENT RESULT
// =============================================================================

// Result is one employee's settlement outcome for a period. Once
// finalized it is immutable until the period is explicitly reopened.
type Result struct {
	PeriodID   attendance.PeriodID
	EmployeeID attendance.EmployeeID

	TotalActualHours   attendance.Hours
	WeeklyAverageHours attendance.Hours

	// ExcessHours captures systemic over-scheduling: hours beyond the
	// standard weekly average over the whole period, distinct from any
	// single day's overtime.
	ExcessHours attendance.Hours

	TotalNightHours attendance.Hours

	// OvertimeAllowanceHours nets excess against night hours already
	// credited elsewhere.
	OvertimeAllowanceHours  attendance.Hours
	OvertimeAllowanceAmount decimal.Decimal

	Finalized   bool
	FinalizedBy string
	FinalizedAt *time.Time
	ComputedAt  time.Time
}

// =============================================================================
// PER-EMPLOYEE FAILURE ISOLATION
// =============================================================================

// EmployeeError isolates one employee's settlement failure so the rest
// of the batch proceeds.
type EmployeeError struct {
	EmployeeID attendance.EmployeeID
	Err        error

	// IncompleteDates lists the unreconciled days behind an
	// ErrIncompleteDayRecord failure.
	IncompleteDates []attendance.WorkDate
}

func (e *EmployeeError) Error() string {
	return fmt.Sprintf("settlement for %s: %v", e.EmployeeID, e.Err)
}

func (e *EmployeeError) Unwrap() error { return e.Err }

// RunReport summarizes a batch settlement run over a period.
type RunReport struct {
	PeriodID attendance.PeriodID
	Results  []*Result
	Failures []*EmployeeError
}

// BlockedError is returned when finalization is refused because
// employees still have unresolved incomplete/error state.
type BlockedError struct {
	PeriodID  attendance.PeriodID
	Employees []attendance.EmployeeID
}

func (e *BlockedError) Error() string {
	names := make([]string, len(e.Employees))
	for i, emp := range e.Employees {
		names[i] = string(emp)
	}
	return fmt.Sprintf("finalization of period %s blocked by unresolved state for: %s",
		e.PeriodID, strings.Join(names, ", "))
}

// =============================================================================
// STORE - Settlement persistence
// =============================================================================

type Store interface {
	SavePeriod(ctx context.Context, p Period) error
	GetPeriod(ctx context.Context, id attendance.PeriodID) (*Period, error)

	// SaveResult upserts a result. Returns ErrPeriodFinalized when the
	// existing row is frozen.
	SaveResult(ctx context.Context, r *Result) error
	ResultsForPeriod(ctx context.Context, id attendance.PeriodID) ([]*Result, error)

	// FinalizeResults freezes every result row of a period, recording
	// the finalizer and timestamp.
	FinalizeResults(ctx context.Context, id attendance.PeriodID, actor string, at time.Time) error

	// ReopenResults lifts the freeze after an explicit reopen.
	ReopenResults(ctx context.Context, id attendance.PeriodID) error

	// AppendAudit records a settlement lifecycle action.
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// AuditEntry records who did what to a settlement period when.
type AuditEntry struct {
	ID        string
	PeriodID  attendance.PeriodID
	Action    AuditAction
	ActorID   string
	Timestamp time.Time
	Detail    string
}

type AuditAction string

const (
	AuditRunCompleted    AuditAction = "run_completed"
	AuditPeriodFinalized AuditAction = "period_finalized"
	AuditPeriodReopened  AuditAction = "period_reopened"
)
