/*
aggregator.go - Period roll-up and finalization

PURPOSE:
  Aggregates every WorkHourBreakdown falling inside a settlement period
  into per-employee results:

    weekly_average = total_actual / weeks
    excess         = max(weekly_average - standard, 0) * weeks
    allowance_hrs  = max(excess - total_night, 0)
    allowance_amt  = allowance_hrs * hourly_rate * multiplier

  Night hours were already compensated as night allowance, so they are
  netted out before the overtime allowance - the one place the engine
  guards against double payment.

BATCH MODEL:
  Per-employee aggregation is embarrassingly parallel: employees run
  concurrently under an errgroup and are joined before anything is
  persisted for finalization. One employee's failure (incomplete days,
  missing rate) is collected into the run report and never halts or
  corrupts the others.

FINALIZATION:
  Recomputation is idempotent and safe to repeat while the period is
  Planned or Active. Finalize refuses while any employee has unresolved
  incomplete/error state and returns a blocking report naming them; on
  success it freezes all result rows. Further recomputation fails with
  ErrPeriodFinalized until an explicit Reopen.
*/
package settlement

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/policy"
)

// Aggregator computes settlement results over stored breakdowns.
type Aggregator struct {
	Breakdowns attendance.BreakdownStore
	Days       attendance.DayStore
	Store      Store
	Policies   policy.Provider

	// Parallelism bounds concurrent per-employee aggregation. Default 8.
	Parallelism int
}

func NewAggregator(breakdowns attendance.BreakdownStore, days attendance.DayStore, store Store, policies policy.Provider) *Aggregator {
	return &Aggregator{
		Breakdowns:  breakdowns,
		Days:        days,
		Store:       store,
		Policies:    policies,
		Parallelism: 8,
	}
}

// =============================================================================
// SINGLE-EMPLOYEE COMPUTATION - Pure function of stored inputs
// =============================================================================

// ComputeEmployee aggregates one employee's period. It reads a
// consistent snapshot and needs no locking.
func (a *Aggregator) ComputeEmployee(ctx context.Context, p Period, emp attendance.EmployeeID) (*Result, error) {
	pol, err := a.Policies.PolicyFor(ctx, p.StartDate)
	if err != nil {
		return nil, err
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	rate, err := pol.HourlyRate(emp)
	if err != nil {
		return nil, err
	}

	rows, err := a.Breakdowns.ListBreakdowns(ctx, emp, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}

	var incomplete []attendance.WorkDate
	total := attendance.ZeroHours()
	night := attendance.ZeroHours()
	for _, b := range rows {
		if b.Completeness != attendance.CompletenessComplete {
			incomplete = append(incomplete, b.Date)
			continue
		}
		total = total.Add(b.NetWorkHours)
		night = night.Add(b.NightHours)
	}
	if len(incomplete) > 0 {
		return nil, &EmployeeError{
			EmployeeID:      emp,
			Err:             attendance.ErrIncompleteDayRecord,
			IncompleteDates: incomplete,
		}
	}

	weeks := p.Weeks()
	weeklyAvg := attendance.Hours{Value: total.Value.Div(weeks)}

	excess := weeklyAvg.Sub(pol.StandardWeeklyHours).Max(attendance.ZeroHours())
	excess = excess.Mul(weeks)

	allowance := excess.Sub(night).Max(attendance.ZeroHours())
	amount := allowance.Value.Mul(rate).Mul(pol.OvertimeMultiplier)

	return &Result{
		PeriodID:                p.ID,
		EmployeeID:              emp,
		TotalActualHours:        total.Round1(),
		WeeklyAverageHours:      weeklyAvg.Round1(),
		ExcessHours:             excess.Round1(),
		TotalNightHours:         night.Round1(),
		OvertimeAllowanceHours:  allowance.Round1(),
		OvertimeAllowanceAmount: amount.Round(2),
		ComputedAt:              time.Now().UTC(),
	}, nil
}

// =============================================================================
// BATCH RUN - Parallel per employee, joined before persistence
// =============================================================================

// Run recomputes the whole period. Safe to repeat until the period is
// Completed; afterwards it fails with ErrPeriodFinalized.
func (a *Aggregator) Run(ctx context.Context, periodID attendance.PeriodID) (*RunReport, error) {
	p, err := a.Store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCompleted {
		return nil, attendance.ErrPeriodFinalized
	}

	employees, err := a.Breakdowns.EmployeesInRange(ctx, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}

	report := &RunReport{PeriodID: periodID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Parallelism)
	for _, emp := range employees {
		emp := emp
		g.Go(func() error {
			res, err := a.ComputeEmployee(gctx, *p, emp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, asEmployeeError(emp, err))
				return nil // failures are isolated, never abort the group
			}
			report.Results = append(report.Results, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].EmployeeID < report.Results[j].EmployeeID
	})
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].EmployeeID < report.Failures[j].EmployeeID
	})

	for _, res := range report.Results {
		if err := a.Store.SaveResult(ctx, res); err != nil {
			return nil, err
		}
	}

	if p.Status == StatusPlanned {
		p.Status = StatusActive
		if err := a.Store.SavePeriod(ctx, *p); err != nil {
			return nil, err
		}
	}

	_ = a.Store.AppendAudit(ctx, AuditEntry{
		ID:        uuid.NewString(),
		PeriodID:  periodID,
		Action:    AuditRunCompleted,
		ActorID:   "system",
		Timestamp: time.Now().UTC(),
	})

	return report, nil
}

func asEmployeeError(emp attendance.EmployeeID, err error) *EmployeeError {
	var ee *EmployeeError
	if errors.As(err, &ee) {
		return ee
	}
	return &EmployeeError{EmployeeID: emp, Err: err}
}

// =============================================================================
// FINALIZATION - All-or-nothing per period
// =============================================================================

// Finalize freezes the period's results. It refuses with a BlockedError
// while any employee in the period has unresolved incomplete or errored
// day records, or had activity in the period but no computed result
// (a run failure such as a missing hourly rate).
func (a *Aggregator) Finalize(ctx context.Context, periodID attendance.PeriodID, actor string) error {
	p, err := a.Store.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if p.Status == StatusCompleted {
		return attendance.ErrPeriodFinalized
	}

	blocked, err := a.blockedEmployees(ctx, *p)
	if err != nil {
		return err
	}
	if len(blocked) > 0 {
		return &BlockedError{PeriodID: periodID, Employees: blocked}
	}

	now := time.Now().UTC()
	if err := a.Store.FinalizeResults(ctx, periodID, actor, now); err != nil {
		return err
	}

	p.Status = StatusCompleted
	if err := a.Store.SavePeriod(ctx, *p); err != nil {
		return err
	}

	return a.Store.AppendAudit(ctx, AuditEntry{
		ID:        uuid.NewString(),
		PeriodID:  periodID,
		Action:    AuditPeriodFinalized,
		ActorID:   actor,
		Timestamp: now,
	})
}

// Reopen lifts finalization so corrected daily records can flow into a
// recomputation.
func (a *Aggregator) Reopen(ctx context.Context, periodID attendance.PeriodID, actor string) error {
	p, err := a.Store.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if p.Status != StatusCompleted {
		return nil // nothing to lift
	}

	if err := a.Store.ReopenResults(ctx, periodID); err != nil {
		return err
	}
	p.Status = StatusActive
	if err := a.Store.SavePeriod(ctx, *p); err != nil {
		return err
	}

	return a.Store.AppendAudit(ctx, AuditEntry{
		ID:        uuid.NewString(),
		PeriodID:  periodID,
		Action:    AuditPeriodReopened,
		ActorID:   actor,
		Timestamp: time.Now().UTC(),
	})
}

// blockedEmployees collects employees with unreconciled day records
// inside the period, plus employees with period activity but no saved
// result. The latter are run failures (missing rate, errored days) that
// must not be silently frozen out of the settlement.
func (a *Aggregator) blockedEmployees(ctx context.Context, p Period) ([]attendance.EmployeeID, error) {
	recs, err := a.Days.ListUnreconciledDays(ctx, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}

	seen := make(map[attendance.EmployeeID]bool)
	var blocked []attendance.EmployeeID
	for _, rec := range recs {
		if !seen[rec.EmployeeID] {
			seen[rec.EmployeeID] = true
			blocked = append(blocked, rec.EmployeeID)
		}
	}

	employees, err := a.Breakdowns.EmployeesInRange(ctx, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}
	results, err := a.Store.ResultsForPeriod(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	have := make(map[attendance.EmployeeID]bool, len(results))
	for _, r := range results {
		have[r.EmployeeID] = true
	}
	for _, emp := range employees {
		if !have[emp] && !seen[emp] {
			seen[emp] = true
			blocked = append(blocked, emp)
		}
	}

	sort.Slice(blocked, func(i, j int) bool { return blocked[i] < blocked[j] })
	return blocked, nil
}
