/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines request/response structures for JSON serialization. DTOs keep
  the wire format decoupled from internal types: hour quantities travel
  as strings (decimal precision survives JSON), timestamps as RFC3339,
  work dates as "2006-01-02".

CONVERSION:
  toXxxDTO functions convert internal types to DTOs. Request structs are
  decoded and validated in handlers before touching the domain.
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/settlement"
)

// =============================================================================
// PUNCH INGESTION
// =============================================================================

// PunchRequest is one raw punch as submitted by a capture source.
type PunchRequest struct {
	ID         string `json:"id,omitempty"`
	EmployeeID string `json:"employee_id"`
	Timestamp  string `json:"timestamp"` // RFC3339
	Source     string `json:"source"`    // terminal | web_client | manual
	Code       string `json:"code"`      // source-specific action vocabulary
	BreakTaken *bool  `json:"break_taken,omitempty"`
}

func (r PunchRequest) toEvent() (attendance.PunchEvent, error) {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return attendance.PunchEvent{}, err
	}
	return attendance.PunchEvent{
		ID:         r.ID,
		EmployeeID: attendance.EmployeeID(r.EmployeeID),
		Timestamp:  ts,
		Source:     attendance.Source(r.Source),
		RawCode:    r.Code,
		BreakTaken: r.BreakTaken,
	}, nil
}

// VerdictDTO is the synchronous accept/reject answer for one punch.
type VerdictDTO struct {
	PunchID         string `json:"punch_id"`
	Accepted        bool   `json:"accepted"`
	Outcome         string `json:"outcome,omitempty"`
	Ignored         bool   `json:"ignored,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ConflictPunchID string `json:"conflict_punch_id,omitempty"`
}

func toVerdictDTO(v attendance.Verdict) VerdictDTO {
	return VerdictDTO{
		PunchID:         v.PunchID,
		Accepted:        v.Accepted,
		Outcome:         string(v.Outcome),
		Ignored:         v.Ignored,
		Reason:          v.Reason,
		ConflictPunchID: v.ConflictPunchID,
	}
}

// =============================================================================
// DAY RECORDS AND BREAKDOWNS
// =============================================================================

type PunchStampDTO struct {
	At      string `json:"at"`
	Source  string `json:"source"`
	PunchID string `json:"punch_id"`
}

func toStampDTO(s *attendance.PunchStamp) *PunchStampDTO {
	if s == nil {
		return nil
	}
	return &PunchStampDTO{
		At:      s.At.Format(time.RFC3339),
		Source:  string(s.Source),
		PunchID: s.PunchID,
	}
}

type ExtraPunchDTO struct {
	At      string `json:"at"`
	Source  string `json:"source"`
	PunchID string `json:"punch_id"`
	Action  string `json:"action"`
	Note    string `json:"note,omitempty"`
}

type DayRecordDTO struct {
	EmployeeID     string          `json:"employee_id"`
	WorkDate       string          `json:"work_date"`
	Completeness   string          `json:"completeness"`
	CheckIn        *PunchStampDTO  `json:"check_in,omitempty"`
	CheckOut       *PunchStampDTO  `json:"check_out,omitempty"`
	HadDinnerBreak *bool           `json:"had_dinner_break,omitempty"`
	ExtraPunches   []ExtraPunchDTO `json:"extra_punches,omitempty"`
	Revision       int             `json:"revision"`
	UpdatedAt      string          `json:"updated_at"`
}

func toDayRecordDTO(rec *attendance.CanonicalDayRecord) DayRecordDTO {
	dto := DayRecordDTO{
		EmployeeID:     string(rec.EmployeeID),
		WorkDate:       rec.Date.String(),
		Completeness:   string(rec.Completeness()),
		CheckIn:        toStampDTO(rec.CheckIn),
		CheckOut:       toStampDTO(rec.CheckOut),
		HadDinnerBreak: rec.HadDinnerBreak,
		Revision:       rec.Revision,
		UpdatedAt:      rec.UpdatedAt.Format(time.RFC3339),
	}
	for _, ep := range rec.ExtraPunches {
		dto.ExtraPunches = append(dto.ExtraPunches, ExtraPunchDTO{
			At:      ep.Stamp.At.Format(time.RFC3339),
			Source:  string(ep.Stamp.Source),
			PunchID: ep.Stamp.PunchID,
			Action:  string(ep.Action),
			Note:    ep.Note,
		})
	}
	return dto
}

// BreakdownDTO carries one day's derived hour buckets. Hour fields are
// decimal strings rounded to one decimal place; check-out past midnight
// uses extended notation ("28:45").
type BreakdownDTO struct {
	EmployeeID     string `json:"employee_id"`
	WorkDate       string `json:"work_date"`
	Completeness   string `json:"completeness"`
	CheckIn        string `json:"check_in,omitempty"`
	CheckOut       string `json:"check_out,omitempty"`
	TotalStayHours string `json:"total_stay_hours"`
	BreakHours     string `json:"break_hours"`
	NetWorkHours   string `json:"net_work_hours"`
	NightHours     string `json:"night_hours"`
	RegularHours   string `json:"regular_hours"`
	OvertimeHours  string `json:"overtime_hours"`
	HadDinnerBreak bool   `json:"had_dinner_break"`
}

func toBreakdownDTO(b *attendance.WorkHourBreakdown) BreakdownDTO {
	dto := BreakdownDTO{
		EmployeeID:     string(b.EmployeeID),
		WorkDate:       b.Date.String(),
		Completeness:   string(b.Completeness),
		TotalStayHours: b.TotalStayHours.String(),
		BreakHours:     b.BreakHours.String(),
		NetWorkHours:   b.NetWorkHours.String(),
		NightHours:     b.NightHours.String(),
		RegularHours:   b.RegularHours.String(),
		OvertimeHours:  b.OvertimeHours.String(),
		HadDinnerBreak: b.HadDinnerBreak,
	}
	if b.Completeness == attendance.CompletenessComplete {
		dto.CheckIn = b.CheckIn.String()
		dto.CheckOut = b.CheckOut.String()
	}
	return dto
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

type ReviewEntryDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	WorkDate   string `json:"work_date"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
	Resolved   bool   `json:"resolved"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

func toReviewEntryDTO(e attendance.ReviewEntry) ReviewEntryDTO {
	dto := ReviewEntryDTO{
		ID:         e.ID,
		EmployeeID: string(e.EmployeeID),
		WorkDate:   e.WorkDate.String(),
		Reason:     string(e.Reason),
		Detail:     e.Detail,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		Resolved:   e.Resolved,
		ResolvedBy: e.ResolvedBy,
	}
	if e.ResolvedAt != nil {
		dto.ResolvedAt = e.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

type ResolveReviewRequest struct {
	Actor string `json:"actor"`
}

// =============================================================================
// SETTLEMENT
// =============================================================================

type CreatePeriodRequest struct {
	ID        string `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"` // defaults to a 12-week quarter
}

type PeriodDTO struct {
	ID        string `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

func toPeriodDTO(p *settlement.Period) PeriodDTO {
	return PeriodDTO{
		ID:        string(p.ID),
		StartDate: p.StartDate.String(),
		EndDate:   p.EndDate.String(),
		Status:    string(p.Status),
	}
}

type ResultDTO struct {
	PeriodID                string `json:"period_id"`
	EmployeeID              string `json:"employee_id"`
	TotalActualHours        string `json:"total_actual_hours"`
	WeeklyAverageHours      string `json:"weekly_average_hours"`
	ExcessHours             string `json:"excess_hours"`
	TotalNightHours         string `json:"total_night_hours"`
	OvertimeAllowanceHours  string `json:"overtime_allowance_hours"`
	OvertimeAllowanceAmount string `json:"overtime_allowance_amount"`
	Finalized               bool   `json:"finalized"`
	FinalizedBy             string `json:"finalized_by,omitempty"`
	FinalizedAt             string `json:"finalized_at,omitempty"`
	ComputedAt              string `json:"computed_at"`
}

func toResultDTO(r *settlement.Result) ResultDTO {
	dto := ResultDTO{
		PeriodID:                string(r.PeriodID),
		EmployeeID:              string(r.EmployeeID),
		TotalActualHours:        r.TotalActualHours.String(),
		WeeklyAverageHours:      r.WeeklyAverageHours.String(),
		ExcessHours:             r.ExcessHours.String(),
		TotalNightHours:         r.TotalNightHours.String(),
		OvertimeAllowanceHours:  r.OvertimeAllowanceHours.String(),
		OvertimeAllowanceAmount: r.OvertimeAllowanceAmount.String(),
		Finalized:               r.Finalized,
		FinalizedBy:             r.FinalizedBy,
		ComputedAt:              r.ComputedAt.Format(time.RFC3339),
	}
	if r.FinalizedAt != nil {
		dto.FinalizedAt = r.FinalizedAt.Format(time.RFC3339)
	}
	return dto
}

type EmployeeFailureDTO struct {
	EmployeeID      string   `json:"employee_id"`
	Error           string   `json:"error"`
	IncompleteDates []string `json:"incomplete_dates,omitempty"`
}

type RunReportDTO struct {
	PeriodID string               `json:"period_id"`
	Results  []ResultDTO          `json:"results"`
	Failures []EmployeeFailureDTO `json:"failures,omitempty"`
}

func toRunReportDTO(report *settlement.RunReport) RunReportDTO {
	dto := RunReportDTO{
		PeriodID: string(report.PeriodID),
		Results:  make([]ResultDTO, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		dto.Results = append(dto.Results, toResultDTO(r))
	}
	for _, f := range report.Failures {
		fd := EmployeeFailureDTO{
			EmployeeID: string(f.EmployeeID),
			Error:      f.Err.Error(),
		}
		for _, d := range f.IncompleteDates {
			fd.IncompleteDates = append(fd.IncompleteDates, d.String())
		}
		dto.Failures = append(dto.Failures, fd)
	}
	return dto
}

type FinalizeRequest struct {
	Actor string `json:"actor"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
