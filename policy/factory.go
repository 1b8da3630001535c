/*
factory.go - JSON to WorkPolicy conversion

PURPOSE:
  Converts JSON policy definitions into WorkPolicy objects. HR defines
  policies in JSON (admin tooling, version control, database storage);
  the factory validates the structure, applies the statutory defaults
  for omitted knobs, and produces the typed policy the engine consumes.

JSON SCHEMA:
  {
    "id": "flex-2026-q1",
    "effective_from": "2026-01-01",
    "effective_to": "2026-03-25",
    "standard_weekly_hours": 40,
    "max_daily_hours": 12,
    "max_weekly_hours": 52,
    "night_start_hour": 22,
    "night_end_hour": 6,
    "base_break_hours": 1,
    "dinner_break_hours": 1,
    "overtime_multiplier": 1.5,
    "default_hourly_rate": 25,
    "hourly_rates": {"emp-1": 30},
    "source_priority": ["terminal", "web_client", "manual"]
  }
*/
package policy

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type PolicyJSON struct {
	ID            string `json:"id"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to"`

	StandardWeeklyHours float64 `json:"standard_weekly_hours"`
	MaxDailyHours       float64 `json:"max_daily_hours"`
	MaxWeeklyHours      float64 `json:"max_weekly_hours"`

	NightStartHour *int `json:"night_start_hour"`
	NightEndHour   *int `json:"night_end_hour"`

	BaseBreakHours      *float64 `json:"base_break_hours"`
	DinnerBreakHours    *float64 `json:"dinner_break_hours"`
	DinnerSpanHour      *int     `json:"dinner_span_hour"`
	AutoDinnerThreshold *float64 `json:"auto_dinner_threshold"`

	RegularDailyHours  *float64 `json:"regular_daily_hours"`
	OvertimeMultiplier *float64 `json:"overtime_multiplier"`

	DefaultHourlyRate *float64           `json:"default_hourly_rate"`
	HourlyRates       map[string]float64 `json:"hourly_rates"`

	// Highest priority first.
	SourcePriority []string `json:"source_priority"`
}

// =============================================================================
// FACTORY
// =============================================================================

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

// Parse converts a JSON policy definition into a WorkPolicy. Omitted
// knobs inherit the statutory defaults; malformed dates or unknown
// sources are rejected.
func (f *Factory) Parse(data []byte) (*WorkPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("invalid policy JSON: %w", err)
	}
	if pj.ID == "" {
		return nil, fmt.Errorf("policy JSON missing id")
	}

	from, err := attendance.ParseWorkDate(pj.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("policy %s: effective_from: %w", pj.ID, err)
	}
	to, err := attendance.ParseWorkDate(pj.EffectiveTo)
	if err != nil {
		return nil, fmt.Errorf("policy %s: effective_to: %w", pj.ID, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("policy %s: effective_to before effective_from", pj.ID)
	}

	p := Default()
	p.ID = pj.ID
	p.EffectiveFrom = from
	p.EffectiveTo = to

	if pj.StandardWeeklyHours > 0 {
		p.StandardWeeklyHours = attendance.NewHours(pj.StandardWeeklyHours)
	}
	if pj.MaxDailyHours > 0 {
		p.MaxDailyHours = attendance.NewHours(pj.MaxDailyHours)
	}
	if pj.MaxWeeklyHours > 0 {
		p.MaxWeeklyHours = attendance.NewHours(pj.MaxWeeklyHours)
	}
	if pj.NightStartHour != nil {
		p.NightStartHour = *pj.NightStartHour
	}
	if pj.NightEndHour != nil {
		p.NightEndHour = *pj.NightEndHour
	}
	if pj.BaseBreakHours != nil {
		p.BaseBreakHours = attendance.NewHours(*pj.BaseBreakHours)
	}
	if pj.DinnerBreakHours != nil {
		p.DinnerBreakHours = attendance.NewHours(*pj.DinnerBreakHours)
	}
	if pj.DinnerSpanHour != nil {
		p.DinnerSpanHour = *pj.DinnerSpanHour
	}
	if pj.AutoDinnerThreshold != nil {
		p.AutoDinnerThreshold = attendance.NewHours(*pj.AutoDinnerThreshold)
	}
	if pj.RegularDailyHours != nil {
		p.RegularDailyHours = attendance.NewHours(*pj.RegularDailyHours)
	}
	if pj.OvertimeMultiplier != nil {
		p.OvertimeMultiplier = decimal.NewFromFloat(*pj.OvertimeMultiplier)
	}
	if pj.DefaultHourlyRate != nil {
		rate := decimal.NewFromFloat(*pj.DefaultHourlyRate)
		p.DefaultHourlyRate = &rate
	}
	if len(pj.HourlyRates) > 0 {
		p.HourlyRates = make(map[attendance.EmployeeID]decimal.Decimal, len(pj.HourlyRates))
		for emp, rate := range pj.HourlyRates {
			p.HourlyRates[attendance.EmployeeID(emp)] = decimal.NewFromFloat(rate)
		}
	}
	if len(pj.SourcePriority) > 0 {
		order, err := parsePriority(pj.SourcePriority)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", pj.ID, err)
		}
		p.SourcePriority = order
	}

	return p, nil
}

func parsePriority(sources []string) (attendance.PriorityOrder, error) {
	known := map[string]attendance.Source{
		string(attendance.SourceTerminal):  attendance.SourceTerminal,
		string(attendance.SourceWebClient): attendance.SourceWebClient,
		string(attendance.SourceManual):    attendance.SourceManual,
	}
	order := make(attendance.PriorityOrder, len(sources))
	for i, s := range sources {
		src, ok := known[s]
		if !ok {
			return nil, fmt.Errorf("unknown source %q in source_priority", s)
		}
		order[src] = len(sources) - i
	}
	return order, nil
}
