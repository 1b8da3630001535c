/*
Package attendance provides the core punch reconciliation engine.

PURPOSE:
  This package contains the types and algorithms that turn raw clock-in
  events from uncoordinated capture sources into one authoritative daily
  timeline per employee: normalization of source-specific action codes,
  deduplication of conflicting punches, and derivation of regular/night/
  overtime hour buckets for a single work day.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: A duration quantity backed by decimal.Decimal
  - PunchEvent: An immutable raw capture event (terminal, web, manual)
  - WorkDate: A calendar work day, usable as a map key
  - ClockTime: A local time-of-day supporting extended-hour notation
    for overnight shifts ("28:45" = 04:45 the next day)

DESIGN PRINCIPLES:
  1. Immutability: PunchEvents are never modified after ingestion
  2. Precision: decimal.Decimal for all hour arithmetic, no float drift
  3. Type Safety: Strong typing for employee IDs, sources, and actions
  4. Auditability: Every canonical record traces back to its punches

SEE ALSO:
  - normalizer.go: Source code vocabulary mapping
  - dedup.go: Duplicate/conflict resolution
  - calculator.go: Daily hour breakdown derivation
*/
package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Duration quantity with decimal precision
// =============================================================================

type Hours struct {
	Value decimal.Decimal
}

func NewHours(value float64) Hours {
	return Hours{Value: decimal.NewFromFloat(value)}
}

func NewHoursFromInt(value int) Hours {
	return Hours{Value: decimal.NewFromInt(int64(value))}
}

func ZeroHours() Hours { return Hours{Value: decimal.Zero} }

// HoursFromDuration converts a time.Duration to fractional hours.
func HoursFromDuration(d time.Duration) Hours {
	return Hours{Value: decimal.NewFromFloat(d.Minutes()).Div(decimal.NewFromInt(60))}
}

func (h Hours) Add(o Hours) Hours          { return Hours{Value: h.Value.Add(o.Value)} }
func (h Hours) Sub(o Hours) Hours          { return Hours{Value: h.Value.Sub(o.Value)} }
func (h Hours) Mul(s decimal.Decimal) Hours { return Hours{Value: h.Value.Mul(s)} }
func (h Hours) Neg() Hours                 { return Hours{Value: h.Value.Neg()} }
func (h Hours) IsZero() bool               { return h.Value.IsZero() }
func (h Hours) IsNegative() bool           { return h.Value.IsNegative() }
func (h Hours) IsPositive() bool           { return h.Value.IsPositive() }
func (h Hours) GreaterThan(o Hours) bool   { return h.Value.GreaterThan(o.Value) }
func (h Hours) LessThan(o Hours) bool      { return h.Value.LessThan(o.Value) }
func (h Hours) GreaterThanOrEqual(o Hours) bool { return h.Value.GreaterThanOrEqual(o.Value) }
func (h Hours) Float64() float64           { f, _ := h.Value.Float64(); return f }

func (h Hours) Min(o Hours) Hours {
	if h.LessThan(o) {
		return h
	}
	return o
}

func (h Hours) Max(o Hours) Hours {
	if h.GreaterThan(o) {
		return h
	}
	return o
}

// Round1 rounds to one decimal place. All hour fields exposed by the
// engine are rounded this way before leaving the calculator.
func (h Hours) Round1() Hours { return Hours{Value: h.Value.Round(1)} }

func (h Hours) String() string { return h.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type PeriodID string

// =============================================================================
// SOURCES AND ACTIONS
// =============================================================================

// Source identifies the capture channel a punch arrived from.
type Source string

const (
	SourceTerminal  Source = "terminal"   // badge terminal feed
	SourceWebClient Source = "web_client" // web check-in/out action
	SourceManual    Source = "manual"     // manual-entry form
)

// Action is the canonical punch action after normalization.
type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"

	// ActionIgnored marks non-work building access (e.g., a door passage).
	// Ignored punches never reach the deduplicator.
	ActionIgnored Action = "ignored"
)

// =============================================================================
// PUNCH EVENT - Raw capture event, immutable once ingested
// =============================================================================

type PunchEvent struct {
	ID         string // idempotency key; redelivery of the same ID is a no-op
	EmployeeID EmployeeID
	Timestamp  time.Time // absolute instant with offset
	Source     Source
	RawCode    string // source-specific action vocabulary, mapped by the normalizer

	// BreakTaken is the optional dinner-break flag. nil means the source
	// did not say; the calculator then falls back to duration detection.
	BreakTaken *bool
}

// NormalizedPunch is a PunchEvent with its canonical action and work date
// resolved. This is what the deduplicator operates on.
type NormalizedPunch struct {
	PunchEvent
	Action   Action
	WorkDate WorkDate
}

// =============================================================================
// WORK DATE - Calendar day a shift is attributed to
// =============================================================================

// WorkDate identifies the work day a punch belongs to. An overnight
// check-out at 04:45 is attributed to the previous calendar day, so the
// work date is NOT always the punch's calendar date.
type WorkDate struct {
	Year  int
	Month time.Month
	Day   int
}

func NewWorkDate(year int, month time.Month, day int) WorkDate {
	return WorkDate{Year: year, Month: month, Day: day}
}

func WorkDateOf(t time.Time) WorkDate {
	return WorkDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func ParseWorkDate(s string) (WorkDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return WorkDate{}, fmt.Errorf("invalid work date %q: %w", s, err)
	}
	return WorkDateOf(t), nil
}

// Time returns midnight UTC of the work date. Used for range queries.
func (d WorkDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d WorkDate) String() string { return d.Time().Format("2006-01-02") }

func (d WorkDate) AddDays(n int) WorkDate { return WorkDateOf(d.Time().AddDate(0, 0, n)) }

func (d WorkDate) Before(o WorkDate) bool { return d.Time().Before(o.Time()) }
func (d WorkDate) After(o WorkDate) bool  { return d.Time().After(o.Time()) }
func (d WorkDate) Equal(o WorkDate) bool  { return d == o }

func (d WorkDate) BeforeOrEqual(o WorkDate) bool { return !d.After(o) }
func (d WorkDate) AfterOrEqual(o WorkDate) bool  { return !d.Before(o) }

// DaysBetween returns the number of calendar days in [from, to] inclusive.
func DaysBetween(from, to WorkDate) int {
	return int(to.Time().Sub(from.Time()).Hours()/24) + 1
}

// =============================================================================
// CLOCK TIME - Local time-of-day with extended-hour notation
// =============================================================================

// ClockTime is a local time-of-day whose Hour may exceed 23 to express
// an overnight shift in extended notation: 04:45 the day after a shift
// started renders as "28:45". Duration arithmetic over extended hours
// stays monotonic; the underlying punch instants are untouched.
type ClockTime struct {
	Hour   int // 0..47 in practice (extended past 24 for overnight)
	Minute int
}

func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// Extend returns the clock time shifted one day forward in extended
// notation (hour + 24).
func (c ClockTime) Extend() ClockTime { return ClockTime{Hour: c.Hour + 24, Minute: c.Minute} }

// FractionalHours returns the clock time as fractional hours since the
// work day's midnight (e.g., 28:45 -> 28.75).
func (c ClockTime) FractionalHours() decimal.Decimal {
	return decimal.NewFromInt(int64(c.Hour)).
		Add(decimal.NewFromInt(int64(c.Minute)).Div(decimal.NewFromInt(60)))
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }
