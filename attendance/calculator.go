/*
calculator.go - Daily hour breakdown derivation

PURPOSE:
  Given a canonical day record with both punches present, derive the
  day's hour buckets: total stay, break deduction, net work hours, night
  hours, and the regular/overtime split. Breakdowns are derived rows,
  recomputed whenever the source record changes.

OVERNIGHT SHIFTS:
  If the check-out's local time-of-day is numerically <= the check-in's,
  the shift spans midnight. For internal arithmetic and extended-hour
  display, the check-out hour is represented as hour+24 ("28:45" for
  04:45 the next day) so duration arithmetic stays monotonic. The
  underlying punch instants are untouched.

BREAK DEDUCTION:
  A fixed 1-hour baseline break is always deducted. An additional
  1-hour dinner break is deducted only when the interval spans 19:00
  local AND either the explicit break-taken flag is set, or - fallback
  only, when no flag was captured - the pre-dinner net duration is at
  least 8 hours. An explicit flag always wins over auto-detection, in
  both directions.

NIGHT HOURS:
  The interval is partitioned into whole-hour slices; a slice counts
  when its hour-of-day (mod 24) falls in the night window (default
  22:00-06:00). Hour granularity, not sub-hour-precise: only slices
  fully contained in the interval are counted.
*/
package attendance

import (
	"github.com/shopspring/decimal"
)

// WorkHourBreakdown holds the derived hour buckets for one work day.
// Hour fields are only meaningful when Completeness is Complete; an
// incomplete record yields null hour fields downstream, not an error.
type WorkHourBreakdown struct {
	EmployeeID   EmployeeID
	Date         WorkDate
	Completeness Completeness

	CheckIn  ClockTime // extended notation for overnight check-outs
	CheckOut ClockTime

	TotalStayHours Hours
	BreakHours     Hours
	NetWorkHours   Hours
	NightHours     Hours
	RegularHours   Hours
	OvertimeHours  Hours

	HadDinnerBreak bool
}

// Calculator derives breakdowns from canonical day records. All knobs
// come from the active work policy; zero-value fields fall back to the
// statutory defaults via NewCalculator.
type Calculator struct {
	// Night window, as local hours-of-day. Default 22 -> 6.
	NightStartHour int
	NightEndHour   int

	// BaseBreakHours is always deducted. Default 1.
	BaseBreakHours Hours

	// DinnerBreakHours is deducted when the dinner rule fires. Default 1.
	DinnerBreakHours Hours

	// DinnerSpanHour is the local hour the interval must span for any
	// dinner deduction. Default 19 (19:00).
	DinnerSpanHour int

	// AutoDinnerThreshold is the minimum pre-dinner net duration that
	// triggers the fallback deduction when no flag was captured.
	// Default 8.
	AutoDinnerThreshold Hours

	// RegularDailyHours caps the regular bucket; anything above is
	// overtime. Default 8.
	RegularDailyHours Hours
}

func NewCalculator() *Calculator {
	return &Calculator{
		NightStartHour:      22,
		NightEndHour:        6,
		BaseBreakHours:      NewHoursFromInt(1),
		DinnerBreakHours:    NewHoursFromInt(1),
		DinnerSpanHour:      19,
		AutoDinnerThreshold: NewHoursFromInt(8),
		RegularDailyHours:   NewHoursFromInt(8),
	}
}

// Breakdown computes the hour buckets for a day record.
//
// An incomplete record is not an error: the result carries the record's
// completeness and zeroed hour fields, and the caller surfaces it in
// the exceptions queue instead.
func (c *Calculator) Breakdown(rec *CanonicalDayRecord) (*WorkHourBreakdown, error) {
	b := &WorkHourBreakdown{
		EmployeeID:   rec.EmployeeID,
		Date:         rec.Date,
		Completeness: rec.Completeness(),
	}
	if b.Completeness != CompletenessComplete {
		return b, nil
	}

	if rec.CheckOut.At.Before(rec.CheckIn.At) {
		return nil, &InvalidRangeError{
			EmployeeID: rec.EmployeeID,
			WorkDate:   rec.Date,
			CheckIn:    ClockTimeOf(rec.CheckIn.At),
			CheckOut:   ClockTimeOf(rec.CheckOut.At),
		}
	}

	in := ClockTimeOf(rec.CheckIn.At)
	out := ClockTimeOf(rec.CheckOut.At)

	// Overnight: the check-out's local time-of-day is numerically <= the
	// check-in's, so the shift crossed midnight. Extend the check-out
	// hour by 24 per day crossed so duration arithmetic stays monotonic.
	for d := WorkDateOf(rec.CheckIn.At); d.Before(WorkDateOf(rec.CheckOut.At)); d = d.AddDays(1) {
		out = out.Extend()
	}
	b.CheckIn = in
	b.CheckOut = out

	inH := in.FractionalHours()
	outH := out.FractionalHours()

	stay := Hours{Value: outH.Sub(inH)}
	b.TotalStayHours = stay.Round1()

	// Breaks: 1h baseline always, dinner per flag/fallback.
	breaks := c.BaseBreakHours
	dinner := c.dinnerDeduction(rec, inH, outH, stay)
	breaks = breaks.Add(dinner)
	b.HadDinnerBreak = dinner.IsPositive()
	b.BreakHours = breaks.Round1()

	net := stay.Sub(breaks)
	if net.IsNegative() {
		net = ZeroHours()
	}
	b.NetWorkHours = net.Round1()

	b.NightHours = NewHoursFromInt(c.nightSlices(inH, outH)).Round1()

	b.RegularHours = net.Min(c.RegularDailyHours).Round1()
	b.OvertimeHours = net.Sub(c.RegularDailyHours).Max(ZeroHours()).Round1()

	return b, nil
}

// dinnerDeduction applies the dinner-break rule. The interval must span
// the dinner hour in every case; the explicit flag decides when present,
// duration detection applies only when it is absent.
func (c *Calculator) dinnerDeduction(rec *CanonicalDayRecord, inH, outH decimal.Decimal, stay Hours) Hours {
	if !c.spansDinner(inH, outH) {
		return ZeroHours()
	}
	if rec.HadDinnerBreak != nil {
		if *rec.HadDinnerBreak {
			return c.DinnerBreakHours
		}
		return ZeroHours()
	}
	preDinnerNet := stay.Sub(c.BaseBreakHours)
	if preDinnerNet.GreaterThanOrEqual(c.AutoDinnerThreshold) {
		return c.DinnerBreakHours
	}
	return ZeroHours()
}

// spansDinner reports whether the interval covers the first dinner hour
// after check-in. A shift starting at 23:00 would next see 19:00 at
// extended hour 43; an interval ending at 30:00 does not span it.
func (c *Calculator) spansDinner(inH, outH decimal.Decimal) bool {
	dinner := decimal.NewFromInt(int64(c.DinnerSpanHour))
	if inH.GreaterThan(dinner) {
		dinner = dinner.Add(decimal.NewFromInt(24))
	}
	return outH.GreaterThan(dinner)
}

// nightSlices counts the whole-hour slices of [inH, outH) fully inside
// the night window. The window may wrap midnight (the 22-06 default) or
// not (e.g. 00-06).
func (c *Calculator) nightSlices(inH, outH decimal.Decimal) int {
	first := ceilInt(inH)
	last := floorInt(outH)

	count := 0
	for h := first; h+1 <= last; h++ {
		hod := h % 24
		var night bool
		if c.NightStartHour < c.NightEndHour {
			night = hod >= c.NightStartHour && hod < c.NightEndHour
		} else {
			night = hod >= c.NightStartHour || hod < c.NightEndHour
		}
		if night {
			count++
		}
	}
	return count
}

func floorInt(d decimal.Decimal) int {
	return int(d.Floor().IntPart())
}

func ceilInt(d decimal.Decimal) int {
	return int(d.Ceil().IntPart())
}
