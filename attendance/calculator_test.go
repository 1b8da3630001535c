package attendance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func boolPtr(b bool) *bool { return &b }

func stampAt(t time.Time, source attendance.Source, id string) *attendance.PunchStamp {
	return &attendance.PunchStamp{At: t, Source: source, PunchID: id}
}

func record(emp string, date attendance.WorkDate, in, out time.Time) *attendance.CanonicalDayRecord {
	return &attendance.CanonicalDayRecord{
		EmployeeID: attendance.EmployeeID(emp),
		Date:       date,
		CheckIn:    stampAt(in, attendance.SourceTerminal, "p-in"),
		CheckOut:   stampAt(out, attendance.SourceTerminal, "p-out"),
	}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}

var march2 = attendance.NewWorkDate(2026, time.March, 2)

// =============================================================================
// STANDARD DAY
// =============================================================================

func TestBreakdown_StandardDay(t *testing.T) {
	// GIVEN: 09:00-18:00 shift
	// WHEN: Deriving the breakdown
	// THEN: 9h stay, 1h base break, 8h net, all regular, no overtime

	rec := record("emp-1", march2, at(2, 9, 0), at(2, 18, 0))

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "9", b.TotalStayHours.String())
	assert.Equal(t, "1", b.BreakHours.String())
	assert.Equal(t, "8", b.NetWorkHours.String())
	assert.Equal(t, "0", b.NightHours.String())
	assert.Equal(t, "8", b.RegularHours.String())
	assert.Equal(t, "0", b.OvertimeHours.String())
	assert.False(t, b.HadDinnerBreak)
}

func TestBreakdown_DinnerFlagWithoutSpanDoesNotDeduct(t *testing.T) {
	// GIVEN: 09:00-18:00 with the break-taken flag set
	// WHEN: Deriving the breakdown
	// THEN: No dinner deduction; the interval never spans 19:00

	rec := record("emp-1", march2, at(2, 9, 0), at(2, 18, 0))
	rec.HadDinnerBreak = boolPtr(true)

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "1", b.BreakHours.String())
	assert.False(t, b.HadDinnerBreak)
}

// =============================================================================
// DINNER BREAK RULE
// =============================================================================

func TestBreakdown_DinnerAutoDetection(t *testing.T) {
	// GIVEN: 09:00-21:30 spanning 19:00, no explicit flag
	// WHEN: Deriving the breakdown
	// THEN: Pre-dinner net 11.5h >= 8h triggers the fallback deduction

	rec := record("emp-1", march2, at(2, 9, 0), at(2, 21, 30))

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "12.5", b.TotalStayHours.String())
	assert.Equal(t, "2", b.BreakHours.String())
	assert.Equal(t, "10.5", b.NetWorkHours.String())
	assert.Equal(t, "8", b.RegularHours.String())
	assert.Equal(t, "2.5", b.OvertimeHours.String())
	assert.True(t, b.HadDinnerBreak)
}

func TestBreakdown_ExplicitFlagOverridesAutoDetection(t *testing.T) {
	// GIVEN: A long shift spanning 19:00 where the fallback would deduct
	// WHEN: The source explicitly said no break was taken
	// THEN: No dinner deduction; the flag wins over duration detection

	rec := record("emp-1", march2, at(2, 9, 0), at(2, 21, 30))
	rec.HadDinnerBreak = boolPtr(false)

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "1", b.BreakHours.String())
	assert.Equal(t, "11.5", b.NetWorkHours.String())
	assert.False(t, b.HadDinnerBreak)
}

func TestBreakdown_ExplicitFlagForcesShortDinner(t *testing.T) {
	// GIVEN: 13:00-20:00 spanning 19:00 but only 6h pre-dinner net
	// WHEN: The source explicitly said the break was taken
	// THEN: The dinner hour is deducted even below the auto threshold

	rec := record("emp-1", march2, at(2, 13, 0), at(2, 20, 0))
	rec.HadDinnerBreak = boolPtr(true)

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "2", b.BreakHours.String())
	assert.Equal(t, "5", b.NetWorkHours.String())
	assert.True(t, b.HadDinnerBreak)
}

func TestBreakdown_ShortEveningShiftNoAutoDinner(t *testing.T) {
	// GIVEN: 14:00-20:00 spanning 19:00, no flag, 5h pre-dinner net
	// WHEN: Deriving the breakdown
	// THEN: Below the 8h threshold, only the base break is deducted

	rec := record("emp-1", march2, at(2, 14, 0), at(2, 20, 0))

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "1", b.BreakHours.String())
	assert.Equal(t, "5", b.NetWorkHours.String())
}

// =============================================================================
// OVERNIGHT SHIFTS AND NIGHT HOURS
// =============================================================================

func TestBreakdown_OvernightShiftExtendedNotation(t *testing.T) {
	// GIVEN: 22:00 check-in, 06:00 check-out the next calendar day
	// WHEN: Deriving the breakdown
	// THEN: Check-out renders as 30:00 and every worked hour is night

	rec := record("emp-1", march2, at(2, 22, 0), at(3, 6, 0))

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "22:00", b.CheckIn.String())
	assert.Equal(t, "30:00", b.CheckOut.String())
	assert.Equal(t, "8", b.TotalStayHours.String())
	assert.Equal(t, "7", b.NetWorkHours.String())
	assert.Equal(t, "8", b.NightHours.String())
	assert.Equal(t, "7", b.RegularHours.String())
	assert.Equal(t, "0", b.OvertimeHours.String())
}

func TestBreakdown_EveningIntoNight(t *testing.T) {
	// GIVEN: 20:00 check-in, 04:45 check-out the next day
	// WHEN: Deriving the breakdown
	// THEN: Extended check-out 28:45; six whole night slices (22-04)

	rec := record("emp-1", march2, at(2, 20, 0), at(3, 4, 45))

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)

	assert.Equal(t, "28:45", b.CheckOut.String())
	assert.Equal(t, "8.75", b.TotalStayHours.String())
	assert.Equal(t, "7.8", b.NetWorkHours.String())
	assert.Equal(t, "6", b.NightHours.String())
}

func TestBreakdown_NonWrappingNightWindow(t *testing.T) {
	// GIVEN: A policy night window of 00:00-06:00, no midnight wrap
	// WHEN: Deriving a daytime shift and an overnight shift
	// THEN: Daytime hours never count; only 00-06 slices do

	calc := attendance.NewCalculator()
	calc.NightStartHour = 0
	calc.NightEndHour = 6

	day, err := calc.Breakdown(record("emp-1", march2, at(2, 9, 0), at(2, 18, 0)))
	require.NoError(t, err)
	assert.Equal(t, "0", day.NightHours.String())

	overnight, err := calc.Breakdown(record("emp-1", march2, at(2, 22, 0), at(3, 6, 0)))
	require.NoError(t, err)
	assert.Equal(t, "6", overnight.NightHours.String())
}

func TestBreakdown_RegularPlusOvertimeEqualsNet(t *testing.T) {
	// GIVEN: A range of shift shapes
	// WHEN: Deriving each breakdown
	// THEN: regular + overtime always reconstructs net work hours

	cases := []struct {
		name    string
		in, out time.Time
	}{
		{"standard", at(2, 9, 0), at(2, 18, 0)},
		{"long", at(2, 8, 0), at(2, 22, 15)},
		{"overnight", at(2, 21, 30), at(3, 7, 0)},
		{"short", at(2, 10, 0), at(2, 13, 30)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := attendance.NewCalculator().Breakdown(record("emp-1", march2, tc.in, tc.out))
			require.NoError(t, err)
			sum := b.RegularHours.Add(b.OvertimeHours)
			assert.True(t, sum.Value.Equal(b.NetWorkHours.Value),
				"regular %s + overtime %s != net %s", b.RegularHours, b.OvertimeHours, b.NetWorkHours)
		})
	}
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestBreakdown_CheckOutBeforeCheckIn(t *testing.T) {
	// GIVEN: A record whose check-out instant precedes its check-in
	// WHEN: Deriving the breakdown
	// THEN: InvalidRangeError, never a negative duration

	rec := record("emp-1", march2, at(2, 18, 0), at(2, 9, 0))

	_, err := attendance.NewCalculator().Breakdown(rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, attendance.ErrInvalidTimeRange))

	var ir *attendance.InvalidRangeError
	require.True(t, errors.As(err, &ir))
	assert.Equal(t, attendance.EmployeeID("emp-1"), ir.EmployeeID)
}

func TestBreakdown_IncompleteRecordIsNotAnError(t *testing.T) {
	// GIVEN: A record with a check-in but no check-out
	// WHEN: Deriving the breakdown
	// THEN: Completeness open, zeroed hour fields, no error

	rec := &attendance.CanonicalDayRecord{
		EmployeeID: "emp-1",
		Date:       march2,
		CheckIn:    stampAt(at(2, 9, 0), attendance.SourceTerminal, "p-in"),
	}

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)
	assert.Equal(t, attendance.CompletenessOpen, b.Completeness)
	assert.True(t, b.NetWorkHours.IsZero())
}

func TestBreakdown_ShiftShorterThanBreaksClampsToZero(t *testing.T) {
	// GIVEN: A 45-minute stay
	// WHEN: Deriving the breakdown
	// THEN: Net clamps to zero instead of going negative

	rec := record("emp-1", march2, at(2, 9, 0), at(2, 9, 45))

	b, err := attendance.NewCalculator().Breakdown(rec)
	require.NoError(t, err)
	assert.Equal(t, "0", b.NetWorkHours.String())
	assert.Equal(t, "0", b.RegularHours.String())
}
