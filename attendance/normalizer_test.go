package attendance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

func TestNormalize_VocabularyMapping(t *testing.T) {
	// GIVEN: Raw codes from each capture source
	// WHEN: Normalizing
	// THEN: Each maps onto its canonical action

	cases := []struct {
		source attendance.Source
		code   string
		want   attendance.Action
	}{
		{attendance.SourceTerminal, "release", attendance.ActionCheckIn},
		{attendance.SourceTerminal, "set", attendance.ActionCheckOut},
		{attendance.SourceTerminal, "passage", attendance.ActionIgnored},
		{attendance.SourceWebClient, "check_in", attendance.ActionCheckIn},
		{attendance.SourceWebClient, "check_out", attendance.ActionCheckOut},
		{attendance.SourceManual, "in", attendance.ActionCheckIn},
		{attendance.SourceManual, "out", attendance.ActionCheckOut},
	}

	n := attendance.NewNormalizer()
	for _, tc := range cases {
		t.Run(string(tc.source)+"/"+tc.code, func(t *testing.T) {
			p, err := n.Normalize(attendance.PunchEvent{
				ID:         "p-1",
				EmployeeID: "emp-1",
				Timestamp:  at(2, 9, 0),
				Source:     tc.source,
				RawCode:    tc.code,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Action)
		})
	}
}

func TestNormalize_UnmappedCode(t *testing.T) {
	// GIVEN: A terminal code outside the vocabulary
	// WHEN: Normalizing
	// THEN: UnmappedCodeError naming the source and code; never a guess

	n := attendance.NewNormalizer()
	_, err := n.Normalize(attendance.PunchEvent{
		ID:         "p-1",
		EmployeeID: "emp-1",
		Timestamp:  at(2, 9, 0),
		Source:     attendance.SourceTerminal,
		RawCode:    "maintenance",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, attendance.ErrUnmappedActionCode))

	var uc *attendance.UnmappedCodeError
	require.True(t, errors.As(err, &uc))
	assert.Equal(t, "maintenance", uc.RawCode)
	assert.Equal(t, attendance.SourceTerminal, uc.Source)
}

func TestNormalize_UnknownSource(t *testing.T) {
	// GIVEN: A punch from a source with no vocabulary table
	// WHEN: Normalizing
	// THEN: UnmappedCodeError

	n := attendance.NewNormalizer()
	_, err := n.Normalize(attendance.PunchEvent{
		ID:        "p-1",
		Timestamp: at(2, 9, 0),
		Source:    attendance.Source("fax"),
		RawCode:   "in",
	})
	assert.True(t, errors.Is(err, attendance.ErrUnmappedActionCode))
}

func TestNormalize_OvernightCheckOutAttribution(t *testing.T) {
	// GIVEN: A check-out captured at 04:45
	// WHEN: Normalizing
	// THEN: The punch is attributed to the previous work day

	n := attendance.NewNormalizer()
	p, err := n.Normalize(attendance.PunchEvent{
		ID:         "p-1",
		EmployeeID: "emp-1",
		Timestamp:  time.Date(2026, time.March, 3, 4, 45, 0, 0, time.UTC),
		Source:     attendance.SourceTerminal,
		RawCode:    "set",
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.NewWorkDate(2026, time.March, 2), p.WorkDate)
}

func TestNormalize_EarlyCheckInKeepsItsDate(t *testing.T) {
	// GIVEN: A check-in captured at 05:30
	// WHEN: Normalizing
	// THEN: Check-ins always keep their calendar date

	n := attendance.NewNormalizer()
	p, err := n.Normalize(attendance.PunchEvent{
		ID:         "p-1",
		EmployeeID: "emp-1",
		Timestamp:  time.Date(2026, time.March, 3, 5, 30, 0, 0, time.UTC),
		Source:     attendance.SourceTerminal,
		RawCode:    "release",
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.NewWorkDate(2026, time.March, 3), p.WorkDate)
}
