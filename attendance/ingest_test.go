package attendance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/policy"
)

func newIngestor() (*attendance.Ingestor, *store.Memory) {
	mem := store.NewMemory()
	return attendance.NewIngestor(mem, mem, mem, mem), mem
}

func punch(id string, src attendance.Source, code string) attendance.PunchEvent {
	return attendance.PunchEvent{
		ID:         id,
		EmployeeID: "emp-1",
		Timestamp:  at(2, 9, 0),
		Source:     src,
		RawCode:    code,
	}
}

func TestIngest_AcceptedPunchRecomputesBreakdown(t *testing.T) {
	// GIVEN: A check-in and a check-out for the same day
	// WHEN: Both are ingested
	// THEN: The derived breakdown is stored and complete

	ing, mem := newIngestor()
	ctx := context.Background()

	v, err := ing.Ingest(ctx, punch("p-in", attendance.SourceTerminal, "release"))
	require.NoError(t, err)
	assert.True(t, v.Accepted)
	assert.Equal(t, attendance.OutcomeInserted, v.Outcome)

	out := punch("p-out", attendance.SourceTerminal, "set")
	out.Timestamp = at(2, 18, 0)
	v, err = ing.Ingest(ctx, out)
	require.NoError(t, err)
	assert.True(t, v.Accepted)

	b, err := mem.GetBreakdown(ctx, "emp-1", march2)
	require.NoError(t, err)
	assert.Equal(t, attendance.CompletenessComplete, b.Completeness)
	assert.Equal(t, "8", b.NetWorkHours.String())
}

func TestIngest_UnmappedCodeRejectedAndQueued(t *testing.T) {
	// GIVEN: A punch with an unknown terminal code
	// WHEN: Ingested
	// THEN: Rejected verdict AND a review entry; never silently dropped

	ing, mem := newIngestor()
	ctx := context.Background()

	v, err := ing.Ingest(ctx, punch("p-1", attendance.SourceTerminal, "maintenance"))
	require.NoError(t, err)
	assert.False(t, v.Accepted)
	assert.NotEmpty(t, v.Reason)

	entries, err := mem.ListReviews(ctx, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, attendance.ReviewUnmappedCode, entries[0].Reason)
}

func TestIngest_PassageIsIgnoredButAccepted(t *testing.T) {
	// GIVEN: A plain door passage from the terminal
	// WHEN: Ingested
	// THEN: Accepted with the ignored verdict; no record is touched

	ing, mem := newIngestor()
	ctx := context.Background()

	v, err := ing.Ingest(ctx, punch("p-1", attendance.SourceTerminal, "passage"))
	require.NoError(t, err)
	assert.True(t, v.Accepted)
	assert.True(t, v.Ignored)

	_, err = mem.GetDay(ctx, "emp-1", march2)
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
}

func TestIngest_DuplicateVerdictCarriesConflict(t *testing.T) {
	// GIVEN: A canonical terminal check-in at 09:00
	// WHEN: The web client submits a check-in at 09:02
	// THEN: The reject verdict names the conflicting punch

	ing, _ := newIngestor()
	ctx := context.Background()

	_, err := ing.Ingest(ctx, punch("p-term", attendance.SourceTerminal, "release"))
	require.NoError(t, err)

	web := punch("p-web", attendance.SourceWebClient, "check_in")
	web.Timestamp = at(2, 9, 2)
	v, err := ing.Ingest(ctx, web)
	require.NoError(t, err)

	assert.False(t, v.Accepted)
	assert.Equal(t, attendance.OutcomeDuplicate, v.Outcome)
	assert.Equal(t, "p-term", v.ConflictPunchID)
}

func TestIngest_PolicyRulesGovernPipeline(t *testing.T) {
	// GIVEN: A policy putting manual entries above the terminal and
	//        deducting only a half-hour base break
	// WHEN: A terminal and a manual check-in race for the slot and the
	//       day completes
	// THEN: The manual punch wins the merge and the breakdown carries
	//       the policy's break deduction

	ing, mem := newIngestor()
	ctx := context.Background()

	pol := policy.Default()
	pol.SourcePriority = attendance.PriorityOrder{
		attendance.SourceManual:    3,
		attendance.SourceWebClient: 2,
		attendance.SourceTerminal:  1,
	}
	pol.BaseBreakHours = attendance.NewHours(0.5)
	ing.Rules = policy.Rules(policy.NewStaticProvider(pol))

	_, err := ing.Ingest(ctx, punch("p-term", attendance.SourceTerminal, "release"))
	require.NoError(t, err)

	v, err := ing.Ingest(ctx, punch("p-man", attendance.SourceManual, "in"))
	require.NoError(t, err)
	assert.Equal(t, attendance.OutcomeMerged, v.Outcome)

	rec, err := mem.GetDay(ctx, "emp-1", march2)
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceManual, rec.CheckIn.Source)
	assert.Equal(t, "p-man", rec.CheckIn.PunchID)

	out := punch("p-out", attendance.SourceTerminal, "set")
	out.Timestamp = at(2, 18, 0)
	_, err = ing.Ingest(ctx, out)
	require.NoError(t, err)

	b, err := mem.GetBreakdown(ctx, "emp-1", march2)
	require.NoError(t, err)
	assert.Equal(t, "0.5", b.BreakHours.String())
	assert.Equal(t, "8.5", b.NetWorkHours.String())
}

func TestIngest_MissingIDGetsGenerated(t *testing.T) {
	// GIVEN: A punch submitted without an ID
	// WHEN: Ingested
	// THEN: The verdict carries a generated idempotency key

	ing, _ := newIngestor()

	ev := punch("", attendance.SourceWebClient, "check_in")
	v, err := ing.Ingest(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, v.Accepted)
	assert.NotEmpty(t, v.PunchID)
}
