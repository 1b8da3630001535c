package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/settlement"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type env struct {
	router http.Handler
	mem    *store.Memory
	setl   *settlement.MemoryStore
}

func newEnv(t *testing.T) *env {
	mem := store.NewMemory()
	setl := settlement.NewMemoryStore()

	pol := policy.Default()
	rate := decimal.NewFromInt(20)
	pol.DefaultHourlyRate = &rate
	policies := policy.NewCachingProvider(policy.NewStaticProvider(pol), time.Hour)

	ingestor := attendance.NewIngestor(mem, mem, mem, mem)
	ingestor.Rules = policy.Rules(policies)
	aggregator := settlement.NewAggregator(mem, mem, setl, policies)
	handler := api.NewHandler(ingestor, mem, mem, mem, aggregator, setl, policies)

	return &env{router: api.NewRouter(handler), mem: mem, setl: setl}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:50000"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func punchBody(id, emp, ts, source, code string) map[string]any {
	return map[string]any{
		"id":          id,
		"employee_id": emp,
		"timestamp":   ts,
		"source":      source,
		"code":        code,
	}
}

// =============================================================================
// PUNCH INGESTION
// =============================================================================

func TestSubmitPunch_Insert(t *testing.T) {
	// GIVEN: A fresh day
	// WHEN: A terminal check-in is posted
	// THEN: 201 with an accepted inserted verdict

	e := newEnv(t)
	rec := e.do(t, "POST", "/api/punches",
		punchBody("p-1", "emp-1", "2026-03-02T09:00:00Z", "terminal", "release"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var v map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, true, v["accepted"])
	assert.Equal(t, "inserted", v["outcome"])
}

func TestSubmitPunch_DuplicateVerdict(t *testing.T) {
	// GIVEN: A canonical terminal check-in at 09:00
	// WHEN: The web client posts a check-in at 09:02
	// THEN: 200 with a rejected verdict naming the conflict

	e := newEnv(t)
	e.do(t, "POST", "/api/punches",
		punchBody("p-term", "emp-1", "2026-03-02T09:00:00Z", "terminal", "release"))

	rec := e.do(t, "POST", "/api/punches",
		punchBody("p-web", "emp-1", "2026-03-02T09:02:00Z", "web_client", "check_in"))

	require.Equal(t, http.StatusOK, rec.Code)
	var v map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, false, v["accepted"])
	assert.Equal(t, "p-term", v["conflict_punch_id"])
}

func TestSubmitPunch_ValidationErrors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/api/punches", map[string]any{"timestamp": "2026-03-02T09:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, "POST", "/api/punches",
		punchBody("p-1", "emp-1", "yesterday", "terminal", "release"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitPunchBatch_PerPunchVerdicts(t *testing.T) {
	// GIVEN: A replayed batch containing a good punch and an unmapped one
	// WHEN: Posted to the batch endpoint
	// THEN: Each punch gets its own verdict; the batch never fails whole

	e := newEnv(t)
	rec := e.do(t, "POST", "/api/punches/batch", []map[string]any{
		punchBody("p-1", "emp-1", "2026-03-02T09:00:00Z", "terminal", "release"),
		punchBody("p-2", "emp-1", "2026-03-02T18:00:00Z", "terminal", "bogus"),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var verdicts []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdicts))
	require.Len(t, verdicts, 2)
	assert.Equal(t, true, verdicts[0]["accepted"])
	assert.Equal(t, false, verdicts[1]["accepted"])
}

// =============================================================================
// DAY RECORDS AND BREAKDOWNS
// =============================================================================

func TestGetDayRecordAndBreakdown(t *testing.T) {
	// GIVEN: A reconciled 09:00-18:00 day
	// WHEN: Querying the record and its breakdown
	// THEN: Both reflect the canonical state

	e := newEnv(t)
	e.do(t, "POST", "/api/punches",
		punchBody("p-in", "emp-1", "2026-03-02T09:00:00Z", "terminal", "release"))
	e.do(t, "POST", "/api/punches",
		punchBody("p-out", "emp-1", "2026-03-02T18:00:00Z", "terminal", "set"))

	rec := e.do(t, "GET", "/api/employees/emp-1/days/2026-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var day map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, "complete", day["completeness"])

	rec = e.do(t, "GET", "/api/employees/emp-1/breakdowns/2026-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var b map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "8", b["net_work_hours"])
}

func TestGetDayRecord_NotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "GET", "/api/employees/emp-1/days/2026-03-02", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

func TestExceptions_QueueAndResolve(t *testing.T) {
	// GIVEN: An unmapped punch that was queued for review
	// WHEN: Listing and resolving the entry
	// THEN: The queue empties

	e := newEnv(t)
	e.do(t, "POST", "/api/punches",
		punchBody("p-1", "emp-1", "2026-03-02T09:00:00Z", "terminal", "maintenance"))

	rec := e.do(t, "GET", "/api/exceptions?unresolved=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "unmapped_code", entries[0]["reason"])

	id := entries[0]["id"].(string)
	rec = e.do(t, "POST", fmt.Sprintf("/api/exceptions/%s/resolve", id),
		map[string]string{"actor": "hr-admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, "GET", "/api/exceptions?unresolved=true", nil)
	entries = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
}

// =============================================================================
// SETTLEMENT LIFECYCLE
// =============================================================================

func (e *env) createPeriod(t *testing.T) {
	rec := e.do(t, "POST", "/api/settlements", map[string]string{
		"id":         "2026-q1",
		"start_date": "2026-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func (e *env) seedWeek(t *testing.T, emp string) {
	for day := 5; day < 12; day++ {
		e.do(t, "POST", "/api/punches",
			punchBody(fmt.Sprintf("%s-in-%d", emp, day), emp,
				fmt.Sprintf("2026-01-%02dT09:00:00Z", day), "terminal", "release"))
		e.do(t, "POST", "/api/punches",
			punchBody(fmt.Sprintf("%s-out-%d", emp, day), emp,
				fmt.Sprintf("2026-01-%02dT18:00:00Z", day), "terminal", "set"))
	}
}

func TestSettlement_RunAndResults(t *testing.T) {
	// GIVEN: A created period with a week of reconciled days
	// WHEN: Running the settlement
	// THEN: The report and the stored results agree

	e := newEnv(t)
	e.createPeriod(t)
	e.seedWeek(t, "emp-1")

	rec := e.do(t, "POST", "/api/settlements/2026-q1/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report["results"], 1)

	rec = e.do(t, "GET", "/api/settlements/2026-q1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "emp-1", results[0]["employee_id"])
}

func TestSettlement_FinalizeBlockedBy409(t *testing.T) {
	// GIVEN: A period containing an unresolved open day
	// WHEN: Finalizing
	// THEN: 409 listing the blocking employees

	e := newEnv(t)
	e.createPeriod(t)
	e.seedWeek(t, "emp-1")
	// emp-2 checked in on Jan 6 and never out.
	e.do(t, "POST", "/api/punches",
		punchBody("emp-2-in", "emp-2", "2026-01-06T09:00:00Z", "terminal", "release"))

	e.do(t, "POST", "/api/settlements/2026-q1/run", nil)

	rec := e.do(t, "POST", "/api/settlements/2026-q1/finalize",
		map[string]string{"actor": "hr-admin"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["details"], "emp-2")
}

func TestSettlement_FinalizeAndReopen(t *testing.T) {
	// GIVEN: A clean period after a run
	// WHEN: Finalizing, re-running, reopening
	// THEN: 200, then 409, then the rerun succeeds again

	e := newEnv(t)
	e.createPeriod(t)
	e.seedWeek(t, "emp-1")
	e.do(t, "POST", "/api/settlements/2026-q1/run", nil)

	rec := e.do(t, "POST", "/api/settlements/2026-q1/finalize",
		map[string]string{"actor": "hr-admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, "POST", "/api/settlements/2026-q1/run", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, "POST", "/api/settlements/2026-q1/reopen",
		map[string]string{"actor": "hr-admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, "POST", "/api/settlements/2026-q1/run", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestHealthAndPolicyReload(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, "POST", "/api/policies/reload", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
