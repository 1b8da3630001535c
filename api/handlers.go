/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements the HTTP handlers that connect the REST surface to the
  engine: punch ingestion, day record and breakdown queries, the
  exception queue, settlement lifecycle, and admin operations.

ERROR MAPPING:
  ErrRecordNotFound        -> 404
  ErrPeriodFinalized       -> 409
  BlockedError             -> 409 (lists blocking employees)
  ErrMissingPolicyConfig   -> 422
  malformed input          -> 400

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response structures
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/settlement"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Ingestor    *attendance.Ingestor
	Days        attendance.DayStore
	Breakdowns  attendance.BreakdownStore
	Review      attendance.ReviewQueue
	Aggregator  *settlement.Aggregator
	Settlements settlement.Store
	Policies    *policy.CachingProvider

	startedAt time.Time
}

func NewHandler(
	ingestor *attendance.Ingestor,
	days attendance.DayStore,
	breakdowns attendance.BreakdownStore,
	review attendance.ReviewQueue,
	aggregator *settlement.Aggregator,
	settlements settlement.Store,
	policies *policy.CachingProvider,
) *Handler {
	return &Handler{
		Ingestor:    ingestor,
		Days:        days,
		Breakdowns:  breakdowns,
		Review:      review,
		Aggregator:  aggregator,
		Settlements: settlements,
		Policies:    policies,
		startedAt:   time.Now(),
	}
}

// =============================================================================
// PUNCH INGESTION
// =============================================================================

// SubmitPunch handles POST /api/punches
func (h *Handler) SubmitPunch(w http.ResponseWriter, r *http.Request) {
	var req PunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required")
		return
	}
	ev, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
		return
	}

	verdict, err := h.Ingestor.Ingest(r.Context(), ev)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if verdict.Accepted && verdict.Outcome == attendance.OutcomeInserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, toVerdictDTO(verdict))
}

// SubmitPunchBatch handles POST /api/punches/batch
//
// A terminal replaying its buffered feed submits many punches at once.
// Each punch gets its own verdict; one bad punch never fails the batch.
func (h *Handler) SubmitPunchBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []PunchRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	verdicts := make([]VerdictDTO, 0, len(reqs))
	for _, req := range reqs {
		ev, err := req.toEvent()
		if err != nil {
			verdicts = append(verdicts, VerdictDTO{
				PunchID:  req.ID,
				Accepted: false,
				Reason:   "timestamp must be RFC3339",
			})
			continue
		}
		verdict, err := h.Ingestor.Ingest(r.Context(), ev)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		verdicts = append(verdicts, toVerdictDTO(verdict))
	}
	writeJSON(w, http.StatusOK, verdicts)
}

// =============================================================================
// DAY RECORDS AND BREAKDOWNS
// =============================================================================

// GetDayRecord handles GET /api/employees/{id}/days/{date}
func (h *Handler) GetDayRecord(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "id"))
	date, err := attendance.ParseWorkDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	rec, err := h.Days.GetDay(r.Context(), emp, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayRecordDTO(rec))
}

// GetBreakdown handles GET /api/employees/{id}/breakdowns/{date}
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "id"))
	date, err := attendance.ParseWorkDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	b, err := h.Breakdowns.GetBreakdown(r.Context(), emp, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBreakdownDTO(b))
}

// ListBreakdowns handles GET /api/employees/{id}/breakdowns?from=...&to=...
func (h *Handler) ListBreakdowns(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "id"))
	from, err := attendance.ParseWorkDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := attendance.ParseWorkDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	rows, err := h.Breakdowns.ListBreakdowns(r.Context(), emp, from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]BreakdownDTO, 0, len(rows))
	for _, b := range rows {
		dtos = append(dtos, toBreakdownDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecomputeDay handles POST /api/employees/{id}/days/{date}/recompute
//
// After a manual correction lands on a day record, this re-derives the
// breakdown without waiting for the next punch.
func (h *Handler) RecomputeDay(w http.ResponseWriter, r *http.Request) {
	emp := attendance.EmployeeID(chi.URLParam(r, "id"))
	date, err := attendance.ParseWorkDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	rec, err := h.Days.GetDay(r.Context(), emp, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.Ingestor.Recompute(r.Context(), rec); err != nil {
		h.writeDomainError(w, err)
		return
	}

	b, err := h.Breakdowns.GetBreakdown(r.Context(), emp, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBreakdownDTO(b))
}

// =============================================================================
// EXCEPTION QUEUE
// =============================================================================

// ListExceptions handles GET /api/exceptions?unresolved=true
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"

	entries, err := h.Review.ListReviews(r.Context(), unresolvedOnly)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ReviewEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toReviewEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResolveException handles POST /api/exceptions/{id}/resolve
func (h *Handler) ResolveException(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ResolveReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	if err := h.Review.ResolveReview(r.Context(), id, req.Actor); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// =============================================================================
// SETTLEMENT LIFECYCLE
// =============================================================================

// CreatePeriod handles POST /api/settlements
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	start, err := attendance.ParseWorkDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}

	p := settlement.NewQuarter(attendance.PeriodID(req.ID), start)
	if req.EndDate != "" {
		end, err := attendance.ParseWorkDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "end_date before start_date")
			return
		}
		p.EndDate = end
	}

	if err := h.Settlements.SavePeriod(r.Context(), p); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(&p))
}

// GetPeriod handles GET /api/settlements/{periodID}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id := attendance.PeriodID(chi.URLParam(r, "periodID"))
	p, err := h.Settlements.GetPeriod(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// RunSettlement handles POST /api/settlements/{periodID}/run
func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	id := attendance.PeriodID(chi.URLParam(r, "periodID"))
	report, err := h.Aggregator.Run(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReportDTO(report))
}

// FinalizeSettlement handles POST /api/settlements/{periodID}/finalize
func (h *Handler) FinalizeSettlement(w http.ResponseWriter, r *http.Request) {
	id := attendance.PeriodID(chi.URLParam(r, "periodID"))

	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	if err := h.Aggregator.Finalize(r.Context(), id, req.Actor); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

// ReopenSettlement handles POST /api/settlements/{periodID}/reopen
func (h *Handler) ReopenSettlement(w http.ResponseWriter, r *http.Request) {
	id := attendance.PeriodID(chi.URLParam(r, "periodID"))

	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	if err := h.Aggregator.Reopen(r.Context(), id, req.Actor); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reopened"})
}

// ListResults handles GET /api/settlements/{periodID}/results
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	id := attendance.PeriodID(chi.URLParam(r, "periodID"))
	rows, err := h.Settlements.ResultsForPeriod(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ResultDTO, 0, len(rows))
	for _, res := range rows {
		dtos = append(dtos, toResultDTO(res))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN
// =============================================================================

// ReloadPolicies handles POST /api/policies/reload
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	h.Policies.Reload()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var blocked *settlement.BlockedError
	if errors.As(err, &blocked) {
		names := make([]string, 0, len(blocked.Employees))
		for _, emp := range blocked.Employees {
			names = append(names, string(emp))
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "finalization blocked by unresolved day records",
			Details: names,
		})
		return
	}

	switch {
	case errors.Is(err, attendance.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, attendance.ErrPeriodFinalized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, attendance.ErrMissingPolicyConfig):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, attendance.ErrInvalidTimeRange),
		errors.Is(err, attendance.ErrUnmappedActionCode):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
