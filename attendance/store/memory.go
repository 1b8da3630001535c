// Package store provides in-memory implementations of the attendance
// persistence interfaces (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	punches    map[string]attendance.PunchEvent
	punchOrder []string
	days       map[dayKey]*attendance.CanonicalDayRecord
	breakdowns map[dayKey]*attendance.WorkHourBreakdown
	reviews    map[string]attendance.ReviewEntry
	reviewIDs  []string
}

type dayKey struct {
	Emp  attendance.EmployeeID
	Date attendance.WorkDate
}

func NewMemory() *Memory {
	return &Memory{
		punches:    make(map[string]attendance.PunchEvent),
		days:       make(map[dayKey]*attendance.CanonicalDayRecord),
		breakdowns: make(map[dayKey]*attendance.WorkHourBreakdown),
		reviews:    make(map[string]attendance.ReviewEntry),
	}
}

// Compile-time interface checks.
var (
	_ attendance.PunchLog       = (*Memory)(nil)
	_ attendance.DayStore       = (*Memory)(nil)
	_ attendance.BreakdownStore = (*Memory)(nil)
	_ attendance.ReviewQueue    = (*Memory)(nil)
)

// =============================================================================
// PUNCH LOG
// =============================================================================

func (m *Memory) AppendPunch(_ context.Context, ev attendance.PunchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.punches[ev.ID]; ok {
		return attendance.ErrDuplicateDetected
	}
	m.punches[ev.ID] = ev
	m.punchOrder = append(m.punchOrder, ev.ID)
	return nil
}

func (m *Memory) PunchSeen(_ context.Context, punchID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.punches[punchID]
	return ok, nil
}

func (m *Memory) PunchesByDay(_ context.Context, emp attendance.EmployeeID, date attendance.WorkDate) ([]attendance.PunchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []attendance.PunchEvent
	for _, id := range m.punchOrder {
		ev := m.punches[id]
		if ev.EmployeeID == emp && attendance.WorkDateOf(ev.Timestamp) == date {
			result = append(result, ev)
		}
	}
	return result, nil
}

// =============================================================================
// DAY STORE
// =============================================================================

func (m *Memory) GetDay(_ context.Context, emp attendance.EmployeeID, date attendance.WorkDate) (*attendance.CanonicalDayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.days[dayKey{emp, date}]
	if !ok {
		return nil, attendance.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *Memory) SaveDay(_ context.Context, rec *attendance.CanonicalDayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rec
	m.days[dayKey{rec.EmployeeID, rec.Date}] = &clone
	return nil
}

func (m *Memory) ListDays(_ context.Context, emp attendance.EmployeeID, from, to attendance.WorkDate) ([]*attendance.CanonicalDayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*attendance.CanonicalDayRecord
	for k, rec := range m.days {
		if k.Emp == emp && k.Date.AfterOrEqual(from) && k.Date.BeforeOrEqual(to) {
			clone := *rec
			result = append(result, &clone)
		}
	}
	sortRecords(result)
	return result, nil
}

func (m *Memory) ListUnreconciledDays(_ context.Context, from, to attendance.WorkDate) ([]*attendance.CanonicalDayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*attendance.CanonicalDayRecord
	for k, rec := range m.days {
		if k.Date.AfterOrEqual(from) && k.Date.BeforeOrEqual(to) && rec.Completeness() != attendance.CompletenessComplete {
			clone := *rec
			result = append(result, &clone)
		}
	}
	sortRecords(result)
	return result, nil
}

func sortRecords(recs []*attendance.CanonicalDayRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].EmployeeID < recs[j].EmployeeID
	})
}

// =============================================================================
// BREAKDOWN STORE
// =============================================================================

func (m *Memory) SaveBreakdown(_ context.Context, b *attendance.WorkHourBreakdown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *b
	m.breakdowns[dayKey{b.EmployeeID, b.Date}] = &clone
	return nil
}

func (m *Memory) GetBreakdown(_ context.Context, emp attendance.EmployeeID, date attendance.WorkDate) (*attendance.WorkHourBreakdown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.breakdowns[dayKey{emp, date}]
	if !ok {
		return nil, attendance.ErrRecordNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *Memory) ListBreakdowns(_ context.Context, emp attendance.EmployeeID, from, to attendance.WorkDate) ([]*attendance.WorkHourBreakdown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*attendance.WorkHourBreakdown
	for k, b := range m.breakdowns {
		if k.Emp == emp && k.Date.AfterOrEqual(from) && k.Date.BeforeOrEqual(to) {
			clone := *b
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) EmployeesInRange(_ context.Context, from, to attendance.WorkDate) ([]attendance.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[attendance.EmployeeID]bool)
	for k := range m.breakdowns {
		if k.Date.AfterOrEqual(from) && k.Date.BeforeOrEqual(to) {
			seen[k.Emp] = true
		}
	}
	result := make([]attendance.EmployeeID, 0, len(seen))
	for emp := range seen {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// =============================================================================
// REVIEW QUEUE
// =============================================================================

func (m *Memory) AppendReview(_ context.Context, entry attendance.ReviewEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[entry.ID]; !ok {
		m.reviewIDs = append(m.reviewIDs, entry.ID)
	}
	m.reviews[entry.ID] = entry
	return nil
}

func (m *Memory) ListReviews(_ context.Context, unresolvedOnly bool) ([]attendance.ReviewEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []attendance.ReviewEntry
	for _, id := range m.reviewIDs {
		entry := m.reviews[id]
		if unresolvedOnly && entry.Resolved {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (m *Memory) ResolveReview(_ context.Context, id, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.reviews[id]
	if !ok {
		return attendance.ErrRecordNotFound
	}
	now := time.Now().UTC()
	entry.Resolved = true
	entry.ResolvedBy = actor
	entry.ResolvedAt = &now
	m.reviews[id] = entry
	return nil
}
