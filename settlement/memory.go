// memory.go - In-memory settlement Store (for testing/dev).
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

type MemoryStore struct {
	mu      sync.RWMutex
	periods map[attendance.PeriodID]Period
	results map[resultKey]*Result
	audit   []AuditEntry
}

type resultKey struct {
	Period   attendance.PeriodID
	Employee attendance.EmployeeID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		periods: make(map[attendance.PeriodID]Period),
		results: make(map[resultKey]*Result),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) SavePeriod(_ context.Context, p Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[p.ID] = p
	return nil
}

func (m *MemoryStore) GetPeriod(_ context.Context, id attendance.PeriodID) (*Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[id]
	if !ok {
		return nil, attendance.ErrRecordNotFound
	}
	return &p, nil
}

func (m *MemoryStore) SaveResult(_ context.Context, r *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := resultKey{r.PeriodID, r.EmployeeID}
	if existing, ok := m.results[k]; ok && existing.Finalized {
		return attendance.ErrPeriodFinalized
	}
	clone := *r
	m.results[k] = &clone
	return nil
}

func (m *MemoryStore) ResultsForPeriod(_ context.Context, id attendance.PeriodID) ([]*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Result
	for k, r := range m.results {
		if k.Period == id {
			clone := *r
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MemoryStore) FinalizeResults(_ context.Context, id attendance.PeriodID, actor string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.results {
		if k.Period == id {
			r.Finalized = true
			r.FinalizedBy = actor
			t := at
			r.FinalizedAt = &t
		}
	}
	return nil
}

func (m *MemoryStore) ReopenResults(_ context.Context, id attendance.PeriodID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.results {
		if k.Period == id {
			r.Finalized = false
			r.FinalizedBy = ""
			r.FinalizedAt = nil
		}
	}
	return nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns a copy of the audit trail (test helper).
func (m *MemoryStore) AuditEntries() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AuditEntry(nil), m.audit...)
}
