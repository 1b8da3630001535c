/*
dedup.go - Duplicate/conflict resolution for punches

PURPOSE:
  Multiple uncoordinated sources capture the same attendance moment: the
  badge terminal logs a release at 09:00 and the employee also hits the
  web check-in at 09:02. The deduplicator resolves such conflicts into
  one canonical record per (employee, work day, action) using source
  priority and time proximity.

MERGE RULES:
  1. No canonical record of that action yet -> insert (Inserted)
  2. New punch strictly higher source priority -> overwrite (Merged)
  3. Priority <= existing:
       within proximity window  -> reject (DuplicateDetected), no change
       beyond proximity window  -> keep as a separate extra record with
                                   an explanatory note (SeparateEvent)

IDEMPOTENCE:
  Redelivering a punch already applied returns DuplicateDetected and
  never changes state. The punch ID is the idempotency key.

CONCURRENCY:
  Apply runs under a per-(employee, work day) lock so two simultaneous
  arrivals cannot both win or corrupt the record. The lock covers the
  whole day record, not a single action slot: Apply reads the record,
  mutates one slot, and writes the record back, so a check-in and a
  check-out racing under different locks would overwrite each other's
  slot. The lock is a striped in-process mutex; the backing store only
  ever sees serialized read-modify-write cycles per record.
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// SOURCE PRIORITY
// =============================================================================

// PriorityOrder is a configurable total order over sources; a higher
// value wins a merge.
type PriorityOrder map[Source]int

// DefaultPriority: Terminal > WebClient > Manual. The terminal clock is
// the most trustworthy instant; manual entries the least.
func DefaultPriority() PriorityOrder {
	return PriorityOrder{
		SourceTerminal:  3,
		SourceWebClient: 2,
		SourceManual:    1,
	}
}

func (p PriorityOrder) of(s Source) int { return p[s] }

// =============================================================================
// MERGE OUTCOMES
// =============================================================================

type MergeOutcome string

const (
	OutcomeInserted  MergeOutcome = "inserted"
	OutcomeMerged    MergeOutcome = "merged"
	OutcomeDuplicate MergeOutcome = "duplicate_detected"
	OutcomeSeparate  MergeOutcome = "separate_event"
)

// MergeResult reports what the deduplicator did with a punch.
type MergeResult struct {
	Outcome MergeOutcome
	Record  *CanonicalDayRecord

	// ConflictPunchID references the canonical punch a duplicate
	// collided with.
	ConflictPunchID string

	// Note explains a SeparateEvent insertion.
	Note string
}

// =============================================================================
// DEDUPLICATOR
// =============================================================================

// Deduplicator resolves normalized punches into canonical day records.
// Priority order and proximity window are injectable policy.
type Deduplicator struct {
	Days     DayStore
	Punches  PunchLog
	Priority PriorityOrder

	// Window is the time distance under which a lower/equal-priority
	// punch is treated as a duplicate of the canonical one. Default 5m.
	Window time.Duration

	locks keyedMutex
}

func NewDeduplicator(days DayStore, punches PunchLog) *Deduplicator {
	return &Deduplicator{
		Days:     days,
		Punches:  punches,
		Priority: DefaultPriority(),
		Window:   5 * time.Minute,
	}
}

// Apply merges one normalized punch into the canonical day record
// under the deduplicator's own priority order. It is atomic per
// (employee, work date) and idempotent.
func (d *Deduplicator) Apply(ctx context.Context, p NormalizedPunch) (MergeResult, error) {
	return d.ApplyWithPriority(ctx, p, d.Priority)
}

// ApplyWithPriority merges one punch under an explicit priority order,
// such as the order configured by the work policy in effect that day.
func (d *Deduplicator) ApplyWithPriority(ctx context.Context, p NormalizedPunch, prio PriorityOrder) (MergeResult, error) {
	if p.Action == ActionIgnored {
		return MergeResult{}, fmt.Errorf("ignored punch %s reached the deduplicator", p.ID)
	}
	if prio == nil {
		prio = d.Priority
	}

	unlock := d.locks.lock(lockKey{p.EmployeeID, p.WorkDate})
	defer unlock()

	// Idempotency: a redelivered punch never changes state.
	seen, err := d.Punches.PunchSeen(ctx, p.ID)
	if err != nil {
		return MergeResult{}, err
	}

	rec, err := d.Days.GetDay(ctx, p.EmployeeID, p.WorkDate)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return MergeResult{}, err
	}
	if rec == nil {
		rec = &CanonicalDayRecord{EmployeeID: p.EmployeeID, Date: p.WorkDate}
	}

	if seen {
		return MergeResult{
			Outcome:         OutcomeDuplicate,
			Record:          rec,
			ConflictPunchID: p.ID,
		}, nil
	}

	if err := d.Punches.AppendPunch(ctx, p.PunchEvent); err != nil {
		return MergeResult{}, err
	}

	result := d.merge(rec, p, prio)
	if result.Outcome == OutcomeDuplicate {
		// No state change on duplicates; the raw punch stays logged for
		// the audit trail but the canonical record is untouched.
		return result, nil
	}

	if p.BreakTaken != nil {
		rec.HadDinnerBreak = p.BreakTaken
	}
	rec.Revision++
	rec.UpdatedAt = time.Now().UTC()
	if err := d.Days.SaveDay(ctx, rec); err != nil {
		return MergeResult{}, err
	}
	result.Record = rec
	return result, nil
}

func (d *Deduplicator) merge(rec *CanonicalDayRecord, p NormalizedPunch, prio PriorityOrder) MergeResult {
	existing := rec.stamp(p.Action)
	stamp := PunchStamp{At: p.Timestamp, Source: p.Source, PunchID: p.ID}

	if existing == nil {
		rec.setStamp(p.Action, stamp)
		return MergeResult{Outcome: OutcomeInserted}
	}

	if prio.of(p.Source) > prio.of(existing.Source) {
		rec.setStamp(p.Action, stamp)
		return MergeResult{Outcome: OutcomeMerged, ConflictPunchID: existing.PunchID}
	}

	distance := p.Timestamp.Sub(existing.At)
	if distance < 0 {
		distance = -distance
	}
	if distance <= d.Window {
		return MergeResult{Outcome: OutcomeDuplicate, ConflictPunchID: existing.PunchID}
	}

	// A genuinely separate event (e.g., a second same-day re-entry).
	// Kept as an additional record, never silently merged away.
	note := fmt.Sprintf("separate %s %s after canonical %s at %s",
		p.Action, p.Timestamp.Format("15:04"), p.Action, existing.At.Format("15:04"))
	rec.ExtraPunches = append(rec.ExtraPunches, ExtraPunch{Stamp: stamp, Action: p.Action, Note: note})
	return MergeResult{Outcome: OutcomeSeparate, Note: note}
}

// DuplicateErrorFrom converts a duplicate merge result into the
// structured error producers receive in their reject verdict.
func DuplicateErrorFrom(p NormalizedPunch, res MergeResult) *DuplicateError {
	return &DuplicateError{
		EmployeeID:      p.EmployeeID,
		WorkDate:        p.WorkDate,
		Action:          p.Action,
		ConflictPunchID: res.ConflictPunchID,
	}
}

// =============================================================================
// KEYED MUTEX - Per-(employee, day) critical section
// =============================================================================

type lockKey struct {
	Emp  EmployeeID
	Date WorkDate
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[lockKey]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key lockKey) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[lockKey]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
