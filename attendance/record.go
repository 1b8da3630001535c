/*
record.go - Canonical day records

PURPOSE:
  The CanonicalDayRecord is the reconciled ground truth for one
  employee's work day: at most one canonical check-in and one canonical
  check-out, each stamped with the punch and source that won the merge.
  Records are created on the first punch of a day, updated by merges,
  and never deleted - every revision bumps a counter so a superseded
  state remains traceable through the punch log.
*/
package attendance

import "time"

// Completeness describes how much of a day record is reconciled.
type Completeness string

const (
	// CompletenessOpen: check-in present, check-out still expected.
	CompletenessOpen Completeness = "open"

	// CompletenessComplete: both sides present, ready for calculation.
	CompletenessComplete Completeness = "complete"

	// CompletenessIncomplete: check-out without check-in, or a record
	// flagged during reconciliation. Surfaces in the exceptions queue.
	CompletenessIncomplete Completeness = "incomplete"
)

// PunchStamp records which punch currently backs a canonical slot.
type PunchStamp struct {
	At      time.Time
	Source  Source
	PunchID string
}

// ExtraPunch is a genuinely separate same-day event kept alongside the
// canonical pair (e.g., a second re-entry), with an explanatory note.
type ExtraPunch struct {
	Stamp  PunchStamp
	Action Action
	Note   string
}

// CanonicalDayRecord is the single source of truth for one work day.
type CanonicalDayRecord struct {
	EmployeeID EmployeeID
	Date       WorkDate

	CheckIn  *PunchStamp
	CheckOut *PunchStamp

	// ExtraPunches holds events beyond the proximity window that were
	// inserted as additional records instead of being silently merged.
	ExtraPunches []ExtraPunch

	// HadDinnerBreak is the explicit break-taken flag when any punch
	// carried one. nil = no source said; calculator falls back to
	// duration detection.
	HadDinnerBreak *bool

	Revision  int
	UpdatedAt time.Time
}

// Completeness derives the record's reconciliation state.
func (r *CanonicalDayRecord) Completeness() Completeness {
	switch {
	case r.CheckIn != nil && r.CheckOut != nil:
		return CompletenessComplete
	case r.CheckIn != nil:
		return CompletenessOpen
	default:
		return CompletenessIncomplete
	}
}

// stamp returns the canonical slot for an action, or nil.
func (r *CanonicalDayRecord) stamp(action Action) *PunchStamp {
	switch action {
	case ActionCheckIn:
		return r.CheckIn
	case ActionCheckOut:
		return r.CheckOut
	default:
		return nil
	}
}

func (r *CanonicalDayRecord) setStamp(action Action, s PunchStamp) {
	switch action {
	case ActionCheckIn:
		r.CheckIn = &s
	case ActionCheckOut:
		r.CheckOut = &s
	}
}

// HasPunch reports whether a punch ID already backs any slot or extra
// record. Used for idempotent redelivery.
func (r *CanonicalDayRecord) HasPunch(punchID string) bool {
	if r.CheckIn != nil && r.CheckIn.PunchID == punchID {
		return true
	}
	if r.CheckOut != nil && r.CheckOut.PunchID == punchID {
		return true
	}
	for _, e := range r.ExtraPunches {
		if e.Stamp.PunchID == punchID {
			return true
		}
	}
	return false
}
