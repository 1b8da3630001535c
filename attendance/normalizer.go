/*
normalizer.go - Source action vocabulary mapping

PURPOSE:
  Each capture source speaks its own action vocabulary. The badge
  terminal emits lock-hardware codes ("release" when the door unlocks on
  the way in, "set" when the employee arms it leaving, "passage" for
  plain door access). The web client submits canonical actions directly.
  The normalizer maps every raw code onto {CheckIn, CheckOut, Ignored}
  through a per-source lookup table.

FAILURE MODE:
  Unknown codes fail with UnmappedCodeError and the raw event is queued
  for manual review. Guessing or silently dropping a punch would corrupt
  the daily timeline, so neither ever happens.

WORK DATE ATTRIBUTION:
  A check-out captured in the small hours belongs to the previous work
  day (the shift that spans midnight). Check-outs before the rollover
  hour are attributed to the prior date; check-ins always keep their
  calendar date.
*/
package attendance

// CodeTable maps one source's raw action codes to canonical actions.
type CodeTable map[string]Action

// Vocabulary holds the per-source code tables. Injectable so a new
// terminal firmware or capture source only needs a table entry.
type Vocabulary map[Source]CodeTable

// DefaultVocabulary returns the mapping for the three known sources.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		SourceTerminal: {
			"release": ActionCheckIn,
			"set":     ActionCheckOut,
			"passage": ActionIgnored,
		},
		SourceWebClient: {
			"check_in":  ActionCheckIn,
			"check_out": ActionCheckOut,
		},
		SourceManual: {
			"in":  ActionCheckIn,
			"out": ActionCheckOut,
		},
	}
}

// Normalizer maps raw punches onto canonical actions and work dates.
type Normalizer struct {
	Vocabulary Vocabulary

	// RolloverHour is the local hour before which a check-out is
	// attributed to the previous work day. Defaults to the night window
	// end (06:00).
	RolloverHour int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{Vocabulary: DefaultVocabulary(), RolloverHour: 6}
}

// Normalize resolves the canonical action and work date for a raw punch.
// Unknown codes return an UnmappedCodeError; the caller is responsible
// for queueing the event for review.
func (n *Normalizer) Normalize(ev PunchEvent) (NormalizedPunch, error) {
	table, ok := n.Vocabulary[ev.Source]
	if !ok {
		return NormalizedPunch{}, &UnmappedCodeError{Source: ev.Source, RawCode: ev.RawCode, PunchID: ev.ID}
	}
	action, ok := table[ev.RawCode]
	if !ok {
		return NormalizedPunch{}, &UnmappedCodeError{Source: ev.Source, RawCode: ev.RawCode, PunchID: ev.ID}
	}

	return NormalizedPunch{
		PunchEvent: ev,
		Action:     action,
		WorkDate:   n.workDateFor(ev, action),
	}, nil
}

func (n *Normalizer) workDateFor(ev PunchEvent, action Action) WorkDate {
	date := WorkDateOf(ev.Timestamp)
	if action == ActionCheckOut && ev.Timestamp.Hour() < n.RolloverHour {
		// Overnight shift: the check-out closes yesterday's record.
		return date.AddDays(-1)
	}
	return date
}
