/*
ingest.go - Ingestion boundary service

PURPOSE:
  Producers (badge-terminal feed, web check-in/out, manual-entry form)
  submit raw punches and receive a per-event accept/reject verdict with
  a reason. The Ingestor runs the full pipeline for one punch:

    raw punch -> Normalizer -> Deduplicator -> recompute breakdown

  Ignored actions (non-work building access) are accepted with verdict
  "ignored" and dropped before deduplication. Unmapped codes are
  rejected AND queued for manual review - never silently dropped.
*/
package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Verdict is the synchronous accept/reject answer for one punch.
type Verdict struct {
	PunchID  string
	Accepted bool
	Outcome  MergeOutcome // empty for ignored/rejected punches
	Ignored  bool
	Reason   string

	// ConflictPunchID references the canonical record a duplicate
	// collided with, so the source system can alert.
	ConflictPunchID string
}

// RuleResolver resolves the day-level rules in effect for a work date:
// the calculator knobs and the source-priority order. The policy layer
// supplies one so a policy change reaches ingestion without a restart.
type RuleResolver func(ctx context.Context, date WorkDate) (*Calculator, PriorityOrder, error)

// Ingestor wires the per-punch pipeline together.
type Ingestor struct {
	Normalizer *Normalizer
	Dedup      *Deduplicator
	Calculator *Calculator
	Breakdowns BreakdownStore
	Review     ReviewQueue

	// Rules resolves per-date calculation knobs and source priority.
	// When nil, the Calculator field and the deduplicator's default
	// priority apply.
	Rules RuleResolver
}

func NewIngestor(days DayStore, punches PunchLog, breakdowns BreakdownStore, review ReviewQueue) *Ingestor {
	return &Ingestor{
		Normalizer: NewNormalizer(),
		Dedup:      NewDeduplicator(days, punches),
		Calculator: NewCalculator(),
		Breakdowns: breakdowns,
		Review:     review,
	}
}

// Ingest runs one punch through the pipeline and returns its verdict.
// The returned error is reserved for infrastructure failures; business
// rejections (unmapped code, duplicate) come back inside the verdict.
func (ing *Ingestor) Ingest(ctx context.Context, ev PunchEvent) (Verdict, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	p, err := ing.Normalizer.Normalize(ev)
	if err != nil {
		if errors.Is(err, ErrUnmappedActionCode) {
			if qErr := ing.queueUnmapped(ctx, ev, err); qErr != nil {
				return Verdict{}, qErr
			}
			return Verdict{PunchID: ev.ID, Accepted: false, Reason: err.Error()}, nil
		}
		return Verdict{}, err
	}

	if p.Action == ActionIgnored {
		return Verdict{PunchID: ev.ID, Accepted: true, Ignored: true, Reason: "non-work access, dropped"}, nil
	}

	calc, prio, err := ing.rulesFor(ctx, p.WorkDate)
	if err != nil {
		return Verdict{}, err
	}

	res, err := ing.Dedup.ApplyWithPriority(ctx, p, prio)
	if err != nil {
		return Verdict{}, err
	}

	if res.Outcome == OutcomeDuplicate {
		dup := DuplicateErrorFrom(p, res)
		return Verdict{
			PunchID:         ev.ID,
			Accepted:        false,
			Outcome:         OutcomeDuplicate,
			Reason:          dup.Error(),
			ConflictPunchID: res.ConflictPunchID,
		}, nil
	}

	// The canonical record changed: recompute its derived breakdown.
	if err := ing.recomputeWith(ctx, calc, res.Record); err != nil {
		return Verdict{}, err
	}

	return Verdict{PunchID: ev.ID, Accepted: true, Outcome: res.Outcome, Reason: res.Note}, nil
}

// Recompute derives and stores the breakdown for a day record using the
// rules in effect on its date. Invalid time ranges are queued for
// review and reported back as data-quality errors.
func (ing *Ingestor) Recompute(ctx context.Context, rec *CanonicalDayRecord) error {
	calc, _, err := ing.rulesFor(ctx, rec.Date)
	if err != nil {
		return err
	}
	return ing.recomputeWith(ctx, calc, rec)
}

func (ing *Ingestor) rulesFor(ctx context.Context, date WorkDate) (*Calculator, PriorityOrder, error) {
	if ing.Rules == nil {
		return ing.Calculator, ing.Dedup.Priority, nil
	}
	return ing.Rules(ctx, date)
}

func (ing *Ingestor) recomputeWith(ctx context.Context, calc *Calculator, rec *CanonicalDayRecord) error {
	b, err := calc.Breakdown(rec)
	if err != nil {
		if errors.Is(err, ErrInvalidTimeRange) {
			entry := ReviewEntry{
				ID:         uuid.NewString(),
				EmployeeID: rec.EmployeeID,
				WorkDate:   rec.Date,
				Reason:     ReviewInvalidRange,
				Detail:     err.Error(),
				CreatedAt:  time.Now().UTC(),
			}
			if qErr := ing.Review.AppendReview(ctx, entry); qErr != nil {
				return qErr
			}
		}
		return err
	}
	return ing.Breakdowns.SaveBreakdown(ctx, b)
}

func (ing *Ingestor) queueUnmapped(ctx context.Context, ev PunchEvent, cause error) error {
	return ing.Review.AppendReview(ctx, ReviewEntry{
		ID:         uuid.NewString(),
		EmployeeID: ev.EmployeeID,
		WorkDate:   WorkDateOf(ev.Timestamp),
		Reason:     ReviewUnmappedCode,
		Detail:     cause.Error(),
		CreatedAt:  time.Now().UTC(),
	})
}
