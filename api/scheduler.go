/*
scheduler.go - Background exception scanner

PURPOSE:
  A check-in with no matching check-out stays Open forever unless
  someone notices. The scanner periodically sweeps a trailing window of
  day records and queues every stale non-Complete record for manual
  review, so missed punches surface before settlement finalization
  trips over them.

SCHEDULE:
  Runs on an interval ticker (default hourly). RunOnce is exposed for
  tests and for manual triggering.

DEDUPLICATION:
  The review entry ID is derived from employee, date, and reason, so
  re-scanning the same stale day overwrites the previous entry instead
  of piling up duplicates.
*/
package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// ExceptionScanner sweeps for stale incomplete day records.
type ExceptionScanner struct {
	Days   attendance.DayStore
	Review attendance.ReviewQueue

	// Interval between sweeps.
	Interval time.Duration

	// Lookback bounds the sweep window, ending yesterday. Today's open
	// records are normal (the employee is still at work).
	Lookback time.Duration

	stop chan struct{}
}

func NewExceptionScanner(days attendance.DayStore, review attendance.ReviewQueue) *ExceptionScanner {
	return &ExceptionScanner{
		Days:     days,
		Review:   review,
		Interval: time.Hour,
		Lookback: 30 * 24 * time.Hour,
		stop:     make(chan struct{}),
	}
}

// Start begins the periodic sweep in a background goroutine.
func (s *ExceptionScanner) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := s.RunOnce(context.Background()); err != nil {
					log.Printf("exception scan failed: %v", err)
				} else if n > 0 {
					log.Printf("exception scan queued %d stale day(s) for review", n)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the periodic sweep.
func (s *ExceptionScanner) Stop() {
	close(s.stop)
}

// RunOnce sweeps the window and returns how many records were queued.
func (s *ExceptionScanner) RunOnce(ctx context.Context) (int, error) {
	today := attendance.WorkDateOf(time.Now())
	from := attendance.WorkDateOf(time.Now().Add(-s.Lookback))
	to := today.AddDays(-1)

	recs, err := s.Days.ListUnreconciledDays(ctx, from, to)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, rec := range recs {
		entry := attendance.ReviewEntry{
			ID:         scanEntryID(rec),
			EmployeeID: rec.EmployeeID,
			WorkDate:   rec.Date,
			Reason:     attendance.ReviewIncompleteDay,
			Detail:     fmt.Sprintf("day record still %s after end of day", rec.Completeness()),
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.Review.AppendReview(ctx, entry); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// scanEntryID is deterministic per day so repeated sweeps upsert rather
// than duplicate.
func scanEntryID(rec *attendance.CanonicalDayRecord) string {
	return fmt.Sprintf("scan-%s-%s", rec.EmployeeID, rec.Date)
}
