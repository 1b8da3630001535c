/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  attendance.PunchLog:       Append-only raw punch trail
  attendance.DayStore:       Canonical day records with revision history
  attendance.BreakdownStore: Derived per-day hour buckets
  attendance.ReviewQueue:    Exceptions awaiting manual reconciliation
  settlement.Store:          Periods, results, finalization, audit

APPEND-ONLY ENFORCEMENT:
  - punches: no UPDATE, no DELETE; the punch ID is a primary key so
    redelivery fails the insert and ingestion stays idempotent.
  - day_record_revisions: every save of a canonical record also appends
    its revision here; superseded states remain traceable.

FINALIZATION FREEZE:
  settlement_results rows carry a finalized flag. SaveResult refuses to
  touch a frozen row; only ReopenResults lifts the freeze.

KEY TABLES:
  punches, day_records, day_record_revisions, breakdowns, review_queue,
  settlement_periods, settlement_results, settlement_audit

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/settlement"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// Compile-time interface checks.
var (
	_ attendance.PunchLog       = (*Store)(nil)
	_ attendance.DayStore       = (*Store)(nil)
	_ attendance.BreakdownStore = (*Store)(nil)
	_ attendance.ReviewQueue    = (*Store)(nil)
	_ settlement.Store          = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Raw punches (append-only; punch ID doubles as idempotency key)
	CREATE TABLE IF NOT EXISTS punches (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		source TEXT NOT NULL,
		raw_code TEXT NOT NULL,
		break_taken INTEGER,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_punches_employee_ts
		ON punches(employee_id, ts);

	-- Canonical day records (current revision)
	CREATE TABLE IF NOT EXISTS day_records (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		check_in_at TEXT,
		check_in_source TEXT,
		check_in_punch_id TEXT,
		check_out_at TEXT,
		check_out_source TEXT,
		check_out_punch_id TEXT,
		had_dinner_break INTEGER,
		extra_punches_json TEXT,
		completeness TEXT NOT NULL,
		revision INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date)
	);
	CREATE INDEX IF NOT EXISTS idx_day_records_date
		ON day_records(work_date);
	CREATE INDEX IF NOT EXISTS idx_day_records_completeness
		ON day_records(completeness, work_date);

	-- Superseded revisions, append-only
	CREATE TABLE IF NOT EXISTS day_record_revisions (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		revision INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date, revision)
	);

	-- Derived per-day hour buckets (recomputed on record change)
	CREATE TABLE IF NOT EXISTS breakdowns (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		completeness TEXT NOT NULL,
		check_in TEXT,
		check_out TEXT,
		total_stay_hours TEXT,
		break_hours TEXT,
		net_work_hours TEXT,
		night_hours TEXT,
		regular_hours TEXT,
		overtime_hours TEXT,
		had_dinner_break INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, work_date)
	);
	CREATE INDEX IF NOT EXISTS idx_breakdowns_date
		ON breakdowns(work_date);

	-- Exceptions awaiting manual reconciliation
	CREATE TABLE IF NOT EXISTS review_queue (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		detail TEXT,
		created_at TEXT NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0,
		resolved_by TEXT,
		resolved_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_review_queue_unresolved
		ON review_queue(resolved, created_at);

	-- Settlement periods and per-employee results
	CREATE TABLE IF NOT EXISTS settlement_periods (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settlement_results (
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		total_actual_hours TEXT NOT NULL,
		weekly_average_hours TEXT NOT NULL,
		excess_hours TEXT NOT NULL,
		total_night_hours TEXT NOT NULL,
		overtime_allowance_hours TEXT NOT NULL,
		overtime_allowance_amount TEXT NOT NULL,
		finalized INTEGER NOT NULL DEFAULT 0,
		finalized_by TEXT,
		finalized_at TEXT,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (period_id, employee_id)
	);

	CREATE TABLE IF NOT EXISTS settlement_audit (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_settlement_audit_period
		ON settlement_audit(period_id, ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PUNCH LOG
// =============================================================================

func (s *Store) AppendPunch(ctx context.Context, ev attendance.PunchEvent) error {
	var breakTaken sql.NullInt64
	if ev.BreakTaken != nil {
		breakTaken = sql.NullInt64{Int64: boolToInt(*ev.BreakTaken), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO punches (id, employee_id, ts, source, raw_code, break_taken, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.EmployeeID), ev.Timestamp.Format(time.RFC3339),
		string(ev.Source), ev.RawCode, breakTaken, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil && isUniqueViolation(err) {
		return attendance.ErrDuplicateDetected
	}
	return err
}

func (s *Store) PunchSeen(ctx context.Context, punchID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM punches WHERE id = ?`, punchID).Scan(&n)
	return n > 0, err
}

func (s *Store) PunchesByDay(ctx context.Context, emp attendance.EmployeeID, date attendance.WorkDate) ([]attendance.PunchEvent, error) {
	from := date.Time().Format(time.RFC3339)
	to := date.AddDays(1).Time().Format(time.RFC3339)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, ts, source, raw_code, break_taken
		FROM punches
		WHERE employee_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts`, string(emp), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.PunchEvent
	for rows.Next() {
		var ev attendance.PunchEvent
		var empID, ts string
		var breakTaken sql.NullInt64
		if err := rows.Scan(&ev.ID, &empID, &ts, &ev.Source, &ev.RawCode, &breakTaken); err != nil {
			return nil, err
		}
		ev.EmployeeID = attendance.EmployeeID(empID)
		ev.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, err
		}
		if breakTaken.Valid {
			v := breakTaken.Int64 != 0
			ev.BreakTaken = &v
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// =============================================================================
// DAY STORE
// =============================================================================

func (s *Store) GetDay(ctx context.Context, emp attendance.EmployeeID, date attendance.WorkDate) (*attendance.CanonicalDayRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, work_date, check_in_at, check_in_source, check_in_punch_id,
		       check_out_at, check_out_source, check_out_punch_id,
		       had_dinner_break, extra_punches_json, revision, updated_at
		FROM day_records WHERE employee_id = ? AND work_date = ?`,
		string(emp), date.String())
	rec, err := scanDayRecord(row)
	if err == sql.ErrNoRows {
		return nil, attendance.ErrRecordNotFound
	}
	return rec, err
}

func (s *Store) SaveDay(ctx context.Context, rec *attendance.CanonicalDayRecord) error {
	extraJSON, err := json.Marshal(rec.ExtraPunches)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var dinner sql.NullInt64
	if rec.HadDinnerBreak != nil {
		dinner = sql.NullInt64{Int64: boolToInt(*rec.HadDinnerBreak), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO day_records (
			employee_id, work_date, check_in_at, check_in_source, check_in_punch_id,
			check_out_at, check_out_source, check_out_punch_id,
			had_dinner_break, extra_punches_json, completeness, revision, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (employee_id, work_date) DO UPDATE SET
			check_in_at = excluded.check_in_at,
			check_in_source = excluded.check_in_source,
			check_in_punch_id = excluded.check_in_punch_id,
			check_out_at = excluded.check_out_at,
			check_out_source = excluded.check_out_source,
			check_out_punch_id = excluded.check_out_punch_id,
			had_dinner_break = excluded.had_dinner_break,
			extra_punches_json = excluded.extra_punches_json,
			completeness = excluded.completeness,
			revision = excluded.revision,
			updated_at = excluded.updated_at`,
		string(rec.EmployeeID), rec.Date.String(),
		stampAt(rec.CheckIn), stampSource(rec.CheckIn), stampPunchID(rec.CheckIn),
		stampAt(rec.CheckOut), stampSource(rec.CheckOut), stampPunchID(rec.CheckOut),
		dinner, string(extraJSON), string(rec.Completeness()),
		rec.Revision, rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	// Superseded state stays traceable: append every revision.
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO day_record_revisions (employee_id, work_date, revision, snapshot_json, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(rec.EmployeeID), rec.Date.String(), rec.Revision,
		string(snapshot), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ListDays(ctx context.Context, emp attendance.EmployeeID, from, to attendance.WorkDate) ([]*attendance.CanonicalDayRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, work_date, check_in_at, check_in_source, check_in_punch_id,
		       check_out_at, check_out_source, check_out_punch_id,
		       had_dinner_break, extra_punches_json, revision, updated_at
		FROM day_records
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date`,
		string(emp), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	return collectDayRecords(rows)
}

func (s *Store) ListUnreconciledDays(ctx context.Context, from, to attendance.WorkDate) ([]*attendance.CanonicalDayRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, work_date, check_in_at, check_in_source, check_in_punch_id,
		       check_out_at, check_out_source, check_out_punch_id,
		       had_dinner_break, extra_punches_json, revision, updated_at
		FROM day_records
		WHERE work_date >= ? AND work_date <= ? AND completeness != 'complete'
		ORDER BY work_date, employee_id`,
		from.String(), to.String())
	if err != nil {
		return nil, err
	}
	return collectDayRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDayRecord(row rowScanner) (*attendance.CanonicalDayRecord, error) {
	var (
		empID, workDate, extraJSON, updatedAt string
		inAt, inSource, inPunch               sql.NullString
		outAt, outSource, outPunch            sql.NullString
		dinner                                sql.NullInt64
		revision                              int
	)
	err := row.Scan(&empID, &workDate, &inAt, &inSource, &inPunch,
		&outAt, &outSource, &outPunch, &dinner, &extraJSON, &revision, &updatedAt)
	if err != nil {
		return nil, err
	}

	date, err := attendance.ParseWorkDate(workDate)
	if err != nil {
		return nil, err
	}
	rec := &attendance.CanonicalDayRecord{
		EmployeeID: attendance.EmployeeID(empID),
		Date:       date,
		Revision:   revision,
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, err
	}
	if rec.CheckIn, err = parseStamp(inAt, inSource, inPunch); err != nil {
		return nil, err
	}
	if rec.CheckOut, err = parseStamp(outAt, outSource, outPunch); err != nil {
		return nil, err
	}
	if dinner.Valid {
		v := dinner.Int64 != 0
		rec.HadDinnerBreak = &v
	}
	if extraJSON != "" && extraJSON != "null" {
		if err := json.Unmarshal([]byte(extraJSON), &rec.ExtraPunches); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func collectDayRecords(rows *sql.Rows) ([]*attendance.CanonicalDayRecord, error) {
	defer rows.Close()
	var result []*attendance.CanonicalDayRecord
	for rows.Next() {
		rec, err := scanDayRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func parseStamp(at, source, punchID sql.NullString) (*attendance.PunchStamp, error) {
	if !at.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, at.String)
	if err != nil {
		return nil, err
	}
	return &attendance.PunchStamp{
		At:      t,
		Source:  attendance.Source(source.String),
		PunchID: punchID.String,
	}, nil
}

func stampAt(s *attendance.PunchStamp) any {
	if s == nil {
		return nil
	}
	return s.At.Format(time.RFC3339)
}

func stampSource(s *attendance.PunchStamp) any {
	if s == nil {
		return nil
	}
	return string(s.Source)
}

func stampPunchID(s *attendance.PunchStamp) any {
	if s == nil {
		return nil
	}
	return s.PunchID
}

// =============================================================================
// BREAKDOWN STORE
// =============================================================================

func (s *Store) SaveBreakdown(ctx context.Context, b *attendance.WorkHourBreakdown) error {
	complete := b.Completeness == attendance.CompletenessComplete

	// Incomplete days persist NULL hour fields, not zeroes.
	var checkIn, checkOut, stay, brk, net, night, regular, overtime any
	if complete {
		checkIn = b.CheckIn.String()
		checkOut = b.CheckOut.String()
		stay = b.TotalStayHours.Value.String()
		brk = b.BreakHours.Value.String()
		net = b.NetWorkHours.Value.String()
		night = b.NightHours.Value.String()
		regular = b.RegularHours.Value.String()
		overtime = b.OvertimeHours.Value.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO breakdowns (
			employee_id, work_date, completeness, check_in, check_out,
			total_stay_hours, break_hours, net_work_hours, night_hours,
			regular_hours, overtime_hours, had_dinner_break
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (employee_id, work_date) DO UPDATE SET
			completeness = excluded.completeness,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			total_stay_hours = excluded.total_stay_hours,
			break_hours = excluded.break_hours,
			net_work_hours = excluded.net_work_hours,
			night_hours = excluded.night_hours,
			regular_hours = excluded.regular_hours,
			overtime_hours = excluded.overtime_hours,
			had_dinner_break = excluded.had_dinner_break`,
		string(b.EmployeeID), b.Date.String(), string(b.Completeness),
		checkIn, checkOut, stay, brk, net, night, regular, overtime,
		boolToInt(b.HadDinnerBreak),
	)
	return err
}

func (s *Store) GetBreakdown(ctx context.Context, emp attendance.EmployeeID, date attendance.WorkDate) (*attendance.WorkHourBreakdown, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, work_date, completeness, check_in, check_out,
		       total_stay_hours, break_hours, net_work_hours, night_hours,
		       regular_hours, overtime_hours, had_dinner_break
		FROM breakdowns WHERE employee_id = ? AND work_date = ?`,
		string(emp), date.String())
	b, err := scanBreakdown(row)
	if err == sql.ErrNoRows {
		return nil, attendance.ErrRecordNotFound
	}
	return b, err
}

func (s *Store) ListBreakdowns(ctx context.Context, emp attendance.EmployeeID, from, to attendance.WorkDate) ([]*attendance.WorkHourBreakdown, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, work_date, completeness, check_in, check_out,
		       total_stay_hours, break_hours, net_work_hours, night_hours,
		       regular_hours, overtime_hours, had_dinner_break
		FROM breakdowns
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date`,
		string(emp), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*attendance.WorkHourBreakdown
	for rows.Next() {
		b, err := scanBreakdown(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) EmployeesInRange(ctx context.Context, from, to attendance.WorkDate) ([]attendance.EmployeeID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT employee_id FROM breakdowns
		WHERE work_date >= ? AND work_date <= ?
		ORDER BY employee_id`,
		from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.EmployeeID
	for rows.Next() {
		var emp string
		if err := rows.Scan(&emp); err != nil {
			return nil, err
		}
		result = append(result, attendance.EmployeeID(emp))
	}
	return result, rows.Err()
}

func scanBreakdown(row rowScanner) (*attendance.WorkHourBreakdown, error) {
	var (
		empID, workDate, completeness            string
		checkIn, checkOut                        sql.NullString
		stay, brk, net, night, regular, overtime sql.NullString
		dinner                                   int
	)
	err := row.Scan(&empID, &workDate, &completeness, &checkIn, &checkOut,
		&stay, &brk, &net, &night, &regular, &overtime, &dinner)
	if err != nil {
		return nil, err
	}

	date, err := attendance.ParseWorkDate(workDate)
	if err != nil {
		return nil, err
	}
	b := &attendance.WorkHourBreakdown{
		EmployeeID:     attendance.EmployeeID(empID),
		Date:           date,
		Completeness:   attendance.Completeness(completeness),
		HadDinnerBreak: dinner != 0,
	}
	if checkIn.Valid {
		if b.CheckIn, err = parseClockTime(checkIn.String); err != nil {
			return nil, err
		}
	}
	if checkOut.Valid {
		if b.CheckOut, err = parseClockTime(checkOut.String); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		src sql.NullString
		dst *attendance.Hours
	}{
		{stay, &b.TotalStayHours}, {brk, &b.BreakHours}, {net, &b.NetWorkHours},
		{night, &b.NightHours}, {regular, &b.RegularHours}, {overtime, &b.OvertimeHours},
	} {
		if f.src.Valid {
			d, err := decimal.NewFromString(f.src.String)
			if err != nil {
				return nil, err
			}
			*f.dst = attendance.Hours{Value: d}
		}
	}
	return b, nil
}

func parseClockTime(s string) (attendance.ClockTime, error) {
	var ct attendance.ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &ct.Hour, &ct.Minute); err != nil {
		return attendance.ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ct, nil
}

// =============================================================================
// REVIEW QUEUE
// =============================================================================

func (s *Store) AppendReview(ctx context.Context, entry attendance.ReviewEntry) error {
	var resolvedAt any
	if entry.ResolvedAt != nil {
		resolvedAt = entry.ResolvedAt.Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO review_queue
			(id, employee_id, work_date, reason, detail, created_at, resolved, resolved_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.EmployeeID), entry.WorkDate.String(),
		string(entry.Reason), entry.Detail, entry.CreatedAt.Format(time.RFC3339),
		boolToInt(entry.Resolved), entry.ResolvedBy, resolvedAt,
	)
	return err
}

func (s *Store) ListReviews(ctx context.Context, unresolvedOnly bool) ([]attendance.ReviewEntry, error) {
	query := `
		SELECT id, employee_id, work_date, reason, detail, created_at, resolved, resolved_by, resolved_at
		FROM review_queue`
	if unresolvedOnly {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.ReviewEntry
	for rows.Next() {
		var (
			entry                    attendance.ReviewEntry
			empID, workDate, created string
			resolved                 int
			resolvedBy, resolvedAt   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &empID, &workDate, &entry.Reason,
			&entry.Detail, &created, &resolved, &resolvedBy, &resolvedAt); err != nil {
			return nil, err
		}
		entry.EmployeeID = attendance.EmployeeID(empID)
		if entry.WorkDate, err = attendance.ParseWorkDate(workDate); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, err
		}
		entry.Resolved = resolved != 0
		entry.ResolvedBy = resolvedBy.String
		if resolvedAt.Valid {
			t, err := time.Parse(time.RFC3339, resolvedAt.String)
			if err != nil {
				return nil, err
			}
			entry.ResolvedAt = &t
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) ResolveReview(ctx context.Context, id, actor string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_queue SET resolved = 1, resolved_by = ?, resolved_at = ?
		WHERE id = ?`,
		actor, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

func (s *Store) SavePeriod(ctx context.Context, p settlement.Period) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_periods (id, start_date, end_date, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status`,
		string(p.ID), p.StartDate.String(), p.EndDate.String(), string(p.Status))
	return err
}

func (s *Store) GetPeriod(ctx context.Context, id attendance.PeriodID) (*settlement.Period, error) {
	var start, end, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT start_date, end_date, status FROM settlement_periods WHERE id = ?`,
		string(id)).Scan(&start, &end, &status)
	if err == sql.ErrNoRows {
		return nil, attendance.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	p := &settlement.Period{ID: id, Status: settlement.Status(status)}
	if p.StartDate, err = attendance.ParseWorkDate(start); err != nil {
		return nil, err
	}
	if p.EndDate, err = attendance.ParseWorkDate(end); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) SaveResult(ctx context.Context, r *settlement.Result) error {
	// Frozen rows stay frozen: the upsert skips finalized results.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_results (
			period_id, employee_id, total_actual_hours, weekly_average_hours,
			excess_hours, total_night_hours, overtime_allowance_hours,
			overtime_allowance_amount, finalized, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (period_id, employee_id) DO UPDATE SET
			total_actual_hours = excluded.total_actual_hours,
			weekly_average_hours = excluded.weekly_average_hours,
			excess_hours = excluded.excess_hours,
			total_night_hours = excluded.total_night_hours,
			overtime_allowance_hours = excluded.overtime_allowance_hours,
			overtime_allowance_amount = excluded.overtime_allowance_amount,
			computed_at = excluded.computed_at
		WHERE settlement_results.finalized = 0`,
		string(r.PeriodID), string(r.EmployeeID),
		r.TotalActualHours.Value.String(), r.WeeklyAverageHours.Value.String(),
		r.ExcessHours.Value.String(), r.TotalNightHours.Value.String(),
		r.OvertimeAllowanceHours.Value.String(), r.OvertimeAllowanceAmount.String(),
		r.ComputedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrPeriodFinalized
	}
	return nil
}

func (s *Store) ResultsForPeriod(ctx context.Context, id attendance.PeriodID) ([]*settlement.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period_id, employee_id, total_actual_hours, weekly_average_hours,
		       excess_hours, total_night_hours, overtime_allowance_hours,
		       overtime_allowance_amount, finalized, finalized_by, finalized_at, computed_at
		FROM settlement_results WHERE period_id = ?
		ORDER BY employee_id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*settlement.Result
	for rows.Next() {
		var (
			r                                                      settlement.Result
			periodID, empID, computed                              string
			total, weekly, excess, night, allowHours, allowAmount string
			finalized                                              int
			finalizedBy, finalizedAt                               sql.NullString
		)
		if err := rows.Scan(&periodID, &empID, &total, &weekly, &excess, &night,
			&allowHours, &allowAmount, &finalized, &finalizedBy, &finalizedAt, &computed); err != nil {
			return nil, err
		}
		r.PeriodID = attendance.PeriodID(periodID)
		r.EmployeeID = attendance.EmployeeID(empID)
		for _, f := range []struct {
			src string
			dst *attendance.Hours
		}{
			{total, &r.TotalActualHours}, {weekly, &r.WeeklyAverageHours},
			{excess, &r.ExcessHours}, {night, &r.TotalNightHours},
			{allowHours, &r.OvertimeAllowanceHours},
		} {
			d, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, err
			}
			*f.dst = attendance.Hours{Value: d}
		}
		if r.OvertimeAllowanceAmount, err = decimal.NewFromString(allowAmount); err != nil {
			return nil, err
		}
		r.Finalized = finalized != 0
		r.FinalizedBy = finalizedBy.String
		if finalizedAt.Valid {
			t, err := time.Parse(time.RFC3339, finalizedAt.String)
			if err != nil {
				return nil, err
			}
			r.FinalizedAt = &t
		}
		if r.ComputedAt, err = time.Parse(time.RFC3339, computed); err != nil {
			return nil, err
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

func (s *Store) FinalizeResults(ctx context.Context, id attendance.PeriodID, actor string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE settlement_results
		SET finalized = 1, finalized_by = ?, finalized_at = ?
		WHERE period_id = ?`,
		actor, at.Format(time.RFC3339), string(id))
	return err
}

func (s *Store) ReopenResults(ctx context.Context, id attendance.PeriodID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE settlement_results
		SET finalized = 0, finalized_by = NULL, finalized_at = NULL
		WHERE period_id = ?`, string(id))
	return err
}

func (s *Store) AppendAudit(ctx context.Context, entry settlement.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_audit (id, period_id, action, actor_id, ts, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.PeriodID), string(entry.Action),
		entry.ActorID, entry.Timestamp.Format(time.RFC3339), entry.Detail)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint failures in the message; this
	// avoids depending on the driver's error types.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
