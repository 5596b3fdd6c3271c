/*
Package sqlite provides a SQLite-backed implementation of core.Store.

PURPOSE:
  Persists the four reconciliation sources (tasks, timesheet days, leaves,
  calendar events) and serves them back to the timeline loader. The same
  SQL runs on PostgreSQL with minor dialect changes.

SOFT-DELETE ENFORCEMENT:
  Timesheet history is never hard-deleted:
  - No DELETE statements on timesheet_days or timesheet_entries
  - Removing an entry sets is_deleted = 1
  - An entry missing from a saved day keeps its stored row

KEY TABLES:
  tasks:             Planned work with date, ETA and completion
  timesheet_days:    One row per (employee_id, date), carries admin_remark
  timesheet_entries: Logged hours, ordered by position within a day
  leaves:            Absence spans with approval status
  calendar_events:   Company calendar, holidays flagged

INDEXES:
  - idx_timesheet_days_unique: one day per employee and date
  - idx_tasks_owner:           ListTasks hot path
  - idx_leaves_employee:       ListApprovedLeaves hot path

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite serializes writers anyway;
  the mutex keeps ":memory:" databases on a single connection safe.

USAGE:
  store, err := sqlite.New("./data/worklog.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  loader := timeline.NewLoader(store, logger)

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/worklog-timeline/core"
)

// Store implements core.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ core.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

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

// Ping checks the database is reachable (health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	-- Tasks
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		content TEXT NOT NULL,
		planned_date TEXT NOT NULL DEFAULT '',
		eta_minutes INTEGER NOT NULL DEFAULT 0,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_date TEXT NOT NULL DEFAULT '',
		framework_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner
		ON tasks(owner_id, created_at);

	-- Timesheet days (never deleted)
	CREATE TABLE IF NOT EXISTS timesheet_days (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		admin_remark TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_timesheet_days_unique
		ON timesheet_days(employee_id, date);

	-- Timesheet entries (soft-deleted only)
	CREATE TABLE IF NOT EXISTS timesheet_entries (
		id TEXT PRIMARY KEY,
		day_id TEXT NOT NULL REFERENCES timesheet_days(id),
		position INTEGER NOT NULL,
		task_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		duration_hours REAL NOT NULL DEFAULT 0,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_timesheet_entries_day
		ON timesheet_entries(day_id, position);

	-- Leaves
	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		leave_type TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_employee
		ON leaves(employee_id, status);

	-- Calendar events (global)
	CREATE TABLE IF NOT EXISTS calendar_events (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		title TEXT NOT NULL,
		event_type TEXT NOT NULL DEFAULT 'event',
		is_holiday BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_calendar_events_date
		ON calendar_events(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TASK STORE (core.TaskSource)
// =============================================================================

const taskColumns = `id, owner_id, content, planned_date, eta_minutes, is_completed, completed_date, framework_id, created_at`

// ListTasks returns the employee's tasks, oldest first.
func (s *Store) ListTasks(ctx context.Context, employeeID string) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE owner_id = ? ORDER BY created_at ASC, id ASC",
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask retrieves a task by ID. Returns nil, nil if it does not exist.
func (s *Store) GetTask(ctx context.Context, id string) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTask(s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTask inserts or replaces a task.
func (s *Store) SaveTask(ctx context.Context, task core.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			content = excluded.content,
			planned_date = excluded.planned_date,
			eta_minutes = excluded.eta_minutes,
			is_completed = excluded.is_completed,
			completed_date = excluded.completed_date,
			framework_id = excluded.framework_id
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.OwnerID, task.Content, task.PlannedDate, task.EtaMinutes,
		task.IsCompleted, task.CompletedDate, task.FrameworkID,
		task.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// DeleteTask removes a task. Timesheet entries that referenced it keep
// their TaskID and fall back to content matching.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// createdLayout is fixed-width so created_at sorts as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (core.Task, error) {
	var t core.Task
	var createdAt string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Content, &t.PlannedDate, &t.EtaMinutes,
		&t.IsCompleted, &t.CompletedDate, &t.FrameworkID, &createdAt)
	if err != nil {
		return core.Task{}, err
	}
	t.CreatedAt, _ = time.Parse(createdLayout, createdAt)
	return t, nil
}

// =============================================================================
// TIMESHEET STORE (core.TimesheetSource, core.TimesheetWriter)
// =============================================================================

// ListTimesheets returns every stored day for the employee, oldest first,
// deleted entries included.
func (s *Store) ListTimesheets(ctx context.Context, employeeID string) ([]core.TimesheetDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, employee_id, date, status, admin_remark FROM timesheet_days WHERE employee_id = ? ORDER BY date ASC",
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list timesheets: %w", err)
	}

	var days []core.TimesheetDay
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		days = append(days, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range days {
		entries, err := s.loadEntries(ctx, s.db, days[i].ID)
		if err != nil {
			return nil, err
		}
		days[i].Entries = entries
	}
	return days, nil
}

// GetTimesheetDay returns nil, nil if the employee has no day at date.
func (s *Store) GetTimesheetDay(ctx context.Context, employeeID, date string) (*core.TimesheetDay, error) {
	key, ok := core.DateKey(date)
	if !ok {
		return nil, &core.ValidationError{Field: "date", Value: date, Err: core.ErrInvalidDate}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getDay(ctx, s.db, employeeID, key)
}

// SaveTimesheetDay upserts the day keyed by (EmployeeID, Date) and its
// entries keyed by ID, in one transaction. An existing day keeps its ID.
func (s *Store) SaveTimesheetDay(ctx context.Context, day core.TimesheetDay) (core.TimesheetDay, error) {
	key, ok := core.DateKey(day.Date)
	if !ok {
		return core.TimesheetDay{}, &core.ValidationError{Field: "date", Value: day.Date, Err: core.ErrInvalidDate}
	}
	day.Date = key
	if day.Status == "" {
		day.Status = core.TimesheetDraft
	}
	if day.ID == "" {
		day.ID = core.NewID()
	}
	for _, e := range day.Entries {
		if e.DurationHours < 0 {
			return core.TimesheetDay{}, &core.ValidationError{Field: "duration_hours", Value: e.ID, Err: core.ErrNegativeDuration}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.TimesheetDay{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO timesheet_days (id, employee_id, date, status, admin_remark, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			status = excluded.status,
			admin_remark = excluded.admin_remark,
			updated_at = excluded.updated_at
	`
	_, err = sqlTx.ExecContext(ctx, query,
		day.ID, day.EmployeeID, day.Date, string(day.Status),
		nullRemark(day.AdminRemark),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return core.TimesheetDay{}, fmt.Errorf("failed to save timesheet day: %w", err)
	}

	if err := sqlTx.QueryRowContext(ctx,
		"SELECT id FROM timesheet_days WHERE employee_id = ? AND date = ?",
		day.EmployeeID, day.Date,
	).Scan(&day.ID); err != nil {
		return core.TimesheetDay{}, fmt.Errorf("failed to read back timesheet day: %w", err)
	}

	entryQuery := `
		INSERT INTO timesheet_entries (id, day_id, position, task_id, description, duration_hours, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			task_id = excluded.task_id,
			description = excluded.description,
			duration_hours = excluded.duration_hours,
			is_deleted = excluded.is_deleted
	`
	// Stored entries the caller omitted move behind the incoming ones and
	// keep their relative order.
	if _, err := sqlTx.ExecContext(ctx,
		"UPDATE timesheet_entries SET position = position + ? WHERE day_id = ?",
		len(day.Entries), day.ID,
	); err != nil {
		return core.TimesheetDay{}, fmt.Errorf("failed to reorder timesheet entries: %w", err)
	}
	for i := range day.Entries {
		e := &day.Entries[i]
		if e.ID == "" {
			e.ID = core.NewID()
		}
		if _, err := sqlTx.ExecContext(ctx, entryQuery,
			e.ID, day.ID, i, e.TaskID, e.Description, e.DurationHours, e.IsDeleted,
		); err != nil {
			return core.TimesheetDay{}, fmt.Errorf("failed to save timesheet entry: %w", err)
		}
	}

	saved, err := s.getDay(ctx, sqlTx, day.EmployeeID, day.Date)
	if err != nil {
		return core.TimesheetDay{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return core.TimesheetDay{}, fmt.Errorf("failed to commit timesheet day: %w", err)
	}
	return *saved, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getDay(ctx context.Context, q querier, employeeID, date string) (*core.TimesheetDay, error) {
	d, err := scanDay(q.QueryRowContext(ctx,
		"SELECT id, employee_id, date, status, admin_remark FROM timesheet_days WHERE employee_id = ? AND date = ?",
		employeeID, date,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d.Entries, err = s.loadEntries(ctx, q, d.ID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) loadEntries(ctx context.Context, q querier, dayID string) ([]core.TimesheetEntry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, task_id, description, duration_hours, is_deleted FROM timesheet_entries WHERE day_id = ? ORDER BY position ASC",
		dayID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load timesheet entries: %w", err)
	}
	defer rows.Close()

	entries := []core.TimesheetEntry{}
	for rows.Next() {
		var e core.TimesheetEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Description, &e.DurationHours, &e.IsDeleted); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanDay(row rowScanner) (core.TimesheetDay, error) {
	var d core.TimesheetDay
	var status string
	var remark sql.NullString
	if err := row.Scan(&d.ID, &d.EmployeeID, &d.Date, &status, &remark); err != nil {
		return core.TimesheetDay{}, err
	}
	d.Status = core.TimesheetStatus(status)
	if remark.Valid {
		r := remark.String
		d.AdminRemark = &r
	}
	return d, nil
}

// =============================================================================
// LEAVE STORE (core.LeaveSource)
// =============================================================================

// ListApprovedLeaves returns only approved leaves.
func (s *Store) ListApprovedLeaves(ctx context.Context, employeeID string) ([]core.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, start_date, end_date, status, leave_type, reason
		FROM leaves
		WHERE employee_id = ? AND status = ?
		ORDER BY start_date ASC, id ASC
	`, employeeID, string(core.LeaveApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}
	defer rows.Close()

	var leaves []core.Leave
	for rows.Next() {
		var l core.Leave
		var status string
		if err := rows.Scan(&l.ID, &l.EmployeeID, &l.StartDate, &l.EndDate, &status, &l.Type, &l.Reason); err != nil {
			return nil, err
		}
		l.Status = core.LeaveStatus(status)
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// SaveLeave inserts or replaces a leave.
func (s *Store) SaveLeave(ctx context.Context, leave core.Leave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leaves (id, employee_id, start_date, end_date, status, leave_type, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			leave_type = excluded.leave_type,
			reason = excluded.reason
	`
	_, err := s.db.ExecContext(ctx, query,
		leave.ID, leave.EmployeeID, leave.StartDate, leave.EndDate,
		string(leave.Status), leave.Type, leave.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to save leave: %w", err)
	}
	return nil
}

// =============================================================================
// CALENDAR STORE (core.CalendarSource)
// =============================================================================

func (s *Store) ListCalendarEvents(ctx context.Context) ([]core.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date, title, event_type, is_holiday FROM calendar_events ORDER BY date ASC, id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer rows.Close()

	var events []core.CalendarEvent
	for rows.Next() {
		var e core.CalendarEvent
		var eventType string
		if err := rows.Scan(&e.ID, &e.Date, &e.Title, &eventType, &e.IsHoliday); err != nil {
			return nil, err
		}
		e.Type = core.EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) SaveCalendarEvent(ctx context.Context, event core.CalendarEvent) error {
	if event.Type == "" {
		event.Type = core.EventOther
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO calendar_events (id, date, title, event_type, is_holiday)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			title = excluded.title,
			event_type = excluded.event_type,
			is_holiday = excluded.is_holiday
	`
	_, err := s.db.ExecContext(ctx, query, event.ID, event.Date, event.Title, string(event.Type), event.IsHoliday)
	if err != nil {
		return fmt.Errorf("failed to save calendar event: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"timesheet_entries", "timesheet_days", "tasks", "leaves", "calendar_events"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullRemark(r *string) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *r, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// InsertTimesheetDay creates a day and fails with core.ErrDuplicateDay if
// the employee already has one at that date.
func (s *Store) InsertTimesheetDay(ctx context.Context, day core.TimesheetDay) (core.TimesheetDay, error) {
	key, ok := core.DateKey(day.Date)
	if !ok {
		return core.TimesheetDay{}, &core.ValidationError{Field: "date", Value: day.Date, Err: core.ErrInvalidDate}
	}
	if day.ID == "" {
		day.ID = core.NewID()
	}
	if day.Status == "" {
		day.Status = core.TimesheetDraft
	}

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO timesheet_days (id, employee_id, date, status, admin_remark, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		day.ID, day.EmployeeID, key, string(day.Status), nullRemark(day.AdminRemark),
		time.Now().UTC().Format(time.RFC3339),
	)
	s.mu.Unlock()
	if isUniqueConstraintError(err) {
		return core.TimesheetDay{}, core.ErrDuplicateDay
	}
	if err != nil {
		return core.TimesheetDay{}, fmt.Errorf("failed to insert timesheet day: %w", err)
	}

	day.Date = key
	return s.SaveTimesheetDay(ctx, day)
}
