/*
Package core holds the entities and source contracts of the worklog timeline.

KEY CONCEPTS IN THIS FILE (types.go):
  - Task: a planned piece of work with a date and an ETA in minutes
  - TimesheetDay: one employee's log for one date, holding entries
  - TimesheetEntry: hours spent, optionally linked to a Task
  - Leave: an absence span, only Approved spans count
  - CalendarEvent: company calendar rows, some of them holidays

DESIGN PRINCIPLES:
  1. Dates are "YYYY-MM-DD" strings on the wire and in storage. Comparison
     goes through DateKey so a malformed value never matches anything.
  2. Timesheet days are never hard-deleted; entries are soft-deleted and
     stay for audit.
  3. Hour totals use decimal.Decimal so 0.1 + 0.2 sums behave.

SEE ALSO:
  - store.go: the four read contracts and the one write contract
  - reconcile/: classification, deltas and day merging over these types
*/
package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaskEditWindow is how long after creation a task may still be edited.
const TaskEditWindow = 24 * time.Hour

// NewID returns a fresh random identifier.
func NewID() string { return uuid.NewString() }

// =============================================================================
// TASK
// =============================================================================

type Task struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Content       string    `json:"content"`
	PlannedDate   string    `json:"planned_date"`
	EtaMinutes    int       `json:"eta_minutes,omitempty"`
	IsCompleted   bool      `json:"is_completed"`
	CompletedDate string    `json:"completed_date,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	FrameworkID   string    `json:"framework_id,omitempty"`
}

// EditableAt reports whether content, date or ETA may still change.
func (t *Task) EditableAt(now time.Time) bool {
	return now.Sub(t.CreatedAt) <= TaskEditWindow
}

// Complete marks the task done on the given date.
func (t *Task) Complete(date string) error {
	key, ok := DateKey(date)
	if !ok {
		return &ValidationError{Field: "completed_date", Value: date, Err: ErrInvalidDate}
	}
	t.IsCompleted = true
	t.CompletedDate = key
	return nil
}

// Reopen clears completion. An open task never carries a completion date.
func (t *Task) Reopen() {
	t.IsCompleted = false
	t.CompletedDate = ""
}

// Validate checks the fields a store must reject.
func (t *Task) Validate() error {
	if t.PlannedDate != "" {
		if _, ok := DateKey(t.PlannedDate); !ok {
			return &ValidationError{Field: "planned_date", Value: t.PlannedDate, Err: ErrInvalidDate}
		}
	}
	if !t.IsCompleted && t.CompletedDate != "" {
		t.CompletedDate = ""
	}
	return nil
}

// =============================================================================
// TIMESHEET
// =============================================================================

type TimesheetStatus string

const (
	TimesheetDraft     TimesheetStatus = "draft"
	TimesheetSubmitted TimesheetStatus = "submitted"
)

type TimesheetEntry struct {
	ID            string  `json:"id"`
	TaskID        string  `json:"task_id,omitempty"`
	Description   string  `json:"description"`
	DurationHours float64 `json:"duration_hours"`
	IsDeleted     bool    `json:"is_deleted"`
}

// Duration returns the logged hours as a decimal.
func (e TimesheetEntry) Duration() decimal.Decimal {
	return decimal.NewFromFloat(e.DurationHours)
}

type TimesheetDay struct {
	ID          string           `json:"id"`
	EmployeeID  string           `json:"employee_id"`
	Date        string           `json:"date"`
	Status      TimesheetStatus  `json:"status"`
	Entries     []TimesheetEntry `json:"entries"`
	AdminRemark *string          `json:"admin_remark"`
}

// NewTimesheetDay returns an empty draft day.
func NewTimesheetDay(employeeID, date string) (TimesheetDay, error) {
	key, ok := DateKey(date)
	if !ok {
		return TimesheetDay{}, &ValidationError{Field: "date", Value: date, Err: ErrInvalidDate}
	}
	return TimesheetDay{
		ID:         NewID(),
		EmployeeID: employeeID,
		Date:       key,
		Status:     TimesheetDraft,
		Entries:    []TimesheetEntry{},
	}, nil
}

// AppendEntry adds a new entry and assigns it an ID if it has none.
func (d *TimesheetDay) AppendEntry(e TimesheetEntry) (TimesheetEntry, error) {
	if e.DurationHours < 0 {
		return TimesheetEntry{}, &ValidationError{Field: "duration_hours", Value: decimal.NewFromFloat(e.DurationHours).String(), Err: ErrNegativeDuration}
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	e.IsDeleted = false
	d.Entries = append(d.Entries, e)
	return e, nil
}

// EditEntry replaces description, task link and duration of an entry.
func (d *TimesheetDay) EditEntry(e TimesheetEntry) error {
	if e.DurationHours < 0 {
		return &ValidationError{Field: "duration_hours", Value: decimal.NewFromFloat(e.DurationHours).String(), Err: ErrNegativeDuration}
	}
	for i := range d.Entries {
		if d.Entries[i].ID == e.ID && !d.Entries[i].IsDeleted {
			d.Entries[i].TaskID = e.TaskID
			d.Entries[i].Description = e.Description
			d.Entries[i].DurationHours = e.DurationHours
			return nil
		}
	}
	return ErrNotFound
}

// SoftDeleteEntry flags an entry; it stays in Entries for audit.
func (d *TimesheetDay) SoftDeleteEntry(entryID string) error {
	for i := range d.Entries {
		if d.Entries[i].ID == entryID {
			d.Entries[i].IsDeleted = true
			return nil
		}
	}
	return ErrNotFound
}

// ActiveEntries returns the entries that count towards totals.
func (d *TimesheetDay) ActiveEntries() []TimesheetEntry {
	active := make([]TimesheetEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		if !e.IsDeleted {
			active = append(active, e)
		}
	}
	return active
}

// TotalHours sums non-deleted entries.
func (d *TimesheetDay) TotalHours() decimal.Decimal {
	total := decimal.Zero
	for _, e := range d.ActiveEntries() {
		total = total.Add(e.Duration())
	}
	return total
}

func (d *TimesheetDay) Submit() { d.Status = TimesheetSubmitted }

// =============================================================================
// LEAVE
// =============================================================================

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

type Leave struct {
	ID         string      `json:"id"`
	EmployeeID string      `json:"employee_id"`
	StartDate  string      `json:"start_date"`
	EndDate    string      `json:"end_date"`
	Status     LeaveStatus `json:"status"`
	Type       string      `json:"type"`
	Reason     string      `json:"reason"`
}

// Covers reports whether the approved leave spans day, inclusive.
// Malformed bounds never cover anything.
func (l Leave) Covers(day TimePoint) bool {
	if l.Status != LeaveApproved {
		return false
	}
	start, ok := ParseDate(l.StartDate)
	if !ok {
		return false
	}
	end, ok := ParseDate(l.EndDate)
	if !ok {
		return false
	}
	return Period{Start: start, End: end}.Contains(day)
}

// Details is the display text of a leave day: type and reason.
func (l Leave) Details() string {
	return strings.TrimSpace(l.Type + " " + l.Reason)
}

// =============================================================================
// CALENDAR
// =============================================================================

type EventType string

const (
	EventHoliday EventType = "holiday"
	EventMeeting EventType = "meeting"
	EventOther   EventType = "event"
)

type CalendarEvent struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Type      EventType `json:"type"`
	IsHoliday bool      `json:"is_holiday"`
}
