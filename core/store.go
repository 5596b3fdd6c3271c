/*
store.go - Source contracts consumed by the reconciliation core

PURPOSE:
  The timeline never talks to a database or HTTP API directly. It consumes
  four read operations and one write operation. Anything that implements
  them can feed the timeline: SQLite, an in-memory fake, a remote service.

KEY INTERFACES:
  TaskSource:       listTasks(employeeID)
  TimesheetSource:  listTimesheets(employeeID), all historical days
  LeaveSource:      listApprovedLeaves(employeeID)
  CalendarSource:   listCalendarEvents(), global
  TimesheetWriter:  saveTimesheetDay(day), used for logging and remarks

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite store
  - core/store/memory.go:   in-memory store for tests and dev

SEE ALSO:
  - timeline/loader.go: joins the four reads
  - timeline/annotations.go: the only caller of SaveTimesheetDay in the core
*/
package core

import "context"

type TaskSource interface {
	ListTasks(ctx context.Context, employeeID string) ([]Task, error)
}

type TimesheetSource interface {
	ListTimesheets(ctx context.Context, employeeID string) ([]TimesheetDay, error)
}

type LeaveSource interface {
	// ListApprovedLeaves returns only leaves with Status == LeaveApproved.
	ListApprovedLeaves(ctx context.Context, employeeID string) ([]Leave, error)
}

type CalendarSource interface {
	ListCalendarEvents(ctx context.Context) ([]CalendarEvent, error)
}

type TimesheetWriter interface {
	// SaveTimesheetDay upserts the day keyed by (EmployeeID, Date) and
	// returns it as stored.
	SaveTimesheetDay(ctx context.Context, day TimesheetDay) (TimesheetDay, error)
}

// Sources bundles the four read contracts.
type Sources interface {
	TaskSource
	TimesheetSource
	LeaveSource
	CalendarSource
}

// Store is everything the timeline and its HTTP surface need.
type Store interface {
	Sources
	TimesheetWriter

	GetTimesheetDay(ctx context.Context, employeeID, date string) (*TimesheetDay, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	SaveTask(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, id string) error
	SaveLeave(ctx context.Context, leave Leave) error
	SaveCalendarEvent(ctx context.Context, event CalendarEvent) error
}
