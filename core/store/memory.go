// Package store provides in-memory core.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/worklog-timeline/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	tasks      map[string]core.Task
	timesheets map[dayKey]core.TimesheetDay
	leaves     map[string]core.Leave
	events     map[string]core.CalendarEvent
}

type dayKey struct {
	EmployeeID string
	Date       string
}

var _ core.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tasks:      make(map[string]core.Task),
		timesheets: make(map[dayKey]core.TimesheetDay),
		leaves:     make(map[string]core.Leave),
		events:     make(map[string]core.CalendarEvent),
	}
}

func (m *Memory) ListTasks(_ context.Context, employeeID string) ([]core.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Task
	for _, t := range m.tasks {
		if t.OwnerID == employeeID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*core.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) SaveTask(_ context.Context, task core.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ListTimesheets(_ context.Context, employeeID string) ([]core.TimesheetDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.TimesheetDay
	for k, d := range m.timesheets {
		if k.EmployeeID == employeeID {
			result = append(result, cloneDay(d))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func (m *Memory) GetTimesheetDay(_ context.Context, employeeID, date string) (*core.TimesheetDay, error) {
	key, ok := core.DateKey(date)
	if !ok {
		return nil, &core.ValidationError{Field: "date", Value: date, Err: core.ErrInvalidDate}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.timesheets[dayKey{EmployeeID: employeeID, Date: key}]
	if !ok {
		return nil, nil
	}
	d = cloneDay(d)
	return &d, nil
}

// SaveTimesheetDay upserts by (EmployeeID, Date). An existing day keeps
// its ID even if the caller sent a different one. Entries are upserted by
// ID; stored entries missing from day are kept, never dropped.
func (m *Memory) SaveTimesheetDay(_ context.Context, day core.TimesheetDay) (core.TimesheetDay, error) {
	key, ok := core.DateKey(day.Date)
	if !ok {
		return core.TimesheetDay{}, &core.ValidationError{Field: "date", Value: day.Date, Err: core.ErrInvalidDate}
	}
	day.Date = key
	if day.Status == "" {
		day.Status = core.TimesheetDraft
	}
	for _, e := range day.Entries {
		if e.DurationHours < 0 {
			return core.TimesheetDay{}, &core.ValidationError{Field: "duration_hours", Value: e.ID, Err: core.ErrNegativeDuration}
		}
	}
	day = cloneDay(day)
	for i := range day.Entries {
		if day.Entries[i].ID == "" {
			day.Entries[i].ID = core.NewID()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := dayKey{EmployeeID: day.EmployeeID, Date: key}
	if existing, ok := m.timesheets[k]; ok {
		day.ID = existing.ID
		day.Entries = mergeEntries(existing.Entries, day.Entries)
	} else if day.ID == "" {
		day.ID = core.NewID()
	}
	m.timesheets[k] = cloneDay(day)
	return cloneDay(day), nil
}

func (m *Memory) ListApprovedLeaves(_ context.Context, employeeID string) ([]core.Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Leave
	for _, l := range m.leaves {
		if l.EmployeeID == employeeID && l.Status == core.LeaveApproved {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate < result[j].StartDate })
	return result, nil
}

func (m *Memory) SaveLeave(_ context.Context, leave core.Leave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[leave.ID] = leave
	return nil
}

func (m *Memory) ListCalendarEvents(_ context.Context) ([]core.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.CalendarEvent, 0, len(m.events))
	for _, e := range m.events {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func (m *Memory) SaveCalendarEvent(_ context.Context, event core.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = event
	return nil
}

// mergeEntries returns incoming followed by the stored entries it omits.
func mergeEntries(stored, incoming []core.TimesheetEntry) []core.TimesheetEntry {
	seen := make(map[string]bool, len(incoming))
	for _, e := range incoming {
		seen[e.ID] = true
	}
	for _, e := range stored {
		if !seen[e.ID] {
			incoming = append(incoming, e)
		}
	}
	return incoming
}

func cloneDay(d core.TimesheetDay) core.TimesheetDay {
	entries := make([]core.TimesheetEntry, len(d.Entries))
	copy(entries, d.Entries)
	d.Entries = entries
	if d.AdminRemark != nil {
		remark := *d.AdminRemark
		d.AdminRemark = &remark
	}
	return d
}
