package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/worklog-timeline/core"
)

// =============================================================================
// ENTITY MERGER - Plan, actual, leave and calendar into one DayRecord
// =============================================================================

// SundayTitle is shown on Sundays that carry no holiday of their own.
const SundayTitle = "SUNDAY"

type DayKind string

const (
	KindHoliday DayKind = "holiday"
	KindSunday  DayKind = "sunday"
	KindLeave   DayKind = "leave"
	KindWorking DayKind = "working"
)

// Sources are the four collections for one employee, already fetched.
type Sources struct {
	Tasks      []core.Task          `json:"tasks"`
	Timesheets []core.TimesheetDay  `json:"timesheets"`
	Leaves     []core.Leave         `json:"leaves"`
	Events     []core.CalendarEvent `json:"events"`
}

// LinkedEntry is a non-deleted entry with its resolved task.
type LinkedEntry struct {
	Entry      core.TimesheetEntry `json:"entry"`
	Resolution Resolution          `json:"resolution"`
}

// DayRecord is derived and never mutated; a rebuild replaces it.
type DayRecord struct {
	Date         string             `json:"date"`
	Kind         DayKind            `json:"kind"`
	IsHoliday    bool               `json:"is_holiday"`
	IsSunday     bool               `json:"is_sunday"`
	HolidayTitle string             `json:"holiday_title,omitempty"`
	IsLeave      bool               `json:"is_leave"`
	LeaveDetails string             `json:"leave_details,omitempty"`
	Tasks        []core.Task        `json:"tasks"`
	Timesheet    *core.TimesheetDay `json:"timesheet"`
	Entries      []LinkedEntry      `json:"entries"`
	TotalHours   float64            `json:"total_hours"`
	IsToday      bool               `json:"is_today"`
}

// NonWorking is true for holidays and Sundays.
func (r DayRecord) NonWorking() bool { return r.IsHoliday || r.IsSunday }

// BuildDayRecord merges one date. First match wins:
//  1. a holiday event on the date
//  2. Sunday
//  3. an approved leave covering the date
//  4. a working day with its planned tasks and its timesheet
//
// A holiday inside an approved leave shows as the holiday.
func BuildDayRecord(date core.TimePoint, tasks []core.Task, timesheets []core.TimesheetDay, leaves []core.Leave, events []core.CalendarEvent, today core.TimePoint) DayRecord {
	idx := newSourceIndex(Sources{Tasks: tasks, Timesheets: timesheets, Leaves: leaves, Events: events})
	return idx.build(date, today)
}

// BuildRange merges every date of the period, ascending and without gaps.
func BuildRange(period core.Period, src Sources, today core.TimePoint) []DayRecord {
	idx := newSourceIndex(src)
	days := period.Days()
	records := make([]DayRecord, len(days))
	for i, d := range days {
		records[i] = idx.build(d, today)
	}
	return records
}

type sourceIndex struct {
	tasksByDate map[string][]core.Task
	dayByDate   map[string]*core.TimesheetDay
	holidays    map[string]string
	leaves      []core.Leave
	resolver    *Resolver
}

func newSourceIndex(src Sources) *sourceIndex {
	idx := &sourceIndex{
		tasksByDate: make(map[string][]core.Task),
		dayByDate:   make(map[string]*core.TimesheetDay),
		holidays:    make(map[string]string),
		leaves:      src.Leaves,
		resolver:    NewResolver(src.Tasks),
	}

	for _, t := range src.Tasks {
		if key, ok := core.DateKey(t.PlannedDate); ok {
			idx.tasksByDate[key] = append(idx.tasksByDate[key], t)
		}
	}
	for key := range idx.tasksByDate {
		tasks := idx.tasksByDate[key]
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	}

	for i := range src.Timesheets {
		key, ok := core.DateKey(src.Timesheets[i].Date)
		if !ok {
			continue
		}
		if _, seen := idx.dayByDate[key]; !seen {
			idx.dayByDate[key] = &src.Timesheets[i]
		}
	}

	for _, e := range src.Events {
		if !e.IsHoliday {
			continue
		}
		key, ok := core.DateKey(e.Date)
		if !ok {
			continue
		}
		if _, seen := idx.holidays[key]; !seen {
			idx.holidays[key] = e.Title
		}
	}
	return idx
}

func (idx *sourceIndex) build(date core.TimePoint, today core.TimePoint) DayRecord {
	key := date.String()
	rec := DayRecord{
		Date:    key,
		IsToday: date.Equal(today),
		Tasks:   []core.Task{},
		Entries: []LinkedEntry{},
	}

	if title, ok := idx.holidays[key]; ok {
		rec.Kind = KindHoliday
		rec.IsHoliday = true
		rec.HolidayTitle = title
		return rec
	}

	if date.IsSunday() {
		rec.Kind = KindSunday
		rec.IsSunday = true
		rec.HolidayTitle = SundayTitle
		return rec
	}

	for _, l := range idx.leaves {
		if l.Covers(date) {
			rec.Kind = KindLeave
			rec.IsLeave = true
			rec.LeaveDetails = l.Details()
			return rec
		}
	}

	rec.Kind = KindWorking
	if tasks := idx.tasksByDate[key]; len(tasks) > 0 {
		rec.Tasks = append(rec.Tasks, tasks...)
	}
	if day, ok := idx.dayByDate[key]; ok {
		ts := *day
		ts.Entries = append([]core.TimesheetEntry(nil), day.Entries...)
		rec.Timesheet = &ts

		total := decimal.Zero
		for _, e := range ts.ActiveEntries() {
			rec.Entries = append(rec.Entries, LinkedEntry{Entry: e, Resolution: idx.resolver.Resolve(e)})
			total = total.Add(e.Duration())
		}
		rec.TotalHours, _ = total.Float64()
	}
	return rec
}
