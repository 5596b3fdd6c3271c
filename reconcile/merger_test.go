package reconcile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/reconcile"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(s string) core.TimePoint {
	tp, ok := core.ParseDate(s)
	if !ok {
		panic("bad test date " + s)
	}
	return tp
}

func approvedLeave(start, end string) core.Leave {
	return core.Leave{ID: "l-" + start, EmployeeID: "emp-1", StartDate: start, EndDate: end, Status: core.LeaveApproved, Type: "vacation", Reason: "family trip"}
}

func holiday(date, title string) core.CalendarEvent {
	return core.CalendarEvent{ID: "h-" + date, Date: date, Title: title, Type: core.EventHoliday, IsHoliday: true}
}

// =============================================================================
// PRIORITY
// =============================================================================

func TestBuildDayRecord_HolidayBeatsLeave(t *testing.T) {
	// GIVEN: 2024-01-15 (Monday) is a declared holiday inside an approved leave
	// THEN: the day is a holiday, not leave
	rec := reconcile.BuildDayRecord(day("2024-01-15"), nil, nil,
		[]core.Leave{approvedLeave("2024-01-12", "2024-01-19")},
		[]core.CalendarEvent{holiday("2024-01-15", "Founders Day")},
		day("2024-01-20"))

	assert.Equal(t, reconcile.KindHoliday, rec.Kind)
	assert.True(t, rec.IsHoliday)
	assert.False(t, rec.IsLeave)
	assert.Equal(t, "Founders Day", rec.HolidayTitle)
	assert.Empty(t, rec.LeaveDetails)
}

func TestBuildDayRecord_SundayWithoutEvent(t *testing.T) {
	// GIVEN: 2024-01-14 is a Sunday with tasks and a timesheet but no event row
	// THEN: marked Sunday, tasks and timesheet suppressed
	tasks := []core.Task{{ID: "t1", PlannedDate: "2024-01-14", Content: "weekend work"}}
	sheets := []core.TimesheetDay{{ID: "d1", Date: "2024-01-14", Entries: []core.TimesheetEntry{{ID: "e1", DurationHours: 2}}}}

	rec := reconcile.BuildDayRecord(day("2024-01-14"), tasks, sheets, nil, nil, day("2024-01-20"))

	assert.Equal(t, reconcile.KindSunday, rec.Kind)
	assert.True(t, rec.IsSunday)
	assert.False(t, rec.IsHoliday)
	assert.Equal(t, reconcile.SundayTitle, rec.HolidayTitle)
	assert.Empty(t, rec.Tasks)
	assert.Nil(t, rec.Timesheet)
	assert.True(t, rec.NonWorking())
}

func TestBuildDayRecord_HolidayOnSunday_KeepsHolidayTitle(t *testing.T) {
	rec := reconcile.BuildDayRecord(day("2024-01-14"), nil, nil, nil,
		[]core.CalendarEvent{holiday("2024-01-14", "Harvest")}, day("2024-01-20"))

	assert.Equal(t, reconcile.KindHoliday, rec.Kind)
	assert.Equal(t, "Harvest", rec.HolidayTitle)
}

func TestBuildDayRecord_ApprovedLeave(t *testing.T) {
	rec := reconcile.BuildDayRecord(day("2024-01-16"),
		[]core.Task{{ID: "t1", PlannedDate: "2024-01-16"}}, nil,
		[]core.Leave{approvedLeave("2024-01-16", "2024-01-16")}, nil, day("2024-01-20"))

	assert.Equal(t, reconcile.KindLeave, rec.Kind)
	assert.True(t, rec.IsLeave)
	assert.Equal(t, "vacation family trip", rec.LeaveDetails)
	assert.Empty(t, rec.Tasks)
}

func TestBuildDayRecord_PendingOrMalformedLeave_Ignored(t *testing.T) {
	pending := approvedLeave("2024-01-15", "2024-01-17")
	pending.Status = core.LeavePending
	malformed := approvedLeave("15/01/2024", "2024-01-17")

	rec := reconcile.BuildDayRecord(day("2024-01-16"), nil, nil, []core.Leave{pending, malformed}, nil, day("2024-01-20"))

	assert.Equal(t, reconcile.KindWorking, rec.Kind)
	assert.False(t, rec.IsLeave)
}

func TestBuildDayRecord_NonHolidayEvent_IsWorkingDay(t *testing.T) {
	meeting := core.CalendarEvent{ID: "m1", Date: "2024-01-16", Title: "All hands", Type: core.EventMeeting}

	rec := reconcile.BuildDayRecord(day("2024-01-16"), nil, nil, nil, []core.CalendarEvent{meeting}, day("2024-01-20"))

	assert.Equal(t, reconcile.KindWorking, rec.Kind)
	assert.False(t, rec.IsHoliday)
}

func TestBuildDayRecord_WorkingDay_JoinsPlanAndActual(t *testing.T) {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tasks := []core.Task{
		{ID: "t2", Content: "Write report", PlannedDate: "2024-01-16", CreatedAt: created.Add(time.Hour)},
		{ID: "t1", Content: "Review PR", PlannedDate: "2024-01-16T00:00:00Z", CreatedAt: created},
		{ID: "t3", Content: "Other day", PlannedDate: "2024-01-17", CreatedAt: created},
	}
	sheets := []core.TimesheetDay{{
		ID: "d1", EmployeeID: "emp-1", Date: "2024-01-16",
		Entries: []core.TimesheetEntry{
			{ID: "e1", TaskID: "t1", DurationHours: 1.5},
			{ID: "e2", Description: "write  REPORT", DurationHours: 2},
			{ID: "e3", TaskID: "t2", DurationHours: 4, IsDeleted: true},
		},
	}}

	rec := reconcile.BuildDayRecord(day("2024-01-16"), tasks, sheets, nil, nil, day("2024-01-16"))

	assert.Equal(t, reconcile.KindWorking, rec.Kind)
	assert.True(t, rec.IsToday)
	require.Len(t, rec.Tasks, 2)
	assert.Equal(t, "t1", rec.Tasks[0].ID)
	assert.Equal(t, "t2", rec.Tasks[1].ID)

	require.NotNil(t, rec.Timesheet)
	assert.Len(t, rec.Timesheet.Entries, 3, "deleted entries stay for audit")
	require.Len(t, rec.Entries, 2)
	assert.Equal(t, reconcile.MatchByID, rec.Entries[0].Resolution.Match)
	assert.Equal(t, reconcile.MatchByContent, rec.Entries[1].Resolution.Match)
	assert.Equal(t, "t2", rec.Entries[1].Resolution.Task.ID)
	assert.InDelta(t, 3.5, rec.TotalHours, 0.0001)
}

func TestBuildDayRecord_NoTimesheet_IsNil(t *testing.T) {
	rec := reconcile.BuildDayRecord(day("2024-01-16"), nil, nil, nil, nil, day("2024-01-20"))
	assert.Nil(t, rec.Timesheet)
	assert.NotNil(t, rec.Tasks)
	assert.False(t, rec.IsToday)
}

// =============================================================================
// RANGE
// =============================================================================

func TestBuildRange_ContiguousAscendingExactLength(t *testing.T) {
	period := core.Period{Start: day("2024-02-20"), End: day("2024-03-05")}

	records := reconcile.BuildRange(period, reconcile.Sources{}, day("2024-03-01"))

	require.Len(t, records, 15) // leap year: Feb has 29 days
	assert.Equal(t, period.Len(), len(records))
	seen := map[string]bool{}
	for i, r := range records {
		assert.False(t, seen[r.Date], "duplicate %s", r.Date)
		seen[r.Date] = true
		assert.Equal(t, period.Start.AddDays(i).String(), r.Date)
	}
	assert.Equal(t, "2024-02-20", records[0].Date)
	assert.Equal(t, "2024-03-05", records[len(records)-1].Date)
	assert.True(t, records[10].IsToday)
}

func TestBuildRange_SingleDay(t *testing.T) {
	records := reconcile.BuildRange(core.Period{Start: day("2024-01-16"), End: day("2024-01-16")}, reconcile.Sources{}, day("2024-01-16"))
	require.Len(t, records, 1)
}

func TestBuildRange_MatchesBuildDayRecord(t *testing.T) {
	src := reconcile.Sources{
		Tasks:      []core.Task{{ID: "t1", PlannedDate: "2024-01-16", Content: "x"}},
		Timesheets: []core.TimesheetDay{{ID: "d1", Date: "2024-01-16", Entries: []core.TimesheetEntry{{ID: "e1", TaskID: "t1", DurationHours: 1}}}},
		Leaves:     []core.Leave{approvedLeave("2024-01-17", "2024-01-18")},
		Events:     []core.CalendarEvent{holiday("2024-01-19", "Fest")},
	}
	period := core.Period{Start: day("2024-01-13"), End: day("2024-01-20")}
	today := day("2024-01-16")

	records := reconcile.BuildRange(period, src, today)

	for i, d := range period.Days() {
		single := reconcile.BuildDayRecord(d, src.Tasks, src.Timesheets, src.Leaves, src.Events, today)
		assert.Equal(t, single, records[i], d.String())
	}
}
