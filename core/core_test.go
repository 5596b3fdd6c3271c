package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DATES
// =============================================================================

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-15", "2024-01-15", true},
		{"2024-01-15T23:30:00+05:00", "2024-01-15", true},
		{"2024-01-15 08:00", "2024-01-15", true},
		{"2024-02-30", "", false},
		{"2024-1-5", "", false},
		{"2024-01-15X", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := DateKey(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTodayAt_UsesLocalCalendarDay(t *testing.T) {
	// 00:30 on the 16th in UTC+5 is still the 15th in UTC.
	plus5 := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2024, 1, 16, 0, 30, 0, 0, plus5)

	assert.Equal(t, "2024-01-16", TodayAt(now).String())
	assert.Equal(t, "2024-01-15", TodayAt(now.UTC()).String())
}

func TestMonthBounds(t *testing.T) {
	assert.Equal(t, "2024-02-29", EndOfMonth(2024, time.February).String())
	assert.Equal(t, "2023-12-31", EndOfMonth(2023, time.December).String())
	assert.Equal(t, 29, MonthPeriod(2024, time.February).Len())
}

// =============================================================================
// PERIOD
// =============================================================================

func TestPeriod(t *testing.T) {
	start := NewTimePoint(2024, 1, 10)
	end := NewTimePoint(2024, 1, 16)

	p, err := NewPeriod(start, end)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Len())
	assert.True(t, p.Contains(start))
	assert.True(t, p.Contains(end))
	assert.False(t, p.Contains(end.AddDays(1)))

	days := p.Days()
	require.Len(t, days, 7)
	assert.Equal(t, "2024-01-10", days[0].String())
	assert.Equal(t, "2024-01-16", days[6].String())

	wider := p.ExtendBackward(14)
	assert.Equal(t, "2023-12-27", wider.Start.String())
	assert.Equal(t, 21, wider.Len())

	_, err = NewPeriod(end, start)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

// =============================================================================
// TASK
// =============================================================================

func TestTask_CompleteAndReopen(t *testing.T) {
	task := Task{ID: "t1", PlannedDate: "2024-01-10"}

	require.NoError(t, task.Complete("2024-01-12T09:00:00Z"))
	assert.True(t, task.IsCompleted)
	assert.Equal(t, "2024-01-12", task.CompletedDate)

	task.Reopen()
	assert.False(t, task.IsCompleted)
	assert.Empty(t, task.CompletedDate)

	err := task.Complete("yesterday")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "completed_date", verr.Field)
	assert.True(t, IsClientError(err))
}

func TestTask_EditWindow(t *testing.T) {
	created := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	task := Task{CreatedAt: created}

	assert.True(t, task.EditableAt(created.Add(TaskEditWindow)))
	assert.False(t, task.EditableAt(created.Add(TaskEditWindow+time.Second)))
}

func TestTask_ValidateDropsStrayCompletionDate(t *testing.T) {
	task := Task{PlannedDate: "2024-01-10", CompletedDate: "2024-01-11"}
	require.NoError(t, task.Validate())
	assert.Empty(t, task.CompletedDate)

	bad := Task{PlannedDate: "10/01/2024"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDate)
}

// =============================================================================
// TIMESHEET
// =============================================================================

func TestTimesheetDay_Entries(t *testing.T) {
	day, err := NewTimesheetDay("emp-1", "2024-01-10T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", day.Date)
	assert.Equal(t, TimesheetDraft, day.Status)
	assert.Nil(t, day.AdminRemark)

	a, err := day.AppendEntry(TimesheetEntry{Description: "a", DurationHours: 0.1})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	_, err = day.AppendEntry(TimesheetEntry{Description: "b", DurationHours: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "0.3", day.TotalHours().String())

	require.NoError(t, day.SoftDeleteEntry(a.ID))
	assert.Len(t, day.Entries, 2, "soft-deleted entries stay")
	assert.Len(t, day.ActiveEntries(), 1)
	assert.Equal(t, "0.2", day.TotalHours().String())

	assert.ErrorIs(t, day.EditEntry(TimesheetEntry{ID: a.ID, DurationHours: 1}), ErrNotFound, "deleted entries are not editable")
	assert.ErrorIs(t, day.SoftDeleteEntry("missing"), ErrNotFound)

	_, err = day.AppendEntry(TimesheetEntry{DurationHours: -1})
	assert.ErrorIs(t, err, ErrNegativeDuration)

	_, err = NewTimesheetDay("emp-1", "nope")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeave_Covers(t *testing.T) {
	leave := Leave{StartDate: "2024-01-12", EndDate: "2024-01-16", Status: LeaveApproved, Type: "Vacation", Reason: "ski"}

	assert.True(t, leave.Covers(NewTimePoint(2024, 1, 12)))
	assert.True(t, leave.Covers(NewTimePoint(2024, 1, 16)))
	assert.False(t, leave.Covers(NewTimePoint(2024, 1, 17)))
	assert.Equal(t, "Vacation ski", leave.Details())

	pending := leave
	pending.Status = LeavePending
	assert.False(t, pending.Covers(NewTimePoint(2024, 1, 13)))

	broken := leave
	broken.EndDate = "soon"
	assert.False(t, broken.Covers(NewTimePoint(2024, 1, 13)))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorCategories(t *testing.T) {
	wrapped := errors.Join(errors.New("calendar"), ErrSourceUnavailable)
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsClientError(wrapped))

	assert.True(t, IsConflict(ErrDuplicateDay))
	assert.True(t, IsConflict(ErrStaleSelection))
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsClientError(ErrEditWindowClosed))
}
