package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/worklog-timeline/core"
)

// =============================================================================
// DELTA CALCULATOR
// =============================================================================

var minutesPerHour = decimal.NewFromInt(60)

// DatedEntry is a timesheet entry together with the date of its day.
type DatedEntry struct {
	Date  string              `json:"date"`
	Entry core.TimesheetEntry `json:"entry"`
}

// Deltas are signed offsets: negative is ahead of plan, positive is behind.
// A nil offset means no claim can be made.
type Deltas struct {
	DayOffset    *int `json:"day_offset"`
	MinuteOffset *int `json:"minute_offset"`
}

// MatchingEntries collects every non-deleted entry, across all days, whose
// TaskID is the task's ID. Ordered by date.
func MatchingEntries(task core.Task, days []core.TimesheetDay) []DatedEntry {
	var matches []DatedEntry
	for _, d := range days {
		for _, e := range d.Entries {
			if !e.IsDeleted && e.TaskID != "" && e.TaskID == task.ID {
				matches = append(matches, DatedEntry{Date: d.Date, Entry: e})
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Date < matches[j].Date })
	return matches
}

// ComputeDeltas reconciles a task against its logged entries.
//
// DayOffset is the latest entry date minus the planned date in days.
// Several entries on that latest day still count as that one day.
// MinuteOffset is round(sum(hours*60) - ETA), only when the task has an ETA.
// Rounding is half away from zero so the result never crosses zero
// in a different direction than the exact difference.
func ComputeDeltas(task core.Task, entries []DatedEntry) Deltas {
	var (
		active []DatedEntry
		latest core.TimePoint
		dated  bool
	)
	for _, de := range entries {
		if de.Entry.IsDeleted {
			continue
		}
		active = append(active, de)
		if day, ok := core.ParseDate(de.Date); ok && (!dated || day.After(latest)) {
			latest, dated = day, true
		}
	}
	if len(active) == 0 {
		return Deltas{}
	}

	var deltas Deltas
	if planned, ok := core.ParseDate(task.PlannedDate); ok && dated {
		offset := core.DaysBetween(planned, latest)
		deltas.DayOffset = &offset
	}

	if task.EtaMinutes > 0 {
		spent := decimal.Zero
		for _, de := range active {
			spent = spent.Add(de.Entry.Duration().Mul(minutesPerHour))
		}
		offset := int(spent.Sub(decimal.NewFromInt(int64(task.EtaMinutes))).Round(0).IntPart())
		deltas.MinuteOffset = &offset
	}
	return deltas
}

// =============================================================================
// ENTRY INDEX - matching entries for many tasks in one pass
// =============================================================================

// EntryIndex groups non-deleted entries by TaskID.
type EntryIndex map[string][]DatedEntry

func NewEntryIndex(days []core.TimesheetDay) EntryIndex {
	idx := make(EntryIndex)
	for _, d := range days {
		for _, e := range d.Entries {
			if e.IsDeleted || e.TaskID == "" {
				continue
			}
			idx[e.TaskID] = append(idx[e.TaskID], DatedEntry{Date: d.Date, Entry: e})
		}
	}
	for id := range idx {
		entries := idx[id]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	}
	return idx
}

// TaskReconciliation is what both views render for one task.
type TaskReconciliation struct {
	Task           core.Task      `json:"task"`
	Classification Classification `json:"classification"`
	Deltas         Deltas         `json:"deltas"`
	LoggedHours    float64        `json:"logged_hours"`
}

// Reconcile classifies the task and computes its deltas.
func (idx EntryIndex) Reconcile(task core.Task, today core.TimePoint) TaskReconciliation {
	entries := idx[task.ID]
	hours := decimal.Zero
	for _, de := range entries {
		hours = hours.Add(de.Entry.Duration())
	}
	logged, _ := hours.Float64()
	return TaskReconciliation{
		Task:           task,
		Classification: ClassifyTask(task, today),
		Deltas:         ComputeDeltas(task, entries),
		LoggedHours:    logged,
	}
}
