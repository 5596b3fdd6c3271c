// Package reconcile merges plan and actual into per-day records.
// It classifies tasks by timeliness, computes plan-vs-actual deltas and
// builds DayRecords from already-fetched collections. Nothing here does I/O.
package reconcile

import "github.com/warp/worklog-timeline/core"

// =============================================================================
// STATUS CLASSIFIER
// =============================================================================

type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusOverdue  Status = "overdue"
	StatusOnTime   Status = "on_time"
	StatusUpcoming Status = "upcoming"
)

// Severity is a display-neutral tag. Renderers pick colors from it.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityCritical Severity = "critical"
	SeverityNormal   Severity = "normal"
	SeverityInfo     Severity = "info"
)

type Classification struct {
	Status   Status   `json:"status"`
	Severity Severity `json:"severity"`
}

var severities = map[Status]Severity{
	StatusUnknown:  SeverityNone,
	StatusOverdue:  SeverityCritical,
	StatusOnTime:   SeverityNormal,
	StatusUpcoming: SeverityInfo,
}

func classification(s Status) Classification {
	return Classification{Status: s, Severity: severities[s]}
}

// Classify compares the planned date with a reference date: the completion
// date for completed tasks that recorded one, today otherwise.
// Both sides are compared as "YYYY-MM-DD" strings.
//
// The employee dashboard and the admin grid both call this; identical
// inputs always give identical results.
func Classify(plannedDate string, isCompleted bool, completedDate string, today core.TimePoint) Classification {
	planned, ok := core.DateKey(plannedDate)
	if !ok {
		return classification(StatusUnknown)
	}

	reference := today.String()
	if isCompleted {
		if done, ok := core.DateKey(completedDate); ok {
			reference = done
		}
	}

	switch {
	case planned < reference:
		return classification(StatusOverdue)
	case planned == reference:
		return classification(StatusOnTime)
	default:
		return classification(StatusUpcoming)
	}
}

// ClassifyTask is Classify over a task's own fields.
func ClassifyTask(t core.Task, today core.TimePoint) Classification {
	return Classify(t.PlannedDate, t.IsCompleted, t.CompletedDate, today)
}
