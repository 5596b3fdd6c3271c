// Package timeline keeps a contiguous, backward-extendable window of
// DayRecords for one employee, plus the per-day admin remarks.
package timeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/reconcile"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// SOURCE LOADER - Four fetches, joined once all have settled
// =============================================================================

type SourceName string

const (
	SourceTasks      SourceName = "tasks"
	SourceTimesheets SourceName = "timesheets"
	SourceLeaves     SourceName = "leaves"
	SourceCalendar   SourceName = "calendar"
)

type SourceFailure struct {
	Source SourceName
	Err    error
}

// SourceError lists the sources that failed. The data returned next to it
// is still usable: failed sources are empty.
type SourceError struct {
	Failures []SourceFailure
}

func (e *SourceError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Source, f.Err)
	}
	return "sources unavailable: " + strings.Join(parts, "; ")
}

func (e *SourceError) Unwrap() error { return core.ErrSourceUnavailable }

// Sources returns the names of the failed sources.
func (e *SourceError) Sources() []SourceName {
	names := make([]SourceName, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Source
	}
	return names
}

type Loader struct {
	src core.Sources
	log logrus.FieldLogger
}

func NewLoader(src core.Sources, log logrus.FieldLogger) *Loader {
	return &Loader{src: src, log: log}
}

// Load fetches the four collections concurrently. It never returns
// partially-loaded data: it waits for all four to settle. A failed source
// comes back empty and is listed in the returned *SourceError.
func (l *Loader) Load(ctx context.Context, employeeID string) (reconcile.Sources, error) {
	var (
		out  reconcile.Sources
		errs [4]error
		g    errgroup.Group
	)

	g.Go(func() error {
		out.Tasks, errs[0] = l.src.ListTasks(ctx, employeeID)
		return nil
	})
	g.Go(func() error {
		out.Timesheets, errs[1] = l.src.ListTimesheets(ctx, employeeID)
		return nil
	})
	g.Go(func() error {
		out.Leaves, errs[2] = l.src.ListApprovedLeaves(ctx, employeeID)
		return nil
	})
	g.Go(func() error {
		out.Events, errs[3] = l.src.ListCalendarEvents(ctx)
		return nil
	})
	_ = g.Wait()

	names := [4]SourceName{SourceTasks, SourceTimesheets, SourceLeaves, SourceCalendar}
	var failures []SourceFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		failures = append(failures, SourceFailure{Source: names[i], Err: err})
		l.log.WithFields(logrus.Fields{
			"employee_id": employeeID,
			"source":      names[i],
		}).WithError(err).Warn("source fetch failed, treating as empty")
	}

	if errs[0] != nil {
		out.Tasks = nil
	}
	if errs[1] != nil {
		out.Timesheets = nil
	}
	if errs[2] != nil {
		out.Leaves = nil
	}
	if errs[3] != nil {
		out.Events = nil
	}

	if len(failures) > 0 {
		return out, &SourceError{Failures: failures}
	}
	return out, nil
}
