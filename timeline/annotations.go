package timeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/warp/worklog-timeline/core"
)

// =============================================================================
// ANNOTATION STORE - Per-day admin remarks
// =============================================================================

// DayStore is the slice of core.Store the remarks need.
type DayStore interface {
	GetTimesheetDay(ctx context.Context, employeeID, date string) (*core.TimesheetDay, error)
	core.TimesheetWriter
}

// Annotations reads and writes the AdminRemark of a timesheet day.
//
// A write is visible to GetRemark as soon as SetRemark starts. If the save
// fails the pending value is dropped and reads fall back to the stored one.
type Annotations struct {
	store DayStore
	log   logrus.FieldLogger

	mu      sync.Mutex
	pending map[remarkKey]string
}

type remarkKey struct {
	EmployeeID string
	Date       string
}

func NewAnnotations(store DayStore, log logrus.FieldLogger) *Annotations {
	return &Annotations{store: store, log: log, pending: make(map[remarkKey]string)}
}

// PrefixRemark attributes text to author as "<author> : text".
// Already-prefixed text is returned unchanged. Empty text stays empty.
func PrefixRemark(author, text string) string {
	author = strings.TrimSpace(author)
	if text == "" || author == "" {
		return text
	}
	prefix := author + " :"
	if strings.HasPrefix(text, prefix) {
		return text
	}
	return prefix + " " + text
}

// GetRemark returns nil if no remark was ever written for the day.
// An explicitly cleared remark is a non-nil empty string.
func (a *Annotations) GetRemark(ctx context.Context, employeeID, date string) (*string, error) {
	key, ok := core.DateKey(date)
	if !ok {
		return nil, &core.ValidationError{Field: "date", Value: date, Err: core.ErrInvalidDate}
	}

	a.mu.Lock()
	if text, ok := a.pending[remarkKey{EmployeeID: employeeID, Date: key}]; ok {
		a.mu.Unlock()
		return &text, nil
	}
	a.mu.Unlock()

	day, err := a.store.GetTimesheetDay(ctx, employeeID, key)
	if err != nil {
		return nil, fmt.Errorf("load timesheet day: %w", err)
	}
	if day == nil || day.AdminRemark == nil {
		return nil, nil
	}
	remark := *day.AdminRemark
	return &remark, nil
}

// SetRemark overwrites the day's remark, creating an empty timesheet day
// when the employee never logged that date. Last writer wins.
func (a *Annotations) SetRemark(ctx context.Context, employeeID, date, author, text string) (core.TimesheetDay, error) {
	key, ok := core.DateKey(date)
	if !ok {
		return core.TimesheetDay{}, &core.ValidationError{Field: "date", Value: date, Err: core.ErrInvalidDate}
	}
	remark := PrefixRemark(author, text)
	rk := remarkKey{EmployeeID: employeeID, Date: key}

	a.mu.Lock()
	a.pending[rk] = remark
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		if a.pending[rk] == remark {
			delete(a.pending, rk)
		}
		a.mu.Unlock()
	}()

	day, err := a.store.GetTimesheetDay(ctx, employeeID, key)
	if err != nil {
		return core.TimesheetDay{}, fmt.Errorf("load timesheet day: %w", err)
	}
	if day == nil {
		fresh, err := core.NewTimesheetDay(employeeID, key)
		if err != nil {
			return core.TimesheetDay{}, err
		}
		day = &fresh
	}
	day.AdminRemark = &remark

	saved, err := a.store.SaveTimesheetDay(ctx, *day)
	if err != nil {
		a.log.WithFields(logrus.Fields{
			"employee_id": employeeID,
			"date":        key,
		}).WithError(err).Warn("remark save failed, rolled back")
		return core.TimesheetDay{}, fmt.Errorf("save remark: %w", err)
	}
	return saved, nil
}
