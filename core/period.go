package core

import (
	"fmt"
	"time"
)

// Period is an inclusive range of calendar days [Start, End].
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s..%s", ErrInvalidPeriod, start, end)
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod covers the whole calendar month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Len is the number of days in the period, End - Start + 1.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns every day in the period in ascending order.
func (p Period) Days() []TimePoint {
	days := make([]TimePoint, 0, p.Len())
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// ExtendBackward moves Start n days earlier.
func (p Period) ExtendBackward(n int) Period {
	return Period{Start: p.Start.AddDays(-n), End: p.End}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
