package core

import (
	"time"
)

// =============================================================================
// DATES - Calendar days, no time-of-day
// =============================================================================

// DateLayout is the wire and storage form of every calendar date.
const DateLayout = "2006-01-02"

// TimePoint is a calendar day in UTC. Time of day is always midnight.
type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// TodayAt returns the calendar day of now in now's own location.
// A clock at 23:30 in UTC+5 is still "today" for that user.
func TodayAt(now time.Time) TimePoint {
	return NewTimePoint(now.Year(), now.Month(), now.Day())
}

func Today() TimePoint { return TodayAt(time.Now()) }

// ParseDate accepts "YYYY-MM-DD" or any string starting with it
// (RFC3339 timestamps included). The trailing part is ignored so the
// date never drifts across timezones.
func ParseDate(s string) (TimePoint, bool) {
	if len(s) < len(DateLayout) {
		return TimePoint{}, false
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return TimePoint{}, false
	}
	if len(s) > len(DateLayout) && s[len(DateLayout)] != 'T' && s[len(DateLayout)] != ' ' {
		return TimePoint{}, false
	}
	return TimePoint{Time: t}, true
}

// DateKey normalizes s to "YYYY-MM-DD". ok is false for malformed input.
func DateKey(s string) (key string, ok bool) {
	tp, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return tp.String(), true
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsSunday() bool        { return tp.Weekday() == time.Sunday }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string { return tp.Time.Format(DateLayout) }

// DaysBetween returns to - from in whole calendar days.
func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return TimePoint{Time: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}
