package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive calendar-day range
// =============================================================================

// Period is an inclusive range of calendar days [Start, End].
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// CADENCE - Recurring periods with canonical string keys
// =============================================================================

// Cadence partitions the calendar into recurring periods. Each period has a
// canonical key; counters keyed by it go stale on their own once "today"
// maps to a different key.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// ParseCadence validates a cadence name.
func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(s); c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown cadence %q", ErrInvalidDate, s)
}

// Key returns the period key for the day:
//
//	daily   YYYY-MM-DD
//	weekly  YYYY-Www
//	monthly YYYY-MM
func (c Cadence) Key(day TimePoint) string {
	switch c {
	case CadenceDaily:
		return day.String()
	case CadenceWeekly:
		return fmt.Sprintf("%04d-W%02d", day.Year(), WeekOfYear(day))
	default:
		return day.MonthKey()
	}
}

// PeriodFor returns the days sharing the key of the given day.
func (c Cadence) PeriodFor(day TimePoint) Period {
	switch c {
	case CadenceDaily:
		return Period{Start: day, End: day}
	case CadenceWeekly:
		start := day.AddDays(-int(day.Weekday()))
		end := start.AddDays(6)
		if start.Year() != day.Year() {
			start = StartOfYear(day.Year())
		}
		if end.Year() != day.Year() {
			end = EndOfYear(day.Year())
		}
		return Period{Start: start, End: end}
	default:
		return Period{Start: StartOfMonth(day.Year(), day.Month()), End: EndOfMonth(day.Year(), day.Month())}
	}
}

// WeekOfYear numbers Sunday-started weeks within the day's year:
// ceil((dayOfYear + weekdayOfJan1) / 7). The week containing January 1 is
// week 1 even when it started in December, so the last days of a year and
// the first days of the next fall under different keys.
func WeekOfYear(day TimePoint) int {
	jan1 := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := int(jan1.Weekday())
	return (day.YearDay() + offset + 6) / 7
}
