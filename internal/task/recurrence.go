package task

import (
	"time"
)

// NextDueDate computes the next occurrence of a recurring task from base.
//
// base is chosen by the caller: normally the task's current due date, or the
// completion date when Recurrence.FromCompletion is set. The function is pure;
// it reports ok=false when the recurrence is disabled, malformed, or has
// passed its end date.
func NextDueDate(rec Recurrence, base time.Time) (time.Time, bool) {
	if !rec.Enabled {
		return time.Time{}, false
	}
	if rec.Interval < 1 {
		// Malformed config surfaces as "no next occurrence" rather than a panic;
		// the caller decides what to do about it.
		return time.Time{}, false
	}
	if rec.EndType == EndOnDate && rec.EndDate == nil {
		return time.Time{}, false
	}

	base = DateOf(base)
	next := nextByFrequency(rec, base)

	if rec.EndType == EndOnDate && next.After(DateOf(*rec.EndDate)) {
		return time.Time{}, false
	}
	return next, true
}

func nextByFrequency(rec Recurrence, base time.Time) time.Time {
	switch rec.Frequency {
	case FreqDays:
		return base.AddDate(0, 0, rec.Interval)
	case FreqWeeks:
		if d, ok := nextWeekday(base, rec.Weekdays); ok {
			return d
		}
		return base.AddDate(0, 0, 7*rec.Interval)
	case FreqMonths:
		return addMonthsClamped(base, rec.Interval)
	default:
		return base.AddDate(0, 0, 7)
	}
}

// nextWeekday scans the 7 days strictly after base for the first day whose
// weekday is in set.
func nextWeekday(base time.Time, set []int) (time.Time, bool) {
	if len(set) == 0 {
		return time.Time{}, false
	}
	member := map[int]bool{}
	for _, wd := range set {
		member[wd] = true
	}
	for off := 1; off <= 7; off++ {
		cand := base.AddDate(0, 0, off)
		if member[WeekdayIndex(cand)] {
			return cand, true
		}
	}
	return time.Time{}, false
}

// addMonthsClamped adds months to a date, clamping the day-of-month to the
// last valid day of the target month (Jan 31 + 1 month -> Feb 28/29).
// time.Time.AddDate normalizes overflow into the following month instead,
// which is not what recurrence expects.
func addMonthsClamped(base time.Time, months int) time.Time {
	total := base.Year()*12 + int(base.Month()) - 1 + months
	y := total / 12
	m := time.Month(total%12 + 1)
	day := base.Day()
	if last := daysInMonth(y, m, base.Location()); day > last {
		day = last
	}
	return time.Date(y, m, day, 0, 0, 0, 0, base.Location())
}

func daysInMonth(y int, m time.Month, loc *time.Location) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
