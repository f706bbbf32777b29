package task

import (
	"time"
)

// Frequency is the unit a recurrence interval counts in.
type Frequency string

const (
	FreqDays   Frequency = "days"
	FreqWeeks  Frequency = "weeks"
	FreqMonths Frequency = "months"
)

// EndType says how a recurrence terminates.
type EndType string

const (
	EndNever  EndType = "never"
	EndOnDate EndType = "on_date"
)

// Recurrence describes how a task repeats.
//
// Weekdays uses 0=Monday .. 6=Sunday and is meaningful only for FreqWeeks.
// FromCompletion means the next occurrence is computed from the day the task
// was completed rather than from its previous due date.
type Recurrence struct {
	Enabled        bool
	Frequency      Frequency
	Interval       int
	Weekdays       []int
	FromCompletion bool
	EndType        EndType
	EndDate        *time.Time
}

// Task is a unit of work. DueDate, when set, is a calendar date: a time.Time
// at midnight in the task's zone with no meaningful time-of-day component.
type Task struct {
	ID          int64
	Title       string
	Done        bool
	DueDate     *time.Time
	Recurrence  Recurrence
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// DateOf truncates t to its calendar date (midnight, same location).
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekdayIndex maps Go's Sunday-based weekday to the 0=Monday scheme
// used by Recurrence.Weekdays.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
