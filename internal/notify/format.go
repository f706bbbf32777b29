package notify

import (
	"fmt"
	"time"
)

// Formatter produces all user-visible notification text. The scheduler and
// planner never assemble strings themselves, so swapping the wording (or the
// language) touches exactly one place.
type Formatter interface {
	Reminder(lead time.Duration, taskTitle string) (title, body string)
	TimerComplete(taskTitle string, elapsed time.Duration) (title, body string)
	Digest(overdueCount int) (title, body string)
	// LockedPlaceholder is delivered instead of the real payload while the
	// data store is locked.
	LockedPlaceholder() (title, body string)
}

// EnglishFormatter is the default wording.
type EnglishFormatter struct{}

func (EnglishFormatter) Reminder(lead time.Duration, taskTitle string) (string, string) {
	return "Task reminder", fmt.Sprintf("Due in %s: %s", humanLead(lead), taskTitle)
}

func (EnglishFormatter) TimerComplete(taskTitle string, elapsed time.Duration) (string, string) {
	minutes := int(elapsed.Minutes())
	return "Timer complete", fmt.Sprintf("Tracked %d minutes on %s", minutes, taskTitle)
}

func (EnglishFormatter) Digest(overdueCount int) (string, string) {
	if overdueCount == 1 {
		return "Overdue tasks", "You have 1 overdue task"
	}
	return "Overdue tasks", fmt.Sprintf("You have %d overdue tasks", overdueCount)
}

func (EnglishFormatter) LockedPlaceholder() (string, string) {
	return "Task reminder", "Unlock the app to see details"
}

// humanLead renders a lead time by its magnitude: whole days, then whole
// hours, then minutes.
func humanLead(lead time.Duration) string {
	m := int(lead.Minutes())
	switch {
	case m >= 1440 && m%1440 == 0:
		d := m / 1440
		if d == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", d)
	case m >= 60 && m%60 == 0:
		h := m / 60
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case m == 1:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", m)
	}
}
