package notify

import (
	"time"

	"tasknag/internal/task"
)

// SlotsPerTask is the fixed block of backend ids each task reserves.
// Four lead-time toggles plus the custom lead leaves headroom within it.
const SlotsPerTask = 10

// DueHour is the time-of-day anchor for due dates, which carry no time
// component of their own.
const DueHour = 9

// SlotID derives the stable backend id for a task's reminder slot.
// Ids are pure arithmetic over the task id, so cancellation after a crash
// needs no persisted id mapping.
func SlotID(taskID int64, slot int) int64 {
	return taskID*SlotsPerTask + int64(slot)
}

// PlannedReminder is one concrete future trigger for a task.
type PlannedReminder struct {
	Slot        int
	SlotID      int64
	TriggerTime time.Time
	Payload     Payload
}

// Planner turns a task's due date and the user's lead-time settings into
// concrete trigger timestamps.
type Planner struct {
	Format Formatter
	Loc    *time.Location
}

func NewPlanner(f Formatter, loc *time.Location) Planner {
	if f == nil {
		f = EnglishFormatter{}
	}
	if loc == nil {
		loc = time.Local
	}
	return Planner{Format: f, Loc: loc}
}

// PlanReminders computes the reminder set for t. Triggers at or before now
// are dropped; at most SlotsPerTask entries are returned. The slot index is
// the lead time's position in Settings.LeadMinutes.
func (p Planner) PlanReminders(t *task.Task, st Settings, now time.Time) []PlannedReminder {
	if t == nil || t.DueDate == nil {
		return nil
	}
	leads := st.LeadMinutes()
	if len(leads) > SlotsPerTask {
		leads = leads[:SlotsPerTask]
	}

	due := *t.DueDate
	anchor := time.Date(due.Year(), due.Month(), due.Day(), DueHour, 0, 0, 0, p.Loc)

	out := make([]PlannedReminder, 0, len(leads))
	for slot, mins := range leads {
		lead := time.Duration(mins) * time.Minute
		trigger := anchor.Add(-lead)
		if !trigger.After(now) {
			continue
		}
		title, body := p.Format.Reminder(lead, t.Title)
		out = append(out, PlannedReminder{
			Slot:        slot,
			SlotID:      SlotID(t.ID, slot),
			TriggerTime: trigger,
			Payload:     Payload{Title: title, Body: body, TaskID: t.ID},
		})
	}
	return out
}
