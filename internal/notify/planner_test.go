package notify

import (
	"testing"
	"time"

	"tasknag/internal/task"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSlotIDDeterminism(t *testing.T) {
	t.Parallel()
	if got := SlotID(7, 2); got != 72 {
		t.Fatalf("SlotID(7, 2) = %d, want 72", got)
	}
	if got := SlotID(123, 0); got != 1230 {
		t.Fatalf("SlotID(123, 0) = %d, want 1230", got)
	}
	// Distinct (task, slot) pairs never collide within the block scheme.
	seen := map[int64]bool{}
	for id := int64(1); id <= 20; id++ {
		for slot := 0; slot < SlotsPerTask; slot++ {
			k := SlotID(id, slot)
			if seen[k] {
				t.Fatalf("slot id collision at task %d slot %d", id, slot)
			}
			seen[k] = true
		}
	}
}

func TestPlanRemindersSlotsAndTriggers(t *testing.T) {
	t.Parallel()
	due := date(2024, time.March, 20)
	tk := &task.Task{ID: 7, Title: "renew passport", DueDate: &due}
	st := Settings{
		Enabled:           true,
		Remind1h:          true,
		Remind24h:         true,
		CustomLeadMinutes: 90,
	}
	now := date(2024, time.March, 1)

	p := NewPlanner(EnglishFormatter{}, time.UTC)
	got := p.PlanReminders(tk, st, now)
	if len(got) != 3 {
		t.Fatalf("planned %d reminders, want 3", len(got))
	}

	// Slot index is the lead's position in LeadMinutes: 1h, 24h, custom.
	anchor := time.Date(2024, time.March, 20, DueHour, 0, 0, 0, time.UTC)
	wantTriggers := []time.Time{
		anchor.Add(-60 * time.Minute),
		anchor.Add(-1440 * time.Minute),
		anchor.Add(-90 * time.Minute),
	}
	for i, pl := range got {
		if pl.Slot != i {
			t.Fatalf("reminder %d: slot = %d, want %d", i, pl.Slot, i)
		}
		if pl.SlotID != SlotID(7, i) {
			t.Fatalf("reminder %d: slot id = %d, want %d", i, pl.SlotID, SlotID(7, i))
		}
		if !pl.TriggerTime.Equal(wantTriggers[i]) {
			t.Fatalf("reminder %d: trigger = %v, want %v", i, pl.TriggerTime, wantTriggers[i])
		}
		if pl.Payload.TaskID != 7 || pl.Payload.Title == "" {
			t.Fatalf("reminder %d: bad payload %+v", i, pl.Payload)
		}
	}
}

func TestPlanRemindersDropsPastTriggers(t *testing.T) {
	t.Parallel()
	due := date(2024, time.March, 20)
	tk := &task.Task{ID: 3, Title: "pay rent", DueDate: &due}
	st := Settings{Enabled: true, Remind1h: true, Remind24h: true}
	p := NewPlanner(EnglishFormatter{}, time.UTC)

	// 10:00 on the 19th: the 24h lead (09:00 on the 19th) already passed,
	// the 1h lead (08:00 on the 20th) has not.
	now := time.Date(2024, time.March, 19, 10, 0, 0, 0, time.UTC)
	got := p.PlanReminders(tk, st, now)
	if len(got) != 1 {
		t.Fatalf("planned %d reminders, want 1", len(got))
	}
	if got[0].Slot != 0 {
		t.Fatalf("surviving slot = %d, want 0 (the 1h lead)", got[0].Slot)
	}

	// After the anchor everything is past.
	now = time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)
	if got := p.PlanReminders(tk, st, now); len(got) != 0 {
		t.Fatalf("planned %d reminders after the anchor, want 0", len(got))
	}
}

func TestPlanRemindersNoDueDate(t *testing.T) {
	t.Parallel()
	p := NewPlanner(EnglishFormatter{}, time.UTC)
	st := Settings{Enabled: true, Remind1h: true}
	if got := p.PlanReminders(&task.Task{ID: 1, Title: "someday"}, st, date(2024, time.March, 1)); got != nil {
		t.Fatalf("expected nil for a task without a due date, got %v", got)
	}
	if got := p.PlanReminders(nil, st, date(2024, time.March, 1)); got != nil {
		t.Fatalf("expected nil for a nil task, got %v", got)
	}
}

func TestHumanLead(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mins int
		want string
	}{
		{60, "1 hour"},
		{360, "6 hours"},
		{720, "12 hours"},
		{1440, "1 day"},
		{2880, "2 days"},
		{90, "90 minutes"},
		{1, "1 minute"},
	}
	for _, tt := range tests {
		if got := humanLead(time.Duration(tt.mins) * time.Minute); got != tt.want {
			t.Fatalf("humanLead(%dm) = %q, want %q", tt.mins, got, tt.want)
		}
	}
}
