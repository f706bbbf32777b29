package ics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasknag/internal/task"
	"tasknag/pkg/logx"
)

type staticTasks struct {
	tasks []task.Task
}

func (s *staticTasks) TaskByID(_ context.Context, id int64) (*task.Task, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return &s.tasks[i], nil
		}
	}
	return nil, nil
}

func (s *staticTasks) TasksDueBefore(_ context.Context, day time.Time) ([]task.Task, error) {
	return nil, nil
}

func (s *staticTasks) TasksWithDueDate(_ context.Context) ([]task.Task, error) {
	return s.tasks, nil
}

func TestExportWritesFeed(t *testing.T) {
	t.Parallel()
	due := time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	src := &staticTasks{tasks: []task.Task{
		{ID: 1, Title: "water the plants", DueDate: &due, Recurrence: task.Recurrence{
			Enabled: true, Frequency: task.FreqDays, Interval: 3,
		}},
		{ID: 2, Title: "team sync", DueDate: &due, Recurrence: task.Recurrence{
			Enabled: true, Frequency: task.FreqWeeks, Interval: 1, Weekdays: []int{0, 2},
			EndType: task.EndOnDate, EndDate: &end,
		}},
		{ID: 3, Title: "one off", DueDate: &due},
	}}

	path := filepath.Join(t.TempDir(), "tasks.ics")
	e := NewExporter(src, nil, Options{Path: path, Name: "My Tasks", Loc: time.UTC}, logx.Nop())

	if err := e.Export(context.Background()); err != nil {
		t.Fatalf("Export error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading feed: %v", err)
	}
	feed := string(raw)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"X-WR-CALNAME:My Tasks",
		"UID:task-1@tasknag",
		"UID:task-2@tasknag",
		"UID:task-3@tasknag",
		"SUMMARY:water the plants",
		"FREQ=DAILY;INTERVAL=3",
		"FREQ=WEEKLY",
		"BYDAY=MO,WE",
	} {
		if !strings.Contains(feed, want) {
			t.Fatalf("feed missing %q:\n%s", want, feed)
		}
	}
	if n := strings.Count(feed, "RRULE"); n != 2 {
		t.Fatalf("feed has %d RRULEs, want 2", n)
	}
}

func TestRecurrenceRule(t *testing.T) {
	t.Parallel()
	end := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rec  task.Recurrence
		want string // substring; empty means no rule expected
	}{
		{"disabled", task.Recurrence{Frequency: task.FreqDays, Interval: 1}, ""},
		{"zero interval", task.Recurrence{Enabled: true, Frequency: task.FreqDays}, ""},
		{"end date missing", task.Recurrence{Enabled: true, Frequency: task.FreqDays, Interval: 1, EndType: task.EndOnDate}, ""},
		{"daily", task.Recurrence{Enabled: true, Frequency: task.FreqDays, Interval: 2}, "FREQ=DAILY;INTERVAL=2"},
		{"monthly", task.Recurrence{Enabled: true, Frequency: task.FreqMonths, Interval: 1}, "FREQ=MONTHLY"},
		{"weekly until", task.Recurrence{Enabled: true, Frequency: task.FreqWeeks, Interval: 1, Weekdays: []int{4}, EndType: task.EndOnDate, EndDate: &end}, "UNTIL=20240601"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule, ok := recurrenceRule(tt.rec)
			if tt.want == "" {
				if ok {
					t.Fatalf("expected no rule, got %q", rule)
				}
				return
			}
			if !ok || !strings.Contains(rule, tt.want) {
				t.Fatalf("rule = %q ok=%v, want substring %q", rule, ok, tt.want)
			}
		})
	}
}
