package task

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDateDays(t *testing.T) {
	t.Parallel()
	rec := Recurrence{Enabled: true, Frequency: FreqDays, Interval: 3}
	got, ok := NextDueDate(rec, date(2024, time.January, 1))
	if !ok {
		t.Fatal("expected a next occurrence")
	}
	if want := date(2024, time.January, 4); !got.Equal(want) {
		t.Fatalf("next = %v, want %v", got, want)
	}
}

func TestNextDueDateWeeks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		base     time.Time
		weekdays []int
		interval int
		want     time.Time
	}{
		{
			// 2024-01-03 is a Wednesday (index 2); next of {Tue,Thu,Sat} is Thursday.
			name:     "mid week picks next member",
			base:     date(2024, time.January, 3),
			weekdays: []int{1, 3, 5},
			interval: 1,
			want:     date(2024, time.January, 4),
		},
		{
			// Saturday (index 5) wraps to Tuesday of the following week.
			name:     "wraps past week boundary",
			base:     date(2024, time.January, 6),
			weekdays: []int{1, 3, 5},
			interval: 1,
			want:     date(2024, time.January, 9),
		},
		{
			// Same weekday as base: strictly after, so a full week later.
			name:     "same weekday lands a week later",
			base:     date(2024, time.January, 1), // Monday
			weekdays: []int{0},
			interval: 1,
			want:     date(2024, time.January, 8),
		},
		{
			// No weekday set: plain interval jump.
			name:     "empty set falls back to interval weeks",
			base:     date(2024, time.January, 1),
			weekdays: nil,
			interval: 2,
			want:     date(2024, time.January, 15),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := Recurrence{Enabled: true, Frequency: FreqWeeks, Interval: tt.interval, Weekdays: tt.weekdays}
			got, ok := NextDueDate(rec, tt.base)
			if !ok {
				t.Fatal("expected a next occurrence")
			}
			if !got.Equal(tt.want) {
				t.Fatalf("next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextDueDateMonthsClamp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		base time.Time
		n    int
		want time.Time
	}{
		{"leap february", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"plain february", date(2023, time.January, 31), 1, date(2023, time.February, 28)},
		{"no clamp needed", date(2024, time.March, 15), 1, date(2024, time.April, 15)},
		{"thirty day month", date(2024, time.March, 31), 1, date(2024, time.April, 30)},
		{"year rollover", date(2024, time.November, 30), 3, date(2025, time.February, 28)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := Recurrence{Enabled: true, Frequency: FreqMonths, Interval: tt.n}
			got, ok := NextDueDate(rec, tt.base)
			if !ok {
				t.Fatal("expected a next occurrence")
			}
			if !got.Equal(tt.want) {
				t.Fatalf("next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextDueDateTermination(t *testing.T) {
	t.Parallel()
	end := date(2024, time.January, 10)

	rec := Recurrence{Enabled: true, Frequency: FreqDays, Interval: 7, EndType: EndOnDate, EndDate: &end}
	if _, ok := NextDueDate(rec, date(2024, time.January, 8)); ok {
		t.Fatal("occurrence past the end date should terminate the series")
	}
	if got, ok := NextDueDate(rec, date(2024, time.January, 3)); !ok || !got.Equal(end) {
		t.Fatalf("occurrence on the end date should survive, got %v ok=%v", got, ok)
	}
}

func TestNextDueDateRejectsMalformed(t *testing.T) {
	t.Parallel()
	end := date(2024, time.June, 1)
	tests := []struct {
		name string
		rec  Recurrence
	}{
		{"disabled", Recurrence{Frequency: FreqDays, Interval: 1}},
		{"zero interval", Recurrence{Enabled: true, Frequency: FreqDays}},
		{"end date missing", Recurrence{Enabled: true, Frequency: FreqDays, Interval: 1, EndType: EndOnDate}},
		{"negative interval", Recurrence{Enabled: true, Frequency: FreqDays, Interval: -2, EndType: EndOnDate, EndDate: &end}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, ok := NextDueDate(tt.rec, date(2024, time.January, 1)); ok {
				t.Fatal("expected no next occurrence")
			}
		})
	}
}

func TestWeekdayIndex(t *testing.T) {
	t.Parallel()
	// 2024-01-01 is a Monday.
	for off, want := range []int{0, 1, 2, 3, 4, 5, 6} {
		got := WeekdayIndex(date(2024, time.January, 1+off))
		if got != want {
			t.Fatalf("day offset %d: index = %d, want %d", off, got, want)
		}
	}
}
