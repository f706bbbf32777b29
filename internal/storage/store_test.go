package storage

import (
	"testing"
)

func TestWeekdaysCSVRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		days []int
		csv  string
	}{
		{nil, ""},
		{[]int{0}, "0"},
		{[]int{0, 2, 4}, "0,2,4"},
		{[]int{6}, "6"},
	}
	for _, tt := range tests {
		if got := weekdaysToCSV(tt.days); got != tt.csv {
			t.Fatalf("weekdaysToCSV(%v) = %q, want %q", tt.days, got, tt.csv)
		}
		back := csvToWeekdays(tt.csv)
		if len(back) != len(tt.days) {
			t.Fatalf("csvToWeekdays(%q) = %v, want %v", tt.csv, back, tt.days)
		}
		for i := range back {
			if back[i] != tt.days[i] {
				t.Fatalf("csvToWeekdays(%q) = %v, want %v", tt.csv, back, tt.days)
			}
		}
	}
}

func TestCSVToWeekdaysDropsJunk(t *testing.T) {
	t.Parallel()
	got := csvToWeekdays(" 1, monday, 9, 3 ")
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("csvToWeekdays = %v, want [1 3]", got)
	}
}
