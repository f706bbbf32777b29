package notify

import (
	"context"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    *Clock
		wantErr bool
	}{
		{"22:00", &Clock{22, 0}, false},
		{"07:30", &Clock{7, 30}, false},
		{"", nil, false},
		{"  ", nil, false},
		{"24:00", nil, true},
		{"12:60", nil, true},
		{"noon", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q) error: %v", tt.raw, err)
		}
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Fatalf("ParseClock(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestInQuietHours(t *testing.T) {
	t.Parallel()
	at := func(h, m int) time.Time {
		return time.Date(2024, time.March, 10, h, m, 0, 0, time.UTC)
	}
	wrap := Settings{QuietStart: &Clock{22, 0}, QuietEnd: &Clock{7, 0}}
	plain := Settings{QuietStart: &Clock{13, 0}, QuietEnd: &Clock{14, 0}}
	unset := Settings{}

	tests := []struct {
		name string
		s    Settings
		now  time.Time
		want bool
	}{
		{"wrap late evening", wrap, at(23, 30), true},
		{"wrap early morning", wrap, at(6, 59), true},
		{"wrap end inclusive", wrap, at(7, 0), true},
		{"wrap midday", wrap, at(12, 0), false},
		{"wrap just before start", wrap, at(21, 59), false},
		{"plain inside", plain, at(13, 30), true},
		{"plain start inclusive", plain, at(13, 0), true},
		{"plain end exclusive", plain, at(14, 0), false},
		{"no window", unset, at(3, 0), false},
	}
	for _, tt := range tests {
		if got := tt.s.InQuietHours(tt.now); got != tt.want {
			t.Fatalf("%s: InQuietHours(%v) = %v, want %v", tt.name, tt.now, got, tt.want)
		}
	}
}

// kvStore is an in-memory SettingsStore.
type kvStore struct {
	m map[string]string
}

func newKVStore() *kvStore { return &kvStore{m: map[string]string{}} }

func (s *kvStore) GetSetting(_ context.Context, key, def string) (string, error) {
	if v, ok := s.m[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s *kvStore) SetSetting(_ context.Context, key, value string) error {
	s.m[key] = value
	return nil
}

func TestLoadSettings(t *testing.T) {
	t.Parallel()
	kv := newKVStore()
	kv.m[keyEnabled] = "true"
	kv.m[keyRemind1h] = "true"
	kv.m[keyRemind24h] = "true"
	kv.m[keyCustomLead] = "45"
	kv.m[keyQuietStart] = "22:00"
	kv.m[keyQuietEnd] = "07:00"
	kv.m[keyNotifyTimer] = "false"

	st, err := LoadSettings(context.Background(), kv)
	if err != nil {
		t.Fatalf("LoadSettings error: %v", err)
	}
	if !st.Enabled || !st.Remind1h || st.Remind6h || !st.Remind24h {
		t.Fatalf("toggles wrong: %+v", st)
	}
	if st.CustomLeadMinutes != 45 {
		t.Fatalf("custom lead = %d, want 45", st.CustomLeadMinutes)
	}
	if st.QuietStart == nil || st.QuietStart.Hour != 22 || st.QuietEnd == nil || st.QuietEnd.Hour != 7 {
		t.Fatalf("quiet window wrong: %+v %+v", st.QuietStart, st.QuietEnd)
	}
	if st.NotifyTimerComplete {
		t.Fatal("timer toggle should be off")
	}
	if !st.NotifyOverdue {
		t.Fatal("overdue digest defaults on")
	}

	want := []int{60, 1440, 45}
	got := st.LeadMinutes()
	if len(got) != len(want) {
		t.Fatalf("leads = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("leads = %v, want %v", got, want)
		}
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Parallel()
	st, err := LoadSettings(context.Background(), newKVStore())
	if err != nil {
		t.Fatalf("LoadSettings error: %v", err)
	}
	if st.Enabled {
		t.Fatal("notifications default off")
	}
	if !st.NotifyOverdue || !st.NotifyTimerComplete {
		t.Fatalf("digest and timer toggles default on: %+v", st)
	}
	if len(st.LeadMinutes()) != 0 {
		t.Fatalf("no leads expected by default, got %v", st.LeadMinutes())
	}
}

func TestLoadSettingsIgnoresMalformedValues(t *testing.T) {
	t.Parallel()
	kv := newKVStore()
	kv.m[keyEnabled] = "definitely"
	kv.m[keyCustomLead] = "soon"
	kv.m[keyQuietStart] = "late"
	kv.m[keyQuietEnd] = "07:00"

	st, err := LoadSettings(context.Background(), kv)
	if err != nil {
		t.Fatalf("LoadSettings error: %v", err)
	}
	if st.Enabled || st.CustomLeadMinutes != 0 {
		t.Fatalf("malformed values should fall back to defaults: %+v", st)
	}
	if st.QuietStart != nil || st.QuietEnd != nil {
		t.Fatal("malformed quiet window should be ignored whole")
	}
}
