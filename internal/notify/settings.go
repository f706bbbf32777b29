package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings keys in the settings store.
const (
	keyEnabled       = "notifications_enabled"
	keyRemind1h      = "remind_1h_before"
	keyRemind6h      = "remind_6h_before"
	keyRemind12h     = "remind_12h_before"
	keyRemind24h     = "remind_24h_before"
	keyCustomLead    = "reminder_minutes_before"
	keyQuietStart    = "quiet_hours_start"
	keyQuietEnd      = "quiet_hours_end"
	keyNotifyOverdue = "notify_overdue"
	keyNotifyTimer   = "notify_timer_complete"
	keyLastDigest    = "last_digest_date"
)

// Clock is a time of day, minute resolution.
type Clock struct {
	Hour, Min int
}

func (c Clock) minutes() int { return c.Hour*60 + c.Min }

// ParseClock parses "HH:MM". Empty input yields (nil, nil).
func ParseClock(s string) (*Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid time of day %q", s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return nil, fmt.Errorf("invalid time of day %q", s)
	}
	return &Clock{Hour: h, Min: m}, nil
}

// Settings is the user-editable reminder configuration, loaded fresh from the
// settings store whenever the scheduler needs it (the UI may change it at any
// time).
type Settings struct {
	Enabled bool

	Remind1h  bool
	Remind6h  bool
	Remind12h bool
	Remind24h bool
	// CustomLeadMinutes adds one extra lead time when > 0.
	CustomLeadMinutes int

	QuietStart *Clock
	QuietEnd   *Clock

	NotifyOverdue       bool
	NotifyTimerComplete bool
}

// LeadMinutes returns the enabled lead times in insertion order: the fixed
// toggles smallest first, then the custom one. The position in this list is
// the reminder's slot index.
func (s Settings) LeadMinutes() []int {
	out := make([]int, 0, 5)
	if s.Remind1h {
		out = append(out, 60)
	}
	if s.Remind6h {
		out = append(out, 360)
	}
	if s.Remind12h {
		out = append(out, 720)
	}
	if s.Remind24h {
		out = append(out, 1440)
	}
	if s.CustomLeadMinutes > 0 {
		out = append(out, s.CustomLeadMinutes)
	}
	return out
}

// InQuietHours reports whether now falls inside the quiet window.
// A window with start > end wraps midnight: now >= start OR now <= end.
func (s Settings) InQuietHours(now time.Time) bool {
	if s.QuietStart == nil || s.QuietEnd == nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	start := s.QuietStart.minutes()
	end := s.QuietEnd.minutes()
	if start > end {
		return cur >= start || cur <= end
	}
	return cur >= start && cur < end
}

// LoadSettings reads the reminder settings from the store, applying defaults
// for missing keys. A store error aborts the load; callers treat that as
// "skip this cycle" rather than guessing.
func LoadSettings(ctx context.Context, store SettingsStore) (Settings, error) {
	var s Settings
	var err error

	if s.Enabled, err = getBool(ctx, store, keyEnabled, false); err != nil {
		return s, err
	}
	if s.Remind1h, err = getBool(ctx, store, keyRemind1h, false); err != nil {
		return s, err
	}
	if s.Remind6h, err = getBool(ctx, store, keyRemind6h, false); err != nil {
		return s, err
	}
	if s.Remind12h, err = getBool(ctx, store, keyRemind12h, false); err != nil {
		return s, err
	}
	if s.Remind24h, err = getBool(ctx, store, keyRemind24h, false); err != nil {
		return s, err
	}
	if s.CustomLeadMinutes, err = getInt(ctx, store, keyCustomLead, 0); err != nil {
		return s, err
	}
	if s.NotifyOverdue, err = getBool(ctx, store, keyNotifyOverdue, true); err != nil {
		return s, err
	}
	if s.NotifyTimerComplete, err = getBool(ctx, store, keyNotifyTimer, true); err != nil {
		return s, err
	}

	rawStart, err := store.GetSetting(ctx, keyQuietStart, "")
	if err != nil {
		return s, err
	}
	rawEnd, err := store.GetSetting(ctx, keyQuietEnd, "")
	if err != nil {
		return s, err
	}
	// A malformed window is ignored rather than fatal; reminders still fire.
	if start, perr := ParseClock(rawStart); perr == nil {
		if end, perr2 := ParseClock(rawEnd); perr2 == nil {
			s.QuietStart, s.QuietEnd = start, end
		}
	}
	return s, nil
}

func getBool(ctx context.Context, store SettingsStore, key string, def bool) (bool, error) {
	raw, err := store.GetSetting(ctx, key, strconv.FormatBool(def))
	if err != nil {
		return def, err
	}
	v, perr := strconv.ParseBool(strings.TrimSpace(raw))
	if perr != nil {
		return def, nil
	}
	return v, nil
}

func getInt(ctx context.Context, store SettingsStore, key string, def int) (int, error) {
	raw, err := store.GetSetting(ctx, key, strconv.Itoa(def))
	if err != nil {
		return def, err
	}
	v, perr := strconv.Atoi(strings.TrimSpace(raw))
	if perr != nil {
		return def, nil
	}
	return v, nil
}
