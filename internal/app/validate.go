package app

import (
	"fmt"
	"strings"
	"time"

	"tasknag/internal/config"
)

// validate rejects configurations the services downstream cannot start with.
// Reload uses the same checks, so a bad edit never reaches a running app.
func validate(cfg *config.Config) error {
	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
	if _, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second); err != nil {
		return err
	}

	switch b := strings.ToLower(strings.TrimSpace(cfg.Notifications.Backend)); b {
	case "", "polling", "systemd":
	default:
		return fmt.Errorf("unknown notifications.backend %q", cfg.Notifications.Backend)
	}
	if _, err := config.ParseDurationOrDefault("notifications.poll_interval", cfg.Notifications.PollInterval, 30*time.Second); err != nil {
		return err
	}
	if cfg.Notifications.RatePerSec < 0 {
		return fmt.Errorf("notifications.rate_per_sec must be >= 0")
	}
	switch s := strings.ToLower(strings.TrimSpace(cfg.Notifications.Sink)); s {
	case "", "console":
	case "telegram":
		tg := cfg.Notifications.Telegram
		if tg == nil || strings.TrimSpace(tg.Token) == "" || tg.ChatID == 0 {
			return fmt.Errorf("notifications.telegram token and chat_id are required for the telegram sink")
		}
	default:
		return fmt.Errorf("unknown notifications.sink %q", cfg.Notifications.Sink)
	}

	if cfg.ICS != nil && cfg.ICS.Enabled && strings.TrimSpace(cfg.ICS.Path) == "" {
		return fmt.Errorf("ics.path is required when ics.enabled is true")
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone %q: %w", tz, err)
		}
	}
	return nil
}
