package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "30s", "5m").
type Config struct {
	// Timezone is an IANA TZ name (e.g. "Europe/Bucharest").
	// Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`

	// Notifications controls the reminder scheduler and its delivery path.
	Notifications NotificationsConfig `json:"notifications"`

	// ICS optionally exports tasks with due dates as an iCalendar feed file.
	ICS *ICSConfig `json:"ics,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver.
//
// Driver values:
//   - "sqlite": local database file (default)
//   - "postgres": shared server via DSN
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`         // sqlite file path
	DSN         string `json:"dsn,omitempty"`          // postgres connection string
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// NotificationsConfig selects the backend strategy and the delivery sink.
//
// Backend values:
//   - "polling": persisted queue scanned on PollInterval (works everywhere)
//   - "systemd": transient systemd timer units (linux only; fires even if
//     the daemon is down, but cannot honor quiet hours)
type NotificationsConfig struct {
	Backend      string `json:"backend"`
	PollInterval string `json:"poll_interval,omitempty"` // default "30s"

	// Sink values: "console" (log output) or "telegram".
	Sink     string              `json:"sink"`
	Telegram *TelegramSinkConfig `json:"telegram,omitempty"`

	// RatePerSec caps deliveries per second (default 3).
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// UnitPrefix names the transient systemd units (default "tasknag").
	UnitPrefix string `json:"unit_prefix,omitempty"`
}

type TelegramSinkConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

type ICSConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// Name is the calendar display name (X-WR-CALNAME). Default "tasknag".
	Name string `json:"name,omitempty"`
}
