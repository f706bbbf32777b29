// Package storage persists tasks, user settings and the pending-notification
// queue. Two drivers: sqlite (default, single file, no server) and postgres.
package storage

import (
	"errors"
	"strconv"
	"strings"

	"tasknag/internal/config"
	"tasknag/internal/notify"
	"tasknag/internal/task"
	"tasknag/pkg/logx"
)

// Store is everything the rest of the app needs from persistence. The
// embedded interfaces are owned by their consumer packages; storage only
// implements them.
type Store interface {
	task.Store
	notify.QueueStore
	notify.TaskSource
	notify.SettingsStore

	Close() error
}

// Open initializes the configured store and runs its migrations.
func Open(cfg config.StorageConfig, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

const (
	dateLayout = "2006-01-02"
)

// weekdaysToCSV serializes recurrence weekdays (0 = Monday) as "0,2,4".
func weekdaysToCSV(days []int) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func csvToWeekdays(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil && n >= 0 && n <= 6 {
			out = append(out, n)
		}
	}
	return out
}
