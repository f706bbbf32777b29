package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tasknag/internal/config"
	"tasknag/internal/notify"
	"tasknag/internal/task"
	"tasknag/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Timestamps are stored as RFC3339 in UTC so lexical comparison in SQL
// matches chronological order. Due dates are date-only strings.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg config.StorageConfig, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.BusyTimeout, 5*time.Second); err == nil && busy > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Info("sqlite store opened", logx.String("path", cfg.Path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- tasks ---

const taskColumns = `id, title, done, due_date,
	recur_enabled, recur_frequency, recur_interval, recur_weekdays,
	recur_from_completion, recur_end_type, recur_end_date,
	created_at, updated_at, completed_at`

func (s *sqliteStore) CreateTask(ctx context.Context, t *task.Task) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, done, due_date,
			recur_enabled, recur_frequency, recur_interval, recur_weekdays,
			recur_from_completion, recur_end_type, recur_end_date,
			created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, boolInt(t.Done), dateOrNil(t.DueDate),
		boolInt(t.Recurrence.Enabled), string(t.Recurrence.Frequency), t.Recurrence.Interval,
		weekdaysToCSV(t.Recurrence.Weekdays), boolInt(t.Recurrence.FromCompletion),
		string(t.Recurrence.EndType), dateOrNil(t.Recurrence.EndDate),
		timeStr(t.CreatedAt), timeStr(t.UpdatedAt), timeOrNil(t.CompletedAt))
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

func (s *sqliteStore) UpdateTask(ctx context.Context, t *task.Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, done = ?, due_date = ?,
			recur_enabled = ?, recur_frequency = ?, recur_interval = ?, recur_weekdays = ?,
			recur_from_completion = ?, recur_end_type = ?, recur_end_date = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?`,
		t.Title, boolInt(t.Done), dateOrNil(t.DueDate),
		boolInt(t.Recurrence.Enabled), string(t.Recurrence.Frequency), t.Recurrence.Interval,
		weekdaysToCSV(t.Recurrence.Weekdays), boolInt(t.Recurrence.FromCompletion),
		string(t.Recurrence.EndType), dateOrNil(t.Recurrence.EndDate),
		timeStr(t.UpdatedAt), timeOrNil(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task %d: not found", t.ID)
	}
	return nil
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) TaskByID(ctx context.Context, id int64) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", id, err)
	}
	return t, nil
}

func (s *sqliteStore) TasksDueBefore(ctx context.Context, day time.Time) ([]task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE done = 0 AND due_date IS NOT NULL AND due_date < ?
		 ORDER BY due_date`, day.Format(dateLayout))
}

func (s *sqliteStore) TasksWithDueDate(ctx context.Context) ([]task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE done = 0 AND due_date IS NOT NULL
		 ORDER BY due_date`)
}

func (s *sqliteStore) queryTasks(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*task.Task, error) {
	var (
		t                            task.Task
		done, recEnabled, recFromCmp int
		due, recEnd, completed       sql.NullString
		freq, endType, weekdays      string
		created, updated             string
	)
	err := r.Scan(&t.ID, &t.Title, &done, &due,
		&recEnabled, &freq, &t.Recurrence.Interval, &weekdays,
		&recFromCmp, &endType, &recEnd,
		&created, &updated, &completed)
	if err != nil {
		return nil, err
	}
	t.Done = done != 0
	t.Recurrence.Enabled = recEnabled != 0
	t.Recurrence.Frequency = task.Frequency(freq)
	t.Recurrence.Weekdays = csvToWeekdays(weekdays)
	t.Recurrence.FromCompletion = recFromCmp != 0
	t.Recurrence.EndType = task.EndType(endType)
	if t.DueDate, err = parseDateOpt(due); err != nil {
		return nil, err
	}
	if t.Recurrence.EndDate, err = parseDateOpt(recEnd); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseTimeOpt(completed); err != nil {
		return nil, err
	}
	return &t, nil
}

// --- notification queue ---

func (s *sqliteStore) AppendNotification(ctx context.Context, n *notify.ScheduledNotification) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_notifications
			(slot_id, kind, task_id, trigger_time, title, body, delivered, canceled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)`,
		n.SlotID, string(n.Kind), n.TaskID, timeStr(n.TriggerTime),
		n.Payload.Title, n.Payload.Body, timeStr(n.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("append notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	n.ID = id
	return id, nil
}

func (s *sqliteStore) PendingNotifications(ctx context.Context, before time.Time) ([]notify.ScheduledNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slot_id, kind, task_id, trigger_time, title, body, created_at
		FROM scheduled_notifications
		WHERE delivered = 0 AND canceled = 0 AND trigger_time <= ?
		ORDER BY trigger_time`, timeStr(before))
	if err != nil {
		return nil, fmt.Errorf("pending notifications: %w", err)
	}
	defer rows.Close()

	var out []notify.ScheduledNotification
	for rows.Next() {
		var (
			n                 notify.ScheduledNotification
			kind, trig, built string
		)
		if err := rows.Scan(&n.ID, &n.SlotID, &kind, &n.TaskID, &trig,
			&n.Payload.Title, &n.Payload.Body, &built); err != nil {
			return nil, err
		}
		n.Kind = notify.Kind(kind)
		n.Payload.TaskID = n.TaskID
		if n.TriggerTime, err = parseTime(trig); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(built); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) MarkDelivered(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_notifications SET delivered = 1 WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) CancelSlot(ctx context.Context, slotID int64) error {
	if slotID == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_notifications SET canceled = 1
		WHERE slot_id = ? AND delivered = 0 AND canceled = 0`, slotID)
	return err
}

func (s *sqliteStore) DeleteForTask(ctx context.Context, taskID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scheduled_notifications
		WHERE task_id = ? AND delivered = 0`, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete notifications for task %d: %w", taskID, err)
	}
	return res.RowsAffected()
}

func (s *sqliteStore) CancelAllPending(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_notifications SET canceled = 1
		WHERE delivered = 0 AND canceled = 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- settings ---

func (s *sqliteStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return v, nil
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// --- serialization helpers ---

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeStr(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeStr(*t)
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimeOpt(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDateOpt(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", ns.String, err)
	}
	return &t, nil
}
