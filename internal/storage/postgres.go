package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tasknag/internal/config"
	"tasknag/internal/notify"
	"tasknag/internal/task"
	"tasknag/pkg/logx"
)

type pgStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(cfg config.StorageConfig, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	st := &pgStore{pool: pool, log: log}
	if err := st.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Info("postgres store opened")
	return st, nil
}

func (s *pgStore) ensureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id                    BIGSERIAL PRIMARY KEY,
			title                 TEXT NOT NULL,
			done                  BOOLEAN NOT NULL DEFAULT FALSE,
			due_date              DATE,
			recur_enabled         BOOLEAN NOT NULL DEFAULT FALSE,
			recur_frequency       TEXT NOT NULL DEFAULT '',
			recur_interval        INTEGER NOT NULL DEFAULT 0,
			recur_weekdays        TEXT NOT NULL DEFAULT '',
			recur_from_completion BOOLEAN NOT NULL DEFAULT FALSE,
			recur_end_type        TEXT NOT NULL DEFAULT '',
			recur_end_date        DATE,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at          TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due
			ON tasks(due_date) WHERE NOT done AND due_date IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_notifications (
			id           BIGSERIAL PRIMARY KEY,
			slot_id      BIGINT NOT NULL DEFAULT 0,
			kind         TEXT NOT NULL,
			task_id      BIGINT NOT NULL DEFAULT 0,
			trigger_time TIMESTAMPTZ NOT NULL,
			title        TEXT NOT NULL,
			body         TEXT NOT NULL,
			delivered    BOOLEAN NOT NULL DEFAULT FALSE,
			canceled     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_pending
			ON scheduled_notifications(trigger_time) WHERE NOT delivered AND NOT canceled`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// --- tasks ---

func (s *pgStore) CreateTask(ctx context.Context, t *task.Task) (int64, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, done, due_date,
			recur_enabled, recur_frequency, recur_interval, recur_weekdays,
			recur_from_completion, recur_end_type, recur_end_date,
			created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		t.Title, t.Done, t.DueDate,
		t.Recurrence.Enabled, string(t.Recurrence.Frequency), t.Recurrence.Interval,
		weekdaysToCSV(t.Recurrence.Weekdays), t.Recurrence.FromCompletion,
		string(t.Recurrence.EndType), t.Recurrence.EndDate,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt).Scan(&t.ID)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return t.ID, nil
}

func (s *pgStore) UpdateTask(ctx context.Context, t *task.Task) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET title = $1, done = $2, due_date = $3,
			recur_enabled = $4, recur_frequency = $5, recur_interval = $6, recur_weekdays = $7,
			recur_from_completion = $8, recur_end_type = $9, recur_end_date = $10,
			updated_at = $11, completed_at = $12
		WHERE id = $13`,
		t.Title, t.Done, t.DueDate,
		t.Recurrence.Enabled, string(t.Recurrence.Frequency), t.Recurrence.Interval,
		weekdaysToCSV(t.Recurrence.Weekdays), t.Recurrence.FromCompletion,
		string(t.Recurrence.EndType), t.Recurrence.EndDate,
		t.UpdatedAt, t.CompletedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %d: not found", t.ID)
	}
	return nil
}

func (s *pgStore) DeleteTask(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

const pgTaskColumns = `id, title, done, due_date,
	recur_enabled, recur_frequency, recur_interval, recur_weekdays,
	recur_from_completion, recur_end_type, recur_end_date,
	created_at, updated_at, completed_at`

func (s *pgStore) TaskByID(ctx context.Context, id int64) (*task.Task, error) {
	t, err := scanPgTask(s.pool.QueryRow(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", id, err)
	}
	return t, nil
}

func (s *pgStore) TasksDueBefore(ctx context.Context, day time.Time) ([]task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks
		 WHERE NOT done AND due_date IS NOT NULL AND due_date < $1
		 ORDER BY due_date`, day.Format(dateLayout))
}

func (s *pgStore) TasksWithDueDate(ctx context.Context) ([]task.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks
		 WHERE NOT done AND due_date IS NOT NULL
		 ORDER BY due_date`)
}

func (s *pgStore) queryTasks(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanPgTask(r rowScanner) (*task.Task, error) {
	var (
		t        task.Task
		freq     string
		endType  string
		weekdays string
	)
	err := r.Scan(&t.ID, &t.Title, &t.Done, &t.DueDate,
		&t.Recurrence.Enabled, &freq, &t.Recurrence.Interval, &weekdays,
		&t.Recurrence.FromCompletion, &endType, &t.Recurrence.EndDate,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	t.Recurrence.Frequency = task.Frequency(freq)
	t.Recurrence.Weekdays = csvToWeekdays(weekdays)
	t.Recurrence.EndType = task.EndType(endType)
	return &t, nil
}

// --- notification queue ---

func (s *pgStore) AppendNotification(ctx context.Context, n *notify.ScheduledNotification) (int64, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scheduled_notifications
			(slot_id, kind, task_id, trigger_time, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		n.SlotID, string(n.Kind), n.TaskID, n.TriggerTime,
		n.Payload.Title, n.Payload.Body, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return 0, fmt.Errorf("append notification: %w", err)
	}
	return n.ID, nil
}

func (s *pgStore) PendingNotifications(ctx context.Context, before time.Time) ([]notify.ScheduledNotification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, slot_id, kind, task_id, trigger_time, title, body, created_at
		FROM scheduled_notifications
		WHERE NOT delivered AND NOT canceled AND trigger_time <= $1
		ORDER BY trigger_time`, before)
	if err != nil {
		return nil, fmt.Errorf("pending notifications: %w", err)
	}
	defer rows.Close()

	var out []notify.ScheduledNotification
	for rows.Next() {
		var (
			n    notify.ScheduledNotification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.SlotID, &kind, &n.TaskID, &n.TriggerTime,
			&n.Payload.Title, &n.Payload.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = notify.Kind(kind)
		n.Payload.TaskID = n.TaskID
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *pgStore) MarkDelivered(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scheduled_notifications SET delivered = TRUE WHERE id = $1`, id)
	return err
}

func (s *pgStore) CancelSlot(ctx context.Context, slotID int64) error {
	if slotID == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE scheduled_notifications SET canceled = TRUE
		WHERE slot_id = $1 AND NOT delivered AND NOT canceled`, slotID)
	return err
}

func (s *pgStore) DeleteForTask(ctx context.Context, taskID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM scheduled_notifications
		WHERE task_id = $1 AND NOT delivered`, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete notifications for task %d: %w", taskID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) CancelAllPending(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_notifications SET canceled = TRUE
		WHERE NOT delivered AND NOT canceled`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- settings ---

func (s *pgStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return v, nil
}

func (s *pgStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}
