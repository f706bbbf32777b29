package notify

import (
	"context"
	"time"

	"tasknag/internal/task"
)

// Kind tags a scheduled notification record.
type Kind string

const (
	KindDueReminder   Kind = "due_reminder"
	KindTimerComplete Kind = "timer_complete"
	KindOverdue       Kind = "overdue"
	KindDailyDigest   Kind = "daily_digest"
)

// Payload is the strongly-typed content of a notification, decoded once at
// the store boundary. The stored payload always carries the real text;
// redaction happens only at delivery time.
type Payload struct {
	Title  string
	Body   string
	TaskID int64 // 0 = not task-bound
}

// ScheduledNotification is one row of the pending-notification queue.
// Rows are never mutated after Delivered is set.
type ScheduledNotification struct {
	ID          int64
	SlotID      int64 // 0 = immediate kinds with no reserved slot
	Kind        Kind
	TaskID      int64
	TriggerTime time.Time
	Payload     Payload
	Delivered   bool
	Canceled    bool
	CreatedAt   time.Time
}

// PermissionResult reports the outcome of a backend permission request.
type PermissionResult int

const (
	PermissionGranted PermissionResult = iota
	PermissionDenied
	PermissionNotRequired
)

func (p PermissionResult) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "not_required"
	}
}

// Sink is the final delivery hop (console, telegram, ...).
type Sink interface {
	Send(ctx context.Context, p Payload) error
}

// QueueStore is the persisted notification queue. Only the polling backend
// and crash-recovery bookkeeping touch it.
type QueueStore interface {
	AppendNotification(ctx context.Context, n *ScheduledNotification) (int64, error)
	// PendingNotifications returns undelivered, uncanceled rows with
	// TriggerTime <= before, oldest first.
	PendingNotifications(ctx context.Context, before time.Time) ([]ScheduledNotification, error)
	MarkDelivered(ctx context.Context, id int64) error
	// CancelSlot cancels pending rows carrying the given slot id. Canceling a
	// slot with no pending rows is a no-op.
	CancelSlot(ctx context.Context, slotID int64) error
	// DeleteForTask removes all undelivered rows for a task.
	DeleteForTask(ctx context.Context, taskID int64) (int64, error)
	CancelAllPending(ctx context.Context) (int64, error)
}

// TaskSource is the read-only view of the task data layer the scheduler needs.
type TaskSource interface {
	// TaskByID returns (nil, nil) when the task does not exist.
	TaskByID(ctx context.Context, id int64) (*task.Task, error)
	// TasksDueBefore returns undone tasks whose due date is strictly before day.
	TasksDueBefore(ctx context.Context, day time.Time) ([]task.Task, error)
	// TasksWithDueDate returns undone tasks that have any due date set.
	TasksWithDueDate(ctx context.Context) ([]task.Task, error)
}

// SettingsStore is the key-value settings access point.
type SettingsStore interface {
	GetSetting(ctx context.Context, key, def string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}
