package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tasknag/internal/config"
	"tasknag/internal/notify"
	"tasknag/internal/task"
	"tasknag/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(config.StorageConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "tasks.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteTaskRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)
	in := &task.Task{
		Title:   "water the plants",
		DueDate: &due,
		Recurrence: task.Recurrence{
			Enabled:   true,
			Frequency: task.FreqWeeks,
			Interval:  2,
			Weekdays:  []int{0, 3},
			EndType:   task.EndOnDate,
			EndDate:   &end,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := st.CreateTask(ctx, in)
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a generated id")
	}

	got, err := st.TaskByID(ctx, id)
	if err != nil {
		t.Fatalf("TaskByID error: %v", err)
	}
	if got == nil {
		t.Fatal("task not found after create")
	}
	if got.Title != in.Title || got.Done {
		t.Fatalf("got %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("due = %v, want %v", got.DueDate, due)
	}
	rec := got.Recurrence
	if !rec.Enabled || rec.Frequency != task.FreqWeeks || rec.Interval != 2 {
		t.Fatalf("recurrence = %+v", rec)
	}
	if len(rec.Weekdays) != 2 || rec.Weekdays[0] != 0 || rec.Weekdays[1] != 3 {
		t.Fatalf("weekdays = %v", rec.Weekdays)
	}
	if rec.EndType != task.EndOnDate || rec.EndDate == nil || !rec.EndDate.Equal(end) {
		t.Fatalf("end = %v %v", rec.EndType, rec.EndDate)
	}

	got.Done = true
	got.UpdatedAt = now.Add(time.Hour)
	if err := st.UpdateTask(ctx, got); err != nil {
		t.Fatalf("UpdateTask error: %v", err)
	}
	again, _ := st.TaskByID(ctx, id)
	if !again.Done {
		t.Fatal("update did not persist")
	}

	if err := st.DeleteTask(ctx, id); err != nil {
		t.Fatalf("DeleteTask error: %v", err)
	}
	if gone, err := st.TaskByID(ctx, id); err != nil || gone != nil {
		t.Fatalf("after delete: (%v, %v), want (nil, nil)", gone, err)
	}
}

func TestSQLiteUpdateMissingTask(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	err := st.UpdateTask(context.Background(), &task.Task{ID: 999, Title: "ghost"})
	if err == nil {
		t.Fatal("expected error updating a missing task")
	}
}

func TestSQLiteTaskQueries(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	mk := func(title string, due *time.Time, done bool) {
		t.Helper()
		tk := &task.Task{Title: title, DueDate: due, Done: done, CreatedAt: now, UpdatedAt: now}
		if _, err := st.CreateTask(ctx, tk); err != nil {
			t.Fatalf("CreateTask(%s): %v", title, err)
		}
	}
	past := now.AddDate(0, 0, -3)
	today := now
	future := now.AddDate(0, 0, 5)
	mk("overdue", &past, false)
	mk("due today", &today, false)
	mk("upcoming", &future, false)
	mk("finished", &past, true)
	mk("dateless", nil, false)

	overdue, err := st.TasksDueBefore(ctx, now)
	if err != nil {
		t.Fatalf("TasksDueBefore error: %v", err)
	}
	if len(overdue) != 1 || overdue[0].Title != "overdue" {
		t.Fatalf("overdue = %+v, want just the strictly-before task", overdue)
	}

	withDue, err := st.TasksWithDueDate(ctx)
	if err != nil {
		t.Fatalf("TasksWithDueDate error: %v", err)
	}
	if len(withDue) != 3 {
		t.Fatalf("withDue = %d tasks, want 3", len(withDue))
	}
}

func TestSQLiteNotificationQueue(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	add := func(slotID, taskID int64, trig time.Time) int64 {
		t.Helper()
		n := &notify.ScheduledNotification{
			SlotID: slotID, Kind: notify.KindDueReminder, TaskID: taskID,
			TriggerTime: trig,
			Payload:     notify.Payload{Title: "Task reminder", Body: "b", TaskID: taskID},
			CreatedAt:   now,
		}
		id, err := st.AppendNotification(ctx, n)
		if err != nil {
			t.Fatalf("AppendNotification error: %v", err)
		}
		return id
	}
	dueID := add(10, 1, now.Add(-time.Minute))
	add(11, 1, now.Add(time.Hour))
	add(20, 2, now.Add(-time.Hour))

	pending, err := st.PendingNotifications(ctx, now)
	if err != nil {
		t.Fatalf("PendingNotifications error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d rows, want 2", len(pending))
	}
	// Oldest trigger first.
	if pending[0].SlotID != 20 || pending[1].ID != dueID {
		t.Fatalf("pending order = %+v", pending)
	}
	if pending[1].Payload.Title != "Task reminder" || pending[1].Payload.TaskID != 1 {
		t.Fatalf("payload = %+v", pending[1].Payload)
	}

	if err := st.MarkDelivered(ctx, dueID); err != nil {
		t.Fatalf("MarkDelivered error: %v", err)
	}
	if err := st.CancelSlot(ctx, 20); err != nil {
		t.Fatalf("CancelSlot error: %v", err)
	}
	pending, _ = st.PendingNotifications(ctx, now)
	if len(pending) != 0 {
		t.Fatalf("pending after mark/cancel = %+v", pending)
	}

	// DeleteForTask drops only undelivered rows of that task.
	if n, err := st.DeleteForTask(ctx, 1); err != nil || n != 1 {
		t.Fatalf("DeleteForTask = (%d, %v), want (1, nil)", n, err)
	}

	add(30, 3, now.Add(time.Minute))
	if n, err := st.CancelAllPending(ctx); err != nil || n != 1 {
		t.Fatalf("CancelAllPending = (%d, %v), want (1, nil)", n, err)
	}
}

func TestSQLiteSettings(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if v, err := st.GetSetting(ctx, "notifications_enabled", "false"); err != nil || v != "false" {
		t.Fatalf("default: (%q, %v)", v, err)
	}
	if err := st.SetSetting(ctx, "notifications_enabled", "true"); err != nil {
		t.Fatalf("SetSetting error: %v", err)
	}
	if err := st.SetSetting(ctx, "notifications_enabled", "false"); err != nil {
		t.Fatalf("SetSetting upsert error: %v", err)
	}
	if v, _ := st.GetSetting(ctx, "notifications_enabled", "true"); v != "false" {
		t.Fatalf("got %q after upsert, want false", v)
	}
}
