package notify

import (
	"context"
	"time"

	"tasknag/pkg/logx"
)

// PollingBackend persists triggers as queue rows; the scheduler's poll loop
// discovers due rows and delivers them. It works on every platform but fires
// nothing while the process is down; the startup pass catches up.
type PollingBackend struct {
	store QueueStore
	sink  Sink
	log   logx.Logger

	now func() time.Time
}

func NewPollingBackend(store QueueStore, sink Sink, log logx.Logger) *PollingBackend {
	return &PollingBackend{store: store, sink: sink, log: log, now: time.Now}
}

func (b *PollingBackend) Name() string { return "polling" }

func (b *PollingBackend) Schedule(ctx context.Context, id int64, p Payload, triggerTime time.Time) bool {
	n := &ScheduledNotification{
		SlotID:      id,
		Kind:        KindDueReminder,
		TaskID:      p.TaskID,
		TriggerTime: triggerTime,
		Payload:     p,
		CreatedAt:   b.now(),
	}
	if _, err := b.store.AppendNotification(ctx, n); err != nil {
		b.log.Error("failed to queue reminder", logx.Int64("slot_id", id), logx.Err(err))
		return false
	}
	return true
}

func (b *PollingBackend) Cancel(ctx context.Context, id int64) {
	if err := b.store.CancelSlot(ctx, id); err != nil {
		// Best-effort: the row (if any) will also be swept by DeleteForTask
		// on the next reschedule.
		b.log.Warn("failed to cancel queued reminder", logx.Int64("slot_id", id), logx.Err(err))
	}
}

func (b *PollingBackend) DeliverNow(ctx context.Context, p Payload) bool {
	if err := b.sink.Send(ctx, p); err != nil {
		b.log.Error("delivery failed", logx.String("title", p.Title), logx.Err(err))
		return false
	}
	return true
}

func (b *PollingBackend) RequestPermission(ctx context.Context) PermissionResult {
	// Nothing OS-level involved.
	return PermissionNotRequired
}
