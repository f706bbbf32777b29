package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"tasknag/internal/eventbus"
	"tasknag/internal/task"
	"tasknag/pkg/logx"
)

// SchedulerDeps are the scheduler's collaborators, injected at construction.
type SchedulerDeps struct {
	Backend  Backend
	Queue    QueueStore
	Tasks    TaskSource
	Settings SettingsStore
	Bus      eventbus.Bus

	// Locked reports whether the sensitive data store is currently locked.
	// Consulted at delivery time only; nil means never locked.
	Locked func() bool

	Format Formatter
	Loc    *time.Location

	// PollInterval is the queue scan cadence for the polling backend
	// (default 30s). Ignored for push backends.
	PollInterval time.Duration
	// RatePerSec caps deliveries per second (default 3).
	RatePerSec int

	Log logx.Logger
}

// Scheduler keeps each task's reminder registrations in sync with its due
// date. All state transitions are "cancel every slot, then rebuild from the
// task's current due date"; there is no incremental update path, which is
// what makes rescheduling idempotent and crash-safe (the startup pass is the
// same operation run over every task).
//
// Event handling, poll ticks and digest checks all run on one goroutine, so
// handlers never race each other; collaborators only need to be safe against
// the external callers (ShowImmediate etc.).
type Scheduler struct {
	backend  Backend
	queue    QueueStore
	tasks    TaskSource
	settings SettingsStore
	bus      eventbus.Bus
	locked   func() bool
	format   Formatter
	planner  Planner
	loc      *time.Location
	log      logx.Logger

	pollInterval time.Duration
	pollingMode  bool
	limiter      *rate.Limiter

	mu     sync.Mutex
	stopCh chan struct{}
	ticks  chan struct{}
	unsub  func()
	cron   *cron.Cron
	wg     sync.WaitGroup

	now func() time.Time
}

func NewScheduler(d SchedulerDeps) *Scheduler {
	if d.Format == nil {
		d.Format = EnglishFormatter{}
	}
	if d.Loc == nil {
		d.Loc = time.Local
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 30 * time.Second
	}
	if d.RatePerSec <= 0 {
		d.RatePerSec = 3
	}
	return &Scheduler{
		backend:      d.Backend,
		queue:        d.Queue,
		tasks:        d.Tasks,
		settings:     d.Settings,
		bus:          d.Bus,
		locked:       d.Locked,
		format:       d.Format,
		planner:      NewPlanner(d.Format, d.Loc),
		loc:          d.Loc,
		log:          d.Log,
		pollInterval: d.PollInterval,
		pollingMode:  d.Backend != nil && d.Backend.Name() == "polling",
		limiter:      rate.NewLimiter(rate.Limit(d.RatePerSec), d.RatePerSec),
		now:          time.Now,
	}
}

// Start subscribes to task lifecycle events, runs the startup reschedule
// pass, and begins ticking. Safe to call once per instance.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return nil
	}
	s.stopCh = make(chan struct{})
	s.ticks = make(chan struct{}, 1)

	var ch <-chan eventbus.Event
	if s.bus != nil {
		ch, s.unsub = s.bus.Subscribe(64)
	}

	c := cron.New(cron.WithLocation(s.loc))
	if s.pollingMode {
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.pollInterval), s.requestTick); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("scheduler: poll entry: %w", err)
		}
	}
	// The daily entry keeps the overdue digest alive even when no poll loop
	// runs (push backend) and no task events arrive.
	if _, err := c.AddFunc("@daily", s.requestTick); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: digest entry: %w", err)
	}
	s.cron = c
	stopCh := s.stopCh
	s.mu.Unlock()

	perm := s.backend.RequestPermission(ctx)
	s.log.Info("notification scheduler starting",
		logx.String("backend", s.backend.Name()),
		logx.String("permission", perm.String()),
		logx.Bool("polling", s.pollingMode))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in scheduler loop", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		s.run(ctx, stopCh, ch)
	}()

	c.Start()
	return nil
}

// Stop halts ticking and event handling, then cancels all still-pending
// queue rows so the next startup pass rebuilds from a clean slate.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	stopCh := s.stopCh
	if stopCh == nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = nil
	unsub := s.unsub
	s.unsub = nil
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	close(stopCh)
	if unsub != nil {
		unsub()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return
	}

	if s.pollingMode {
		if n, err := s.queue.CancelAllPending(ctx); err != nil {
			s.log.Warn("failed canceling pending notifications on stop", logx.Err(err))
		} else if n > 0 {
			s.log.Info("canceled pending notifications", logx.Int64("count", n))
		}
	}
	s.log.Info("notification scheduler stopped")
}

// requestTick coalesces tick requests; a pending tick absorbs later ones.
func (s *Scheduler) requestTick() {
	s.mu.Lock()
	ticks := s.ticks
	s.mu.Unlock()
	if ticks == nil {
		return
	}
	select {
	case ticks <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, events <-chan eventbus.Event) {
	s.startupPass(ctx)
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		case <-s.ticks:
			s.tick(ctx)
		}
	}
}

// startupPass re-derives every task's reminder schedule. Because slot ids
// are deterministic, this also cancels stale registrations a previous run
// left behind (including OS-level timers from before a crash).
func (s *Scheduler) startupPass(ctx context.Context) {
	tasks, err := s.tasks.TasksWithDueDate(ctx)
	if err != nil {
		s.log.Error("startup pass: listing tasks failed", logx.Err(err))
		return
	}
	for i := range tasks {
		s.rescheduleTask(ctx, tasks[i].ID)
	}
	s.log.Info("startup reschedule pass done", logx.Int("tasks", len(tasks)))
}

func (s *Scheduler) handleEvent(ctx context.Context, ev eventbus.Event) {
	te, ok := ev.Data.(eventbus.TaskEvent)
	if !ok {
		return
	}
	switch ev.Type {
	case eventbus.TaskCreated, eventbus.TaskUpdated, eventbus.TaskDeleted,
		eventbus.TaskCompleted, eventbus.TaskUncompleted, eventbus.TaskPostponed:
		s.rescheduleTask(ctx, te.TaskID)
	case eventbus.TimerStopped:
		s.rescheduleTask(ctx, te.TaskID)
		s.timerComplete(ctx, te.TaskID, time.Duration(te.ElapsedSeconds)*time.Second)
	}
}

// rescheduleTask is the single transition: tear down every slot the task
// could own, then rebuild from its current due date. Cancellation is
// idempotent, so overlapping reschedules for the same task converge.
func (s *Scheduler) rescheduleTask(ctx context.Context, taskID int64) {
	if taskID == 0 {
		return
	}
	for slot := 0; slot < SlotsPerTask; slot++ {
		s.backend.Cancel(ctx, SlotID(taskID, slot))
	}
	if _, err := s.queue.DeleteForTask(ctx, taskID); err != nil {
		// Leave the task unscheduled; the next event or startup pass repairs it.
		s.log.Error("reschedule aborted: queue cleanup failed", logx.Int64("task_id", taskID), logx.Err(err))
		return
	}

	t, err := s.tasks.TaskByID(ctx, taskID)
	if err != nil {
		s.log.Error("reschedule aborted: task load failed", logx.Int64("task_id", taskID), logx.Err(err))
		return
	}
	if t == nil || t.Done || t.DueDate == nil {
		return
	}
	st, err := LoadSettings(ctx, s.settings)
	if err != nil {
		s.log.Error("reschedule aborted: settings load failed", logx.Int64("task_id", taskID), logx.Err(err))
		return
	}
	if !st.Enabled {
		return
	}

	for _, pl := range s.planner.PlanReminders(t, st, s.now()) {
		if !s.backend.Schedule(ctx, pl.SlotID, pl.Payload, pl.TriggerTime) {
			s.log.Warn("slot registration failed",
				logx.Int64("task_id", taskID), logx.Int("slot", pl.Slot))
			continue
		}
		s.log.Debug("reminder scheduled",
			logx.Int64("task_id", taskID),
			logx.Int("slot", pl.Slot),
			logx.Time("trigger", pl.TriggerTime))
		s.publishNotify(eventbus.NotifyScheduled, eventbus.NotifyEvent{
			TaskID:      taskID,
			SlotID:      pl.SlotID,
			Kind:        string(KindDueReminder),
			TriggerTime: pl.TriggerTime,
		})
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.checkDigest(ctx)
	if s.pollingMode {
		s.pollOnce(ctx)
	}
}

// pollOnce delivers due queue rows. Rows discovered during quiet hours are
// left pending (not delivered, not marked, not canceled) and reconsidered on
// the next tick. One bad row never stops the scan.
func (s *Scheduler) pollOnce(ctx context.Context) {
	st, err := LoadSettings(ctx, s.settings)
	if err != nil {
		s.log.Error("poll skipped: settings load failed", logx.Err(err))
		return
	}
	if !st.Enabled {
		return
	}
	rows, err := s.queue.PendingNotifications(ctx, s.now())
	if err != nil {
		s.log.Error("poll skipped: queue scan failed", logx.Err(err))
		return
	}
	for i := range rows {
		row := &rows[i]
		if st.InQuietHours(s.now().In(s.loc)) {
			s.log.Debug("quiet hours: deferring delivery", logx.Int64("id", row.ID))
			continue
		}
		if !s.deliver(ctx, row.Payload) {
			continue // stays pending; retried next tick
		}
		if err := s.queue.MarkDelivered(ctx, row.ID); err != nil {
			s.log.Error("failed to mark delivered", logx.Int64("id", row.ID), logx.Err(err))
			continue
		}
		s.publishNotify(eventbus.NotifyFired, eventbus.NotifyEvent{
			TaskID:      row.TaskID,
			SlotID:      row.SlotID,
			Kind:        string(row.Kind),
			TriggerTime: row.TriggerTime,
		})
	}
}

// checkDigest delivers at most one overdue digest per calendar day, tracked
// by the last_digest_date setting. Running it any number of times a day is
// safe.
func (s *Scheduler) checkDigest(ctx context.Context) {
	st, err := LoadSettings(ctx, s.settings)
	if err != nil {
		s.log.Error("digest skipped: settings load failed", logx.Err(err))
		return
	}
	if !st.Enabled || !st.NotifyOverdue {
		return
	}
	now := s.now().In(s.loc)
	today := now.Format("2006-01-02")
	last, err := s.settings.GetSetting(ctx, keyLastDigest, "")
	if err != nil {
		s.log.Error("digest skipped: settings read failed", logx.Err(err))
		return
	}
	if last == today {
		return
	}
	if st.InQuietHours(now) {
		return // deferred; a later tick today will retry
	}

	overdue, err := s.tasks.TasksDueBefore(ctx, task.DateOf(now))
	if err != nil {
		s.log.Error("digest skipped: overdue query failed", logx.Err(err))
		return
	}
	if len(overdue) == 0 {
		return
	}
	title, body := s.format.Digest(len(overdue))
	if !s.deliver(ctx, Payload{Title: title, Body: body}) {
		return
	}
	if err := s.settings.SetSetting(ctx, keyLastDigest, today); err != nil {
		s.log.Error("failed recording digest date", logx.Err(err))
	}
	s.log.Info("overdue digest delivered", logx.Int("overdue", len(overdue)))
	s.publishNotify(eventbus.NotifyDigest, eventbus.NotifyEvent{Kind: string(KindDailyDigest), TriggerTime: now})
}

// deliver applies the delivery-time policies (rate limit, lock redaction)
// and pushes through the backend. Scheduling stores real payloads; only this
// hop ever swaps in the locked placeholder.
func (s *Scheduler) deliver(ctx context.Context, p Payload) bool {
	if err := s.limiter.Wait(ctx); err != nil {
		return false
	}
	if s.locked != nil && s.locked() {
		title, body := s.format.LockedPlaceholder()
		p = Payload{Title: title, Body: body, TaskID: p.TaskID}
	}
	return s.backend.DeliverNow(ctx, p)
}

// ScheduleTimerComplete notifies that a tracked timer session finished.
// Not governed by lead times: the polling backend queues it for the next
// tick, a push backend delivers straight away.
func (s *Scheduler) ScheduleTimerComplete(ctx context.Context, t *task.Task, elapsed time.Duration) bool {
	if t == nil {
		return false
	}
	st, err := LoadSettings(ctx, s.settings)
	if err != nil || !st.Enabled || !st.NotifyTimerComplete {
		return false
	}
	title, body := s.format.TimerComplete(t.Title, elapsed)
	p := Payload{Title: title, Body: body, TaskID: t.ID}

	if s.pollingMode {
		n := &ScheduledNotification{
			Kind:        KindTimerComplete,
			TaskID:      t.ID,
			TriggerTime: s.now(),
			Payload:     p,
			CreatedAt:   s.now(),
		}
		if _, err := s.queue.AppendNotification(ctx, n); err != nil {
			s.log.Error("failed queueing timer notification", logx.Int64("task_id", t.ID), logx.Err(err))
			return false
		}
		s.requestTick()
		return true
	}
	return s.deliver(ctx, p)
}

func (s *Scheduler) timerComplete(ctx context.Context, taskID int64, elapsed time.Duration) {
	t, err := s.tasks.TaskByID(ctx, taskID)
	if err != nil || t == nil {
		return
	}
	s.ScheduleTimerComplete(ctx, t, elapsed)
}

// ShowImmediate delivers a notification right now, honoring the enabled
// flag, quiet hours and lock redaction.
func (s *Scheduler) ShowImmediate(ctx context.Context, title, body string, taskID int64) bool {
	st, err := LoadSettings(ctx, s.settings)
	if err != nil || !st.Enabled {
		return false
	}
	if st.InQuietHours(s.now().In(s.loc)) {
		s.log.Debug("quiet hours: immediate notification suppressed")
		return false
	}
	return s.deliver(ctx, Payload{Title: title, Body: body, TaskID: taskID})
}

// TestNotification bypasses the enabled flag, quiet hours and redaction;
// it exists so users can verify the delivery path end to end.
func (s *Scheduler) TestNotification(ctx context.Context, title, body string) bool {
	return s.backend.DeliverNow(ctx, Payload{Title: title, Body: body})
}

// RequestPermission proxies to the active backend.
func (s *Scheduler) RequestPermission(ctx context.Context) PermissionResult {
	return s.backend.RequestPermission(ctx)
}

func (s *Scheduler) publishNotify(typ string, data eventbus.NotifyEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
