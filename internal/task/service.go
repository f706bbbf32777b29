package task

import (
	"context"
	"fmt"
	"time"

	"tasknag/internal/eventbus"
	"tasknag/pkg/logx"
)

// Store is the persistence contract the task service needs.
// The storage package implements it.
type Store interface {
	CreateTask(ctx context.Context, t *Task) (int64, error)
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id int64) error
	TaskByID(ctx context.Context, id int64) (*Task, error)
}

// Service owns task mutations and publishes lifecycle events.
// The notification scheduler is a subscriber of those events, never a caller
// into this service.
type Service struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
	loc   *time.Location

	now func() time.Time
}

func NewService(store Store, bus eventbus.Bus, loc *time.Location, log logx.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, bus: bus, log: log, loc: loc, now: time.Now}
}

func (s *Service) Create(ctx context.Context, t *Task) (*Task, error) {
	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	id, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	t.ID = id
	s.publish(eventbus.TaskCreated, t.ID)
	return t, nil
}

func (s *Service) Update(ctx context.Context, t *Task) error {
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	s.publish(eventbus.TaskUpdated, t.ID)
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	s.publish(eventbus.TaskDeleted, id)
	return nil
}

// Complete marks a task done and, for recurring tasks, creates the next
// occurrence. The successor inherits title and recurrence; its due date comes
// from NextDueDate with the base chosen by FromCompletion. A recurrence past
// its end date spawns nothing.
func (s *Service) Complete(ctx context.Context, id int64) (*Task, error) {
	t, err := s.store.TaskByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("complete task %d: %w", id, err)
	}
	if t == nil {
		return nil, nil
	}
	now := s.now().In(s.loc)
	t.Done = true
	t.CompletedAt = &now
	t.UpdatedAt = now
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("complete task %d: %w", id, err)
	}
	s.publish(eventbus.TaskCompleted, t.ID)

	next := s.spawnNextOccurrence(ctx, t, now)
	if next != nil {
		s.log.Info("recurring task rolled over",
			logx.Int64("task_id", t.ID),
			logx.Int64("next_id", next.ID),
			logx.Time("next_due", *next.DueDate))
	}
	return next, nil
}

func (s *Service) spawnNextOccurrence(ctx context.Context, done *Task, now time.Time) *Task {
	if !done.Recurrence.Enabled || done.DueDate == nil {
		return nil
	}
	base := *done.DueDate
	if done.Recurrence.FromCompletion {
		base = DateOf(now)
	}
	nextDue, ok := NextDueDate(done.Recurrence, base)
	if !ok {
		return nil
	}
	succ := &Task{
		Title:      done.Title,
		DueDate:    &nextDue,
		Recurrence: done.Recurrence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id, err := s.store.CreateTask(ctx, succ)
	if err != nil {
		s.log.Error("failed creating next occurrence", logx.Int64("task_id", done.ID), logx.Err(err))
		return nil
	}
	succ.ID = id
	s.publish(eventbus.TaskCreated, succ.ID)
	return succ
}

func (s *Service) Uncomplete(ctx context.Context, id int64) error {
	t, err := s.store.TaskByID(ctx, id)
	if err != nil || t == nil {
		return err
	}
	t.Done = false
	t.CompletedAt = nil
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("uncomplete task %d: %w", id, err)
	}
	s.publish(eventbus.TaskUncompleted, id)
	return nil
}

// Postpone shifts the due date forward by days (from today if the task has
// no due date yet).
func (s *Service) Postpone(ctx context.Context, id int64, days int) error {
	t, err := s.store.TaskByID(ctx, id)
	if err != nil || t == nil {
		return err
	}
	base := DateOf(s.now().In(s.loc))
	if t.DueDate != nil {
		base = *t.DueDate
	}
	due := base.AddDate(0, 0, days)
	t.DueDate = &due
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("postpone task %d: %w", id, err)
	}
	s.publish(eventbus.TaskPostponed, id)
	return nil
}

// StopTimer records a finished tracking session by publishing timer.stopped;
// the notification scheduler reacts with a timer-complete notification.
func (s *Service) StopTimer(ctx context.Context, id int64, elapsed time.Duration) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Type: eventbus.TimerStopped,
		Data: eventbus.TaskEvent{TaskID: id, ElapsedSeconds: int(elapsed.Seconds())},
	})
}

func (s *Service) publish(typ string, id int64) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: eventbus.TaskEvent{TaskID: id}})
}
