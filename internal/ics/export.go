// Package ics publishes open tasks as an iCalendar feed so external calendar
// apps can subscribe to the task list.
package ics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"tasknag/internal/eventbus"
	"tasknag/internal/notify"
	"tasknag/internal/task"
	"tasknag/pkg/logx"
)

const debounceDelay = 2 * time.Second

// Exporter rewrites the feed file whenever tasks change, debounced so a
// burst of edits produces one write. Every undone task with a due date
// becomes an all-day VEVENT; recurrences are rendered as RRULEs.
//
// RRULE monthly semantics differ from the app's: RFC 5545 skips months
// without the anchor day while the app clamps to the month's last day. The
// feed is a read-only mirror, so the divergence only shifts a handful of
// far-future calendar entries.
type Exporter struct {
	tasks notify.TaskSource
	bus   eventbus.Bus
	log   logx.Logger

	path string
	name string
	loc  *time.Location

	mu      sync.Mutex
	pending *time.Timer
	stopCh  chan struct{}
	unsub   func()
	wg      sync.WaitGroup
}

type Options struct {
	Path string
	Name string
	Loc  *time.Location
}

func NewExporter(tasks notify.TaskSource, bus eventbus.Bus, opts Options, log logx.Logger) *Exporter {
	if opts.Name == "" {
		opts.Name = "Tasks"
	}
	if opts.Loc == nil {
		opts.Loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Exporter{
		tasks: tasks,
		bus:   bus,
		log:   log,
		path:  opts.Path,
		name:  opts.Name,
		loc:   opts.Loc,
	}
}

// Start writes the feed once, then keeps it current from task events.
func (e *Exporter) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopCh != nil {
		e.mu.Unlock()
		return nil
	}
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh

	var ch <-chan eventbus.Event
	if e.bus != nil {
		ch, e.unsub = e.bus.Subscribe(16)
	}
	e.mu.Unlock()

	if err := e.Export(ctx); err != nil {
		e.log.Warn("initial feed export failed", logx.Err(err))
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if isTaskEvent(ev.Type) {
					e.scheduleExport(ctx)
				}
			}
		}
	}()
	return nil
}

func (e *Exporter) Stop() {
	e.mu.Lock()
	stopCh := e.stopCh
	e.stopCh = nil
	unsub := e.unsub
	e.unsub = nil
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	if unsub != nil {
		unsub()
	}
	e.wg.Wait()
}

func isTaskEvent(typ string) bool {
	switch typ {
	case eventbus.TaskCreated, eventbus.TaskUpdated, eventbus.TaskDeleted,
		eventbus.TaskCompleted, eventbus.TaskUncompleted, eventbus.TaskPostponed:
		return true
	}
	return false
}

func (e *Exporter) scheduleExport(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopCh == nil {
		return
	}
	if e.pending != nil {
		e.pending.Stop()
	}
	e.pending = time.AfterFunc(debounceDelay, func() {
		if err := e.Export(ctx); err != nil {
			e.log.Warn("feed export failed", logx.Err(err))
		}
	})
}

// Export renders and atomically replaces the feed file.
func (e *Exporter) Export(ctx context.Context) error {
	tasks, err := e.tasks.TasksWithDueDate(ctx)
	if err != nil {
		return fmt.Errorf("feed export: %w", err)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//tasknag//feed//EN")
	cal.SetXWRCalName(e.name)

	now := time.Now().In(e.loc)
	for i := range tasks {
		e.addEvent(cal, &tasks[i], now)
	}

	tmp := e.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, []byte(cal.Serialize()), 0o644); err != nil {
		return fmt.Errorf("feed export: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("feed export: %w", err)
	}
	e.log.Debug("feed exported", logx.Int("events", len(tasks)), logx.String("path", e.path))
	return nil
}

func (e *Exporter) addEvent(cal *ical.Calendar, t *task.Task, now time.Time) {
	if t.DueDate == nil {
		return
	}
	ev := cal.AddEvent(fmt.Sprintf("task-%d@tasknag", t.ID))
	ev.SetDtStampTime(now)
	ev.SetSummary(t.Title)
	due := *t.DueDate
	start := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, e.loc)
	ev.SetAllDayStartAt(start)
	ev.SetAllDayEndAt(start.AddDate(0, 0, 1))

	if rule, ok := recurrenceRule(t.Recurrence); ok {
		ev.AddRrule(rule)
	}
}

var rruleWeekdays = [7]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// recurrenceRule maps a task recurrence onto an RRULE value string.
func recurrenceRule(rec task.Recurrence) (string, bool) {
	if !rec.Enabled || rec.Interval < 1 {
		return "", false
	}
	opt := rrule.ROption{Interval: rec.Interval}
	switch rec.Frequency {
	case task.FreqDays:
		opt.Freq = rrule.DAILY
	case task.FreqWeeks:
		opt.Freq = rrule.WEEKLY
		for _, d := range rec.Weekdays {
			if d >= 0 && d < len(rruleWeekdays) {
				opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
			}
		}
	case task.FreqMonths:
		opt.Freq = rrule.MONTHLY
	default:
		return "", false
	}
	if rec.EndType == task.EndOnDate {
		if rec.EndDate == nil {
			return "", false
		}
		end := *rec.EndDate
		opt.Until = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", false
	}
	return r.String(), true
}
