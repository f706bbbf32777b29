// Package app wires configuration, storage, the task service and the
// notification scheduler into one process lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tasknag/internal/config"
	"tasknag/internal/eventbus"
	"tasknag/internal/ics"
	"tasknag/internal/notify"
	"tasknag/internal/notify/sink"
	"tasknag/internal/storage"
	"tasknag/internal/task"
	"tasknag/internal/vault"
	"tasknag/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	logs *logx.Service
	log  logx.Logger
	loc  *time.Location

	bus   eventbus.Bus
	store storage.Store
	vlt   *vault.Vault

	tasks    *task.Service
	backend  notify.Backend
	sched    *notify.Scheduler
	exporter *ics.Exporter

	closeBackend func()

	mu     sync.Mutex
	cancel context.CancelFunc
	cfgCh  chan *config.Config
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", tz, err)
		}
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return validate(c) })

	bus := eventbus.New()

	store, err := storage.Open(cfg.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	vlt := vault.New(dataDir(cfg))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		loc:     loc,
		bus:     bus,
		store:   store,
		vlt:     vlt,
	}

	snk, err := buildSink(cfg, log)
	if err != nil {
		a.closePartial()
		return nil, err
	}
	if err := a.buildBackend(cfg, store, snk, log); err != nil {
		a.closePartial()
		return nil, err
	}

	a.tasks = task.NewService(store, bus, loc, log.With(logx.String("comp", "tasks")))

	pollInterval, err := config.ParseDurationOrDefault(
		"notifications.poll_interval", cfg.Notifications.PollInterval, 30*time.Second)
	if err != nil {
		a.closePartial()
		return nil, err
	}
	a.sched = notify.NewScheduler(notify.SchedulerDeps{
		Backend:      a.backend,
		Queue:        store,
		Tasks:        store,
		Settings:     store,
		Bus:          bus,
		Locked:       vlt.Locked,
		Loc:          loc,
		PollInterval: pollInterval,
		RatePerSec:   cfg.Notifications.RatePerSec,
		Log:          log.With(logx.String("comp", "scheduler")),
	})

	if cfg.ICS != nil && cfg.ICS.Enabled {
		a.exporter = ics.NewExporter(store, bus, ics.Options{
			Path: cfg.ICS.Path,
			Name: cfg.ICS.Name,
			Loc:  loc,
		}, log.With(logx.String("comp", "ics")))
	}

	return a, nil
}

// Tasks exposes the task mutation surface.
func (a *App) Tasks() *task.Service { return a.tasks }

// Scheduler exposes notification operations (test notification, permission).
func (a *App) Scheduler() *notify.Scheduler { return a.sched }

// Vault exposes the lock flag.
func (a *App) Vault() *vault.Vault { return a.vlt }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.cfgCh = a.cfgm.Subscribe(4)
	cfgCh := a.cfgCh
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	// Only logging changes apply live; storage and backend swaps need a
	// restart.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
				a.log.Info("configuration reloaded")
			}
		}
	}()

	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		return err
	}
	if a.exporter != nil {
		if err := a.exporter.Start(runCtx); err != nil {
			cancel()
			return err
		}
	}
	a.log.Info("started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	cfgCh := a.cfgCh
	a.cfgCh = nil
	a.mu.Unlock()

	if a.exporter != nil {
		a.exporter.Stop()
	}
	if a.sched != nil {
		a.sched.Stop(ctx)
	}
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	if cfgCh != nil {
		a.cfgm.Unsubscribe(cfgCh)
	}
	a.closePartial()
	a.log.Info("stopped")
	return nil
}

func (a *App) closePartial() {
	if a.closeBackend != nil {
		a.closeBackend()
		a.closeBackend = nil
	}
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

func (a *App) buildBackend(cfg *config.Config, store storage.Store, snk notify.Sink, log logx.Logger) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Notifications.Backend)) {
	case "systemd":
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("systemd backend: %w", err)
		}
		b, err := notify.NewSystemdBackend(context.Background(), notify.SystemdConfig{
			UnitPrefix: cfg.Notifications.UnitPrefix,
			ExecPath:   exe,
			ConfigPath: a.cfgPath,
		}, log.With(logx.String("comp", "backend")))
		if err != nil {
			return err
		}
		a.backend = b
		a.closeBackend = b.Close
	case "", "polling":
		a.backend = notify.NewPollingBackend(store, snk, log.With(logx.String("comp", "backend")))
	default:
		return fmt.Errorf("unknown notification backend %q", cfg.Notifications.Backend)
	}
	return nil
}

func buildSink(cfg *config.Config, log logx.Logger) (notify.Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Notifications.Sink)) {
	case "telegram":
		tg := cfg.Notifications.Telegram
		if tg == nil {
			return nil, fmt.Errorf("notifications.telegram is required for the telegram sink")
		}
		return sink.NewTelegram(tg.Token, tg.ChatID, log.With(logx.String("comp", "sink")))
	case "", "console":
		return sink.NewConsole(log.With(logx.String("comp", "sink"))), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", cfg.Notifications.Sink)
	}
}

// BuildSink constructs the delivery sink for a config; the detached
// notification helper uses it to share the daemon's sink selection.
func BuildSink(cfg *config.Config, log logx.Logger) (notify.Sink, error) {
	return buildSink(cfg, log)
}

// DataDir returns the directory holding mutable state (vault sentinel,
// sqlite file).
func DataDir(cfg *config.Config) string { return dataDir(cfg) }

func dataDir(cfg *config.Config) string {
	if p := strings.TrimSpace(cfg.Storage.Path); p != "" {
		return filepath.Dir(p)
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "tasknag")
	}
	return "."
}
