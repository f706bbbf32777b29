//go:build linux

package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	sd "github.com/coreos/go-systemd/v22/dbus"

	"tasknag/pkg/logx"
)

// SystemdBackend registers reminders as transient systemd timer units in the
// user session. Timer units are persisted by systemd itself, so a registered
// trigger fires even if this process has exited: the timer starts a oneshot
// service that re-invokes the binary's notify helper command.
//
// Known limitation: once a timer is handed to systemd there is no quiet-hours
// hook; the unit fires when its OnCalendar elapses regardless of the user's
// quiet window.
type SystemdBackend struct {
	conn *sd.Conn
	log  logx.Logger

	unitPrefix string
	execPath   string // binary to run when a timer fires
	configPath string // passed through to the helper
}

type SystemdConfig struct {
	UnitPrefix string
	ExecPath   string
	ConfigPath string
}

func NewSystemdBackend(ctx context.Context, cfg SystemdConfig, log logx.Logger) (*SystemdBackend, error) {
	if strings.TrimSpace(cfg.ExecPath) == "" {
		return nil, errors.New("systemd backend: exec path is required")
	}
	prefix := strings.TrimSpace(cfg.UnitPrefix)
	if prefix == "" {
		prefix = "tasknag"
	}
	conn, err := sd.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("systemd backend: user bus: %w", err)
	}
	return &SystemdBackend{
		conn:       conn,
		log:        log,
		unitPrefix: prefix,
		execPath:   cfg.ExecPath,
		configPath: cfg.ConfigPath,
	}, nil
}

func (b *SystemdBackend) Name() string { return "systemd" }

func (b *SystemdBackend) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *SystemdBackend) unitName(id int64) string {
	return fmt.Sprintf("%s-reminder-%d", b.unitPrefix, id)
}

// Schedule creates the transient timer through systemd-run: it sets up the
// timer unit and its matching oneshot service in one call, which the D-Bus
// transient-unit API alone cannot do.
func (b *SystemdBackend) Schedule(ctx context.Context, id int64, p Payload, triggerTime time.Time) bool {
	unit := b.unitName(id)
	args := []string{
		"--user",
		"--collect",
		"--unit=" + unit,
		"--on-calendar=" + triggerTime.Format("2006-01-02 15:04:05"),
		"--timer-property=AccuracySec=1min",
		"--",
		b.execPath, "notify",
		"-title", p.Title,
		"-body", p.Body,
	}
	if p.TaskID != 0 {
		args = append(args, "-task-id", strconv.FormatInt(p.TaskID, 10))
	}
	if b.configPath != "" {
		args = append(args, "-config", b.configPath)
	}

	cmd := exec.CommandContext(ctx, "systemd-run", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		b.log.Error("systemd-run failed",
			logx.String("unit", unit),
			logx.String("output", strings.TrimSpace(string(out))),
			logx.Err(err))
		return false
	}
	return true
}

// Cancel stops the transient timer if it is still loaded. A timer that never
// existed or has already elapsed reports "not loaded", which is the expected
// no-op case.
func (b *SystemdBackend) Cancel(ctx context.Context, id int64) {
	unit := b.unitName(id) + ".timer"
	_, err := b.conn.StopUnitContext(ctx, unit, "replace", nil)
	if err != nil {
		if isNotLoaded(err) {
			return
		}
		b.log.Warn("failed to stop timer unit", logx.String("unit", unit), logx.Err(err))
		return
	}
	// A failed service unit would otherwise linger in systemctl --failed.
	_ = b.conn.ResetFailedUnitContext(ctx, b.unitName(id)+".service")
}

func isNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not loaded") || strings.Contains(msg, "no such unit")
}

// DeliverNow bypasses the timer machinery and runs the helper directly, so
// immediate delivery uses the exact same path as timer-fired delivery.
func (b *SystemdBackend) DeliverNow(ctx context.Context, p Payload) bool {
	args := []string{"notify", "-title", p.Title, "-body", p.Body}
	if p.TaskID != 0 {
		args = append(args, "-task-id", strconv.FormatInt(p.TaskID, 10))
	}
	if b.configPath != "" {
		args = append(args, "-config", b.configPath)
	}
	cmd := exec.CommandContext(ctx, b.execPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		b.log.Error("immediate delivery failed",
			logx.String("output", strings.TrimSpace(string(out))),
			logx.Err(err))
		return false
	}
	return true
}

func (b *SystemdBackend) RequestPermission(ctx context.Context) PermissionResult {
	if b.conn == nil || !b.conn.Connected() {
		return PermissionDenied
	}
	return PermissionGranted
}
