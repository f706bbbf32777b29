//go:build !linux

package notify

import (
	"context"
	"errors"
	"time"

	"tasknag/pkg/logx"
)

var ErrUnsupported = errors.New("systemd backend: unsupported OS (linux only)")

type SystemdConfig struct {
	UnitPrefix string
	ExecPath   string
	ConfigPath string
}

// SystemdBackend is linux-only. The constructor fails on other platforms so
// misconfiguration surfaces at startup; the method set still satisfies
// Backend to keep callers platform-agnostic.
type SystemdBackend struct{}

func NewSystemdBackend(ctx context.Context, cfg SystemdConfig, log logx.Logger) (*SystemdBackend, error) {
	return nil, ErrUnsupported
}

func (b *SystemdBackend) Name() string { return "systemd" }

func (b *SystemdBackend) Close() {}

func (b *SystemdBackend) Schedule(ctx context.Context, id int64, p Payload, triggerTime time.Time) bool {
	return false
}

func (b *SystemdBackend) Cancel(ctx context.Context, id int64) {}

func (b *SystemdBackend) DeliverNow(ctx context.Context, p Payload) bool { return false }

func (b *SystemdBackend) RequestPermission(ctx context.Context) PermissionResult {
	return PermissionDenied
}
