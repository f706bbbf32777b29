package notify

import (
	"context"
	"time"
)

// Backend registers and delivers notifications. Both operations report
// failure as a boolean; expected conditions (permission denied, store
// unavailable) never surface as panics, and a single failed slot must not
// abort the caller's remaining slots.
type Backend interface {
	// Schedule registers a future delivery under the given slot id.
	Schedule(ctx context.Context, id int64, p Payload, triggerTime time.Time) bool
	// Cancel removes a pending registration. Canceling an id that was never
	// scheduled, or has already fired, is a no-op.
	Cancel(ctx context.Context, id int64)
	// DeliverNow pushes a notification immediately.
	DeliverNow(ctx context.Context, p Payload) bool
	RequestPermission(ctx context.Context) PermissionResult
	// Name identifies the backend in logs ("polling", "systemd").
	Name() string
}
