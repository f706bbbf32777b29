// Package sink provides delivery endpoints for notifications. A sink is the
// last hop: by the time a payload reaches it, scheduling, quiet hours and
// lock redaction have already been applied.
package sink

import (
	"context"

	"tasknag/internal/notify"
	"tasknag/pkg/logx"
)

// Console writes notifications to the structured log. It is the default sink
// for setups with no messenger configured.
type Console struct {
	log logx.Logger
}

func NewConsole(log logx.Logger) *Console {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Console{log: log}
}

func (c *Console) Send(_ context.Context, p notify.Payload) error {
	c.log.Info("notification",
		logx.String("title", p.Title),
		logx.String("body", p.Body),
		logx.Int64("task_id", p.TaskID))
	return nil
}
