package cron

import (
	"context"
	"fmt"
	"log/slog"
)

// Reloader is the subset of kb.KB needed by the reload job. Defined here
// to avoid a dependency on the kb package.
type Reloader interface {
	Reload() error
	Path() string
}

// KBReloadJob re-reads the knowledge base file so edits are picked up
// without a restart. A failed reload keeps the previous content.
type KBReloadJob struct {
	KB           Reloader
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*KBReloadJob)(nil)

// Name implements Job.
func (j *KBReloadJob) Name() string { return "kb_reload" }

// Schedule implements Job.
func (j *KBReloadJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run reloads the knowledge base from disk.
func (j *KBReloadJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: kb reload cancelled: %w", ctx.Err())
	}
	if err := j.KB.Reload(); err != nil {
		return fmt.Errorf("cron: kb reload: %w", err)
	}
	j.Logger.Debug("cron: kb reloaded", "path", j.KB.Path())
	return nil
}
