package cron

import (
	"context"
	"log/slog"
	"time"
)

// Maintainer is implemented by stores with periodic upkeep.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// Reaper stops discussions older than maxAge.
type Reaper interface {
	Reap(maxAge time.Duration) int
}

// Pruner drops idle router sessions.
type Pruner interface {
	PruneSessions() int
}

// MaintenanceJob runs the store's upkeep (WAL checkpoint, optimizer
// statistics). Default schedule: hourly.
type MaintenanceJob struct {
	Store        Maintainer
	ScheduleExpr string
}

var _ Job = (*MaintenanceJob)(nil)

// Name implements Job.
func (j *MaintenanceJob) Name() string { return "store_maintenance" }

// Schedule implements Job.
func (j *MaintenanceJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@hourly"
}

// Run implements Job.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	return j.Store.Maintain(ctx)
}

// DiscussionReaperJob stops discussions running longer than MaxAge.
// Default schedule: every 5 minutes.
type DiscussionReaperJob struct {
	Reaper       Reaper
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string
}

var _ Job = (*DiscussionReaperJob)(nil)

// Name implements Job.
func (j *DiscussionReaperJob) Name() string { return "discussion_reaper" }

// Schedule implements Job.
func (j *DiscussionReaperJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run implements Job.
func (j *DiscussionReaperJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.Reaper.Reap(j.MaxAge); n > 0 && j.Logger != nil {
		j.Logger.Info("cron: reaped discussions", "count", n, "max_age", j.MaxAge)
	}
	return nil
}

// SessionPruneJob drops router sessions idle beyond the router's limit.
// Default schedule: every 10 minutes.
type SessionPruneJob struct {
	Sessions     Pruner
	Logger       *slog.Logger
	ScheduleExpr string
}

var _ Job = (*SessionPruneJob)(nil)

// Name implements Job.
func (j *SessionPruneJob) Name() string { return "session_prune" }

// Schedule implements Job.
func (j *SessionPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run implements Job.
func (j *SessionPruneJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.Sessions.PruneSessions(); n > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned idle sessions", "count", n)
	}
	return nil
}
