// Package tasks implements the scheduled maintenance tasks.
package tasks

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context
// should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Store is the persistence used by the tasks.
type Store interface {
	RunSQLMaintenance(ctx context.Context) error
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TaskDeps contains the dependencies of the scheduled tasks.
type TaskDeps struct {
	Logger        *slog.Logger
	Store         Store
	RetentionDays int
	Now           func() time.Time
}

// Task names, matching the keys under scheduler.tasks in the config.
const (
	SQLMaintenance = "sql_maintenance"
	LogRetention   = "log_retention"
)

// RegisterAllTasks returns every task keyed by its config name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	tasks := map[string]ScheduledTaskFunc{
		SQLMaintenance: newSQLMaintenanceTask(deps),
		LogRetention:   newLogRetentionTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
