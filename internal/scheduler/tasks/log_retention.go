package tasks

import (
	"context"
	"fmt"
	"time"
)

// newLogRetentionTask creates the task that deletes conversation logs older
// than the retention window. A window of zero days keeps everything.
func newLogRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", LogRetention)

	return func(ctx context.Context) error {
		if deps.RetentionDays <= 0 {
			log.DebugContext(ctx, "Log retention disabled, skipping")
			return nil
		}

		cutoff := deps.Now().AddDate(0, 0, -deps.RetentionDays)
		deleted, err := deps.Store.DeleteTurnsBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Log retention task failed", "cutoff", cutoff, "error", err)
			return fmt.Errorf("log retention failed: %w", err)
		}

		log.InfoContext(ctx, "Log retention task completed", "cutoff", cutoff.Format(time.RFC3339), "deleted", deleted)
		return nil
	}
}
