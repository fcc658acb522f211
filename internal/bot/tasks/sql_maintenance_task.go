package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/taskbot/internal/config"
)

const maintenanceTimeout = 10 * time.Minute

// newSQLMaintenanceTask creates the job that compacts and optimizes the database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskSQLMaintenance)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			return fmt.Errorf("database unavailable, skipping maintenance: %w", err)
		}

		startTime := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Database maintenance failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Database maintenance finished", "duration", time.Since(startTime))
		return nil
	}
}
