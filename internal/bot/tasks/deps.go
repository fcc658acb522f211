// Package tasks implements the scheduled jobs of the bot: the deadline
// reminder check and database maintenance.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
)

// Notifier delivers a chat message. Implemented by telegram.Notifier.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Notifier Notifier
	Config   *config.Config
}
