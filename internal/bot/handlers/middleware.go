// Package handlers contains Telegram bot command handlers, along with their
// registration logic and middleware.
package handlers

import (
	"context"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RequireSender drops updates that carry no message or no sender, so
// command handlers can rely on update.Message.From being set.
func RequireSender(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				deps.Logger.DebugContext(ctx, "Ignoring command update without message or sender",
					"middleware", "RequireSender", "update_id", update.ID)
				return
			}
			next(ctx, bot, update)
		}
	}
}

// WithTimeout bounds the handler's context.
func WithTimeout(d time.Duration) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if d <= 0 {
				next(ctx, bot, update)
				return
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			next(ctx, bot, update)
		}
	}
}
