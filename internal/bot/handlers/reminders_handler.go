package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	errs "github.com/edgard/taskbot/internal/errors"
)

// NewReceiveRemindersHandler returns a handler for /receive_reminders.
func NewReceiveRemindersHandler(deps HandlerDeps) bot.HandlerFunc {
	return receiveRemindersHandler{deps}.Handle
}

type receiveRemindersHandler struct {
	deps HandlerDeps
}

func (h receiveRemindersHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "receive_reminders")
	msg := update.Message
	msgs := h.deps.Config.Messages

	err := h.deps.Tracker.OptIn(ctx, invokerFrom(msg), chatFrom(msg))
	switch {
	case err == nil:
		reply(ctx, h.deps, "receive_reminders", msg.Chat.ID, msgs.OptInConfirm)
	case errs.Is(err, errs.CodeUnknownUser):
		reply(ctx, h.deps, "receive_reminders", msg.Chat.ID, msgs.NotRegistered)
	default:
		if !errs.Is(err, errs.CodePermission) {
			log.ErrorContext(ctx, "Failed to opt in user", "error", err, "user_id", msg.From.ID)
		}
		reply(ctx, h.deps, "receive_reminders", msg.Chat.ID, errorReply(msgs, err))
	}
}
