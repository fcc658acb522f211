package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/database"
	errs "github.com/edgard/taskbot/internal/errors"
)

// NewUpdateStatusHandler returns a handler for /update_status.
func NewUpdateStatusHandler(deps HandlerDeps) bot.HandlerFunc {
	return updateStatusHandler{deps}.Handle
}

type updateStatusHandler struct {
	deps HandlerDeps
}

func (h updateStatusHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "update_status")
	msg := update.Message
	msgs := h.deps.Config.Messages

	args := strings.Fields(commandArgs(msg.Text))
	if len(args) != 2 {
		reply(ctx, h.deps, "update_status", msg.Chat.ID, msgs.UpdateStatusUsage)
		return
	}

	status, err := database.ParseTaskStatus(args[1])
	if err != nil {
		reply(ctx, h.deps, "update_status", msg.Chat.ID, msgs.UpdateStatusUsage)
		return
	}

	code := strings.ToUpper(args[0])
	task, err := h.deps.Tracker.UpdateStatus(ctx, invokerFrom(msg), code, status)
	switch {
	case err == nil:
		reply(ctx, h.deps, "update_status", msg.Chat.ID, fmt.Sprintf(msgs.UpdateStatusSuccess,
			task.Code, html.EscapeString(task.Name), strings.ToLower(string(task.Status))))
	case errs.Is(err, errs.CodeNotFound):
		reply(ctx, h.deps, "update_status", msg.Chat.ID, fmt.Sprintf(msgs.UpdateStatusNotFound, html.EscapeString(code)))
	default:
		if !errs.Is(err, errs.CodePermission) {
			log.ErrorContext(ctx, "Failed to update task status", "error", err, "task_code", code)
		}
		reply(ctx, h.deps, "update_status", msg.Chat.ID, errorReply(msgs, err))
	}
}
