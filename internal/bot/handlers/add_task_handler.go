package handlers

import (
	"context"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/tracker"
)

// NewAddTaskHandler returns a handler for /add_task.
func NewAddTaskHandler(deps HandlerDeps) bot.HandlerFunc {
	return addTaskHandler{deps}.Handle
}

type addTaskHandler struct {
	deps HandlerDeps
}

func (h addTaskHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "add_task")
	msg := update.Message
	msgs := h.deps.Config.Messages

	log.InfoContext(ctx, "Handling /add_task command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	text := commandArgs(msg.Text)
	mentions := extractMentions(msg, botUsername(h.deps.Config))
	created, err := h.deps.Tracker.CreateTask(ctx, invokerFrom(msg), chatFrom(msg), text, mentions)
	if err != nil {
		switch errs.Code(err) {
		case errs.CodePermission, errs.CodeParse, errs.CodeUnknownUser:
			log.InfoContext(ctx, "Task creation rejected", "reason", err, "chat_id", msg.Chat.ID, "user_id", msg.From.ID)
		default:
			log.ErrorContext(ctx, "Failed to create task", "error", err, "chat_id", msg.Chat.ID)
		}
		reply(ctx, h.deps, "add_task", msg.Chat.ID, errorReply(msgs, err))
		return
	}

	reply(ctx, h.deps, "add_task", msg.Chat.ID, fmt.Sprintf(msgs.AddTaskSuccess,
		html.EscapeString(created.Task.Name),
		created.Task.Code,
		formatUsers(created.Assignees),
		created.Task.Deadline.UTC().Format(tracker.DeadlineLayout),
		created.Confidence*100,
		created.Source,
	))
}
