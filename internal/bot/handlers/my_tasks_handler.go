package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/database"
)

// NewMyTasksHandler returns a handler for /my_tasks.
func NewMyTasksHandler(deps HandlerDeps) bot.HandlerFunc {
	return myTasksHandler{deps}.Handle
}

type myTasksHandler struct {
	deps HandlerDeps
}

func (h myTasksHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "my_tasks")
	msg := update.Message
	msgs := h.deps.Config.Messages

	var statuses []database.TaskStatus
	for _, arg := range strings.Fields(commandArgs(msg.Text)) {
		status, err := database.ParseTaskStatus(arg)
		if err != nil || status == database.StatusDone {
			continue
		}
		statuses = append(statuses, status)
	}

	tasks, err := h.deps.Tracker.ListMyTasks(ctx, invokerFrom(msg), statuses)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list tasks", "error", err, "user_id", msg.From.ID)
		reply(ctx, h.deps, "my_tasks", msg.Chat.ID, msgs.GeneralError)
		return
	}

	if len(tasks) == 0 {
		reply(ctx, h.deps, "my_tasks", msg.Chat.ID, msgs.MyTasksNone)
		return
	}
	reply(ctx, h.deps, "my_tasks", msg.Chat.ID, formatTaskList(msgs.MyTasksHeader, tasks))
}
