package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/parser"
)

// NewViewDoneHandler returns a handler for /view_done.
func NewViewDoneHandler(deps HandlerDeps) bot.HandlerFunc {
	return viewDoneHandler{deps}.Handle
}

type viewDoneHandler struct {
	deps HandlerDeps
}

func (h viewDoneHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "view_done")
	msg := update.Message
	msgs := h.deps.Config.Messages

	var target *parser.Mention
	if mentions := extractMentions(msg, botUsername(h.deps.Config)); len(mentions) > 0 {
		target = &mentions[0]
	} else if arg := commandArgs(msg.Text); arg != "" {
		target = &parser.Mention{Username: strings.TrimPrefix(strings.Fields(arg)[0], "@")}
	}

	user, tasks, err := h.deps.Tracker.ListDone(ctx, invokerFrom(msg), chatFrom(msg), target)
	if err != nil {
		if errs.Code(err) != errs.CodePermission && errs.Code(err) != errs.CodeUnknownUser {
			log.ErrorContext(ctx, "Failed to list completed tasks", "error", err)
		}
		reply(ctx, h.deps, "view_done", msg.Chat.ID, errorReply(msgs, err))
		return
	}

	name := html.EscapeString(user.DisplayName())
	if len(tasks) == 0 {
		reply(ctx, h.deps, "view_done", msg.Chat.ID, fmt.Sprintf(msgs.DoneTasksNone, name))
		return
	}
	reply(ctx, h.deps, "view_done", msg.Chat.ID, formatTaskList(fmt.Sprintf(msgs.DoneTasksHeader, name), tasks))
}
