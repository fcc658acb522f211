package handlers

import (
	"context"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler registers the sender and replies with the welcome text.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")
	msg := update.Message

	log.InfoContext(ctx, "Handling /start command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	user, err := h.deps.Tracker.Register(ctx, invokerFrom(msg))
	if err != nil {
		log.ErrorContext(ctx, "Failed to register user", "error", err, "user_id", msg.From.ID)
		reply(ctx, h.deps, "start", msg.Chat.ID, h.deps.Config.Messages.GeneralError)
		return
	}

	welcome := fmt.Sprintf(h.deps.Config.Messages.Welcome, html.EscapeString(user.DisplayName()))
	reply(ctx, h.deps, "start", msg.Chat.ID, welcome)
}
