package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	errs "github.com/edgard/taskbot/internal/errors"
)

// API is the part of *bot.Bot used for outbound calls.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

// Notifier sends HTML formatted messages to chats.
type Notifier struct {
	api     API
	timeout time.Duration
	log     *slog.Logger
}

// NewNotifier creates a Notifier. A zero timeout leaves the caller's deadline in place.
func NewNotifier(api API, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		api:     api,
		timeout: timeout,
		log:     logger.With("component", "telegram_notifier"),
	}
}

// Notify delivers text to chatID. Failures are returned as a DeliveryError.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	_, err := n.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		n.log.WarnContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
		return errs.NewDeliveryError(chatID, err)
	}
	return nil
}

// AdminChecker answers chat administrator questions through getChatMember.
type AdminChecker struct {
	api     API
	timeout time.Duration
}

// NewAdminChecker creates an AdminChecker.
func NewAdminChecker(api API, timeout time.Duration) *AdminChecker {
	return &AdminChecker{api: api, timeout: timeout}
}

// IsChatAdmin reports whether userID is the owner or an administrator of chatID.
func (a *AdminChecker) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	member, err := a.api.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, nil
	}
	return member.Type == models.ChatMemberTypeOwner || member.Type == models.ChatMemberTypeAdministrator, nil
}
