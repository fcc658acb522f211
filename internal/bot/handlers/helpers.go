package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/parser"
	"github.com/edgard/taskbot/internal/tracker"
)

// reply sends an HTML message to chatID and logs delivery failures.
func reply(ctx context.Context, deps HandlerDeps, handler string, chatID int64, text string) {
	_, err := deps.Sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send reply", "handler", handler, "chat_id", chatID, "error", errs.NewDeliveryError(chatID, err))
	}
}

func invokerFrom(msg *models.Message) tracker.Invoker {
	return tracker.Invoker{
		ID:        msg.From.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
}

func chatFrom(msg *models.Message) tracker.Chat {
	return tracker.Chat{ID: msg.Chat.ID, Type: tracker.ChatType(msg.Chat.Type)}
}

// commandArgs returns the text after the leading /command (and its optional @bot suffix).
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	end := strings.IndexFunc(text, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' })
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(text[end:])
}

// extractMentions collects user mentions from the message entities.
// Entity offsets are in UTF-16 code units. Mentions of the bot itself are skipped.
func extractMentions(msg *models.Message, botUsername string) []parser.Mention {
	if msg == nil || len(msg.Entities) == 0 {
		return nil
	}

	units := utf16.Encode([]rune(msg.Text))
	var mentions []parser.Mention

	for _, e := range msg.Entities {
		switch e.Type {
		case models.MessageEntityTypeMention:
			if e.Offset < 0 || e.Length <= 1 || e.Offset+e.Length > len(units) {
				continue
			}
			username := strings.TrimPrefix(string(utf16.Decode(units[e.Offset:e.Offset+e.Length])), "@")
			if botUsername != "" && strings.EqualFold(username, botUsername) {
				continue
			}
			mentions = append(mentions, parser.Mention{Username: username})
		case models.MessageEntityTypeTextMention:
			if e.User == nil {
				continue
			}
			mentions = append(mentions, parser.Mention{
				Username: e.User.Username,
				UserID:   e.User.ID,
				Name:     strings.TrimSpace(e.User.FirstName + " " + e.User.LastName),
			})
		}
	}

	return mentions
}

func botUsername(cfg *config.Config) string {
	if cfg == nil || cfg.Telegram.BotInfo == nil {
		return ""
	}
	return cfg.Telegram.BotInfo.Username
}

func formatDeadline(t database.Task) string {
	return t.Deadline.UTC().Format(tracker.DeadlineLayout)
}

func formatUsers(users []database.User) string {
	labels := make([]string, 0, len(users))
	for _, u := range users {
		if u.Username != "" {
			labels = append(labels, "@"+html.EscapeString(u.Username))
			continue
		}
		labels = append(labels, html.EscapeString(u.DisplayName()))
	}
	return strings.Join(labels, ", ")
}

func formatTaskList(header string, tasks []database.Task) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, t := range tasks {
		fmt.Fprintf(&sb, "• <code>%s</code> %s\n   ⏰ %s · %s\n",
			t.Code, html.EscapeString(t.Name), formatDeadline(t), strings.ToLower(string(t.Status)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// errorReply maps a tracker error to the chat text shown to the user.
func errorReply(msgs config.MessagesConfig, err error) string {
	switch {
	case errors.Is(err, tracker.ErrGroupOnly):
		return msgs.GroupOnly
	case errors.Is(err, tracker.ErrPrivateOnly):
		return msgs.OptInPrivateOnly
	case errors.Is(err, tracker.ErrAdminOnly):
		return msgs.AdminOnly
	case errors.Is(err, tracker.ErrNotAssignee):
		return msgs.UpdateStatusForbidden
	case errors.Is(err, tracker.ErrEmptyDescription):
		return msgs.AddTaskUsage
	}

	var unknown *errs.UnknownUserError
	if errors.As(err, &unknown) {
		return fmt.Sprintf(msgs.AddTaskUnknownUser, html.EscapeString(unknown.Mention))
	}

	var parseErr *errs.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Sprintf(msgs.AddTaskParseError, html.EscapeString(parseErr.Message()))
	}

	return msgs.GeneralError
}
