package telegram

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/config"
)

func TestTokenPrefix(t *testing.T) {
	t.Parallel()

	if got := tokenPrefix("short"); got != "***" {
		t.Fatalf("short token leaked: %q", got)
	}
	if got := tokenPrefix("123456789:ABCDEF"); got != "12345678..." {
		t.Fatalf("unexpected prefix %q", got)
	}
}

func TestApplyMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	tag := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, update *models.Update) {
				calls = append(calls, name)
				next(ctx, b, update)
			}
		}
	}

	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		calls = append(calls, "handler")
	}, []bot.Middleware{tag("outer"), tag("inner")})
	h(context.Background(), nil, &models.Update{})

	if got := strings.Join(calls, ","); got != "outer,inner,handler" {
		t.Fatalf("call order = %s", got)
	}
}

func TestCommandList(t *testing.T) {
	t.Parallel()

	regs := handlers.RegisterAllCommands(handlers.HandlerDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.DefaultConfig(),
	})
	regs["hidden"] = handlers.RegisteredHandler{}

	commands := commandList(regs)
	if len(commands) != len(handlers.CommandOrder) {
		t.Fatalf("expected %d commands, got %d", len(handlers.CommandOrder), len(commands))
	}
	for i, cmd := range commands {
		if cmd.Command != handlers.CommandOrder[i] || cmd.Description == "" {
			t.Fatalf("command %d = %+v", i, cmd)
		}
	}
}
