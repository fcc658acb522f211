// Package bot wires the Telegram listener, the reminder scheduler and the
// HTTP API together and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/taskbot/internal/config"
)

// TelegramClient is the part of *tgbot.Bot the orchestrator drives.
type TelegramClient interface {
	Start(ctx context.Context)
	SetWebhook(ctx context.Context, params *tgbot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *tgbot.DeleteWebhookParams) (bool, error)
}

// HTTPServer serves until its context is cancelled.
type HTTPServer interface {
	Run(ctx context.Context) error
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	tgBot     TelegramClient
	scheduler *Scheduler
	server    HTTPServer
}

// NewBot creates the orchestrator. server may be nil when the HTTP API is disabled.
func NewBot(logger *slog.Logger, cfg *config.Config, tgBot TelegramClient, scheduler *Scheduler, server HTTPServer) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		tgBot:     tgBot,
		scheduler: scheduler,
		server:    server,
	}
}

// WebhookEndpoint is the public URL Telegram posts updates to.
func WebhookEndpoint(cfg config.TelegramConfig) string {
	return strings.TrimRight(cfg.WebhookURL, "/") + "/webhook/" + cfg.WebhookToken
}

// Run starts the bot and all its components, handling graceful shutdown on context cancellation.
// It returns an error if any component fails during startup or execution.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...", "mode", b.cfg.Telegram.Mode)

	g, gCtx := errgroup.WithContext(ctx)

	if b.cfg.Telegram.Mode == config.ModeWebhook {
		if err := b.registerWebhook(ctx); err != nil {
			return err
		}
	} else {
		if err := b.clearWebhook(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			b.logger.Info("Starting Telegram long polling...")
			b.tgBot.Start(gCtx)
			b.logger.Info("Telegram long polling stopped.")

			if gCtx.Err() == nil {
				b.logger.Warn("Telegram listener stopped unexpectedly without context cancellation.")
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	if b.server != nil {
		g.Go(func() error {
			if err := b.server.Run(gCtx); err != nil {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(gCtx); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) registerWebhook(ctx context.Context) error {
	endpoint := WebhookEndpoint(b.cfg.Telegram)
	ok, err := b.tgBot.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:         endpoint,
		SecretToken: b.cfg.Telegram.WebhookSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	if !ok {
		return fmt.Errorf("telegram rejected webhook registration")
	}
	b.logger.Info("Webhook registered", "url", strings.TrimRight(b.cfg.Telegram.WebhookURL, "/")+"/webhook/***")
	return nil
}

// clearWebhook removes a webhook left over from an earlier run; getUpdates
// fails while one is set.
func (b *Bot) clearWebhook(ctx context.Context) error {
	if _, err := b.tgBot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}
