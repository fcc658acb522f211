package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/taskbot/internal/api"
	"github.com/edgard/taskbot/internal/bot"
	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/gemini"
	"github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/parser"
	"github.com/edgard/taskbot/internal/telegram"
	"github.com/edgard/taskbot/internal/tracker"
)

// run initializes every component (config, logger, db, parser, telegram,
// scheduler, api) and blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	var extractor parser.Extractor
	if cfg.Gemini.Enabled() {
		gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			return fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		extractor = gemClient
	} else {
		log.Warn("Gemini API key not set, only the strict task format will be understood")
	}
	taskParser := parser.New(extractor, log, parser.WithThreshold(cfg.Gemini.ConfidenceThreshold))

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithSkipGetMe(),
	)
	if err != nil {
		return err
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	admins := telegram.NewAdminChecker(tg, cfg.Telegram.AdminTimeout)
	notifier := telegram.NewNotifier(tg, cfg.Telegram.SendTimeout, log)
	service := tracker.NewService(store, taskParser, admins, log)

	cmdHandlers := handlers.RegisterAllCommands(handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Tracker: service,
		Sender:  tg,
	})
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		return fmt.Errorf("failed to register Telegram handlers: %w", err)
	}
	if err := telegram.SetCommands(ctx, tg, cmdHandlers); err != nil {
		// The command menu is cosmetic; commands still work without it.
		log.Warn("Failed to publish bot commands", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Notifier: notifier,
		Config:   cfg,
	}))
	if err != nil {
		return err
	}

	var server bot.HTTPServer
	if cfg.HTTP.Enabled {
		if cfg.HTTP.APIToken == "" {
			log.Warn("http.api_token is empty, the REST API is unauthenticated")
		}
		opts := api.Options{
			HTTP:     cfg.HTTP,
			Telegram: cfg.Telegram,
			Store:    store,
			Logger:   log,
		}
		if cfg.Telegram.Mode == config.ModeWebhook {
			opts.Updates = tg
		}
		gin.SetMode(gin.ReleaseMode)
		server = api.NewServer(opts)
	}

	log.Info("Starting bot...")
	return bot.NewBot(log, cfg, tg, sched, server).Run(ctx)
}
