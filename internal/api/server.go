// Package api exposes the task store over a JSON HTTP API and receives
// Telegram webhook updates.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgard/taskbot/internal/api/middleware"
	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	errs "github.com/edgard/taskbot/internal/errors"
)

// WebhookSecretHeader is the header Telegram sets to the configured secret token.
const WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

// UpdateProcessor dispatches a Telegram update to the bot handlers.
// Implemented by *bot.Bot.
type UpdateProcessor interface {
	ProcessUpdate(ctx context.Context, upd *models.Update)
}

// Options configures a Server.
type Options struct {
	HTTP     config.HTTPConfig
	Telegram config.TelegramConfig
	Store    database.Store
	Updates  UpdateProcessor
	Logger   *slog.Logger
}

// Server serves the REST API, health and metrics endpoints, and the webhook.
type Server struct {
	cfg      config.HTTPConfig
	telegram config.TelegramConfig
	store    database.Store
	updates  UpdateProcessor
	logger   *slog.Logger
	router   *gin.Engine

	// baseCtx outlives single requests; update handlers may still be running
	// after the webhook request has been answered.
	baseCtx context.Context
}

// NewServer builds the router. The webhook route is registered only when an
// UpdateProcessor is supplied.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http_api")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics())

	s := &Server{
		cfg:      opts.HTTP,
		telegram: opts.Telegram,
		store:    opts.Store,
		updates:  opts.Updates,
		logger:   logger,
		router:   r,
		baseCtx:  context.Background(),
	}
	s.registerRoutes()
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	if s.updates != nil {
		s.router.POST("/webhook/:token", s.handleWebhook)
	}

	authed := s.router.Group("/api")
	authed.Use(middleware.BearerAuth(s.cfg.APIToken))
	authed.POST("/users", s.handleCreateUser)
	authed.GET("/users", s.handleListUsers)
	authed.GET("/users/:id", s.handleGetUser)
	authed.POST("/tasks", s.handleCreateTask)
	authed.GET("/tasks", s.handleListTasks)
	authed.GET("/tasks/:id", s.handleGetTask)
	authed.PUT("/tasks/:id", s.handleUpdateTask)
	authed.PATCH("/tasks/:id/status", s.handleSetTaskStatus)
	authed.GET("/tasks/:id/assignees", s.handleListAssignees)
	authed.POST("/tasks/:id/assign/:user_id", s.handleAssignUser)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWebhook(c *gin.Context) {
	if s.telegram.WebhookToken == "" || !middleware.SecureCompare(c.Param("token"), s.telegram.WebhookToken) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if s.telegram.WebhookSecret != "" && !middleware.SecureCompare(c.GetHeader(WebhookSecretHeader), s.telegram.WebhookSecret) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var update models.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
		return
	}

	// The request context is cancelled as soon as this handler returns, which
	// is before asynchronous update handlers finish.
	s.updates.ProcessUpdate(s.baseCtx, &update)
	c.Status(http.StatusOK)
}

// writeError maps an application error to its HTTP status.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.Code(err) {
	case errs.CodeValidation, errs.CodeParse:
		status = http.StatusBadRequest
	case errs.CodePermission:
		status = http.StatusForbidden
	case errs.CodeNotFound, errs.CodeUnknownUser:
		status = http.StatusNotFound
	case errs.CodeConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
			slog.String(middleware.RequestIDKey, c.GetString(middleware.RequestIDKey)),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": errorMessage(err)})
}

func errorMessage(err error) string {
	var msg interface{ Message() string }
	if errors.As(err, &msg) {
		return msg.Message()
	}
	return err.Error()
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return v, true
}
