// Package tracker implements the task tracking commands independent of the
// chat transport: registration, reminder opt-in, task creation and listing.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/taskbot/internal/database"
	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/metrics"
	"github.com/edgard/taskbot/internal/parser"
)

// Permission failures. Callers can tell them apart with errors.Is.
var (
	ErrGroupOnly   = errs.NewPermissionError("command can only be used in group chats")
	ErrPrivateOnly = errs.NewPermissionError("command can only be used in a private chat")
	ErrAdminOnly   = errs.NewPermissionError("only chat administrators can do that")
	ErrNotAssignee = errs.NewPermissionError("only assignees or chat administrators can update this task")
)

// ErrEmptyDescription is returned by CreateTask when there is nothing to parse.
var ErrEmptyDescription = errs.NewParseError("task description is empty", nil)

// DeadlineLayout is how deadlines are shown to users. Deadlines are always UTC.
const DeadlineLayout = "2006-01-02 15:04 UTC"

// ChatType mirrors the platform chat kinds.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat is where a command was issued.
type Chat struct {
	ID   int64
	Type ChatType
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup || c.Type == ChatSupergroup
}

// Invoker is the user issuing a command.
type Invoker struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

func (i Invoker) label() string {
	if i.Username != "" {
		return "@" + i.Username
	}
	if i.FirstName != "" {
		return i.FirstName
	}
	return fmt.Sprintf("user %d", i.ID)
}

// AdminChecker reports whether a user administers a chat.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// CreatedTask is the outcome of a successful task creation.
type CreatedTask struct {
	Task       database.Task
	Assignees  []database.User
	Confidence float64
	Source     parser.Source
}

// Service executes tracker commands against the store.
type Service struct {
	store  database.Store
	parser parser.Parser
	admins AdminChecker
	log    *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the command logic to its dependencies.
func NewService(store database.Store, p parser.Parser, admins AdminChecker, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Service{
		store:  store,
		parser: p,
		admins: admins,
		log:    logger.With("component", "tracker"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the invoking user or refreshes its display fields.
func (s *Service) Register(ctx context.Context, inv Invoker) (*database.User, error) {
	user := &database.User{
		ID:        inv.ID,
		Username:  inv.Username,
		FirstName: inv.FirstName,
		LastName:  inv.LastName,
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// OptIn enables reminders for the invoker. It must be called from a private chat.
func (s *Service) OptIn(ctx context.Context, inv Invoker, chat Chat) error {
	if chat.Type != ChatPrivate {
		return ErrPrivateOnly
	}

	err := s.store.SetReceiveReminders(ctx, inv.ID, true)
	if errs.Is(err, errs.CodeNotFound) {
		return errs.NewUnknownUserError(inv.label())
	}
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "User opted in to reminders", "user_id", inv.ID)
	return nil
}

// CreateTask parses text into a task and stores it with its assignees. It
// writes nothing unless every check passes.
func (s *Service) CreateTask(ctx context.Context, inv Invoker, chat Chat, text string, mentions []parser.Mention) (*CreatedTask, error) {
	if !chat.IsGroup() {
		return nil, ErrGroupOnly
	}
	if err := s.requireAdmin(ctx, chat.ID, inv.ID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDescription
	}

	parsed, err := s.parser.Parse(ctx, text, mentions)
	if err != nil {
		return nil, err
	}

	if !parsed.Deadline.After(s.now()) {
		return nil, errs.NewParseError(
			fmt.Sprintf("deadline %s is not in the future", parsed.Deadline.UTC().Format(DeadlineLayout)), nil)
	}

	users, err := s.ResolveMentions(ctx, parsed.Assignees)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	task := &database.Task{
		Name:     parsed.Name,
		ChatID:   chat.ID,
		Deadline: parsed.Deadline,
		Status:   database.StatusNew,
	}
	if err := s.store.CreateTask(ctx, task, ids); err != nil {
		return nil, err
	}
	metrics.TasksCreatedTotal.WithLabelValues("chat").Inc()

	s.log.InfoContext(ctx, "Task created from chat",
		"task_code", task.Code,
		"chat_id", chat.ID,
		"creator_id", inv.ID,
		"assignees", len(users),
		"source", parsed.Source,
		"confidence", parsed.Confidence,
	)

	return &CreatedTask{
		Task:       *task,
		Assignees:  users,
		Confidence: parsed.Confidence,
		Source:     parsed.Source,
	}, nil
}

// ResolveMentions maps mentions to registered users. The first mention that
// matches no user is reported in an UnknownUserError.
func (s *Service) ResolveMentions(ctx context.Context, mentions []parser.Mention) ([]database.User, error) {
	users := make([]database.User, 0, len(mentions))
	seen := make(map[int64]bool, len(mentions))

	for _, m := range mentions {
		var (
			user *database.User
			err  error
		)
		switch {
		case m.UserID != 0:
			user, err = s.store.GetUser(ctx, m.UserID)
		case m.Username != "":
			user, err = s.store.GetUserByUsername(ctx, m.Username)
		default:
			continue
		}

		if errs.Is(err, errs.CodeNotFound) {
			return nil, errs.NewUnknownUserError(m.Label())
		}
		if err != nil {
			return nil, err
		}

		if !seen[user.ID] {
			seen[user.ID] = true
			users = append(users, *user)
		}
	}

	if len(users) == 0 {
		return nil, errs.NewParseError("at least one user must be mentioned", nil)
	}
	return users, nil
}

// ListMyTasks returns the invoker's tasks ordered by deadline. Without a
// status filter only open tasks are returned.
func (s *Service) ListMyTasks(ctx context.Context, inv Invoker, statuses []database.TaskStatus) ([]database.Task, error) {
	if len(statuses) == 0 {
		statuses = database.OpenStatuses
	}
	return s.store.ListUserTasks(ctx, inv.ID, statuses)
}

// UpdateStatus changes the status of the task identified by code. Only an
// assignee or an administrator of the task's chat may do so.
func (s *Service) UpdateStatus(ctx context.Context, inv Invoker, code string, status database.TaskStatus) (*database.Task, error) {
	task, err := s.store.GetTaskByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	assignees, err := s.store.ListAssignees(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, u := range assignees {
		if u.ID == inv.ID {
			allowed = true
			break
		}
	}
	if !allowed {
		if err := s.requireAdmin(ctx, task.ChatID, inv.ID); err != nil {
			if errors.Is(err, ErrAdminOnly) {
				return nil, ErrNotAssignee
			}
			return nil, err
		}
	}

	if err := s.store.SetTaskStatus(ctx, task.ID, status); err != nil {
		return nil, err
	}
	task.Status = status

	s.log.InfoContext(ctx, "Task status updated", "task_code", task.Code, "status", status, "user_id", inv.ID)
	return task, nil
}

// ListDone returns completed tasks of target, or of the invoker when target
// is nil. Only chat administrators may use it.
func (s *Service) ListDone(ctx context.Context, inv Invoker, chat Chat, target *parser.Mention) (*database.User, []database.Task, error) {
	if !chat.IsGroup() {
		return nil, nil, ErrGroupOnly
	}
	if err := s.requireAdmin(ctx, chat.ID, inv.ID); err != nil {
		return nil, nil, err
	}

	var user *database.User
	if target == nil {
		u, err := s.store.GetUser(ctx, inv.ID)
		if errs.Is(err, errs.CodeNotFound) {
			return nil, nil, errs.NewUnknownUserError(inv.label())
		}
		if err != nil {
			return nil, nil, err
		}
		user = u
	} else {
		users, err := s.ResolveMentions(ctx, []parser.Mention{*target})
		if err != nil {
			return nil, nil, err
		}
		user = &users[0]
	}

	tasks, err := s.store.ListUserTasks(ctx, user.ID, []database.TaskStatus{database.StatusDone})
	if err != nil {
		return nil, nil, err
	}
	return user, tasks, nil
}

func (s *Service) requireAdmin(ctx context.Context, chatID, userID int64) error {
	ok, err := s.admins.IsChatAdmin(ctx, chatID, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to check chat admin status", "chat_id", chatID, "user_id", userID, "error", err)
		return fmt.Errorf("check admin status: %w", err)
	}
	if !ok {
		return ErrAdminOnly
	}
	return nil
}
