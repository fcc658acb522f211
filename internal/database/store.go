package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	errs "github.com/edgard/taskbot/internal/errors"
)

// Paging limits applied when callers pass zero or oversized values.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertUser inserts the user or refreshes its display fields.
	// The opt-in flag and created_at of an existing user are preserved.
	UpsertUser(ctx context.Context, user *User) error

	// CreateUser inserts a new user and fails with a conflict if it exists.
	CreateUser(ctx context.Context, user *User) error

	// GetUser returns the user or a not-found error.
	GetUser(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername matches case-insensitively, with or without a leading "@".
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers returns users ordered by id.
	ListUsers(ctx context.Context, offset, limit int) ([]User, error)

	// SetReceiveReminders updates the opt-in flag.
	SetReceiveReminders(ctx context.Context, userID int64, enabled bool) error

	// CreateTask inserts the task, assigns its code, and links the assignees
	// in a single transaction. On success task.ID, task.Code and timestamps are set.
	CreateTask(ctx context.Context, task *Task, assigneeIDs []int64) error

	// GetTask returns the task or a not-found error.
	GetTask(ctx context.Context, id int64) (*Task, error)

	// GetTaskByCode looks a task up by its TK code.
	GetTaskByCode(ctx context.Context, code string) (*Task, error)

	// ListTasks returns tasks ordered by deadline.
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)

	// UpdateTask rewrites name, chat, deadline and status. The reminder flag is never touched.
	UpdateTask(ctx context.Context, task *Task) error

	// SetTaskStatus changes only the status.
	SetTaskStatus(ctx context.Context, taskID int64, status TaskStatus) error

	// AssignUser links a user to a task.
	AssignUser(ctx context.Context, taskID, userID int64) error

	// ListAssignees returns the users assigned to a task.
	ListAssignees(ctx context.Context, taskID int64) ([]User, error)

	// ListUserTasks returns tasks assigned to userID, deadline ascending.
	// An empty statuses slice means any status.
	ListUserTasks(ctx context.Context, userID int64, statuses []TaskStatus) ([]Task, error)

	// ListDueReminders returns open tasks whose reminder is still pending and
	// whose deadline falls within (now, now+lead].
	ListDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Task, error)

	// MarkReminderSent flips reminder_sent from false to true and reports
	// whether this call performed the transition.
	MarkReminderSent(ctx context.Context, taskID int64) (bool, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

const (
	userColumns = `id, username, first_name, last_name, receive_reminders, created_at, updated_at`
	taskColumns = `id, task_code, name, chat_id, deadline, status, reminder_sent, created_at, updated_at`
)

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.NewDatabaseError("database ping failed", err)
	}
	return nil
}

func (s *sqlxStore) Close() error {
	return s.db.Close()
}

func (s *sqlxStore) UpsertUser(ctx context.Context, user *User) error {
	if user == nil || user.ID == 0 {
		return errs.NewValidationError("user must have a non-zero id", nil)
	}

	now := s.now()
	query := `
        INSERT INTO users (id, username, first_name, last_name, receive_reminders, created_at, updated_at)
        VALUES (?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            username   = excluded.username,
            first_name = excluded.first_name,
            last_name  = excluded.last_name,
            updated_at = excluded.updated_at;
    `
	ts := toUnix(now)
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.FirstName, user.LastName, ts, ts); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting user", "user_id", user.ID, "error", err)
		return errs.NewDatabaseError(fmt.Sprintf("failed to upsert user %d", user.ID), err)
	}

	stored, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *stored

	s.logger.DebugContext(ctx, "User upserted", "user_id", user.ID, "username", user.Username)
	return nil
}

func (s *sqlxStore) CreateUser(ctx context.Context, user *User) error {
	if user == nil || user.ID == 0 {
		return errs.NewValidationError("user must have a non-zero id", nil)
	}

	now := s.now()
	query := `
        INSERT INTO users (id, username, first_name, last_name, receive_reminders, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO NOTHING;
    `
	result, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName, user.ReceiveReminders, toUnix(now), toUnix(now))
	if err != nil {
		return errs.NewDatabaseError(fmt.Sprintf("failed to create user %d", user.ID), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errs.NewDatabaseError("failed to read affected rows", err)
	}
	if affected == 0 {
		return errs.NewConflictError(fmt.Sprintf("user %d already exists", user.ID), nil)
	}

	user.CreatedAt = fromUnix(toUnix(now))
	user.UpdatedAt = user.CreatedAt
	return nil
}

func (s *sqlxStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errs.NewNotFoundError(fmt.Sprintf("user %d not found", id))
	case err != nil:
		return nil, errs.NewDatabaseError(fmt.Sprintf("failed to get user %d", id), err)
	}

	user := row.toModel()
	return &user, nil
}

func (s *sqlxStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, errs.NewValidationError("username cannot be empty", nil)
	}

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? COLLATE NOCASE ORDER BY updated_at DESC LIMIT 1`
	err := s.db.GetContext(ctx, &row, query, username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errs.NewNotFoundError(fmt.Sprintf("user @%s not found", username))
	case err != nil:
		return nil, errs.NewDatabaseError(fmt.Sprintf("failed to get user @%s", username), err)
	}

	user := row.toModel()
	return &user, nil
}

func (s *sqlxStore) ListUsers(ctx context.Context, offset, limit int) ([]User, error) {
	offset, limit = normalizePage(offset, limit)

	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, errs.NewDatabaseError("failed to list users", err)
	}

	return usersFromRows(rows), nil
}

func (s *sqlxStore) SetReceiveReminders(ctx context.Context, userID int64, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET receive_reminders = ?, updated_at = ? WHERE id = ?`,
		enabled, toUnix(s.now()), userID)
	if err != nil {
		return errs.NewDatabaseError(fmt.Sprintf("failed to update reminders for user %d", userID), err)
	}
	return requireAffected(result, fmt.Sprintf("user %d not found", userID))
}

func (s *sqlxStore) CreateTask(ctx context.Context, task *Task, assigneeIDs []int64) error {
	if task == nil {
		return errs.NewValidationError("cannot save nil task", nil)
	}
	if strings.TrimSpace(task.Name) == "" {
		return errs.NewValidationError("task name cannot be empty", nil)
	}
	if task.Deadline.IsZero() {
		return errs.NewValidationError("task deadline is required", nil)
	}
	if task.Status == "" {
		task.Status = StatusNew
	}
	if !task.Status.Valid() {
		return errs.NewValidationError(fmt.Sprintf("invalid status %q", task.Status), nil)
	}

	now := s.now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for creating task", "error", err)
		return errs.NewDatabaseError("failed to begin transaction", err)
	}
	defer s.rollback(ctx, tx)

	result, err := tx.ExecContext(ctx, `
        INSERT INTO tasks (name, chat_id, deadline, status, reminder_sent, created_at, updated_at)
        VALUES (?, ?, ?, ?, 0, ?, ?);
    `, task.Name, task.ChatID, toUnix(task.Deadline), string(task.Status), toUnix(now), toUnix(now))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting task", "chat_id", task.ChatID, "error", err)
		return errs.NewDatabaseError("failed to insert task", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errs.NewDatabaseError("failed to get inserted task id", err)
	}

	code := TaskCode(id)
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET task_code = ? WHERE id = ?`, code, id); err != nil {
		return errs.NewDatabaseError("failed to set task code", err)
	}

	seen := make(map[int64]bool, len(assigneeIDs))
	for _, userID := range assigneeIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM users WHERE id = ?`, userID)
		if err != nil {
			return errs.NewDatabaseError("failed to check assignee", err)
		}
		if exists == 0 {
			return errs.NewNotFoundError(fmt.Sprintf("user %d not found", userID))
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_assignments (task_id, user_id, created_at) VALUES (?, ?, ?)`,
			id, userID, toUnix(now)); err != nil {
			return errs.NewDatabaseError(fmt.Sprintf("failed to assign user %d", userID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit task creation", "error", err)
		return errs.NewDatabaseError("failed to commit task", err)
	}

	task.ID = id
	task.Code = code
	task.ReminderSent = false
	task.Deadline = fromUnix(toUnix(task.Deadline))
	task.CreatedAt = fromUnix(toUnix(now))
	task.UpdatedAt = task.CreatedAt

	s.logger.InfoContext(ctx, "Task created", "task_id", id, "task_code", code, "assignees", len(seen))
	return nil
}

func (s *sqlxStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	return s.getTask(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id, fmt.Sprintf("task %d", id))
}

func (s *sqlxStore) GetTaskByCode(ctx context.Context, code string) (*Task, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return s.getTask(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_code = ?`, code, "task "+code)
}

func (s *sqlxStore) getTask(ctx context.Context, query string, arg any, label string) (*Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, query, arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errs.NewNotFoundError(label + " not found")
	case err != nil:
		return nil, errs.NewDatabaseError("failed to get "+label, err)
	}

	task := row.toModel()
	return &task, nil
}

func (s *sqlxStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	offset, limit := normalizePage(filter.Offset, filter.Limit)

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ChatID != 0 {
		where = append(where, "chat_id = ?")
		args = append(args, filter.ChatID)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY deadline ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errs.NewDatabaseError("failed to list tasks", err)
	}
	return tasksFromRows(rows), nil
}

func (s *sqlxStore) UpdateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errs.NewValidationError("cannot update nil task", nil)
	}
	if strings.TrimSpace(task.Name) == "" {
		return errs.NewValidationError("task name cannot be empty", nil)
	}
	if task.Deadline.IsZero() {
		return errs.NewValidationError("task deadline is required", nil)
	}
	if !task.Status.Valid() {
		return errs.NewValidationError(fmt.Sprintf("invalid status %q", task.Status), nil)
	}

	result, err := s.db.ExecContext(ctx, `
        UPDATE tasks SET name = ?, chat_id = ?, deadline = ?, status = ?, updated_at = ?
        WHERE id = ?;
    `, task.Name, task.ChatID, toUnix(task.Deadline), string(task.Status), toUnix(s.now()), task.ID)
	if err != nil {
		return errs.NewDatabaseError(fmt.Sprintf("failed to update task %d", task.ID), err)
	}
	if err := requireAffected(result, fmt.Sprintf("task %d not found", task.ID)); err != nil {
		return err
	}

	stored, err := s.GetTask(ctx, task.ID)
	if err != nil {
		return err
	}
	*task = *stored
	return nil
}

func (s *sqlxStore) SetTaskStatus(ctx context.Context, taskID int64, status TaskStatus) error {
	if !status.Valid() {
		return errs.NewValidationError(fmt.Sprintf("invalid status %q", status), nil)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toUnix(s.now()), taskID)
	if err != nil {
		return errs.NewDatabaseError(fmt.Sprintf("failed to set status of task %d", taskID), err)
	}
	return requireAffected(result, fmt.Sprintf("task %d not found", taskID))
}

func (s *sqlxStore) AssignUser(ctx context.Context, taskID, userID int64) error {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO task_assignments (task_id, user_id, created_at) VALUES (?, ?, ?)
        ON CONFLICT (task_id, user_id) DO NOTHING;
    `, taskID, userID, toUnix(s.now()))
	if err != nil {
		return errs.NewDatabaseError("failed to create assignment", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errs.NewDatabaseError("failed to read affected rows", err)
	}
	if affected == 0 {
		return errs.NewConflictError(fmt.Sprintf("user %d is already assigned to task %d", userID, taskID), nil)
	}
	return nil
}

func (s *sqlxStore) ListAssignees(ctx context.Context, taskID int64) ([]User, error) {
	query := `
        SELECT u.id, u.username, u.first_name, u.last_name, u.receive_reminders, u.created_at, u.updated_at
        FROM users u
        JOIN task_assignments a ON a.user_id = u.id
        WHERE a.task_id = ?
        ORDER BY a.created_at, u.id;
    `
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, taskID); err != nil {
		return nil, errs.NewDatabaseError(fmt.Sprintf("failed to list assignees of task %d", taskID), err)
	}
	return usersFromRows(rows), nil
}

func (s *sqlxStore) ListUserTasks(ctx context.Context, userID int64, statuses []TaskStatus) ([]Task, error) {
	query := `
        SELECT t.id, t.task_code, t.name, t.chat_id, t.deadline, t.status, t.reminder_sent, t.created_at, t.updated_at
        FROM tasks t
        JOIN task_assignments a ON a.task_id = t.id
        WHERE a.user_id = ?`
	args := []any{userID}

	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		inQuery, inArgs, err := sqlx.In(" AND t.status IN (?)", values)
		if err != nil {
			return nil, errs.NewDatabaseError("failed to build status filter", err)
		}
		query += inQuery
		args = append(args, inArgs...)
	}
	query += " ORDER BY t.deadline ASC, t.id ASC"

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errs.NewDatabaseError(fmt.Sprintf("failed to list tasks of user %d", userID), err)
	}
	return tasksFromRows(rows), nil
}

func (s *sqlxStore) ListDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
        WHERE reminder_sent = 0
          AND status != ?
          AND deadline > ?
          AND deadline <= ?
        ORDER BY deadline ASC, id ASC`

	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, query, string(StatusDone), toUnix(now), toUnix(now.Add(lead)))
	if err != nil {
		return nil, errs.NewDatabaseError("failed to list due reminders", err)
	}
	return tasksFromRows(rows), nil
}

func (s *sqlxStore) MarkReminderSent(ctx context.Context, taskID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET reminder_sent = 1, updated_at = ? WHERE id = ? AND reminder_sent = 0`,
		toUnix(s.now()), taskID)
	if err != nil {
		return false, errs.NewDatabaseError(fmt.Sprintf("failed to mark reminder sent for task %d", taskID), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errs.NewDatabaseError("failed to read affected rows", err)
	}
	return affected == 1, nil
}

// RunSQLMaintenance executes VACUUM and PRAGMA optimize on the SQLite database.
// VACUUM must run outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return errs.NewDatabaseError("failed to execute VACUUM", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func (s *sqlxStore) rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}

func requireAffected(result sql.Result, notFound string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.NewDatabaseError("failed to read affected rows", err)
	}
	if affected == 0 {
		return errs.NewNotFoundError(notFound)
	}
	return nil
}

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return offset, limit
}

func usersFromRows(rows []userRow) []User {
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users
}

func tasksFromRows(rows []taskRow) []Task {
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toModel())
	}
	return tasks
}
