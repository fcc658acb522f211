package database

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusNew        TaskStatus = "NEW"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

// OpenStatuses lists every status that is not completed.
var OpenStatuses = []TaskStatus{StatusNew, StatusInProgress}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseTaskStatus accepts any casing and "-" or " " in place of "_".
func ParseTaskStatus(raw string) (TaskStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	status := TaskStatus(normalized)
	if !status.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return status, nil
}

// User is a registered chat user. ID is the platform user id.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	ReceiveReminders bool      `json:"receive_reminders"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case full != "":
		return full
	case u.Username != "":
		return "@" + u.Username
	default:
		return fmt.Sprintf("user %d", u.ID)
	}
}

// Task is a unit of work created in a group chat.
type Task struct {
	ID           int64      `json:"id"`
	Code         string     `json:"task_code"`
	Name         string     `json:"name"`
	ChatID       int64      `json:"chat_id"`
	Deadline     time.Time  `json:"deadline"`
	Status       TaskStatus `json:"status"`
	ReminderSent bool       `json:"reminder_sent"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Completed reports whether the task is done.
func (t Task) Completed() bool {
	return t.Status == StatusDone
}

// MarshalJSON adds the derived "completed" field.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return json.Marshal(struct {
		plain
		Completed bool `json:"completed"`
	}{plain: plain(t), Completed: t.Completed()})
}

// TaskCode formats the human-facing code for a task id.
func TaskCode(id int64) string {
	return fmt.Sprintf("TK%04d", id)
}

// TaskFilter narrows ListTasks. Zero values mean "any".
type TaskFilter struct {
	Status TaskStatus
	ChatID int64
	Offset int
	Limit  int
}

// Assignment links a user to a task.
type Assignment struct {
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Rows as stored. Timestamps are UTC Unix seconds.

type userRow struct {
	ID               int64  `db:"id"`
	Username         string `db:"username"`
	FirstName        string `db:"first_name"`
	LastName         string `db:"last_name"`
	ReceiveReminders bool   `db:"receive_reminders"`
	CreatedAt        int64  `db:"created_at"`
	UpdatedAt        int64  `db:"updated_at"`
}

func (r userRow) toModel() User {
	return User{
		ID:               r.ID,
		Username:         r.Username,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		ReceiveReminders: r.ReceiveReminders,
		CreatedAt:        fromUnix(r.CreatedAt),
		UpdatedAt:        fromUnix(r.UpdatedAt),
	}
}

type taskRow struct {
	ID           int64   `db:"id"`
	Code         *string `db:"task_code"`
	Name         string  `db:"name"`
	ChatID       int64   `db:"chat_id"`
	Deadline     int64   `db:"deadline"`
	Status       string  `db:"status"`
	ReminderSent bool    `db:"reminder_sent"`
	CreatedAt    int64   `db:"created_at"`
	UpdatedAt    int64   `db:"updated_at"`
}

func (r taskRow) toModel() Task {
	code := TaskCode(r.ID)
	if r.Code != nil && *r.Code != "" {
		code = *r.Code
	}
	return Task{
		ID:           r.ID,
		Code:         code,
		Name:         r.Name,
		ChatID:       r.ChatID,
		Deadline:     fromUnix(r.Deadline),
		Status:       TaskStatus(r.Status),
		ReminderSent: r.ReminderSent,
		CreatedAt:    fromUnix(r.CreatedAt),
		UpdatedAt:    fromUnix(r.UpdatedAt),
	}
}

func toUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
