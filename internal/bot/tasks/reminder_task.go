package tasks

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/metrics"
	"github.com/edgard/taskbot/internal/tracker"
)

// ReminderChecker sends one reminder per task shortly before its deadline.
//
// A task qualifies when its reminder is still pending, it is not done, and
// now falls in [deadline-lead, deadline). Only assignees who opted in are
// mentioned. The pending flag is cleared after a successful send, so a
// failed delivery is retried on the next tick and a crash between send and
// flag update can repeat a reminder.
type ReminderChecker struct {
	deps    TaskDeps
	log     *slog.Logger
	now     func() time.Time
	running atomic.Bool
}

// NewReminderChecker creates a checker using now as its clock.
func NewReminderChecker(deps TaskDeps, now func() time.Time) *ReminderChecker {
	if now == nil {
		now = time.Now
	}
	return &ReminderChecker{
		deps: deps,
		log:  deps.Logger.With("task", config.TaskReminderCheck),
		now:  now,
	}
}

// Run performs one tick. A tick that starts while another is still running
// returns immediately.
func (r *ReminderChecker) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		metrics.ReminderTicksOverlapped.Inc()
		r.log.WarnContext(ctx, "Previous reminder check still running, skipping tick")
		return nil
	}
	defer r.running.Store(false)

	start := time.Now()
	defer func() { metrics.ReminderTickDuration.Observe(time.Since(start).Seconds()) }()

	now := r.now().UTC()
	lead := r.deps.Config.Scheduler.LeadWindow

	due, err := r.deps.Store.ListDueReminders(ctx, now, lead)
	if err != nil {
		return fmt.Errorf("failed to list due reminders: %w", err)
	}
	if len(due) == 0 {
		r.log.DebugContext(ctx, "No reminders due", "now", now)
		return nil
	}

	failed := 0
	for _, task := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.remind(ctx, task, lead); err != nil {
			failed++
			r.log.ErrorContext(ctx, "Reminder failed, will retry on next tick",
				"task_code", task.Code, "chat_id", task.ChatID, "error", err)
		}
	}

	r.log.InfoContext(ctx, "Reminder check complete", "due", len(due), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d reminders failed", failed, len(due))
	}
	return nil
}

func (r *ReminderChecker) remind(ctx context.Context, task database.Task, lead time.Duration) error {
	assignees, err := r.deps.Store.ListAssignees(ctx, task.ID)
	if err != nil {
		return err
	}

	optedIn := make([]database.User, 0, len(assignees))
	for _, u := range assignees {
		if u.ReceiveReminders {
			optedIn = append(optedIn, u)
		}
	}

	if len(optedIn) == 0 {
		if _, err := r.deps.Store.MarkReminderSent(ctx, task.ID); err != nil {
			return err
		}
		metrics.RemindersTotal.WithLabelValues(metrics.ReminderSkipped).Inc()
		r.log.InfoContext(ctx, "No opted-in assignees, reminder skipped", "task_code", task.Code)
		return nil
	}

	text := fmt.Sprintf(r.deps.Config.Messages.Reminder,
		html.EscapeString(task.Name),
		task.Code,
		task.Deadline.UTC().Format(tracker.DeadlineLayout),
		mentionList(optedIn),
		humanDuration(lead),
	)

	if err := r.deps.Notifier.Notify(ctx, task.ChatID, text); err != nil {
		metrics.RemindersTotal.WithLabelValues(metrics.ReminderFailed).Inc()
		return err
	}

	marked, err := r.deps.Store.MarkReminderSent(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("reminder delivered but not recorded: %w", err)
	}
	if !marked {
		r.log.WarnContext(ctx, "Reminder flag was already set", "task_code", task.Code)
	}

	metrics.RemindersTotal.WithLabelValues(metrics.ReminderSent).Inc()
	r.log.InfoContext(ctx, "Reminder sent", "task_code", task.Code, "chat_id", task.ChatID, "mentioned", len(optedIn))
	return nil
}

// mentionList renders users as HTML mentions. Users without a username get
// an inline link so they are still notified.
func mentionList(users []database.User) string {
	parts := make([]string, 0, len(users))
	for _, u := range users {
		if u.Username != "" {
			parts = append(parts, "@"+html.EscapeString(u.Username))
			continue
		}
		parts = append(parts, fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(u.DisplayName())))
	}
	return strings.Join(parts, ", ")
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	default:
		return d.String()
	}
}
