package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDBPath = "taskbot.db"

	DefaultTelegramMode         = ModePolling
	DefaultTelegramSendTimeout  = 10 * time.Second
	DefaultTelegramAdminTimeout = 5 * time.Second
	DefaultTelegramParseTimeout = 30 * time.Second

	DefaultGeminiModel               = "gemini-2.5-flash"
	DefaultGeminiTemperature         = 0.1
	DefaultGeminiTimeout             = 20 * time.Second
	DefaultGeminiConfidenceThreshold = 0.7
	DefaultGeminiMaxRetries          = 2
	DefaultGeminiRetryDelay          = 2 * time.Second
	DefaultGeminiBreakerFailures     = 5
	DefaultGeminiBreakerCooldown     = time.Minute

	DefaultLeadWindow       = 30 * time.Minute
	DefaultReminderInterval = time.Minute
	DefaultMaintenanceCron  = "0 0 4 * * *"

	DefaultHTTPAddr         = ":8080"
	DefaultHTTPReadTimeout  = 10 * time.Second
	DefaultHTTPWriteTimeout = 10 * time.Second
)

// Scheduled task names, matching the keys of scheduler.tasks.
const (
	TaskReminderCheck  = "reminder_check"
	TaskSQLMaintenance = "sql_maintenance"
)

const usageExamples = "<b>Examples:</b>\n" +
	"• /add_task Prepare quarterly report for @john, due tomorrow at 2 PM\n" +
	"• /add_task Code review with @sarah and @tom, deadline is 2025-10-25 15:00\n" +
	"• /add_task \"Prepare presentation\" @john @jane 2025-10-20 14:30"

// DefaultMessages holds the default chat texts.
var DefaultMessages = MessagesConfig{
	Welcome: "👋 Hello %s!\n\nWelcome to the Task Management Bot!\n\n" +
		"<b>Available Commands:</b>\n" +
		"• /start - Register/update your profile\n" +
		"• /receive_reminders - Opt in to receive task reminders\n" +
		"• /add_task - Add a new task (admins only, in groups)\n" +
		"• /my_tasks - View your assigned tasks\n\n" +
		"<b>Note:</b> By default, you won't receive reminders. Use /receive_reminders in a private chat to opt in!",
	Help: "🤖 <b>Task Management Bot Help</b>\n\n" +
		"• /start - Register/update your profile\n" +
		"• /receive_reminders - Opt in to reminders (private chat only)\n" +
		"• /add_task &lt;description&gt; - Add a new task (admins only, in groups)\n" +
		"• /my_tasks [new|in_progress] - View your assigned tasks\n" +
		"• /update_status &lt;code&gt; &lt;new|in_progress|done&gt; - Update a task\n" +
		"• /view_done [@user] - View completed tasks (admins only)\n\n" +
		usageExamples,
	GeneralError:          "❌ Something went wrong. Please try again later.",
	NotRegistered:         "❌ Please use /start first to register.",
	OptInPrivateOnly:      "⚠️ Please send this command in a private message to me, not in a group.",
	OptInConfirm:          "✅ You have opted in to receive task reminders!\n\nYou will now be mentioned in reminders before task deadlines.",
	GroupOnly:             "⚠️ This command can only be used in groups.",
	AdminOnly:             "⚠️ Only group administrators can do that.",
	AddTaskUsage:          "❌ <b>Please tell me what the task is!</b>\n\n" + usageExamples,
	AddTaskParseError:     "❌ <b>I had trouble understanding your task:</b> %s\n\n" + usageExamples,
	AddTaskUnknownUser:    "⚠️ I don't know %s yet. Users must send /start to the bot before they can be assigned tasks.",
	AddTaskSuccess:        "✅ <b>Task Created!</b>\n\n📋 <b>Task:</b> %s\n🔢 <b>Task Code:</b> %s\n👥 <b>Assigned to:</b> %s\n⏰ <b>Due:</b> %s\n🎯 <b>Confidence:</b> %.0f%% (%s)",
	MyTasksNone:           "📭 You have no active tasks assigned to you.",
	MyTasksHeader:         "📋 <b>Your Active Tasks:</b>\n\n",
	DoneTasksNone:         "📭 No completed tasks for %s.",
	DoneTasksHeader:       "✅ <b>Completed tasks for %s:</b>\n\n",
	UpdateStatusUsage:     "❌ <b>Usage:</b> /update_status &lt;code&gt; &lt;new|in_progress|done&gt;\n\nExample: /update_status TK0001 done",
	UpdateStatusNotFound:  "❌ Task %s doesn't exist. Please check your task list!",
	UpdateStatusForbidden: "⚠️ Only assignees or group administrators can update this task.",
	UpdateStatusSuccess:   "✅ Task %s (%s) is now <b>%s</b>.",
	Reminder: "🔔 <b>Task Reminder</b>\n\n📋 <b>Task:</b> %s\n🔢 <b>Task Code:</b> %s\n⏰ <b>Due:</b> %s\n" +
		"👥 <b>Assigned to:</b> %s\n\n⚠️ This task is due in about %s!",
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{Level: DefaultLogLevel},
		Database: DatabaseConfig{
			Path: DefaultDBPath,
		},
		Telegram: TelegramConfig{
			Mode:         DefaultTelegramMode,
			SendTimeout:  DefaultTelegramSendTimeout,
			AdminTimeout: DefaultTelegramAdminTimeout,
			ParseTimeout: DefaultTelegramParseTimeout,
		},
		Gemini: GeminiConfig{
			ModelName:           DefaultGeminiModel,
			Temperature:         DefaultGeminiTemperature,
			Timeout:             DefaultGeminiTimeout,
			ConfidenceThreshold: DefaultGeminiConfidenceThreshold,
			MaxRetries:          DefaultGeminiMaxRetries,
			RetryDelay:          DefaultGeminiRetryDelay,
			BreakerFailures:     DefaultGeminiBreakerFailures,
			BreakerCooldown:     DefaultGeminiBreakerCooldown,
		},
		Scheduler: SchedulerConfig{
			LeadWindow: DefaultLeadWindow,
			Tasks: map[string]TaskConfig{
				TaskReminderCheck:  {Enabled: true, Interval: DefaultReminderInterval},
				TaskSQLMaintenance: {Enabled: true, Schedule: DefaultMaintenanceCron},
			},
		},
		HTTP: HTTPConfig{
			Enabled:      true,
			Addr:         DefaultHTTPAddr,
			ReadTimeout:  DefaultHTTPReadTimeout,
			WriteTimeout: DefaultHTTPWriteTimeout,
		},
		Messages: DefaultMessages,
	}
}
