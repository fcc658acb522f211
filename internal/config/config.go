// Package config manages application configuration from a YAML file,
// environment variables and default values.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Run modes for receiving Telegram updates.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config defines the application configuration. Values can be set through
// config.yaml or environment variables prefixed with TASKBOT_
// (e.g. TASKBOT_TELEGRAM_TOKEN).
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points to the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials and the update delivery mode.
type TelegramConfig struct {
	Token         string        `mapstructure:"token"          validate:"required"`
	Mode          string        `mapstructure:"mode"           validate:"oneof=polling webhook"`
	WebhookURL    string        `mapstructure:"webhook_url"    validate:"omitempty,url"`
	WebhookToken  string        `mapstructure:"webhook_token"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"   validate:"min=1s,max=2m"`
	AdminTimeout  time.Duration `mapstructure:"admin_timeout"  validate:"min=1s,max=1m"`
	ParseTimeout  time.Duration `mapstructure:"parse_timeout"  validate:"min=1s,max=5m"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// GeminiConfig configures the AI task extraction client.
type GeminiConfig struct {
	APIKey              string        `mapstructure:"api_key"`
	ModelName           string        `mapstructure:"model_name"           validate:"required"`
	Temperature         float32       `mapstructure:"temperature"          validate:"min=0,max=2"`
	Timeout             time.Duration `mapstructure:"timeout"              validate:"min=1s,max=5m"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" validate:"min=0,max=1"`
	MaxRetries          int           `mapstructure:"max_retries"          validate:"min=0,max=10"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"          validate:"min=0,max=1m"`
	BreakerFailures     int           `mapstructure:"breaker_failures"     validate:"min=1,max=100"`
	BreakerCooldown     time.Duration `mapstructure:"breaker_cooldown"     validate:"min=1s,max=1h"`
}

// Enabled reports whether an API key was configured. Without it the bot
// only understands the strict task format.
func (g GeminiConfig) Enabled() bool {
	return g.APIKey != ""
}

// SchedulerConfig holds reminder timing and the scheduled task table.
type SchedulerConfig struct {
	LeadWindow time.Duration         `mapstructure:"lead_window" validate:"min=1m,max=24h"`
	Tasks      map[string]TaskConfig `mapstructure:"tasks"       validate:"dive"`
}

// TaskConfig configures one scheduled task. Interval takes precedence over
// Schedule when both are set.
type TaskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,min=1s"`
	Schedule string        `mapstructure:"schedule"`
}

// HTTPConfig configures the REST API and webhook listener.
type HTTPConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"          validate:"required"`
	APIToken     string        `mapstructure:"api_token"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  validate:"min=1s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=1s"`
}

// MessagesConfig holds every user-facing chat text. Format strings are noted.
type MessagesConfig struct {
	Welcome               string `mapstructure:"welcome"                 validate:"required"` // %s first name
	Help                  string `mapstructure:"help"                    validate:"required"`
	GeneralError          string `mapstructure:"general_error"           validate:"required"`
	NotRegistered         string `mapstructure:"not_registered"          validate:"required"`
	OptInPrivateOnly      string `mapstructure:"opt_in_private_only"     validate:"required"`
	OptInConfirm          string `mapstructure:"opt_in_confirm"          validate:"required"`
	GroupOnly             string `mapstructure:"group_only"              validate:"required"`
	AdminOnly             string `mapstructure:"admin_only"              validate:"required"`
	AddTaskUsage          string `mapstructure:"add_task_usage"          validate:"required"`
	AddTaskParseError     string `mapstructure:"add_task_parse_error"    validate:"required"` // %s reason
	AddTaskUnknownUser    string `mapstructure:"add_task_unknown_user"   validate:"required"` // %s mention
	AddTaskSuccess        string `mapstructure:"add_task_success"        validate:"required"` // name, code, users, due, confidence, source
	MyTasksNone           string `mapstructure:"my_tasks_none"           validate:"required"`
	MyTasksHeader         string `mapstructure:"my_tasks_header"         validate:"required"`
	DoneTasksNone         string `mapstructure:"done_tasks_none"         validate:"required"` // %s user
	DoneTasksHeader       string `mapstructure:"done_tasks_header"       validate:"required"` // %s user
	UpdateStatusUsage     string `mapstructure:"update_status_usage"     validate:"required"`
	UpdateStatusNotFound  string `mapstructure:"update_status_not_found" validate:"required"` // %s code
	UpdateStatusForbidden string `mapstructure:"update_status_forbidden" validate:"required"`
	UpdateStatusSuccess   string `mapstructure:"update_status_success"   validate:"required"` // code, name, status
	Reminder              string `mapstructure:"reminder"                validate:"required"` // name, code, due, mentions, lead
}
