package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	errs "github.com/edgard/taskbot/internal/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "TASKBOT"

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional)
// 3. TASKBOT_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, errs.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
		}
		// Config file not found is okay, we'll use defaults and environment.
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse config", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// setDefaults registers every key with viper so environment overrides are
// picked up by AutomaticEnv during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.json", d.Logger.JSON)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.mode", d.Telegram.Mode)
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_token", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.send_timeout", d.Telegram.SendTimeout)
	v.SetDefault("telegram.admin_timeout", d.Telegram.AdminTimeout)
	v.SetDefault("telegram.parse_timeout", d.Telegram.ParseTimeout)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", d.Gemini.ModelName)
	v.SetDefault("gemini.temperature", d.Gemini.Temperature)
	v.SetDefault("gemini.timeout", d.Gemini.Timeout)
	v.SetDefault("gemini.confidence_threshold", d.Gemini.ConfidenceThreshold)
	v.SetDefault("gemini.max_retries", d.Gemini.MaxRetries)
	v.SetDefault("gemini.retry_delay", d.Gemini.RetryDelay)
	v.SetDefault("gemini.breaker_failures", d.Gemini.BreakerFailures)
	v.SetDefault("gemini.breaker_cooldown", d.Gemini.BreakerCooldown)

	v.SetDefault("scheduler.lead_window", d.Scheduler.LeadWindow)
	for name, task := range d.Scheduler.Tasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".interval", task.Interval)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("http.enabled", d.HTTP.Enabled)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.api_token", "")
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)

	m := d.Messages
	v.SetDefault("messages.welcome", m.Welcome)
	v.SetDefault("messages.help", m.Help)
	v.SetDefault("messages.general_error", m.GeneralError)
	v.SetDefault("messages.not_registered", m.NotRegistered)
	v.SetDefault("messages.opt_in_private_only", m.OptInPrivateOnly)
	v.SetDefault("messages.opt_in_confirm", m.OptInConfirm)
	v.SetDefault("messages.group_only", m.GroupOnly)
	v.SetDefault("messages.admin_only", m.AdminOnly)
	v.SetDefault("messages.add_task_usage", m.AddTaskUsage)
	v.SetDefault("messages.add_task_parse_error", m.AddTaskParseError)
	v.SetDefault("messages.add_task_unknown_user", m.AddTaskUnknownUser)
	v.SetDefault("messages.add_task_success", m.AddTaskSuccess)
	v.SetDefault("messages.my_tasks_none", m.MyTasksNone)
	v.SetDefault("messages.my_tasks_header", m.MyTasksHeader)
	v.SetDefault("messages.done_tasks_none", m.DoneTasksNone)
	v.SetDefault("messages.done_tasks_header", m.DoneTasksHeader)
	v.SetDefault("messages.update_status_usage", m.UpdateStatusUsage)
	v.SetDefault("messages.update_status_not_found", m.UpdateStatusNotFound)
	v.SetDefault("messages.update_status_forbidden", m.UpdateStatusForbidden)
	v.SetDefault("messages.update_status_success", m.UpdateStatusSuccess)
	v.SetDefault("messages.reminder", m.Reminder)
}
