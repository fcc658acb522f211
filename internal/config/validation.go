package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	errs "github.com/edgard/taskbot/internal/errors"
)

// Validate checks struct tag constraints plus the cross-field rules the tags
// cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errs.NewConfigError("invalid configuration", err)
	}

	if cfg.Telegram.Mode == ModeWebhook {
		if cfg.Telegram.WebhookURL == "" || cfg.Telegram.WebhookToken == "" {
			return errs.NewConfigError("webhook mode requires telegram.webhook_url and telegram.webhook_token", nil)
		}
		if !cfg.HTTP.Enabled {
			return errs.NewConfigError("webhook mode requires http.enabled", nil)
		}
	}

	for name, task := range cfg.Scheduler.Tasks {
		if task.Enabled && task.Interval == 0 && task.Schedule == "" {
			return errs.NewConfigError(fmt.Sprintf("scheduler task %q is enabled but has neither interval nor schedule", name), nil)
		}
	}

	return nil
}
