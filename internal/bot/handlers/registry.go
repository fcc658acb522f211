package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Description string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// CommandOrder is the order commands are listed in the client menu.
var CommandOrder = []string{"start", "help", "receive_reminders", "add_task", "my_tasks", "update_status", "view_done"}

// RegisterAllCommands initializes and returns a map of all available bot commands,
// keyed by command name.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	base := []tgbot.Middleware{RequireSender(deps)}

	command := func(name, description string, h tgbot.HandlerFunc, extra ...tgbot.Middleware) {
		handlers[name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Description: description,
			Handler:     h,
			Middleware:  append(append([]tgbot.Middleware{}, base...), extra...),
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		}
	}

	command("start", "Register or update your profile", NewStartHandler(deps))
	command("help", "Show available commands", NewHelpHandler(deps))
	command("receive_reminders", "Opt in to task reminders (private chat)", NewReceiveRemindersHandler(deps))
	command("add_task", "Add a new task (group admins)", NewAddTaskHandler(deps),
		WithTimeout(deps.Config.Telegram.ParseTimeout))
	command("my_tasks", "View your assigned tasks", NewMyTasksHandler(deps))
	command("update_status", "Change the status of a task", NewUpdateStatusHandler(deps))
	command("view_done", "View completed tasks (group admins)", NewViewDoneHandler(deps))

	return handlers
}
