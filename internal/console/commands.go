// Package console provides the operator command registry, parser, and
// dispatcher for controlling a running bot.
package console

// Categories for organizing commands.
const (
	CategoryControl    = "control"
	CategoryClassifier = "classifier"
	CategoryConfig     = "config"
	CategorySystem     = "system"
)

// Handler identifiers mapping commands to dispatcher methods.
const (
	HandlerStart    = "start"
	HandlerStop     = "stop"
	HandlerStatus   = "status"
	HandlerPattern  = "pattern"
	HandlerConfig   = "config"
	HandlerFeedback = "feedback"
	HandlerHelp     = "help"
)

// Command defines an operator-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the short help text displayed to the operator.
	Help string
	// Category groups the command (control, classifier, config, system).
	Category string
	// Handler maps to the dispatcher method.
	Handler string
}

// BuiltinCommands returns all built-in operator commands.
func BuiltinCommands() []Command {
	return []Command{
		// Control commands
		{Name: "start", Aliases: nil, Help: "Start the bot (start [hunt|explore])", Category: CategoryControl, Handler: HandlerStart},
		{Name: "stop", Aliases: nil, Help: "Stop the bot and finalize the session", Category: CategoryControl, Handler: HandlerStop},
		{Name: "status", Aliases: []string{"st"}, Help: "Show bot state and session counters", Category: CategoryControl, Handler: HandlerStatus},

		// Classifier commands
		{Name: "pattern", Aliases: []string{"pat"}, Help: "Show or replace the prompt pattern (pattern [<regex>])", Category: CategoryClassifier, Handler: HandlerPattern},
		{Name: "feedback", Aliases: []string{"fb"}, Help: "Correct a classification (feedback <type|wrong> <message>)", Category: CategoryClassifier, Handler: HandlerFeedback},

		// Config commands
		{Name: "config", Aliases: []string{"cfg"}, Help: "Get or set a setting (config get <key> | config set <key> <value>)", Category: CategoryConfig, Handler: HandlerConfig},

		// System commands
		{Name: "help", Aliases: []string{"?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
	}
}
