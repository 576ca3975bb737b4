package console

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mudbot/internal/bot"
	"github.com/cory-johannsen/mudbot/internal/classify"
	"github.com/cory-johannsen/mudbot/internal/config"
)

// BotControl is the subset of the coordinator the console drives.
type BotControl interface {
	Start(ctx context.Context)
	Stop()
	State() bot.State
	Session() *bot.Session
}

// PromptConfigurer exposes the segmenter's live pattern controls.
type PromptConfigurer interface {
	SetPattern(expr string) error
	Pattern() string
	PatternDoubtful() bool
	PatternInvalid() bool
}

// Feedback is the subset of the classifier the console corrects.
type Feedback interface {
	ProvideFeedback(ctx context.Context, message string, correct classify.EventType, isCorrect bool) error
	CacheSize() int
}

// Modes accepted by the start command.
const (
	ModeHunt    = "hunt"
	ModeExplore = "explore"
)

// Console parses operator input and dispatches it to the running bot.
// Every Execute call returns the text to show the operator; errors are
// operator errors (bad input), never internal failures.
type Console struct {
	registry   *Registry
	control    BotControl
	prompts    PromptConfigurer
	settings   *bot.Settings
	classifier Feedback
	logger     *zap.Logger
}

// NewConsole creates a Console dispatching to the given collaborators.
//
// Precondition: All collaborators and logger must be non-nil.
func NewConsole(control BotControl, prompts PromptConfigurer, settings *bot.Settings, classifier Feedback, logger *zap.Logger) *Console {
	if control == nil || prompts == nil || settings == nil || classifier == nil {
		panic("console.NewConsole: all collaborators are required")
	}
	if logger == nil {
		panic("console.NewConsole: logger is required")
	}
	return &Console{
		registry:   DefaultRegistry(),
		control:    control,
		prompts:    prompts,
		settings:   settings,
		classifier: classifier,
		logger:     logger,
	}
}

// Execute parses one operator line and runs the matching command.
//
// Postcondition: Returns the operator-facing reply, or an error describing
// what was wrong with the input.
func (c *Console) Execute(ctx context.Context, line string) (string, error) {
	parsed := Parse(line)
	if parsed.Command == "" {
		return "", nil
	}

	cmd, ok := c.registry.Resolve(parsed.Command)
	if !ok {
		return "", fmt.Errorf("unknown command %q, try 'help'", parsed.Command)
	}

	c.logger.Debug("executing operator command",
		zap.String("command", cmd.Name),
		zap.Strings("args", parsed.Args))

	switch cmd.Handler {
	case HandlerStart:
		return c.handleStart(ctx, parsed.Args)
	case HandlerStop:
		return c.handleStop()
	case HandlerStatus:
		return c.handleStatus()
	case HandlerPattern:
		return c.handlePattern(parsed.RawArgs)
	case HandlerConfig:
		return c.handleConfig(parsed.Args)
	case HandlerFeedback:
		return c.handleFeedback(ctx, parsed.Args, parsed.RawArgs)
	case HandlerHelp:
		return c.handleHelp(), nil
	default:
		return "", fmt.Errorf("command %q has no handler", cmd.Name)
	}
}

func (c *Console) handleStart(ctx context.Context, args []string) (string, error) {
	mode := ModeHunt
	if len(args) > 0 {
		mode = strings.ToLower(args[0])
	}
	if mode != ModeHunt && mode != ModeExplore {
		return "", fmt.Errorf("unknown mode %q, expected %q or %q", mode, ModeHunt, ModeExplore)
	}
	if c.control.State() != bot.StateIdle {
		return "", fmt.Errorf("bot is %s, stop it first", c.control.State())
	}

	cfg := c.settings.Current()
	if mode == ModeExplore {
		// Exploration never detours to a safe zone between fights.
		cfg.SafeZone = ""
		if err := c.settings.Replace(cfg); err != nil {
			return "", fmt.Errorf("applying explore mode: %w", err)
		}
	}

	c.control.Start(ctx)
	c.logger.Info("bot started", zap.String("mode", mode))
	return fmt.Sprintf("bot started in %s mode, session %s", mode, c.control.Session().ID()), nil
}

func (c *Console) handleStop() (string, error) {
	if c.control.State() == bot.StateIdle {
		return "bot is not running", nil
	}
	c.control.Stop()
	summary := c.control.Session().Summary()
	return fmt.Sprintf("bot stopped: %d kills, %d deaths, %d rooms, %d exp",
		summary.Kills, summary.Deaths, summary.RoomsVisited, summary.Experience), nil
}

func (c *Console) handleStatus() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", c.control.State())
	if session := c.control.Session(); session != nil {
		s := session.Summary()
		fmt.Fprintf(&b, "session: %s (kills %d, deaths %d, commands %d, rooms %d, exp %d)\n",
			s.ID, s.Kills, s.Deaths, s.CommandsSent, s.RoomsVisited, s.Experience)
	}
	fmt.Fprintf(&b, "classifier cache: %d entries\n", c.classifier.CacheSize())
	fmt.Fprintf(&b, "prompt pattern: %s", describePattern(c.prompts))
	return b.String(), nil
}

func describePattern(p PromptConfigurer) string {
	pattern := p.Pattern()
	if pattern == "" {
		return "(none)"
	}
	switch {
	case p.PatternInvalid():
		return pattern + " [invalid: did not match last prompt]"
	case p.PatternDoubtful():
		return pattern + " [doubtful: matched mid-batch text]"
	default:
		return pattern
	}
}

func (c *Console) handlePattern(raw string) (string, error) {
	if raw == "" {
		return describePattern(c.prompts), nil
	}
	if err := c.prompts.SetPattern(raw); err != nil {
		return "", fmt.Errorf("bad pattern: %w", err)
	}
	c.logger.Info("prompt pattern replaced", zap.String("pattern", raw))
	return "pattern set", nil
}

// Settable config keys, one line per BotConfig field the operator may touch.
var configKeys = []string{
	"auto_buff",
	"auto_loot",
	"flee_threshold_pct",
	"max_deaths",
	"rest_threshold_pct",
	"safe_zone",
	"target_priority",
}

func (c *Console) handleConfig(args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("usage: config get <key> | config set <key> <value> (keys: %s)",
			strings.Join(configKeys, ", "))
	}

	verb, key := strings.ToLower(args[0]), strings.ToLower(args[1])
	cfg := c.settings.Current()

	switch verb {
	case "get":
		value, err := configValue(cfg, key)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", key, value), nil
	case "set":
		if len(args) < 3 {
			return "", fmt.Errorf("usage: config set <key> <value>")
		}
		if err := setConfigValue(&cfg, key, args[2]); err != nil {
			return "", err
		}
		if err := c.settings.Replace(cfg); err != nil {
			return "", fmt.Errorf("rejected: %w", err)
		}
		c.logger.Info("config updated", zap.String("key", key), zap.String("value", args[2]))
		return fmt.Sprintf("%s = %s", key, args[2]), nil
	default:
		return "", fmt.Errorf("unknown config verb %q, expected get or set", verb)
	}
}

func configValue(cfg config.BotConfig, key string) (string, error) {
	switch key {
	case "flee_threshold_pct":
		return strconv.Itoa(cfg.FleeThresholdPct), nil
	case "rest_threshold_pct":
		return strconv.Itoa(cfg.RestThresholdPct), nil
	case "max_deaths":
		return strconv.Itoa(cfg.MaxDeaths), nil
	case "auto_loot":
		return strconv.FormatBool(cfg.AutoLoot), nil
	case "auto_buff":
		return strconv.FormatBool(cfg.AutoBuff), nil
	case "target_priority":
		return cfg.TargetPriority, nil
	case "safe_zone":
		if cfg.SafeZone == "" {
			return "(none)", nil
		}
		return cfg.SafeZone, nil
	default:
		return "", fmt.Errorf("unknown config key %q (keys: %s)", key, strings.Join(configKeys, ", "))
	}
}

func setConfigValue(cfg *config.BotConfig, key, value string) error {
	switch key {
	case "flee_threshold_pct":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s needs a number: %w", key, err)
		}
		cfg.FleeThresholdPct = n
	case "rest_threshold_pct":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s needs a number: %w", key, err)
		}
		cfg.RestThresholdPct = n
	case "max_deaths":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s needs a number: %w", key, err)
		}
		cfg.MaxDeaths = n
	case "auto_loot":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s needs true or false: %w", key, err)
		}
		cfg.AutoLoot = b
	case "auto_buff":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s needs true or false: %w", key, err)
		}
		cfg.AutoBuff = b
	case "target_priority":
		cfg.TargetPriority = value
	case "safe_zone":
		if value == "none" {
			value = ""
		}
		cfg.SafeZone = value
	default:
		return fmt.Errorf("unknown config key %q (keys: %s)", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func (c *Console) handleFeedback(ctx context.Context, args []string, raw string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("usage: feedback <type|wrong> <message>")
	}

	verdict := strings.ToLower(args[0])
	message := strings.TrimSpace(strings.TrimPrefix(raw, args[0]))

	if verdict == "wrong" {
		if err := c.classifier.ProvideFeedback(ctx, message, classify.EventUnknown, false); err != nil {
			return "", fmt.Errorf("recording feedback: %w", err)
		}
		return fmt.Sprintf("forgot %q", message), nil
	}

	t, err := classify.ParseEventType(verdict)
	if err != nil {
		return "", fmt.Errorf("unknown event type %q: %w", verdict, err)
	}
	if err := c.classifier.ProvideFeedback(ctx, message, t, false); err != nil {
		return "", fmt.Errorf("recording feedback: %w", err)
	}
	return fmt.Sprintf("learned %q as %s", message, t), nil
}

func (c *Console) handleHelp() string {
	byCategory := c.registry.CommandsByCategory()
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	for _, category := range categories {
		cmds := byCategory[category]
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		fmt.Fprintf(&b, "%s:\n", category)
		for _, cmd := range cmds {
			name := cmd.Name
			if len(cmd.Aliases) > 0 {
				name = fmt.Sprintf("%s (%s)", cmd.Name, strings.Join(cmd.Aliases, ", "))
			}
			fmt.Fprintf(&b, "  %-16s %s\n", name, cmd.Help)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
