// Package config provides Viper-based configuration loading for the bot client.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GameConfig holds the remote game server connection settings.
type GameConfig struct {
	// Host is the MUD server hostname or address.
	Host string `mapstructure:"host"`
	// Port is the MUD server telnet port.
	Port int `mapstructure:"port"`
	// DialTimeout bounds the initial TCP connect.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// WriteTimeout is the per-write timeout for outgoing commands.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" dial address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GameConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SegmenterConfig holds prompt-detection settings.
type SegmenterConfig struct {
	// PromptTimeout is the inactivity gap after which a pending line is
	// finalized as the batch prompt.
	PromptTimeout time.Duration `mapstructure:"prompt_timeout"`
	// CheckInterval is how often the detector's timeout check runs.
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// HistorySize is the number of finalized prompts retained for diagnostics.
	HistorySize int `mapstructure:"history_size"`
	// Pattern is the initial prompt extraction pattern; empty = none configured.
	Pattern string `mapstructure:"pattern"`
}

// ClassifierConfig holds combat-message classifier settings.
type ClassifierConfig struct {
	// PatternsDir is a directory of YAML rule tables; empty = built-in rules only.
	PatternsDir string `mapstructure:"patterns_dir"`
	// LearnThreshold is the minimum confidence accepted into the learned cache.
	LearnThreshold float64 `mapstructure:"learn_threshold"`
	// FallbackThreshold is the minimum confidence accepted from the fallback classifier.
	FallbackThreshold float64 `mapstructure:"fallback_threshold"`
	// FallbackEnabled turns the external fallback classifier on.
	FallbackEnabled bool `mapstructure:"fallback_enabled"`
	// FallbackModel is the Anthropic model ID used when the fallback is enabled.
	FallbackModel string `mapstructure:"fallback_model"`
}

// BotConfig holds the operator-editable automation settings.
// It is read by every tick and replaced wholesale on change.
type BotConfig struct {
	// TickInterval is the period of the bot decision loop.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// FleeThresholdPct forces a flee when health drops below this percentage in combat.
	FleeThresholdPct int `mapstructure:"flee_threshold_pct"`
	// RestThresholdPct holds the bot in rest until health recovers past this percentage.
	RestThresholdPct int `mapstructure:"rest_threshold_pct"`
	// MaxDeaths stops the session unconditionally once reached.
	MaxDeaths int `mapstructure:"max_deaths"`
	// AutoLoot enables the looting state after a kill.
	AutoLoot bool `mapstructure:"auto_loot"`
	// AutoBuff enables the buffing state before travel.
	AutoBuff bool `mapstructure:"auto_buff"`
	// TargetPriority selects targets: "weakest", "strongest", or "first".
	TargetPriority string `mapstructure:"target_priority"`
	// SafeZone is the room ID the bot returns to; empty = no return behavior.
	SafeZone string `mapstructure:"safe_zone"`
	// LootCommands are issued in order when looting.
	LootCommands []string `mapstructure:"loot_commands"`
	// BuffCommands are issued one per tick when buffing.
	BuffCommands []string `mapstructure:"buff_commands"`
	// ErrorCooldown is the pause after a failed tick before ticking resumes.
	ErrorCooldown time.Duration `mapstructure:"error_cooldown"`
}

// ScriptingConfig holds Lua trigger-script settings.
type ScriptingConfig struct {
	// ScriptDir is the directory of *.lua trigger scripts; empty = scripting disabled.
	ScriptDir string `mapstructure:"script_dir"`
	// InstructionLimit caps Lua opcodes per callback. 0 = default limit.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Game       GameConfig       `mapstructure:"game"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Segmenter  SegmenterConfig  `mapstructure:"segmenter"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Bot        BotConfig        `mapstructure:"bot"`
	Scripting  ScriptingConfig  `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSegmenter(c.Segmenter); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateClassifier(c.Classifier); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.Host == "" {
		errs = append(errs, "game.host must not be empty")
	}
	if g.Port < 1 || g.Port > 65535 {
		errs = append(errs, fmt.Sprintf("game.port must be 1-65535, got %d", g.Port))
	}
	if g.DialTimeout < 0 {
		errs = append(errs, "game.dial_timeout must not be negative")
	}
	if g.WriteTimeout < 0 {
		errs = append(errs, "game.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateSegmenter(s SegmenterConfig) error {
	var errs []string
	if s.PromptTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("segmenter.prompt_timeout must be > 0, got %s", s.PromptTimeout))
	}
	if s.CheckInterval <= 0 {
		errs = append(errs, fmt.Sprintf("segmenter.check_interval must be > 0, got %s", s.CheckInterval))
	}
	if s.HistorySize < 1 {
		errs = append(errs, fmt.Sprintf("segmenter.history_size must be >= 1, got %d", s.HistorySize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateClassifier(c ClassifierConfig) error {
	var errs []string
	if c.LearnThreshold < 0 || c.LearnThreshold > 1 {
		errs = append(errs, fmt.Sprintf("classifier.learn_threshold must be in [0,1], got %v", c.LearnThreshold))
	}
	if c.FallbackThreshold < 0 || c.FallbackThreshold > 1 {
		errs = append(errs, fmt.Sprintf("classifier.fallback_threshold must be in [0,1], got %v", c.FallbackThreshold))
	}
	if c.FallbackEnabled && c.FallbackModel == "" {
		errs = append(errs, "classifier.fallback_model must not be empty when fallback is enabled")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks bot automation invariants.
//
// Postcondition: Returns nil if valid, or an error describing all violations.
func (b BotConfig) Validate() error {
	var errs []string
	if b.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("bot.tick_interval must be > 0, got %s", b.TickInterval))
	}
	if b.FleeThresholdPct < 0 || b.FleeThresholdPct > 100 {
		errs = append(errs, fmt.Sprintf("bot.flee_threshold_pct must be 0-100, got %d", b.FleeThresholdPct))
	}
	if b.RestThresholdPct < 0 || b.RestThresholdPct > 100 {
		errs = append(errs, fmt.Sprintf("bot.rest_threshold_pct must be 0-100, got %d", b.RestThresholdPct))
	}
	if b.MaxDeaths < 1 {
		errs = append(errs, fmt.Sprintf("bot.max_deaths must be >= 1, got %d", b.MaxDeaths))
	}
	validPriorities := map[string]bool{"weakest": true, "strongest": true, "first": true}
	if !validPriorities[b.TargetPriority] {
		errs = append(errs, fmt.Sprintf("bot.target_priority must be one of [weakest, strongest, first], got %q", b.TargetPriority))
	}
	if b.ErrorCooldown < 0 {
		errs = append(errs, "bot.error_cooldown must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MUDBOT_ prefix
	v.SetEnvPrefix("MUDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game.host", "localhost")
	v.SetDefault("game.port", 4000)
	v.SetDefault("game.dial_timeout", "10s")
	v.SetDefault("game.write_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mudbot")
	v.SetDefault("database.password", "mudbot")
	v.SetDefault("database.name", "mudbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("segmenter.prompt_timeout", "300ms")
	v.SetDefault("segmenter.check_interval", "100ms")
	v.SetDefault("segmenter.history_size", 100)

	v.SetDefault("classifier.learn_threshold", 0.6)
	v.SetDefault("classifier.fallback_threshold", 0.7)
	v.SetDefault("classifier.fallback_enabled", false)
	v.SetDefault("classifier.fallback_model", "claude-haiku-4-5")

	v.SetDefault("bot.tick_interval", "100ms")
	v.SetDefault("bot.flee_threshold_pct", 20)
	v.SetDefault("bot.rest_threshold_pct", 80)
	v.SetDefault("bot.max_deaths", 3)
	v.SetDefault("bot.auto_loot", true)
	v.SetDefault("bot.auto_buff", false)
	v.SetDefault("bot.target_priority", "weakest")
	v.SetDefault("bot.loot_commands", []string{"get all corpse"})
	v.SetDefault("bot.error_cooldown", "2s")

	v.SetDefault("scripting.instruction_limit", 0)
}
