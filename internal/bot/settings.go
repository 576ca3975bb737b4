package bot

import (
	"fmt"
	"sync/atomic"

	"github.com/cory-johannsen/mudbot/internal/config"
)

// Settings holds the live bot configuration. The tick loop reads it every
// tick and operator commands replace it wholesale, so reads must never block
// behind a writer.
type Settings struct {
	ptr atomic.Pointer[config.BotConfig]
}

// NewSettings creates Settings seeded with cfg.
//
// Precondition: cfg must validate.
func NewSettings(cfg config.BotConfig) (*Settings, error) {
	s := &Settings{}
	if err := s.Replace(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active configuration by value.
func (s *Settings) Current() config.BotConfig {
	return *s.ptr.Load()
}

// Replace swaps in a new configuration after validating it.
//
// Postcondition: an invalid cfg leaves the active configuration unchanged.
func (s *Settings) Replace(cfg config.BotConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("bot.Settings.Replace: %w", err)
	}
	s.ptr.Store(&cfg)
	return nil
}
