package classify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mudbot/internal/config"
)

// ErrLowConfidence is returned by LearnPattern for confidence below the
// learn threshold.
var ErrLowConfidence = errors.New("classify: confidence below learn threshold")

// Store persists learned message patterns across sessions.
type Store interface {
	// LoadPatterns returns every learned message -> type mapping.
	LoadPatterns(ctx context.Context) (map[string]EventType, error)
	// SavePattern inserts or overwrites one learned mapping.
	SavePattern(ctx context.Context, message string, t EventType, confidence float64) error
	// DeletePattern removes one learned mapping; absent is not an error.
	DeletePattern(ctx context.Context, message string) error
}

// FallbackClassifier is the pluggable third tier, consulted only when the
// cache and the rule table both come up empty.
type FallbackClassifier interface {
	Classify(ctx context.Context, message string) (*CombatEvent, error)
}

// Classifier classifies combat messages through three tiers: exact cache,
// rule table, fallback. Safe for concurrent use.
//
// Invariant: every cache entry was confirmed at or above the learn threshold
// or accepted from the fallback at or above the fallback threshold.
type Classifier struct {
	mu       sync.RWMutex
	cache    map[string]EventType
	groups   []RuleGroup
	store    Store
	fallback FallbackClassifier
	cfg      config.ClassifierConfig
	logger   *zap.Logger
}

// NewClassifier creates a Classifier over the given rule groups. store and
// fallback may be nil, disabling persistence and the third tier respectively.
//
// Precondition: logger must not be nil, groups must not be empty.
func NewClassifier(cfg config.ClassifierConfig, groups []RuleGroup, store Store, fallback FallbackClassifier, logger *zap.Logger) *Classifier {
	if logger == nil {
		panic("classify.NewClassifier: logger must not be nil")
	}
	if len(groups) == 0 {
		panic("classify.NewClassifier: groups must not be empty")
	}
	return &Classifier{
		cache:    make(map[string]EventType),
		groups:   groups,
		store:    store,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger,
	}
}

// LoadCache replaces the in-memory cache with the store's contents. Called
// once at startup; a nil store leaves the cache empty.
func (c *Classifier) LoadCache(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	patterns, err := c.store.LoadPatterns(ctx)
	if err != nil {
		return fmt.Errorf("classify.LoadCache: %w", err)
	}
	c.mu.Lock()
	c.cache = patterns
	if c.cache == nil {
		c.cache = make(map[string]EventType)
	}
	c.mu.Unlock()
	c.logger.Info("classifier cache loaded", zap.Int("patterns", len(patterns)))
	return nil
}

// CacheSize returns the number of learned cache entries.
func (c *Classifier) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Classify runs the three tiers in order and returns the first success.
//
// Postcondition: Returns (nil, nil) when no tier classified the message.
// A non-nil error is only possible from the fallback tier.
func (c *Classifier) Classify(ctx context.Context, message string) (*CombatEvent, error) {
	if ev := c.classifyCached(message); ev != nil {
		return ev, nil
	}
	if ev := c.classifyRules(message); ev != nil {
		return ev, nil
	}
	return c.classifyFallback(ctx, message)
}

// classifyCached is tier 1: the exact-match cache. Repeated combat messages
// recur verbatim every round, so a hit here is the common case.
func (c *Classifier) classifyCached(message string) *CombatEvent {
	c.mu.RLock()
	t, ok := c.cache[message]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return &CombatEvent{
		Type:       t,
		Confidence: 1.0,
		Origin:     OriginCache,
		Message:    message,
	}
}

// classifyRules is tier 2: the ordered rule table. First matching pattern in
// the first matching group wins; named captures populate the event.
func (c *Classifier) classifyRules(message string) *CombatEvent {
	for _, g := range c.groups {
		for _, re := range g.Patterns {
			m := re.FindStringSubmatch(message)
			if m == nil {
				continue
			}
			ev := &CombatEvent{
				Type:       g.Type,
				Confidence: g.Confidence,
				Origin:     OriginRule,
				Message:    message,
			}
			for i, name := range re.SubexpNames() {
				if i == 0 || i >= len(m) || m[i] == "" {
					continue
				}
				switch {
				case name == "source":
					ev.Source = m[i]
				case name == "target":
					ev.Target = m[i]
				// Adverbs can sit before or after the verb, so patterns
				// may carry several adverb groups ("adverb", "adverb2").
				case strings.HasPrefix(name, "adverb"):
					ev.Intensity = intensityFor(m[i])
				case name == "amount":
					ev.Amount, _ = strconv.Atoi(m[i])
				}
			}
			if ev.Intensity == IntensityNone && (g.Type == EventDamageDealt || g.Type == EventDamageReceived) {
				ev.Intensity = IntensityMedium
			}
			return ev
		}
	}
	return nil
}

// classifyFallback is tier 3. An accepted answer is written back into the
// cache so tier 1 catches the same message next round.
func (c *Classifier) classifyFallback(ctx context.Context, message string) (*CombatEvent, error) {
	if c.fallback == nil || !c.cfg.FallbackEnabled {
		return nil, nil
	}
	ev, err := c.fallback.Classify(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("classify.Classify: fallback: %w", err)
	}
	if ev == nil || ev.Type == EventUnknown || ev.Confidence < c.cfg.FallbackThreshold {
		if ev != nil {
			c.logger.Debug("fallback answer rejected",
				zap.String("message", message),
				zap.Float64("confidence", ev.Confidence),
				zap.Float64("threshold", c.cfg.FallbackThreshold))
		}
		return nil, nil
	}
	ev.Origin = OriginFallback
	ev.Message = message
	c.learn(ctx, message, ev.Type, ev.Confidence)
	return ev, nil
}

// LearnPattern inserts or overwrites a cache entry.
//
// Postcondition: Returns ErrLowConfidence and leaves the cache unchanged when
// confidence is below the configured learn threshold. EventUnknown is never
// cached: a hit would shadow the rule and fallback tiers for that message.
func (c *Classifier) LearnPattern(ctx context.Context, message string, t EventType, confidence float64) error {
	if t == EventUnknown {
		return fmt.Errorf("classify.LearnPattern: %q: cannot learn %s", message, EventUnknown)
	}
	if confidence < c.cfg.LearnThreshold {
		return fmt.Errorf("classify.LearnPattern: %q at %v: %w", message, confidence, ErrLowConfidence)
	}
	c.learn(ctx, message, t, confidence)
	return nil
}

// learn updates the cache and, when a store is present, persists the entry.
// Persistence failure is logged, not fatal: the in-memory entry still serves
// this session.
func (c *Classifier) learn(ctx context.Context, message string, t EventType, confidence float64) {
	c.mu.Lock()
	c.cache[message] = t
	c.mu.Unlock()
	if c.store == nil {
		return
	}
	if err := c.store.SavePattern(ctx, message, t, confidence); err != nil {
		c.logger.Warn("failed to persist learned pattern",
			zap.String("message", message),
			zap.Error(err))
	}
}

// MarkAsWrong deletes a cache entry and its persisted copy.
func (c *Classifier) MarkAsWrong(ctx context.Context, message string) error {
	c.mu.Lock()
	delete(c.cache, message)
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	if err := c.store.DeletePattern(ctx, message); err != nil {
		return fmt.Errorf("classify.MarkAsWrong: %q: %w", message, err)
	}
	return nil
}

// ProvideFeedback is sugar over LearnPattern and MarkAsWrong: feedback with
// a known type learns it at full confidence, a correction without one deletes
// the entry, and a bare confirmation is a no-op (there is nothing to learn,
// and caching EventUnknown would shadow the rule tier for that message).
func (c *Classifier) ProvideFeedback(ctx context.Context, message string, correct EventType, isCorrect bool) error {
	if correct != EventUnknown {
		return c.LearnPattern(ctx, message, correct, 1.0)
	}
	if isCorrect {
		return nil
	}
	return c.MarkAsWrong(ctx, message)
}
