// Package classify turns raw combat narrative lines into structured combat
// events using a three-tier strategy: an exact-match cache of previously
// confirmed messages, ordered regex rule groups, and an optional pluggable
// fallback classifier whose accepted answers are learned back into the cache.
package classify

import "fmt"

// EventType identifies the semantic category of a combat message.
type EventType int

// Combat event categories.
const (
	EventUnknown EventType = iota
	EventDamageDealt
	EventDamageReceived
	EventMiss
	EventMobDeath
	EventPlayerDeath
	EventFled
	EventExperienceGain
	EventLevelUp
)

var eventTypeNames = map[EventType]string{
	EventUnknown:        "unknown",
	EventDamageDealt:    "damage_dealt",
	EventDamageReceived: "damage_received",
	EventMiss:           "miss",
	EventMobDeath:       "mob_death",
	EventPlayerDeath:    "player_death",
	EventFled:           "fled",
	EventExperienceGain: "experience_gain",
	EventLevelUp:        "level_up",
}

// String returns the stable wire name of the event type, used in YAML rule
// tables and in the pattern store.
func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseEventType resolves a wire name back to its EventType.
//
// Postcondition: Returns an error for names not produced by String.
func ParseEventType(name string) (EventType, error) {
	for t, n := range eventTypeNames {
		if n == name {
			return t, nil
		}
	}
	return EventUnknown, fmt.Errorf("classify.ParseEventType: unknown event type %q", name)
}

// Intensity is a coarse damage bucket derived from the qualitative adverbs
// the game attaches to hits. It is a fixed keyword lookup, not a measurement.
type Intensity int

// Damage intensity buckets.
const (
	IntensityNone Intensity = iota
	IntensityLight
	IntensityMedium
	IntensityHeavy
	IntensityCritical
)

// String returns the intensity bucket name.
func (i Intensity) String() string {
	switch i {
	case IntensityLight:
		return "light"
	case IntensityMedium:
		return "medium"
	case IntensityHeavy:
		return "heavy"
	case IntensityCritical:
		return "critical"
	default:
		return "none"
	}
}

// ParseIntensity resolves an intensity bucket name.
func ParseIntensity(name string) (Intensity, error) {
	switch name {
	case "none", "":
		return IntensityNone, nil
	case "light":
		return IntensityLight, nil
	case "medium":
		return IntensityMedium, nil
	case "heavy":
		return IntensityHeavy, nil
	case "critical":
		return IntensityCritical, nil
	}
	return IntensityNone, fmt.Errorf("classify.ParseIntensity: unknown intensity %q", name)
}

// Origin records which tier produced a classification.
type Origin string

// Classification origins.
const (
	OriginCache    Origin = "cache"
	OriginRule     Origin = "rule"
	OriginFallback Origin = "fallback"
)

// CombatEvent is one classified combat message.
type CombatEvent struct {
	Type EventType
	// Source is the acting party when the message names one.
	Source string
	// Target is the receiving party when the message names one.
	Target string
	// Intensity is the damage bucket for damage events; IntensityNone otherwise.
	Intensity Intensity
	// Amount is the numeric quantity for experience events; zero otherwise.
	Amount int
	// Confidence is in [0,1]: 1.0 for cache hits, a fixed per-category
	// constant for rule matches, the fallback's own estimate otherwise.
	Confidence float64
	// Origin is the tier that produced this event.
	Origin Origin
	// Message is the raw text that was classified.
	Message string
}
