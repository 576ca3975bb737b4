package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleGroup is an ordered list of alternative patterns for one event type.
// The same semantic event has many surface variants, so groups are tried in
// declaration order and the first matching pattern in the first matching
// group wins.
//
// Invariant: Confidence is in [0,1] and fixed per group.
type RuleGroup struct {
	Type       EventType
	Confidence float64
	Patterns   []*regexp.Regexp
}

// adverbIntensity maps the game's qualitative damage adverbs to coarse
// buckets. Fixed lookup; an unlisted or absent adverb buckets as medium.
var adverbIntensity = map[string]Intensity{
	"barely":         IntensityLight,
	"lightly":        IntensityLight,
	"hard":           IntensityMedium,
	"very hard":      IntensityHeavy,
	"extremely hard": IntensityCritical,
	"brutally":       IntensityCritical,
}

// intensityFor resolves a captured adverb to its bucket.
func intensityFor(adverb string) Intensity {
	if i, ok := adverbIntensity[strings.ToLower(strings.TrimSpace(adverb))]; ok {
		return i
	}
	return IntensityMedium
}

// DefaultRules returns the built-in rule table: one group per event type in
// fixed priority order. The patterns are payload data for one game dialect
// and can be replaced wholesale from YAML via LoadRules.
func DefaultRules() []RuleGroup {
	return []RuleGroup{
		{
			Type:       EventDamageDealt,
			Confidence: 0.9,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^you (?:hit|slash|pierce|pound|sting|whip|claw|bite|crush|smite) (?:the )?(?P<target>[\w' -]+?)(?: (?P<adverb>extremely hard|very hard|hard|barely|lightly|brutally))?[.!]`),
				regexp.MustCompile(`(?i)^your (?:\w+ )?(?:wounds|mauls|decimates|devastates|obliterates) (?:the )?(?P<target>[\w' -]+)[.!]`),
			},
		},
		{
			Type:       EventDamageReceived,
			Confidence: 0.9,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^(?:the )?(?P<source>[\w' -]+?) (?:hits|slashes|pierces|pounds|stings|whips|claws|bites|crushes|smites) you(?: (?P<adverb>extremely hard|very hard|hard|barely|lightly|brutally))?[.!]`),
				regexp.MustCompile(`(?i)^(?:the )?(?P<source>[\w' -]+?)'s (?:\w+ )?(?:wounds|mauls|decimates|devastates|obliterates) you[.!]`),
			},
		},
		{
			Type:       EventMiss,
			Confidence: 0.95,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^you miss (?:the )?(?P<target>[\w' -]+)[.!]`),
				regexp.MustCompile(`(?i)^(?:the )?(?P<source>[\w' -]+?) misses you[.!]`),
			},
		},
		{
			Type:       EventMobDeath,
			Confidence: 0.95,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^(?:the )?(?P<target>[\w' -]+?) is dead!`),
				regexp.MustCompile(`(?i)^(?:the )?(?P<target>[\w' -]+?) falls down, dead[.!]`),
			},
		},
		{
			Type:       EventPlayerDeath,
			Confidence: 0.95,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^you are dead`),
				regexp.MustCompile(`(?i)^you have been killed`),
			},
		},
		{
			Type:       EventExperienceGain,
			Confidence: 0.99,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^you (?:receive|gain) (?P<amount>\d+) experience`),
			},
		},
		{
			Type:       EventLevelUp,
			Confidence: 0.99,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^you (?:rise|advance) (?:a|to) level`),
				regexp.MustCompile(`(?i)^you feel more experienced`),
			},
		},
		{
			Type:       EventFled,
			Confidence: 0.9,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^you flee head over heels`),
				regexp.MustCompile(`(?i)^(?:the )?(?P<source>[\w' -]+?) panics, and attempts to flee`),
			},
		},
	}
}

// yamlRuleGroup is the on-disk form of one rule group.
type yamlRuleGroup struct {
	Type       string   `yaml:"type"`
	Confidence float64  `yaml:"confidence"`
	Patterns   []string `yaml:"patterns"`
}

// yamlRuleFile wraps the YAML top-level key.
type yamlRuleFile struct {
	Rules []yamlRuleGroup `yaml:"rules"`
}

// compile validates and compiles one on-disk rule group.
//
// Postcondition: nil error guarantees a known event type, confidence in
// [0,1], and at least one compiled pattern.
func (g yamlRuleGroup) compile(file string) (RuleGroup, error) {
	t, err := ParseEventType(g.Type)
	if err != nil {
		return RuleGroup{}, fmt.Errorf("classify.LoadRules: %s: %w", file, err)
	}
	if g.Confidence < 0 || g.Confidence > 1 {
		return RuleGroup{}, fmt.Errorf("classify.LoadRules: %s: group %q confidence must be in [0,1], got %v", file, g.Type, g.Confidence)
	}
	if len(g.Patterns) == 0 {
		return RuleGroup{}, fmt.Errorf("classify.LoadRules: %s: group %q has no patterns", file, g.Type)
	}
	out := RuleGroup{Type: t, Confidence: g.Confidence}
	for _, p := range g.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return RuleGroup{}, fmt.Errorf("classify.LoadRules: %s: group %q pattern %q: %w", file, g.Type, p, err)
		}
		out.Patterns = append(out.Patterns, re)
	}
	return out, nil
}

// LoadRules reads all *.yaml files from dir and returns the parsed rule
// groups in file order. A non-empty result replaces the built-in table.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns (nil, nil) if dir contains no .yaml files; callers
// fall back to DefaultRules in that case.
func LoadRules(dir string) ([]RuleGroup, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("classify.LoadRules: reading %q: %w", dir, err)
	}
	var groups []RuleGroup
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("classify.LoadRules: reading %s: %w", e.Name(), err)
		}
		var f yamlRuleFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("classify.LoadRules: parsing %s: %w", e.Name(), err)
		}
		for _, g := range f.Rules {
			compiled, err := g.compile(e.Name())
			if err != nil {
				return nil, err
			}
			groups = append(groups, compiled)
		}
	}
	return groups, nil
}
