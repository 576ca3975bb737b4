// Package parse extracts structured character status from game text: compact
// status prompts and multi-line character sheets.
//
// Every field is optional. The game omits fields that are zero or not
// applicable, so each field is extracted independently and a parse succeeds
// when any load-bearing field (level, current health, or stamina) was found.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mudbot/internal/game/world"
)

// Stats is a point-in-time snapshot of parsed character status.
// Nil pointer fields were absent from the parsed text.
type Stats struct {
	HP         *int
	MaxHP      *int
	Stamina    *int
	MaxStamina *int
	Level      *int
	Gold       *int
	// ExpToLevel is experience remaining to the next level, not a running
	// total: it counts down as the character gains experience.
	ExpToLevel *int
	// InCombat reports whether a combat-form prompt was parsed.
	InCombat bool
	// Target is the combat opponent's display name; empty out of combat.
	Target string
	// TargetCondition is the opponent's qualitative health ("awful", ...).
	TargetCondition string
	// OwnCondition is the character's own qualitative health.
	OwnCondition string
	// Exits are the movement directions visible in the prompt.
	Exits []world.Direction
}

// HealthPercent returns current health as a percentage of maximum.
//
// Postcondition: Returns (pct, true) only when both HP and MaxHP were parsed
// and MaxHP > 0. Derived, never stored.
func (s *Stats) HealthPercent() (int, bool) {
	if s.HP == nil || s.MaxHP == nil || *s.MaxHP <= 0 {
		return 0, false
	}
	return *s.HP * 100 / *s.MaxHP, true
}

// StaminaPercent returns current stamina as a percentage of maximum.
func (s *Stats) StaminaPercent() (int, bool) {
	if s.Stamina == nil || s.MaxStamina == nil || *s.MaxStamina <= 0 {
		return 0, false
	}
	return *s.Stamina * 100 / *s.MaxStamina, true
}

// loadBearing reports whether the snapshot carries at least one field that
// justifies treating the parse as successful.
func (s *Stats) loadBearing() bool {
	return s.Level != nil || s.HP != nil || s.Stamina != nil
}

// Prompt shapes, tried in order: the combat variant carries bracketed
// condition pairs for the player and the target; the non-combat variant
// carries level, gold, and exits. These literal patterns are payload data for
// one game dialect, not part of the algorithm.
var (
	combatPromptRe = regexp.MustCompile(
		`^(?P<hp>\d+)H(?: (?P<move>\d+)M)? \[(?P<self>[^:\]]+):(?P<selfcond>[^\]]+)\] \[(?P<target>[^:\]]+):(?P<targetcond>[^\]]+)\]`)
	statusPromptRe = regexp.MustCompile(
		`^(?P<hp>\d+)H(?: (?P<move>\d+)M)?(?: (?P<level>\d+)L)?(?: (?P<gold>\d+)G)?(?: Exits:(?P<exits>\S+)>)?`)
)

// Character sheet field patterns. Two shapes share them: a prose "brief"
// form and a tabular "full" form. Each entry is an ordered list of
// alternatives; the first match wins.
var sheetFieldRes = map[string][]*regexp.Regexp{
	"level": {
		regexp.MustCompile(`(?im)^\|?\s*level\s*[:=]\s*(\d+)`),
		regexp.MustCompile(`(?i)\blevel (\d+)`),
	},
	"hp": {
		regexp.MustCompile(`(?im)^\|?\s*hp\s*[:=]\s*(\d+)\s*/\s*(\d+)`),
		regexp.MustCompile(`(?i)\bhit points?\s*[:=]?\s*(\d+)\s*\(\s*(\d+)\s*\)`),
	},
	"stamina": {
		regexp.MustCompile(`(?im)^\|?\s*move(?:ment)?\s*[:=]\s*(\d+)\s*/\s*(\d+)`),
		regexp.MustCompile(`(?i)\bstamina\s*[:=]?\s*(\d+)\s*\(\s*(\d+)\s*\)`),
	},
	"exp": {
		regexp.MustCompile(`(?im)^\|?\s*exp(?:erience)?(?: to (?:lvl|level))?\s*[:=]\s*(\d+)`),
		regexp.MustCompile(`(?i)\bneed (\d+) exp`),
	},
	"gold": {
		regexp.MustCompile(`(?im)^\|?\s*gold\s*[:=]\s*(\d+)`),
		regexp.MustCompile(`(?i)\b(\d+) gold coins?`),
	},
}

// exitChars maps single-character exit tokens to directions.
var exitChars = map[rune]world.Direction{
	'n': world.North, 'N': world.North,
	's': world.South, 'S': world.South,
	'e': world.East, 'E': world.East,
	'w': world.West, 'W': world.West,
	'u': world.Up, 'U': world.Up, '^': world.Up,
	'd': world.Down, 'D': world.Down, 'v': world.Down,
}

// ParseExitsToken expands a compact exits token (e.g. "ns^" or "(n)s") into
// directions. Parenthesized characters denote closed doors and are included;
// unknown characters are skipped.
//
// Postcondition: Returns a non-nil slice without duplicates; may be empty.
func ParseExitsToken(token string) []world.Direction {
	seen := make(map[world.Direction]bool)
	out := make([]world.Direction, 0, len(token))
	for _, ch := range token {
		if ch == '(' || ch == ')' {
			continue
		}
		d, ok := exitChars[ch]
		if !ok || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// Extractor parses prompts and character sheets and diffs consecutive
// snapshots to emit semantic transitions.
//
// Safe for concurrent use; the previous snapshot is guarded by a mutex.
type Extractor struct {
	mu     sync.Mutex
	prev   *Stats
	logger *zap.Logger
}

// NewExtractor creates an Extractor with no parse history.
//
// Precondition: logger must be non-nil.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		panic("parse.NewExtractor: logger must not be nil")
	}
	return &Extractor{logger: logger}
}

// Parse extracts a snapshot from text — a single-line prompt or a multi-line
// character sheet — and returns it with the transitions implied by the
// previous snapshot.
//
// Postcondition: Returns (nil, nil, false) on a parse miss; misses are logged
// at debug level and never escalate.
func (e *Extractor) Parse(text string) (*Stats, []Transition, bool) {
	var s *Stats
	if strings.ContainsRune(strings.TrimRight(text, "\r\n"), '\n') {
		s = parseSheet(text)
	} else {
		s = parsePrompt(text)
	}
	if s == nil {
		e.logger.Debug("no status recognized", zap.String("text", text))
		return nil, nil, false
	}

	e.mu.Lock()
	trans := diff(e.prev, s)
	e.prev = s
	e.mu.Unlock()
	return s, trans, true
}

// Previous returns the last successfully parsed snapshot, or nil.
func (e *Extractor) Previous() *Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prev
}

// Reset discards the previous snapshot so the next parse emits no
// transitions.
func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prev = nil
}

// parsePrompt parses a compact single-line status prompt.
//
// Postcondition: Returns nil if neither prompt shape matched with a
// load-bearing field.
func parsePrompt(line string) *Stats {
	if m := matchNamed(combatPromptRe, line); m != nil {
		s := &Stats{InCombat: true}
		s.HP = intField(m, "hp")
		s.Stamina = intField(m, "move")
		s.Target = strings.TrimSpace(m["target"])
		s.TargetCondition = strings.TrimSpace(m["targetcond"])
		s.OwnCondition = strings.TrimSpace(m["selfcond"])
		if s.loadBearing() {
			return s
		}
		return nil
	}
	if m := matchNamed(statusPromptRe, line); m != nil {
		s := &Stats{}
		s.HP = intField(m, "hp")
		s.Stamina = intField(m, "move")
		s.Level = intField(m, "level")
		s.Gold = intField(m, "gold")
		if token := m["exits"]; token != "" {
			s.Exits = ParseExitsToken(token)
		}
		if s.loadBearing() {
			return s
		}
	}
	return nil
}

// parseSheet parses a multi-line character sheet block, brief or full form.
// Each field is attempted independently so partial sheets degrade gracefully.
func parseSheet(text string) *Stats {
	s := &Stats{}
	if m := firstMatch(sheetFieldRes["level"], text); m != nil {
		s.Level = intPtr(m[1])
	}
	if m := firstMatch(sheetFieldRes["hp"], text); m != nil {
		s.HP = intPtr(m[1])
		s.MaxHP = intPtr(m[2])
	}
	if m := firstMatch(sheetFieldRes["stamina"], text); m != nil {
		s.Stamina = intPtr(m[1])
		s.MaxStamina = intPtr(m[2])
	}
	if m := firstMatch(sheetFieldRes["exp"], text); m != nil {
		s.ExpToLevel = intPtr(m[1])
	}
	if m := firstMatch(sheetFieldRes["gold"], text); m != nil {
		s.Gold = intPtr(m[1])
	}
	if !s.loadBearing() {
		return nil
	}
	return s
}

func firstMatch(res []*regexp.Regexp, text string) []string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

func matchNamed(re *regexp.Regexp, text string) map[string]string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	return out
}

func intField(m map[string]string, key string) *int {
	v, ok := m[key]
	if !ok || v == "" {
		return nil
	}
	return intPtr(v)
}

func intPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
