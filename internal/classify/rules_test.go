package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bylins.yaml", `
rules:
  - type: mob_death
    confidence: 0.95
    patterns:
      - "смерт"
  - type: damage_dealt
    confidence: 0.9
    patterns:
      - "^Ты ударил (?P<target>.+?)\\."
`)

	groups, err := LoadRules(dir)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, EventMobDeath, groups[0].Type)
	assert.Equal(t, 0.95, groups[0].Confidence)
	assert.Equal(t, EventDamageDealt, groups[1].Type)
	require.Len(t, groups[1].Patterns, 1)
	assert.True(t, groups[1].Patterns[0].MatchString("Ты ударил волка."))
}

func TestLoadRules_EmptyDir(t *testing.T) {
	groups, err := LoadRules(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, groups)
}

func TestLoadRules_UnknownType(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bad.yaml", `
rules:
  - type: explosion
    confidence: 0.9
    patterns: ["boom"]
`)
	_, err := LoadRules(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explosion")
}

func TestLoadRules_BadConfidence(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bad.yaml", `
rules:
  - type: miss
    confidence: 1.5
    patterns: ["whiff"]
`)
	_, err := LoadRules(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence")
}

func TestLoadRules_BadPattern(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bad.yaml", `
rules:
  - type: miss
    confidence: 0.9
    patterns: ["[unclosed"]
`)
	_, err := LoadRules(dir)
	require.Error(t, err)
}

func TestLoadRules_MissingDir(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestIntensityFor(t *testing.T) {
	tests := []struct {
		adverb string
		want   Intensity
	}{
		{"barely", IntensityLight},
		{"lightly", IntensityLight},
		{"hard", IntensityMedium},
		{"very hard", IntensityHeavy},
		{"extremely hard", IntensityCritical},
		{"Extremely Hard", IntensityCritical},
		{"", IntensityMedium},
		{"weirdly", IntensityMedium},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, intensityFor(tc.adverb), "adverb %q", tc.adverb)
	}
}

func TestEventTypeRoundTrip(t *testing.T) {
	for typ, name := range eventTypeNames {
		parsed, err := ParseEventType(name)
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	_, err := ParseEventType("nonsense")
	require.Error(t, err)
}
