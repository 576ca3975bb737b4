package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		"north": North,
		"N":     North,
		" se ":  Southeast,
		"u":     Up,
		"down":  Down,
	}
	for input, want := range cases {
		got, ok := ParseDirection(input)
		assert.True(t, ok, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, ok := ParseDirection("sideways")
	assert.False(t, ok)
	_, ok = ParseDirection("")
	assert.False(t, ok)
}

func TestOppositePairs(t *testing.T) {
	assert.Equal(t, South, North.Opposite())
	assert.Equal(t, North, South.Opposite())
	assert.Equal(t, West, East.Opposite())
	assert.Equal(t, Northeast, Southwest.Opposite())
	assert.Equal(t, Down, Up.Opposite())
	assert.Equal(t, Direction(""), Direction("portal").Opposite())
}

func TestPropertyOppositeIsInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := rapid.SampledFrom(StandardDirections).Draw(t, "direction")
		if d.Opposite().Opposite() != d {
			t.Fatalf("opposite(opposite(%s)) = %s", d, d.Opposite().Opposite())
		}
	})
}

func TestRoomSetExit_RejectsSelfLoop(t *testing.T) {
	r := NewRoom("room5", "Inn")
	assert.False(t, r.SetExit(North, "room5"))
	_, exists := r.ExitFor(North)
	assert.False(t, exists)
}

func TestRoomSetExit_RejectsEmptyTarget(t *testing.T) {
	r := NewRoom("room5", "Inn")
	assert.False(t, r.SetExit(North, ""))
	assert.Empty(t, r.Exits)
}

func TestRoomSetUnexploredExit_NeverDowngrades(t *testing.T) {
	r := NewRoom("a", "A")
	assert.True(t, r.SetExit(East, "b"))

	assert.False(t, r.SetUnexploredExit(East))
	e, _ := r.ExitFor(East)
	assert.Equal(t, "b", e.TargetRoom)

	assert.True(t, r.SetUnexploredExit(West))
	e, _ = r.ExitFor(West)
	assert.False(t, e.Explored())
}

func TestRoomUnexploredDirections(t *testing.T) {
	r := NewRoom("a", "A")
	r.SetExit(East, "b")
	r.SetUnexploredExit(North)
	r.SetUnexploredExit(South)

	dirs := r.UnexploredDirections()
	assert.Len(t, dirs, 2)
	assert.Contains(t, dirs, North)
	assert.Contains(t, dirs, South)
}

func TestRoomClone_Isolated(t *testing.T) {
	r := NewRoom("a", "A")
	r.SetExit(East, "b")
	r.Tags["grind"] = true

	cp := r.clone()
	cp.SetExit(West, "c")
	cp.Tags["safe"] = true

	_, exists := r.ExitFor(West)
	assert.False(t, exists)
	assert.False(t, r.Tags["safe"])
}
