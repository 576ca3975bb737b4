// Package world provides the explored-world model: rooms, directional exits,
// the room graph, and shortest-path search over it.
package world

import "strings"

// Direction represents a compass direction or vertical movement.
type Direction string

// Standard compass directions and vertical movements.
const (
	North     Direction = "north"
	South     Direction = "south"
	East      Direction = "east"
	West      Direction = "west"
	Northeast Direction = "northeast"
	Northwest Direction = "northwest"
	Southeast Direction = "southeast"
	Southwest Direction = "southwest"
	Up        Direction = "up"
	Down      Direction = "down"
)

// StandardDirections contains all standard compass and vertical directions.
var StandardDirections = []Direction{
	North, South, East, West,
	Northeast, Northwest, Southeast, Southwest,
	Up, Down,
}

// directionAliases maps player-issued movement command text to directions.
var directionAliases = map[string]Direction{
	"north": North, "n": North,
	"south": South, "s": South,
	"east": East, "e": East,
	"west": West, "w": West,
	"northeast": Northeast, "ne": Northeast,
	"northwest": Northwest, "nw": Northwest,
	"southeast": Southeast, "se": Southeast,
	"southwest": Southwest, "sw": Southwest,
	"up": Up, "u": Up,
	"down": Down, "d": Down,
}

// ParseDirection resolves a movement command or alias to a Direction.
//
// Postcondition: Returns (direction, true) for any standard direction name or
// alias, case-insensitively, or ("", false) otherwise.
func ParseDirection(s string) (Direction, bool) {
	d, ok := directionAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// IsStandard reports whether d is one of the ten standard directions.
func (d Direction) IsStandard() bool {
	for _, sd := range StandardDirections {
		if d == sd {
			return true
		}
	}
	return false
}

// Opposite returns the syntactic opposite of a standard direction.
// Opposite is an involution: Opposite(Opposite(d)) == d for all standard d.
//
// Precondition: d should be a standard direction for a meaningful result.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Northeast:
		return Southwest
	case Southwest:
		return Northeast
	case Northwest:
		return Southeast
	case Southeast:
		return Northwest
	case Up:
		return Down
	case Down:
		return Up
	default:
		return ""
	}
}

// Exit represents a passage out of a room.
//
// An empty TargetRoom marks a known-but-unexplored exit: the room is known to
// open in that direction, but the character has not yet walked through it.
type Exit struct {
	// TargetRoom is the ID of the destination room; empty = unexplored.
	TargetRoom string
	// Door indicates the exit is closed by a door.
	Door bool
	// Locked indicates the door requires a key.
	Locked bool
}

// Explored reports whether the exit's destination is known.
func (e Exit) Explored() bool {
	return e.TargetRoom != ""
}

// Room represents an explored location in the game world.
//
// Invariant: a room never contains an exit whose target equals its own ID.
type Room struct {
	// ID is the stable identifier supplied by the game protocol.
	ID string
	// Name is the display name of the room.
	Name string
	// Notes is operator free text attached to the room.
	Notes string
	// Zone identifies the area the room belongs to.
	Zone string
	// Terrain is an optional terrain tag ("city", "forest", ...).
	Terrain string
	// Tags is a set of categorization labels.
	Tags map[string]bool
	// Visited reports whether the character has stood in this room.
	Visited bool
	// Exits maps directions to known passages out of this room.
	Exits map[Direction]Exit
}

// NewRoom creates a room with no exits.
//
// Precondition: id must be non-empty; identifiers come from the game protocol
// and are never synthesized by the client.
func NewRoom(id, name string) *Room {
	return &Room{
		ID:    id,
		Name:  name,
		Tags:  make(map[string]bool),
		Exits: make(map[Direction]Exit),
	}
}

// SetExit records an explored exit to targetID.
//
// Postcondition: Returns false without modifying the room if targetID equals
// the room's own ID (self-loops are data-entry artifacts) or is empty.
func (r *Room) SetExit(dir Direction, targetID string) bool {
	if targetID == "" || targetID == r.ID {
		return false
	}
	e := r.Exits[dir]
	e.TargetRoom = targetID
	r.Exits[dir] = e
	return true
}

// SetUnexploredExit records a placeholder exit with no target.
//
// Postcondition: If an exit already exists in dir, it is left untouched —
// known information is never downgraded to unknown. Returns true if a
// placeholder was recorded.
func (r *Room) SetUnexploredExit(dir Direction) bool {
	if _, exists := r.Exits[dir]; exists {
		return false
	}
	r.Exits[dir] = Exit{}
	return true
}

// ExitFor returns the exit in the given direction, if one exists.
func (r *Room) ExitFor(dir Direction) (Exit, bool) {
	e, ok := r.Exits[dir]
	return e, ok
}

// UnexploredDirections returns the directions of all placeholder exits.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (r *Room) UnexploredDirections() []Direction {
	out := make([]Direction, 0, len(r.Exits))
	for dir, e := range r.Exits {
		if !e.Explored() {
			out = append(out, dir)
		}
	}
	return out
}

// clone returns a deep copy of the room, so callers outside the graph's lock
// never observe later mutations.
func (r *Room) clone() *Room {
	cp := &Room{
		ID:      r.ID,
		Name:    r.Name,
		Notes:   r.Notes,
		Zone:    r.Zone,
		Terrain: r.Terrain,
		Visited: r.Visited,
		Tags:    make(map[string]bool, len(r.Tags)),
		Exits:   make(map[Direction]Exit, len(r.Exits)),
	}
	for t := range r.Tags {
		cp.Tags[t] = true
	}
	for d, e := range r.Exits {
		cp.Exits[d] = e
	}
	return cp
}
