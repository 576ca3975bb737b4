package world

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrRoomNotFound is returned when a room lookup yields no result.
var ErrRoomNotFound = errors.New("room not found")

// ErrNoRoomID is returned when a new room would be required but the game
// protocol supplied no identifier for it.
var ErrNoRoomID = errors.New("no room identifier supplied")

// Graph is the mutable directed graph of explored rooms.
//
// All methods are safe for concurrent use. Accessors return deep copies, so
// readers never observe a half-updated room.
type Graph struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	current string
	path    activePath
	logger  *zap.Logger

	// onEnter callbacks fire synchronously inside HandleMovement, in the
	// order moves were issued.
	onEnter []func(Room)
}

// NewGraph creates an empty room graph.
//
// Precondition: logger must be non-nil.
func NewGraph(logger *zap.Logger) *Graph {
	if logger == nil {
		panic("world.NewGraph: logger must not be nil")
	}
	return &Graph{
		rooms:  make(map[string]*Room),
		logger: logger,
	}
}

// OnRoomEnter registers a callback fired whenever HandleMovement resolves a
// new current room. Callbacks run synchronously with the move that caused
// them.
//
// Precondition: fn must not be nil. Register before feeding movements.
func (g *Graph) OnRoomEnter(fn func(Room)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onEnter = append(g.onEnter, fn)
}

// CreateRoom inserts a new room, or merges into an existing one.
//
// Insertion is idempotent by ID: re-adding replaces the mutable fields (name,
// zone, terrain) but preserves existing exits, which callers grow
// incrementally via AddExit/AddUnexploredExit.
//
// Precondition: id must be non-empty.
// Postcondition: Returns a copy of the stored room.
func (g *Graph) CreateRoom(id, name string) (Room, error) {
	if id == "" {
		return Room{}, fmt.Errorf("world.CreateRoom: %w", ErrNoRoomID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.upsertLocked(id, name)
	return *r.clone(), nil
}

// upsertLocked returns the room for id, creating or merging as needed.
// Caller must hold g.mu.
func (g *Graph) upsertLocked(id, name string) *Room {
	if r, ok := g.rooms[id]; ok {
		if name != "" {
			r.Name = name
		}
		return r
	}
	r := NewRoom(id, name)
	g.rooms[id] = r
	return r
}

// Room returns a copy of the room with the given ID.
func (g *Graph) Room(id string) (Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	if !ok {
		return Room{}, false
	}
	return *r.clone(), true
}

// RoomCount returns the number of rooms in the graph.
func (g *Graph) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// CurrentRoom returns a copy of the room the character currently occupies.
func (g *Graph) CurrentRoom() (Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == "" {
		return Room{}, false
	}
	r, ok := g.rooms[g.current]
	if !ok {
		return Room{}, false
	}
	return *r.clone(), true
}

// SetCurrentRoom marks id as the character's current location.
//
// Postcondition: Returns ErrRoomNotFound if the room is unknown.
func (g *Graph) SetCurrentRoom(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return fmt.Errorf("world.SetCurrentRoom: %q: %w", id, ErrRoomNotFound)
	}
	r.Visited = true
	g.current = id
	return nil
}

// SetZone assigns a zone tag to a room.
func (g *Graph) SetZone(id, zone string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return fmt.Errorf("world.SetZone: %q: %w", id, ErrRoomNotFound)
	}
	r.Zone = zone
	return nil
}

// SetTerrain assigns a terrain tag to a room.
func (g *Graph) SetTerrain(id, terrain string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return fmt.Errorf("world.SetTerrain: %q: %w", id, ErrRoomNotFound)
	}
	r.Terrain = terrain
	return nil
}

// SetNotes attaches operator notes to a room.
func (g *Graph) SetNotes(id, notes string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return fmt.Errorf("world.SetNotes: %q: %w", id, ErrRoomNotFound)
	}
	r.Notes = notes
	return nil
}

// Tag adds a categorization tag to a room.
func (g *Graph) Tag(id, tag string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return fmt.Errorf("world.Tag: %q: %w", id, ErrRoomNotFound)
	}
	r.Tags[tag] = true
	return nil
}

// Untag removes a categorization tag from a room.
func (g *Graph) Untag(id, tag string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return fmt.Errorf("world.Untag: %q: %w", id, ErrRoomNotFound)
	}
	delete(r.Tags, tag)
	return nil
}

// AddExit records an explored exit from roomID to targetID.
//
// A self-loop (targetID == roomID) is silently rejected with a warning log;
// it is always a data-entry artifact and must not be stored.
func (g *Graph) AddExit(roomID string, dir Direction, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return fmt.Errorf("world.AddExit: %q: %w", roomID, ErrRoomNotFound)
	}
	if targetID == roomID {
		g.logger.Warn("rejecting self-loop exit",
			zap.String("room", roomID),
			zap.String("direction", string(dir)),
		)
		return nil
	}
	r.SetExit(dir, targetID)
	return nil
}

// AddUnexploredExit records a placeholder exit if none exists in dir.
// An exit that already has a concrete target is left untouched.
func (g *Graph) AddUnexploredExit(roomID string, dir Direction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return fmt.Errorf("world.AddUnexploredExit: %q: %w", roomID, ErrRoomNotFound)
	}
	r.SetUnexploredExit(dir)
	return nil
}

// AddUnexploredExits records placeholder exits for every direction in dirs.
func (g *Graph) AddUnexploredExits(roomID string, dirs []Direction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return fmt.Errorf("world.AddUnexploredExits: %q: %w", roomID, ErrRoomNotFound)
	}
	for _, dir := range dirs {
		r.SetUnexploredExit(dir)
	}
	return nil
}

// DeleteRoom removes a room. Exits in other rooms that targeted it are
// downgraded to unexplored placeholders rather than removed: the opening is
// still known to exist even if its destination no longer does.
func (g *Graph) DeleteRoom(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[id]; !ok {
		return fmt.Errorf("world.DeleteRoom: %q: %w", id, ErrRoomNotFound)
	}
	delete(g.rooms, id)
	for _, r := range g.rooms {
		for dir, e := range r.Exits {
			if e.TargetRoom == id {
				e.TargetRoom = ""
				r.Exits[dir] = e
			}
		}
	}
	if g.current == id {
		g.current = ""
	}
	return nil
}

// SearchRooms returns copies of all rooms whose ID matches q exactly or whose
// name contains q case-insensitively.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (g *Graph) SearchRooms(q string) []Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	needle := strings.ToLower(q)
	out := make([]Room, 0, 4)
	for _, r := range g.rooms {
		if r.ID == q || strings.Contains(strings.ToLower(r.Name), needle) {
			out = append(out, *r.clone())
		}
	}
	return out
}

// HandleMovement integrates one observed move into the graph.
//
// dir is the direction just moved, name and visibleExits describe the room
// arrived in, and roomID is the stable identifier from the game protocol.
// An existing room is merged by ID; a new room strictly requires roomID
// (identifiers are never synthesized — MUD topology is not a Euclidean grid,
// and coordinate-based dedup would merge unrelated rooms).
//
// Postcondition: On success, both directions of the traversed edge are
// recorded — dir out of the room just left, and dir.Opposite() back from the
// new room — the new room is current and marked visited, and room-enter
// callbacks have fired.
func (g *Graph) HandleMovement(dir Direction, name string, visibleExits []Direction, roomID string) (Room, error) {
	g.mu.Lock()

	from := g.rooms[g.current]

	// Resolve the destination: explicit ID first, then the exit the
	// character walked through.
	targetID := roomID
	if targetID == "" && from != nil {
		if e, ok := from.ExitFor(dir); ok && e.Explored() {
			targetID = e.TargetRoom
		}
	}
	if targetID == "" {
		g.mu.Unlock()
		return Room{}, fmt.Errorf("world.HandleMovement: direction %q: %w", dir, ErrNoRoomID)
	}

	to := g.upsertLocked(targetID, name)
	to.Visited = true
	for _, d := range visibleExits {
		to.SetUnexploredExit(d)
	}

	if from != nil && from.ID != to.ID {
		from.SetExit(dir, to.ID)
		if opp := dir.Opposite(); opp != "" {
			to.SetExit(opp, from.ID)
		}
	}

	prevID := g.current
	g.current = to.ID
	g.advancePathLocked(prevID, to.ID, dir)

	snapshot := *to.clone()
	callbacks := make([]func(Room), len(g.onEnter))
	copy(callbacks, g.onEnter)
	g.mu.Unlock()

	for _, fn := range callbacks {
		fn(snapshot)
	}
	return snapshot, nil
}

// Rooms returns copies of every room in the graph, for persistence and
// diagnostics.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (g *Graph) Rooms() []Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, *r.clone())
	}
	return out
}

// Load replaces the graph contents with the given rooms, dropping any
// self-loop exits found in the stored data.
//
// Postcondition: The current room and any active path are cleared.
func (g *Graph) Load(rooms []Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms = make(map[string]*Room, len(rooms))
	for i := range rooms {
		r := rooms[i].clone()
		for dir, e := range r.Exits {
			if e.TargetRoom == r.ID {
				g.logger.Warn("dropping stored self-loop exit",
					zap.String("room", r.ID),
					zap.String("direction", string(dir)),
				)
				delete(r.Exits, dir)
			}
		}
		g.rooms[r.ID] = r
	}
	g.current = ""
	g.path = activePath{}
}
