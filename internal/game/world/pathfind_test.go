package world

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// corridorGraph builds A→(north)→B→(north)→C by observed movement, which
// also populates the reverse exits.
func corridorGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph(zap.NewNop())
	_, err := g.CreateRoom("A", "Room A")
	require.NoError(t, err)
	require.NoError(t, g.SetCurrentRoom("A"))
	_, err = g.HandleMovement(North, "Room B", nil, "B")
	require.NoError(t, err)
	_, err = g.HandleMovement(North, "Room C", nil, "C")
	require.NoError(t, err)
	return g
}

func TestFindPath_Corridor(t *testing.T) {
	g := corridorGraph(t)

	assert.Equal(t, []Direction{North, North}, g.FindPath("A", "C"))
	assert.Equal(t, []Direction{South, South}, g.FindPath("C", "A"))
	assert.Equal(t, []Direction{}, g.FindPath("B", "B"))
}

func TestFindPath_Disconnected(t *testing.T) {
	g := corridorGraph(t)
	_, err := g.CreateRoom("island", "Island")
	require.NoError(t, err)

	assert.Nil(t, g.FindPath("A", "island"))
	assert.Nil(t, g.FindPathAStar("A", "island"))
	assert.Nil(t, g.FindPath("A", "missing"))
	assert.Nil(t, g.FindPath("missing", "A"))
}

func TestFindPath_IgnoresUnexploredExits(t *testing.T) {
	g := corridorGraph(t)
	require.NoError(t, g.AddUnexploredExit("A", East))

	// The unexplored opening must not be traversed.
	assert.Equal(t, []Direction{North, North}, g.FindPath("A", "C"))
}

func TestFindPathAStar_Corridor(t *testing.T) {
	g := corridorGraph(t)

	assert.Equal(t, []Direction{North, North}, g.FindPathAStar("A", "C"))
	assert.Equal(t, []Direction{South, South}, g.FindPathAStar("C", "A"))
	assert.Equal(t, []Direction{}, g.FindPathAStar("B", "B"))
}

func TestFindNearestUnvisited(t *testing.T) {
	g := corridorGraph(t)

	// Everything visited so far.
	_, _, ok := g.FindNearestUnvisited("A")
	assert.False(t, ok)

	// An unexplored neighbor recorded via exit only (not visited).
	_, err := g.CreateRoom("D", "Room D")
	require.NoError(t, err)
	require.NoError(t, g.AddExit("C", North, "D"))

	id, path, ok := g.FindNearestUnvisited("A")
	require.True(t, ok)
	assert.Equal(t, "D", id)
	assert.Equal(t, []Direction{North, North, North}, path)
}

func TestFindRoomsInRadius(t *testing.T) {
	g := corridorGraph(t)

	dist := g.FindRoomsInRadius("A", 1)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, dist)

	dist = g.FindRoomsInRadius("A", 5)
	assert.Equal(t, map[string]int{"A": 0, "B": 1, "C": 2}, dist)

	assert.Empty(t, g.FindRoomsInRadius("missing", 3))
}

func TestFindNearestRoom(t *testing.T) {
	g := corridorGraph(t)
	_, err := g.CreateRoom("island", "Island")
	require.NoError(t, err)

	id, path, ok := g.FindNearestRoom("A", []string{"C", "B", "island"})
	require.True(t, ok)
	assert.Equal(t, "B", id)
	assert.Len(t, path, 1)

	_, _, ok = g.FindNearestRoom("A", []string{"island"})
	assert.False(t, ok)

	_, _, ok = g.FindNearestRoom("A", nil)
	assert.False(t, ok)
}

// TestPropertyBFSAndAStarAgree builds random graphs by simulated movement and
// checks that both searches find paths of equal length, and agree on
// reachability.
func TestPropertyBFSAndAStarAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewGraph(zap.NewNop())
		roomCount := rapid.IntRange(2, 10).Draw(t, "rooms")
		ids := make([]string, roomCount)
		for i := range ids {
			ids[i] = fmt.Sprintf("r%d", i)
			if _, err := g.CreateRoom(ids[i], "Room"); err != nil {
				t.Fatalf("creating room: %v", err)
			}
		}

		edges := rapid.IntRange(1, 25).Draw(t, "edges")
		for i := 0; i < edges; i++ {
			from := rapid.SampledFrom(ids).Draw(t, "from")
			to := rapid.SampledFrom(ids).Draw(t, "to")
			dir := rapid.SampledFrom(StandardDirections).Draw(t, "dir")
			_ = g.AddExit(from, dir, to)
		}

		src := rapid.SampledFrom(ids).Draw(t, "src")
		dst := rapid.SampledFrom(ids).Draw(t, "dst")

		bfs := g.FindPath(src, dst)
		astar := g.FindPathAStar(src, dst)

		if (bfs == nil) != (astar == nil) {
			t.Fatalf("reachability disagreement: bfs=%v astar=%v", bfs, astar)
		}
		if bfs != nil && len(bfs) != len(astar) {
			t.Fatalf("path length disagreement: bfs=%d astar=%d", len(bfs), len(astar))
		}
	})
}

// TestPropertyPathIsWalkable checks that every returned path can actually be
// walked edge by edge from source to destination.
func TestPropertyPathIsWalkable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewGraph(zap.NewNop())
		roomCount := rapid.IntRange(2, 8).Draw(t, "rooms")
		ids := make([]string, roomCount)
		for i := range ids {
			ids[i] = fmt.Sprintf("r%d", i)
			if _, err := g.CreateRoom(ids[i], "Room"); err != nil {
				t.Fatalf("creating room: %v", err)
			}
		}
		edges := rapid.IntRange(1, 20).Draw(t, "edges")
		for i := 0; i < edges; i++ {
			from := rapid.SampledFrom(ids).Draw(t, "from")
			to := rapid.SampledFrom(ids).Draw(t, "to")
			dir := rapid.SampledFrom(StandardDirections).Draw(t, "dir")
			_ = g.AddExit(from, dir, to)
		}

		src := rapid.SampledFrom(ids).Draw(t, "src")
		dst := rapid.SampledFrom(ids).Draw(t, "dst")
		path := g.FindPath(src, dst)
		if path == nil {
			return
		}

		at := src
		for _, dir := range path {
			room, ok := g.Room(at)
			if !ok {
				t.Fatalf("walk reached unknown room %q", at)
			}
			e, ok := room.ExitFor(dir)
			if !ok || !e.Explored() {
				t.Fatalf("no explored exit %s from %s", dir, at)
			}
			at = e.TargetRoom
		}
		if at != dst {
			t.Fatalf("walk ended at %q, want %q", at, dst)
		}
	})
}
