package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/mudbot/internal/game/world"
	"github.com/cory-johannsen/mudbot/internal/storage/postgres"
	"github.com/cory-johannsen/mudbot/internal/testutil"
)

func setupRoomRepo(t *testing.T) *postgres.RoomRepository {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return postgres.NewRoomRepository(pc.RawPool)
}

func templeSquare() world.Room {
	return world.Room{
		ID:      "temple_square",
		Name:    "Temple Square",
		Zone:    "midgaard",
		Terrain: "city",
		Notes:   "healer to the east",
		Visited: true,
		Tags:    map[string]bool{"safe": true, "regen": true},
		Exits: map[world.Direction]world.Exit{
			world.North: {TargetRoom: "temple_gate"},
			world.East:  {TargetRoom: "healer", Door: true},
			world.Down:  {TargetRoom: "crypt", Door: true, Locked: true},
		},
	}
}

func TestRoomRepository_SaveAndLoadAll(t *testing.T) {
	repo := setupRoomRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, templeSquare()))

	rooms, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	got := rooms[0]
	assert.Equal(t, "temple_square", got.ID)
	assert.Equal(t, "Temple Square", got.Name)
	assert.Equal(t, "midgaard", got.Zone)
	assert.Equal(t, "city", got.Terrain)
	assert.Equal(t, "healer to the east", got.Notes)
	assert.True(t, got.Visited)
	assert.Equal(t, map[string]bool{"safe": true, "regen": true}, got.Tags)
	require.Len(t, got.Exits, 3)
	assert.Equal(t, world.Exit{TargetRoom: "temple_gate"}, got.Exits[world.North])
	assert.Equal(t, world.Exit{TargetRoom: "healer", Door: true}, got.Exits[world.East])
	assert.Equal(t, world.Exit{TargetRoom: "crypt", Door: true, Locked: true}, got.Exits[world.Down])
}

func TestRoomRepository_SaveOverwrites(t *testing.T) {
	repo := setupRoomRepo(t)
	ctx := context.Background()

	room := templeSquare()
	require.NoError(t, repo.Save(ctx, room))

	room.Notes = "donation pit removed"
	room.Tags = map[string]bool{"safe": true}
	delete(room.Exits, world.Down)
	require.NoError(t, repo.Save(ctx, room))

	rooms, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "donation pit removed", rooms[0].Notes)
	assert.Equal(t, map[string]bool{"safe": true}, rooms[0].Tags)
	assert.Len(t, rooms[0].Exits, 2)
}

func TestRoomRepository_SaveAllIsTransactional(t *testing.T) {
	repo := setupRoomRepo(t)
	ctx := context.Background()

	batch := []world.Room{
		templeSquare(),
		{
			ID:   "temple_gate",
			Name: "Temple Gate",
			Zone: "midgaard",
			Exits: map[world.Direction]world.Exit{
				world.South: {TargetRoom: "temple_square"},
			},
		},
		{
			ID:   "market_square",
			Name: "Market Square",
			Zone: "midgaard",
		},
	}
	require.NoError(t, repo.SaveAll(ctx, batch))

	rooms, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 3)
}

func TestRoomRepository_Delete(t *testing.T) {
	repo := setupRoomRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, templeSquare()))
	require.NoError(t, repo.Delete(ctx, "temple_square"))

	rooms, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

// Loaded rooms must drop straight into a graph and be navigable.
func TestRoomRepository_LoadedRoomsFeedTheGraph(t *testing.T) {
	repo := setupRoomRepo(t)
	ctx := context.Background()

	gate := world.Room{
		ID:      "temple_gate",
		Name:    "Temple Gate",
		Zone:    "midgaard",
		Visited: true,
		Exits: map[world.Direction]world.Exit{
			world.South: {TargetRoom: "temple_square"},
		},
	}
	require.NoError(t, repo.SaveAll(ctx, []world.Room{templeSquare(), gate}))

	rooms, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	g := world.NewGraph(zap.NewNop())
	g.Load(rooms)
	assert.Equal(t, 2, g.RoomCount())

	path := g.FindPath("temple_gate", "temple_square")
	assert.Equal(t, []world.Direction{world.South}, path)
}
