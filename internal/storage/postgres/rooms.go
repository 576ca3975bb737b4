package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/mudbot/internal/game/world"
)

// RoomRepository persists the mapped world graph.
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// storedExit is the JSONB form of one exit.
type storedExit struct {
	Target string `json:"target,omitempty"`
	Door   bool   `json:"door,omitempty"`
	Locked bool   `json:"locked,omitempty"`
}

// Save upserts one room with its exits and tags.
func (r *RoomRepository) Save(ctx context.Context, room world.Room) error {
	exits := make(map[string]storedExit, len(room.Exits))
	for dir, e := range room.Exits {
		exits[string(dir)] = storedExit{Target: e.TargetRoom, Door: e.Door, Locked: e.Locked}
	}
	exitsJSON, err := json.Marshal(exits)
	if err != nil {
		return fmt.Errorf("encoding exits for room %q: %w", room.ID, err)
	}
	tags := make([]string, 0, len(room.Tags))
	for tag := range room.Tags {
		tags = append(tags, tag)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO rooms (id, name, zone, terrain, notes, visited, tags, exits)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     zone = EXCLUDED.zone,
		     terrain = EXCLUDED.terrain,
		     notes = EXCLUDED.notes,
		     visited = EXCLUDED.visited,
		     tags = EXCLUDED.tags,
		     exits = EXCLUDED.exits,
		     updated_at = now()`,
		room.ID, room.Name, room.Zone, room.Terrain, room.Notes, room.Visited, tags, exitsJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting room %q: %w", room.ID, err)
	}
	return nil
}

// SaveAll upserts every room inside one transaction.
func (r *RoomRepository) SaveAll(ctx context.Context, rooms []world.Room) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning room save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, room := range rooms {
		exits := make(map[string]storedExit, len(room.Exits))
		for dir, e := range room.Exits {
			exits[string(dir)] = storedExit{Target: e.TargetRoom, Door: e.Door, Locked: e.Locked}
		}
		exitsJSON, err := json.Marshal(exits)
		if err != nil {
			return fmt.Errorf("encoding exits for room %q: %w", room.ID, err)
		}
		tags := make([]string, 0, len(room.Tags))
		for tag := range room.Tags {
			tags = append(tags, tag)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO rooms (id, name, zone, terrain, notes, visited, tags, exits)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE
			 SET name = EXCLUDED.name,
			     zone = EXCLUDED.zone,
			     terrain = EXCLUDED.terrain,
			     notes = EXCLUDED.notes,
			     visited = EXCLUDED.visited,
			     tags = EXCLUDED.tags,
			     exits = EXCLUDED.exits,
			     updated_at = now()`,
			room.ID, room.Name, room.Zone, room.Terrain, room.Notes, room.Visited, tags, exitsJSON,
		); err != nil {
			return fmt.Errorf("upserting room %q: %w", room.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing room save: %w", err)
	}
	return nil
}

// LoadAll returns every stored room, ready for world.Graph.Load.
func (r *RoomRepository) LoadAll(ctx context.Context) ([]world.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, zone, terrain, notes, visited, tags, exits FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var out []world.Room
	for rows.Next() {
		var room world.Room
		var tags []string
		var exitsJSON []byte
		if err := rows.Scan(&room.ID, &room.Name, &room.Zone, &room.Terrain, &room.Notes, &room.Visited, &tags, &exitsJSON); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		var exits map[string]storedExit
		if err := json.Unmarshal(exitsJSON, &exits); err != nil {
			return nil, fmt.Errorf("decoding exits for room %q: %w", room.ID, err)
		}
		room.Exits = make(map[world.Direction]world.Exit, len(exits))
		for dir, e := range exits {
			room.Exits[world.Direction(dir)] = world.Exit{TargetRoom: e.Target, Door: e.Door, Locked: e.Locked}
		}
		room.Tags = make(map[string]bool, len(tags))
		for _, tag := range tags {
			room.Tags[tag] = true
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return out, nil
}

// Delete removes one room.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting room %q: %w", id, err)
	}
	return nil
}
