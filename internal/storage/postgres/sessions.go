package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/mudbot/internal/bot"
)

// ErrSessionNotFound is returned when a session lookup yields no results.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists bot run statistics.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save inserts or updates a session summary. Called once when the session
// starts and again with final counters when it ends.
func (r *SessionRepository) Save(ctx context.Context, s bot.SessionSummary) error {
	var endedAt any
	if s.Finalized {
		endedAt = s.EndedAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, deaths, kills, commands_sent, rooms_visited, experience)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE
		 SET ended_at = EXCLUDED.ended_at,
		     deaths = EXCLUDED.deaths,
		     kills = EXCLUDED.kills,
		     commands_sent = EXCLUDED.commands_sent,
		     rooms_visited = EXCLUDED.rooms_visited,
		     experience = EXCLUDED.experience`,
		s.ID, s.StartedAt, endedAt, s.Deaths, s.Kills, s.CommandsSent, s.RoomsVisited, s.Experience,
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Get returns one session by id.
//
// Postcondition: Returns ErrSessionNotFound when no row matches.
func (r *SessionRepository) Get(ctx context.Context, id string) (bot.SessionSummary, error) {
	var s bot.SessionSummary
	var endedAt *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT id, started_at, ended_at, deaths, kills, commands_sent, rooms_visited, experience
		 FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.StartedAt, &endedAt, &s.Deaths, &s.Kills, &s.CommandsSent, &s.RoomsVisited, &s.Experience)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bot.SessionSummary{}, ErrSessionNotFound
		}
		return bot.SessionSummary{}, fmt.Errorf("querying session: %w", err)
	}
	if endedAt != nil {
		s.EndedAt = *endedAt
		s.Finalized = true
	}
	return s, nil
}

// Recent returns the most recently started sessions, newest first.
func (r *SessionRepository) Recent(ctx context.Context, limit int) ([]bot.SessionSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, started_at, ended_at, deaths, kills, commands_sent, rooms_visited, experience
		 FROM sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []bot.SessionSummary
	for rows.Next() {
		var s bot.SessionSummary
		var endedAt *time.Time
		if err := rows.Scan(&s.ID, &s.StartedAt, &endedAt, &s.Deaths, &s.Kills, &s.CommandsSent, &s.RoomsVisited, &s.Experience); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if endedAt != nil {
			s.EndedAt = *endedAt
			s.Finalized = true
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return out, nil
}
