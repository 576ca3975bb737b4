package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/mudbot/internal/classify"
)

// PatternRepository persists the classifier's learned exact-match cache.
// It implements classify.Store.
type PatternRepository struct {
	db *pgxpool.Pool
}

// NewPatternRepository creates a PatternRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPatternRepository(db *pgxpool.Pool) *PatternRepository {
	return &PatternRepository{db: db}
}

// LoadPatterns returns every learned message -> event type mapping.
//
// Postcondition: Rows whose stored type is no longer recognised are skipped;
// a schema drift must not keep the bot from starting.
func (r *PatternRepository) LoadPatterns(ctx context.Context) (map[string]classify.EventType, error) {
	rows, err := r.db.Query(ctx,
		`SELECT message, event_type FROM learned_patterns`)
	if err != nil {
		return nil, fmt.Errorf("querying learned patterns: %w", err)
	}
	defer rows.Close()

	out := make(map[string]classify.EventType)
	for rows.Next() {
		var message, typeName string
		if err := rows.Scan(&message, &typeName); err != nil {
			return nil, fmt.Errorf("scanning learned pattern: %w", err)
		}
		t, err := classify.ParseEventType(typeName)
		if err != nil {
			continue
		}
		out[message] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating learned patterns: %w", err)
	}
	return out, nil
}

// SavePattern inserts or overwrites one learned mapping.
func (r *PatternRepository) SavePattern(ctx context.Context, message string, t classify.EventType, confidence float64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO learned_patterns (message, event_type, confidence)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (message) DO UPDATE
		 SET event_type = EXCLUDED.event_type,
		     confidence = EXCLUDED.confidence,
		     updated_at = now()`,
		message, t.String(), confidence,
	)
	if err != nil {
		return fmt.Errorf("upserting learned pattern: %w", err)
	}
	return nil
}

// DeletePattern removes one learned mapping. Absence is not an error.
func (r *PatternRepository) DeletePattern(ctx context.Context, message string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM learned_patterns WHERE message = $1`, message)
	if err != nil {
		return fmt.Errorf("deleting learned pattern: %w", err)
	}
	return nil
}
