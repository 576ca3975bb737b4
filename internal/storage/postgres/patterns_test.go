package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/mudbot/internal/classify"
	"github.com/cory-johannsen/mudbot/internal/storage/postgres"
	"github.com/cory-johannsen/mudbot/internal/testutil"
)

var _ classify.Store = (*postgres.PatternRepository)(nil)

func setupPatternRepo(t *testing.T) *postgres.PatternRepository {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return postgres.NewPatternRepository(pc.RawPool)
}

func TestPatternRepository_SaveAndLoad(t *testing.T) {
	repo := setupPatternRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SavePattern(ctx, "You hit the wolf hard.", classify.EventDamageDealt, 0.9))
	require.NoError(t, repo.SavePattern(ctx, "The wolf is dead! R.I.P.", classify.EventMobDeath, 0.95))

	patterns, err := repo.LoadPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, 2)
	assert.Equal(t, classify.EventDamageDealt, patterns["You hit the wolf hard."])
	assert.Equal(t, classify.EventMobDeath, patterns["The wolf is dead! R.I.P."])
}

func TestPatternRepository_SaveOverwrites(t *testing.T) {
	repo := setupPatternRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SavePattern(ctx, "You feel stronger.", classify.EventUnknown, 0.5))
	require.NoError(t, repo.SavePattern(ctx, "You feel stronger.", classify.EventLevelUp, 0.99))

	patterns, err := repo.LoadPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, 1)
	assert.Equal(t, classify.EventLevelUp, patterns["You feel stronger."])
}

func TestPatternRepository_Delete(t *testing.T) {
	repo := setupPatternRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SavePattern(ctx, "You miss the wolf.", classify.EventMiss, 0.95))
	require.NoError(t, repo.DeletePattern(ctx, "You miss the wolf."))

	patterns, err := repo.LoadPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestPatternRepository_DeleteMissingIsNotError(t *testing.T) {
	repo := setupPatternRepo(t)
	assert.NoError(t, repo.DeletePattern(context.Background(), "never stored"))
}

// A row holding an event type this build no longer knows must not block
// loading; the rest of the cache still comes back.
func TestPatternRepository_SkipsUnknownStoredTypes(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPatternRepository(pc.RawPool)
	ctx := context.Background()

	require.NoError(t, repo.SavePattern(ctx, "You dodge the blow.", classify.EventMiss, 0.9))
	_, err := pc.RawPool.Exec(ctx,
		`INSERT INTO learned_patterns (message, event_type, confidence)
		 VALUES ('A strange light surrounds you.', 'retired_type', 0.8)`)
	require.NoError(t, err)

	patterns, err := repo.LoadPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, 1)
	assert.Equal(t, classify.EventMiss, patterns["You dodge the blow."])
}
