package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Counters(t *testing.T) {
	s := NewSession()
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", s.ID().String())

	assert.Equal(t, 1, s.RecordDeath())
	assert.Equal(t, 2, s.RecordDeath())
	s.RecordKill()
	s.RecordCommand()
	s.RecordCommand()
	s.RecordRoom()
	s.RecordExperience(150)
	s.RecordExperience(350)

	sum := s.Summary()
	assert.Equal(t, 2, sum.Deaths)
	assert.Equal(t, 1, sum.Kills)
	assert.Equal(t, 2, sum.CommandsSent)
	assert.Equal(t, 1, sum.RoomsVisited)
	assert.Equal(t, 500, sum.Experience)
	assert.False(t, sum.Finalized)
}

func TestSession_FinalizeOnce(t *testing.T) {
	s := NewSession()
	s.Finalize()
	first := s.Summary().EndedAt
	require.False(t, first.IsZero())

	s.Finalize()
	assert.Equal(t, first, s.Summary().EndedAt)
	assert.True(t, s.Summary().Finalized)
}
