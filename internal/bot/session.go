package bot

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session accumulates per-run statistics. A session starts when the bot
// starts and is finalized exactly once when it stops.
type Session struct {
	mu        sync.Mutex
	id        uuid.UUID
	startedAt time.Time
	endedAt   time.Time
	deaths    int
	kills     int
	commands  int
	rooms     int
	xp        int
	finalized bool
}

// SessionSummary is a point-in-time copy of session statistics.
type SessionSummary struct {
	ID           uuid.UUID
	StartedAt    time.Time
	EndedAt      time.Time
	Deaths       int
	Kills        int
	CommandsSent int
	RoomsVisited int
	Experience   int
	Finalized    bool
}

// NewSession creates a running session with a fresh identifier.
func NewSession() *Session {
	return &Session{id: uuid.New(), startedAt: time.Now()}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// RecordDeath increments the death counter and returns the new count.
func (s *Session) RecordDeath() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deaths++
	return s.deaths
}

// Deaths returns the death count.
func (s *Session) Deaths() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deaths
}

// RecordKill increments the kill counter.
func (s *Session) RecordKill() {
	s.mu.Lock()
	s.kills++
	s.mu.Unlock()
}

// RecordCommand increments the sent-command counter.
func (s *Session) RecordCommand() {
	s.mu.Lock()
	s.commands++
	s.mu.Unlock()
}

// RecordRoom increments the rooms-visited counter.
func (s *Session) RecordRoom() {
	s.mu.Lock()
	s.rooms++
	s.mu.Unlock()
}

// RecordExperience adds gained experience.
func (s *Session) RecordExperience(amount int) {
	s.mu.Lock()
	s.xp += amount
	s.mu.Unlock()
}

// Finalize marks the session ended. Idempotent: only the first call sets the
// end time.
func (s *Session) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.finalized = true
	s.endedAt = time.Now()
}

// Summary returns a copy of the current statistics.
func (s *Session) Summary() SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSummary{
		ID:           s.id,
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
		Deaths:       s.deaths,
		Kills:        s.kills,
		CommandsSent: s.commands,
		RoomsVisited: s.rooms,
		Experience:   s.xp,
		Finalized:    s.finalized,
	}
}
