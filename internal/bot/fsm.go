// Package bot drives the automation loop: a fixed-table finite state machine
// stepped by a periodic coordinator tick that reads the latest character
// snapshot, applies safety checks, and issues at most one meaningful command.
package bot

import (
	"sync"

	"go.uber.org/zap"
)

// State is one mode of the automation state machine.
type State string

// Machine states. StateIdle is both the initial state and the terminal rest
// state after a clean stop.
const (
	StateIdle      State = "IDLE"
	StateStarting  State = "STARTING"
	StateTraveling State = "TRAVELING"
	StateCombat    State = "COMBAT"
	StateLooting   State = "LOOTING"
	StateResting   State = "RESTING"
	StateBuffing   State = "BUFFING"
	StateFleeing   State = "FLEEING"
	StateExploring State = "EXPLORING"
	StateReturning State = "RETURNING"
	StateError     State = "ERROR"
	StateStopping  State = "STOPPING"
)

// Transition is a named trigger looked up in the transition table.
type Transition string

// Machine transitions.
const (
	TransitionStart         Transition = "START"
	TransitionStop          Transition = "STOP"
	TransitionLowHP         Transition = "LOW_HP"
	TransitionEnemyDetected Transition = "ENEMY_DETECTED"
	TransitionCombatWin     Transition = "COMBAT_WIN"
	TransitionCombatLose    Transition = "COMBAT_LOSE"
	TransitionPathFound     Transition = "PATH_FOUND"
	TransitionPathLost      Transition = "PATH_LOST"
	TransitionArrived       Transition = "ARRIVED"
	TransitionBuffsNeeded   Transition = "BUFFS_NEEDED"
	TransitionBuffsApplied  Transition = "BUFFS_APPLIED"
	TransitionLootDone      Transition = "LOOT_DONE"
	TransitionHPRecovered   Transition = "HP_RECOVERED"
	TransitionErrorOccurred Transition = "ERROR_OCCURRED"
	TransitionErrorCleared  Transition = "ERROR_CLEARED"
)

// transitionTable is the fixed (state, transition) -> state lookup. A pair
// absent from the table is a no-op, never an error: the tick loop must not
// be able to crash the machine with a stale trigger.
var transitionTable = map[State]map[Transition]State{
	StateIdle: {
		TransitionStart: StateStarting,
	},
	StateStarting: {
		TransitionStop:          StateStopping,
		TransitionBuffsNeeded:   StateBuffing,
		TransitionLowHP:         StateResting,
		TransitionPathFound:     StateTraveling,
		TransitionPathLost:      StateExploring,
		TransitionErrorOccurred: StateError,
		TransitionCombatLose:    StateReturning,
	},
	StateBuffing: {
		TransitionStop:          StateStopping,
		TransitionBuffsApplied:  StateStarting,
		TransitionEnemyDetected: StateCombat,
		TransitionErrorOccurred: StateError,
		TransitionCombatLose:    StateReturning,
	},
	StateTraveling: {
		TransitionStop:          StateStopping,
		TransitionEnemyDetected: StateCombat,
		TransitionLowHP:         StateFleeing,
		TransitionArrived:       StateStarting,
		TransitionPathLost:      StateExploring,
		TransitionErrorOccurred: StateError,
		TransitionCombatLose:    StateReturning,
	},
	StateCombat: {
		TransitionStop:          StateStopping,
		TransitionLowHP:         StateFleeing,
		TransitionCombatWin:     StateLooting,
		TransitionCombatLose:    StateReturning,
		TransitionErrorOccurred: StateError,
	},
	StateLooting: {
		TransitionStop:          StateStopping,
		TransitionLootDone:      StateStarting,
		TransitionEnemyDetected: StateCombat,
		TransitionErrorOccurred: StateError,
		TransitionCombatLose:    StateReturning,
	},
	StateResting: {
		TransitionStop:          StateStopping,
		TransitionHPRecovered:   StateStarting,
		TransitionEnemyDetected: StateCombat,
		TransitionErrorOccurred: StateError,
		TransitionCombatLose:    StateReturning,
	},
	StateFleeing: {
		TransitionStop:          StateStopping,
		TransitionCombatWin:     StateResting,
		TransitionCombatLose:    StateReturning,
		TransitionErrorOccurred: StateError,
	},
	StateExploring: {
		TransitionStop:          StateStopping,
		TransitionPathFound:     StateTraveling,
		TransitionEnemyDetected: StateCombat,
		TransitionErrorOccurred: StateError,
		TransitionCombatLose:    StateReturning,
	},
	StateReturning: {
		TransitionStop:          StateStopping,
		TransitionArrived:       StateResting,
		TransitionEnemyDetected: StateCombat,
		TransitionPathLost:      StateExploring,
		TransitionErrorOccurred: StateError,
	},
	StateError: {
		TransitionStop:         StateStopping,
		TransitionErrorCleared: StateStarting,
	},
	StateStopping: {
		TransitionStop: StateIdle,
	},
}

// Machine is the bot finite state machine. Safe for concurrent use.
//
// Invariant: the state only changes through entries of transitionTable.
type Machine struct {
	mu     sync.Mutex
	state  State
	logger *zap.Logger
}

// NewMachine creates a Machine in StateIdle.
//
// Precondition: logger must not be nil.
func NewMachine(logger *zap.Logger) *Machine {
	if logger == nil {
		panic("bot.NewMachine: logger must not be nil")
	}
	return &Machine{state: StateIdle, logger: logger}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply fires a transition. An unrecognized transition for the current state
// leaves the state unchanged and reports false.
//
// Postcondition: Returns the state after the lookup and whether it changed.
func (m *Machine) Apply(t Transition) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := transitionTable[m.state][t]
	if !ok {
		m.logger.Debug("transition ignored",
			zap.String("state", string(m.state)),
			zap.String("transition", string(t)))
		return m.state, false
	}
	m.logger.Info("state transition",
		zap.String("from", string(m.state)),
		zap.String("transition", string(t)),
		zap.String("to", string(next)))
	m.state = next
	return m.state, true
}
