package bot

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mudbot/internal/config"
	"github.com/cory-johannsen/mudbot/internal/game/world"
	"github.com/cory-johannsen/mudbot/internal/parse"
)

// StatusSource supplies the latest parsed character snapshot.
type StatusSource interface {
	Previous() *parse.Stats
}

// Commander sends one command line to the game.
type Commander interface {
	Send(cmd string) error
}

// Navigator is the world-graph surface the tick loop uses.
type Navigator interface {
	CurrentRoom() (world.Room, bool)
	NextStep() (world.Direction, bool)
	ActivePath() ([]world.Direction, string, bool)
	NavigateTo(targetID string) []world.Direction
	FindNearestUnvisited(fromID string) (string, []world.Direction, bool)
	ClearPath()
}

// Coordinator steps the state machine at a fixed rate. Each tick refreshes
// the character snapshot, evaluates safety conditions before any per-state
// logic, and issues at most one meaningful command.
//
// Invariant: ticks are serial; no two tick bodies run concurrently.
type Coordinator struct {
	machine  *Machine
	settings *Settings
	status   StatusSource
	world    Navigator
	cmd      Commander
	logger   *zap.Logger

	mu        sync.Mutex
	session   *Session
	buffIndex int
	resting   bool
	dead      bool

	stopTicks func()
}

// NewCoordinator wires the tick loop to its collaborators.
//
// Precondition: no argument may be nil.
func NewCoordinator(machine *Machine, settings *Settings, status StatusSource, nav Navigator, cmd Commander, logger *zap.Logger) *Coordinator {
	if machine == nil || settings == nil || status == nil || nav == nil || cmd == nil || logger == nil {
		panic("bot.NewCoordinator: all collaborators must be non-nil")
	}
	return &Coordinator{
		machine:  machine,
		settings: settings,
		status:   status,
		world:    nav,
		cmd:      cmd,
		logger:   logger,
	}
}

// Session returns the active session, or nil before the first Start.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the machine's current state.
func (c *Coordinator) State() State {
	return c.machine.Current()
}

// Start opens a new session and launches the tick goroutine.
// Calling Start while running is a no-op beyond the START transition, which
// the table ignores outside StateIdle.
func (c *Coordinator) Start(ctx context.Context) {
	if _, changed := c.machine.Apply(TransitionStart); !changed {
		return
	}
	c.mu.Lock()
	c.session = NewSession()
	c.buffIndex = 0
	c.resting = false
	c.dead = false
	c.mu.Unlock()
	c.stopTicks = c.runTicks(ctx)
	c.logger.Info("bot started", zap.String("session", c.Session().ID().String()))
}

// Stop halts ticking, drives the machine to StateIdle, and finalizes the
// session synchronously. Idempotent.
func (c *Coordinator) Stop() {
	if c.stopTicks != nil {
		c.stopTicks()
	}
	// STOPPING then IDLE; ignored when already idle.
	c.machine.Apply(TransitionStop)
	c.machine.Apply(TransitionStop)
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.Finalize()
		s := session.Summary()
		c.logger.Info("bot stopped",
			zap.String("session", s.ID.String()),
			zap.Int("kills", s.Kills),
			zap.Int("deaths", s.Deaths),
			zap.Int("commands", s.CommandsSent),
			zap.Int("experience", s.Experience))
	}
}

// runTicks launches the tick goroutine and returns an idempotent stop
// function. A failed tick pauses ticking for the configured cooldown.
func (c *Coordinator) runTicks(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.settings.Current().TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ok := c.Tick(); !ok {
					cooldown := c.settings.Current().ErrorCooldown
					if cooldown > 0 {
						select {
						case <-time.After(cooldown):
						case <-done:
							return
						case <-ctx.Done():
							return
						}
					}
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}

// Tick runs one decision step. Exported for deterministic tests; the ticker
// goroutine is its only production caller.
//
// Postcondition: Returns false only when the tick body panicked, after
// converting the panic into an ERROR_OCCURRED transition. A bad tick never
// terminates the loop.
func (c *Coordinator) Tick() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("tick panicked", zap.Any("panic", r), zap.Stack("stack"))
			c.machine.Apply(TransitionErrorOccurred)
			ok = false
		}
	}()

	cfg := c.settings.Current()
	snapshot := c.status.Previous()

	if c.checkCritical(cfg, snapshot) {
		return true
	}

	switch c.machine.Current() {
	case StateStarting:
		c.tickStarting(cfg, snapshot)
	case StateBuffing:
		c.tickBuffing(cfg)
	case StateTraveling:
		c.tickTraveling(snapshot)
	case StateCombat:
		c.tickCombat(snapshot)
	case StateLooting:
		c.tickLooting(cfg)
	case StateResting:
		c.tickResting(cfg, snapshot)
	case StateFleeing:
		c.tickFleeing(snapshot)
	case StateExploring:
		c.tickExploring(snapshot)
	case StateReturning:
		c.tickReturning(cfg, snapshot)
	case StateError:
		c.machine.Apply(TransitionErrorCleared)
	}
	return true
}

// checkCritical evaluates the unconditional safety rules. It reports true
// when a rule fired and the rest of the tick must not run.
func (c *Coordinator) checkCritical(cfg config.BotConfig, snapshot *parse.Stats) bool {
	if snapshot == nil {
		return false
	}

	// Death trumps everything, in any state. The snapshot only advances
	// when the next prompt parses, so the death is latched: one observed
	// zero counts once no matter how many ticks see it.
	if snapshot.HP != nil && *snapshot.HP <= 0 {
		if c.latchDeath() {
			deaths := 0
			if s := c.Session(); s != nil {
				deaths = s.RecordDeath()
			}
			c.logger.Warn("character died", zap.Int("deaths", deaths))
			c.machine.Apply(TransitionCombatLose)
			if cfg.MaxDeaths > 0 && deaths >= cfg.MaxDeaths {
				c.logger.Error("death limit reached, stopping", zap.Int("max", cfg.MaxDeaths))
				go c.Stop()
			}
		}
		return true
	}
	c.clearDeath()

	// Below the flee threshold in combat: pre-empt state logic entirely.
	if c.machine.Current() == StateCombat {
		if pct, known := snapshot.HealthPercent(); known && pct < cfg.FleeThresholdPct {
			c.logger.Warn("health below flee threshold",
				zap.Int("pct", pct),
				zap.Int("threshold", cfg.FleeThresholdPct))
			c.machine.Apply(TransitionLowHP)
			c.send("flee")
			return true
		}
	}

	return false
}

// tickStarting checks buff and rest preconditions before allowing travel.
func (c *Coordinator) tickStarting(cfg config.BotConfig, snapshot *parse.Stats) {
	if cfg.AutoBuff && c.pendingBuffs(cfg) {
		c.machine.Apply(TransitionBuffsNeeded)
		return
	}
	if snapshot != nil {
		if pct, known := snapshot.HealthPercent(); known && pct < cfg.RestThresholdPct {
			c.machine.Apply(TransitionLowHP)
			c.send("rest")
			c.setResting(true)
			return
		}
	}
	if _, _, active := c.world.ActivePath(); active {
		c.machine.Apply(TransitionPathFound)
		return
	}
	c.machine.Apply(TransitionPathLost)
}

// tickBuffing issues at most one buff command per tick. All-at-once bursts
// would outrun the server's per-command pacing.
func (c *Coordinator) tickBuffing(cfg config.BotConfig) {
	c.mu.Lock()
	i := c.buffIndex
	c.buffIndex++
	c.mu.Unlock()
	if i < len(cfg.BuffCommands) {
		c.send(cfg.BuffCommands[i])
		return
	}
	c.machine.Apply(TransitionBuffsApplied)
}

// tickTraveling walks the active path one step per tick.
func (c *Coordinator) tickTraveling(snapshot *parse.Stats) {
	if snapshot != nil && snapshot.InCombat {
		c.machine.Apply(TransitionEnemyDetected)
		return
	}
	if _, _, active := c.world.ActivePath(); !active {
		c.machine.Apply(TransitionArrived)
		return
	}
	step, ok := c.world.NextStep()
	if !ok {
		c.machine.Apply(TransitionPathLost)
		return
	}
	c.send(string(step))
}

// tickCombat watches the fight. The server runs combat rounds on its own;
// the bot's job here is to notice when the fight is over.
func (c *Coordinator) tickCombat(snapshot *parse.Stats) {
	if snapshot == nil || snapshot.InCombat {
		return
	}
	if s := c.Session(); s != nil {
		s.RecordKill()
	}
	c.machine.Apply(TransitionCombatWin)
}

// tickLooting issues the configured loot commands, then signals done.
func (c *Coordinator) tickLooting(cfg config.BotConfig) {
	if cfg.AutoLoot {
		for _, cmd := range cfg.LootCommands {
			c.send(cmd)
		}
	}
	c.machine.Apply(TransitionLootDone)
}

// tickResting holds position until health recovers past the rest threshold.
func (c *Coordinator) tickResting(cfg config.BotConfig, snapshot *parse.Stats) {
	if snapshot != nil && snapshot.InCombat {
		c.setResting(false)
		c.machine.Apply(TransitionEnemyDetected)
		return
	}
	if snapshot == nil {
		return
	}
	pct, known := snapshot.HealthPercent()
	if !known || pct < cfg.RestThresholdPct {
		return
	}
	if c.isResting() {
		c.send("stand")
		c.setResting(false)
	}
	c.machine.Apply(TransitionHPRecovered)
}

// tickFleeing repeats the flee command until combat is over.
func (c *Coordinator) tickFleeing(snapshot *parse.Stats) {
	if snapshot != nil && !snapshot.InCombat {
		c.machine.Apply(TransitionCombatWin)
		return
	}
	c.send("flee")
}

// tickExploring asks the graph for the nearest unvisited room, falling back
// to a random legal direction when the whole known graph is explored.
func (c *Coordinator) tickExploring(snapshot *parse.Stats) {
	if snapshot != nil && snapshot.InCombat {
		c.machine.Apply(TransitionEnemyDetected)
		return
	}
	room, ok := c.world.CurrentRoom()
	if !ok {
		return
	}
	if target, path, found := c.world.FindNearestUnvisited(room.ID); found && len(path) > 0 {
		c.world.NavigateTo(target)
		c.machine.Apply(TransitionPathFound)
		return
	}
	dirs := make([]world.Direction, 0, len(room.Exits))
	for d := range room.Exits {
		dirs = append(dirs, d)
	}
	if len(dirs) == 0 {
		return
	}
	c.send(string(dirs[rand.IntN(len(dirs))]))
}

// tickReturning paths toward the configured safe zone.
func (c *Coordinator) tickReturning(cfg config.BotConfig, snapshot *parse.Stats) {
	if snapshot != nil && snapshot.InCombat {
		c.machine.Apply(TransitionEnemyDetected)
		return
	}
	room, ok := c.world.CurrentRoom()
	if !ok {
		return
	}
	if cfg.SafeZone == "" || room.ID == cfg.SafeZone {
		c.world.ClearPath()
		c.machine.Apply(TransitionArrived)
		return
	}
	if _, target, active := c.world.ActivePath(); !active || target != cfg.SafeZone {
		if path := c.world.NavigateTo(cfg.SafeZone); path == nil {
			c.machine.Apply(TransitionPathLost)
			return
		}
	}
	step, ok := c.world.NextStep()
	if !ok {
		c.machine.Apply(TransitionPathLost)
		return
	}
	c.send(string(step))
}

// pendingBuffs reports whether buff commands remain for this cycle.
func (c *Coordinator) pendingBuffs(cfg config.BotConfig) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffIndex < len(cfg.BuffCommands)
}

// latchDeath reports whether this tick is the alive->dead edge.
func (c *Coordinator) latchDeath() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return false
	}
	c.dead = true
	return true
}

func (c *Coordinator) clearDeath() {
	c.mu.Lock()
	c.dead = false
	c.mu.Unlock()
}

func (c *Coordinator) setResting(v bool) {
	c.mu.Lock()
	c.resting = v
	c.mu.Unlock()
}

func (c *Coordinator) isResting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resting
}

// send issues one command and records it. Send failures are logged, not
// fatal: the transport reconnects independently of the decision loop.
func (c *Coordinator) send(cmd string) {
	if err := c.cmd.Send(cmd); err != nil {
		c.logger.Warn("command send failed", zap.String("command", cmd), zap.Error(err))
		return
	}
	if s := c.Session(); s != nil {
		s.RecordCommand()
	}
}
