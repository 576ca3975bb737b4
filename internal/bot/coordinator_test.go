package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/mudbot/internal/config"
	"github.com/cory-johannsen/mudbot/internal/game/world"
	"github.com/cory-johannsen/mudbot/internal/parse"
)

func intPtr(v int) *int { return &v }

// fakeStatus serves a swappable snapshot.
type fakeStatus struct {
	mu    sync.Mutex
	stats *parse.Stats
	boom  bool
}

func (f *fakeStatus) Previous() *parse.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.boom {
		panic("status source exploded")
	}
	return f.stats
}

func (f *fakeStatus) set(s *parse.Stats) {
	f.mu.Lock()
	f.stats = s
	f.mu.Unlock()
}

// fakeCommander records sent commands.
type fakeCommander struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeCommander) Send(cmd string) error {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	f.mu.Unlock()
	return nil
}

func (f *fakeCommander) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// fakeNav is a scriptable Navigator.
type fakeNav struct {
	room      world.Room
	hasRoom   bool
	step      world.Direction
	hasStep   bool
	path      []world.Direction
	target    string
	active    bool
	unvisited string
	uvPath    []world.Direction
	navCalls  []string
}

func (f *fakeNav) CurrentRoom() (world.Room, bool)        { return f.room, f.hasRoom }
func (f *fakeNav) NextStep() (world.Direction, bool)      { return f.step, f.hasStep }
func (f *fakeNav) ActivePath() ([]world.Direction, string, bool) {
	return f.path, f.target, f.active
}
func (f *fakeNav) NavigateTo(targetID string) []world.Direction {
	f.navCalls = append(f.navCalls, targetID)
	return f.uvPath
}
func (f *fakeNav) FindNearestUnvisited(string) (string, []world.Direction, bool) {
	return f.unvisited, f.uvPath, f.unvisited != ""
}
func (f *fakeNav) ClearPath() { f.active = false }

func testBotConfig() config.BotConfig {
	return config.BotConfig{
		// Long enough that the ticker goroutine never fires mid-test;
		// ticks are driven manually for determinism.
		TickInterval: time.Hour,
		FleeThresholdPct: 20,
		RestThresholdPct: 80,
		MaxDeaths:        3,
		AutoLoot:         true,
		AutoBuff:         false,
		TargetPriority:   "weakest",
		LootCommands:     []string{"get all corpse", "sacrifice corpse"},
		BuffCommands:     []string{"cast armor", "cast bless"},
		ErrorCooldown:    time.Millisecond,
	}
}

type harness struct {
	coord  *Coordinator
	m      *Machine
	status *fakeStatus
	cmd    *fakeCommander
	nav    *fakeNav
}

func newHarness(t *testing.T, cfg config.BotConfig) *harness {
	t.Helper()
	settings, err := NewSettings(cfg)
	require.NoError(t, err)
	m := NewMachine(zap.NewNop())
	status := &fakeStatus{}
	cmd := &fakeCommander{}
	nav := &fakeNav{}
	return &harness{
		coord:  NewCoordinator(m, settings, status, nav, cmd, zap.NewNop()),
		m:      m,
		status: status,
		cmd:    cmd,
		nav:    nav,
	}
}

// drive walks the machine into a state without running ticks.
func (h *harness) drive(ts ...Transition) {
	for _, tr := range ts {
		h.m.Apply(tr)
	}
}

func combatStats(hp, maxHP int) *parse.Stats {
	return &parse.Stats{
		HP:              intPtr(hp),
		MaxHP:           intPtr(maxHP),
		InCombat:        true,
		Target:          "wolf",
		TargetCondition: "awful",
	}
}

func TestTick_FleeBelowThreshold(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathFound, TransitionEnemyDetected)
	require.Equal(t, StateCombat, h.coord.State())

	// 19% with a 20% threshold: pre-empts all state logic.
	h.status.set(combatStats(19, 100))
	require.True(t, h.coord.Tick())

	assert.Equal(t, StateFleeing, h.coord.State())
	assert.Equal(t, []string{"flee"}, h.cmd.commands())
}

func TestTick_NoFleeAtThreshold(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathFound, TransitionEnemyDetected)

	// Exactly 20% is not below the threshold: combat continues.
	h.status.set(combatStats(20, 100))
	require.True(t, h.coord.Tick())

	assert.Equal(t, StateCombat, h.coord.State())
	assert.Empty(t, h.cmd.commands())
}

func TestTick_DeathTrumpsEverything(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.coord.Start(t.Context())
	defer h.coord.Stop()
	h.drive(TransitionPathFound, TransitionEnemyDetected)

	h.status.set(&parse.Stats{HP: intPtr(0), MaxHP: intPtr(100), InCombat: true})
	require.True(t, h.coord.Tick())

	assert.Equal(t, StateReturning, h.coord.State())
	assert.Equal(t, 1, h.coord.Session().Deaths())
}

func TestTick_DeathCountedOncePerDeath(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.coord.Start(t.Context())
	defer h.coord.Stop()
	h.drive(TransitionPathFound, TransitionEnemyDetected)

	// The snapshot only advances when a new prompt parses, so several
	// ticks may observe the same zero. One death, not one per tick.
	h.status.set(&parse.Stats{HP: intPtr(0), MaxHP: intPtr(100)})
	require.True(t, h.coord.Tick())
	require.True(t, h.coord.Tick())
	require.True(t, h.coord.Tick())
	assert.Equal(t, 1, h.coord.Session().Deaths())

	// Recovery re-arms the latch; the next zero is a new death.
	h.status.set(&parse.Stats{HP: intPtr(100), MaxHP: intPtr(100)})
	require.True(t, h.coord.Tick())
	h.status.set(&parse.Stats{HP: intPtr(0), MaxHP: intPtr(100)})
	require.True(t, h.coord.Tick())
	assert.Equal(t, 2, h.coord.Session().Deaths())
}

func TestTick_DeathOutsideCombatStartsReturn(t *testing.T) {
	tests := []struct {
		name string
		path []Transition
		from State
	}{
		{"traveling", []Transition{TransitionPathFound}, StateTraveling},
		{"resting", []Transition{TransitionLowHP}, StateResting},
		{"exploring", []Transition{TransitionPathLost}, StateExploring},
		{"looting", []Transition{TransitionPathFound, TransitionEnemyDetected, TransitionCombatWin}, StateLooting},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, testBotConfig())
			h.coord.Start(t.Context())
			defer h.coord.Stop()
			h.drive(tc.path...)
			require.Equal(t, tc.from, h.coord.State())

			// Death traps and damage-over-time kill without a combat
			// prompt; the bot still has to walk back.
			h.status.set(&parse.Stats{HP: intPtr(0), MaxHP: intPtr(100)})
			require.True(t, h.coord.Tick())

			assert.Equal(t, StateReturning, h.coord.State())
			assert.Equal(t, 1, h.coord.Session().Deaths())
		})
	}
}

func TestTick_DeathCapStopsBot(t *testing.T) {
	cfg := testBotConfig()
	cfg.MaxDeaths = 1
	h := newHarness(t, cfg)
	h.coord.Start(t.Context())
	h.drive(TransitionPathFound, TransitionEnemyDetected)

	h.status.set(&parse.Stats{HP: intPtr(0), MaxHP: intPtr(100), InCombat: true})
	require.True(t, h.coord.Tick())

	assert.Eventually(t, func() bool {
		return h.coord.State() == StateIdle
	}, time.Second, 5*time.Millisecond)
	assert.True(t, h.coord.Session().Summary().Finalized)
}

func TestTick_BuffingOneCommandPerTick(t *testing.T) {
	cfg := testBotConfig()
	cfg.AutoBuff = true
	h := newHarness(t, cfg)
	h.drive(TransitionStart)
	h.status.set(&parse.Stats{HP: intPtr(100), MaxHP: intPtr(100)})

	require.True(t, h.coord.Tick()) // STARTING -> BUFFING
	require.Equal(t, StateBuffing, h.coord.State())
	assert.Empty(t, h.cmd.commands())

	require.True(t, h.coord.Tick())
	assert.Equal(t, []string{"cast armor"}, h.cmd.commands())

	require.True(t, h.coord.Tick())
	assert.Equal(t, []string{"cast armor", "cast bless"}, h.cmd.commands())

	require.True(t, h.coord.Tick()) // all issued -> back to STARTING
	assert.Equal(t, StateStarting, h.coord.State())
}

func TestTick_LootingIssuesCommandsThenDone(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathFound, TransitionEnemyDetected, TransitionCombatWin)
	require.Equal(t, StateLooting, h.coord.State())

	require.True(t, h.coord.Tick())
	assert.Equal(t, []string{"get all corpse", "sacrifice corpse"}, h.cmd.commands())
	assert.Equal(t, StateStarting, h.coord.State())
}

func TestTick_CombatWinRecordsKill(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.coord.Start(t.Context())
	defer h.coord.Stop()
	h.drive(TransitionPathFound, TransitionEnemyDetected)

	// Combat prompt gone: the fight is over.
	h.status.set(&parse.Stats{HP: intPtr(90), MaxHP: intPtr(100)})
	require.True(t, h.coord.Tick())

	assert.Equal(t, StateLooting, h.coord.State())
	assert.Equal(t, 1, h.coord.Session().Summary().Kills)
}

func TestTick_TravelingSendsNextStep(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathFound)
	h.nav.active = true
	h.nav.step, h.nav.hasStep = world.North, true
	h.status.set(&parse.Stats{HP: intPtr(100), MaxHP: intPtr(100)})

	require.True(t, h.coord.Tick())
	assert.Equal(t, []string{"north"}, h.cmd.commands())
	assert.Equal(t, StateTraveling, h.coord.State())
}

func TestTick_TravelingArrives(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathFound)
	h.nav.active = false

	require.True(t, h.coord.Tick())
	assert.Equal(t, StateStarting, h.coord.State())
}

func TestTick_ExploringNavigatesToUnvisited(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathLost)
	require.Equal(t, StateExploring, h.coord.State())

	h.nav.hasRoom = true
	h.nav.room = world.Room{ID: "room-1"}
	h.nav.unvisited = "room-9"
	h.nav.uvPath = []world.Direction{world.East}

	require.True(t, h.coord.Tick())
	assert.Equal(t, []string{"room-9"}, h.nav.navCalls)
	assert.Equal(t, StateTraveling, h.coord.State())
}

func TestTick_ExploringFallsBackToRandomExit(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathLost)

	h.nav.hasRoom = true
	h.nav.room = world.Room{
		ID: "room-1",
		Exits: map[world.Direction]world.Exit{
			world.North: {TargetRoom: "room-2"},
		},
	}

	require.True(t, h.coord.Tick())
	assert.Equal(t, []string{"north"}, h.cmd.commands())
	assert.Equal(t, StateExploring, h.coord.State())
}

func TestTick_RestingUntilRecovered(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionLowHP)
	require.Equal(t, StateResting, h.coord.State())

	h.status.set(&parse.Stats{HP: intPtr(50), MaxHP: intPtr(100)})
	require.True(t, h.coord.Tick())
	assert.Equal(t, StateResting, h.coord.State())

	h.status.set(&parse.Stats{HP: intPtr(85), MaxHP: intPtr(100)})
	require.True(t, h.coord.Tick())
	assert.Equal(t, StateStarting, h.coord.State())
}

func TestTick_ReturningWalksToSafeZone(t *testing.T) {
	cfg := testBotConfig()
	cfg.SafeZone = "temple"
	h := newHarness(t, cfg)
	h.drive(TransitionStart, TransitionPathFound, TransitionEnemyDetected, TransitionCombatLose)
	require.Equal(t, StateReturning, h.coord.State())

	h.nav.hasRoom = true
	h.nav.room = world.Room{ID: "room-1"}
	h.nav.uvPath = []world.Direction{world.South}
	h.nav.step, h.nav.hasStep = world.South, true

	require.True(t, h.coord.Tick())
	assert.Equal(t, []string{"temple"}, h.nav.navCalls)
	assert.Equal(t, []string{"south"}, h.cmd.commands())

	// Arrival.
	h.nav.room = world.Room{ID: "temple"}
	require.True(t, h.coord.Tick())
	assert.Equal(t, StateResting, h.coord.State())
}

func TestTick_PanicConvertsToError(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.drive(TransitionStart, TransitionPathFound)
	h.status.boom = true

	ok := h.coord.Tick()
	assert.False(t, ok)
	assert.Equal(t, StateError, h.coord.State())

	// The next tick clears the error and resumes.
	h.status.boom = false
	require.True(t, h.coord.Tick())
	assert.Equal(t, StateStarting, h.coord.State())
}

func TestCoordinator_StartStop(t *testing.T) {
	h := newHarness(t, testBotConfig())
	h.status.set(&parse.Stats{HP: intPtr(100), MaxHP: intPtr(100)})

	h.coord.Start(t.Context())
	require.NotNil(t, h.coord.Session())
	assert.NotEqual(t, StateIdle, h.coord.State())

	h.coord.Stop()
	assert.Equal(t, StateIdle, h.coord.State())
	assert.True(t, h.coord.Session().Summary().Finalized)

	// Stop is idempotent.
	h.coord.Stop()
	assert.Equal(t, StateIdle, h.coord.State())
}
