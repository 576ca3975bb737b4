package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RoomInfo is a snapshot of a mapped room passed to Lua callbacks.
type RoomInfo struct {
	ID   string
	Name string
	Zone string
}

// trigger is one compiled regex trigger with its Lua callback.
type trigger struct {
	pattern *regexp.Regexp
	fn      *lua.LFunction
}

// Engine owns one sandboxed LState running all user trigger scripts.
//
// The LState is single-threaded; the mutex serializes every VM entry, so
// OnLine and Call are safe for concurrent use after LoadScripts completes.
type Engine struct {
	mu        sync.Mutex
	state     *lua.LState
	triggers  []trigger
	variables map[string]string
	instLimit int
	logger    *zap.Logger

	// Injected after construction. nil = no-op in the bot.* modules.
	Send               func(cmd string) error
	Echo               func(msg string)
	CreateRoom         func(id, name string) error
	HandleMovement     func(dir, name string, visibleExits []string, roomID string) error
	AddUnexploredExits func(roomID string, dirs []string) error
	SetRoomZone        func(roomID, zone string) error
	SearchRooms        func(q string) []RoomInfo
	CurrentRoom        func() (RoomInfo, bool)
}

// NewEngine creates an Engine with an empty trigger list.
//
// Precondition: logger must not be nil; instLimit >= 0, 0 uses the default.
func NewEngine(instLimit int, logger *zap.Logger) *Engine {
	if logger == nil {
		panic("scripting.NewEngine: logger must not be nil")
	}
	return &Engine{
		variables: make(map[string]string),
		instLimit: instLimit,
		logger:    logger,
	}
}

// LoadScripts creates the sandboxed VM, registers the bot.* modules, then
// executes every *.lua file in scriptDir in lexicographic order. Calling it
// again replaces the VM and drops all previously registered triggers.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: returns error on Lua load failure; the old VM (if any)
// survives a failed reload.
func (e *Engine) LoadScripts(scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting.LoadScripts: reading %q: %w", scriptDir, err)
	}
	var luaFiles []string
	for _, ent := range entries {
		if !ent.IsDir() && filepath.Ext(ent.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, ent.Name()))
		}
	}
	sort.Strings(luaFiles)

	// The whole load runs under the lock: trigger callbacks assume every VM
	// entry is serialized, including the initial DoFile pass.
	e.mu.Lock()
	defer e.mu.Unlock()

	L := NewSandboxedState()
	var staged []trigger
	e.registerModules(L, &staged)

	for _, path := range luaFiles {
		cancel := armLimit(L, e.instLimit)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting.LoadScripts: loading %q: %w", path, err)
		}
	}

	if e.state != nil {
		e.state.Close()
	}
	e.state = L
	e.triggers = staged
	e.logger.Info("trigger scripts loaded",
		zap.Int("files", len(luaFiles)),
		zap.Int("triggers", len(staged)))
	return nil
}

// TriggerCount returns the number of registered triggers.
func (e *Engine) TriggerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.triggers)
}

// OnLine feeds one line of game text to every matching trigger, in
// registration order. Trigger callbacks receive the full match and each
// capture group as string arguments. Lua runtime errors are logged at Warn
// level and never propagated; one bad trigger must not mute the rest.
func (e *Engine) OnLine(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return
	}
	for _, tr := range e.triggers {
		m := tr.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		args := make([]lua.LValue, len(m))
		for i, g := range m {
			args[i] = lua.LString(g)
		}
		cancel := armLimit(e.state, e.instLimit)
		err := e.state.CallByParam(lua.P{Fn: tr.fn, NRet: 0, Protect: true}, args...)
		cancel()
		if err != nil {
			e.logger.Warn("trigger callback failed",
				zap.String("pattern", tr.pattern.String()),
				zap.Error(err))
		}
	}
}

// Call invokes the named Lua global function, if defined.
//
// Postcondition: Returns (LNil, nil) when the function is not defined or no
// VM is loaded. Lua runtime errors are returned, not swallowed: explicit
// calls, unlike triggers, have a caller who can handle them.
func (e *Engine) Call(fn string, args ...lua.LValue) (lua.LValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return lua.LNil, nil
	}
	f := e.state.GetGlobal(fn)
	if f == lua.LNil {
		return lua.LNil, nil
	}
	cancel := armLimit(e.state, e.instLimit)
	defer cancel()
	if err := e.state.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, fmt.Errorf("scripting.Call: %q: %w", fn, err)
	}
	ret := e.state.Get(-1)
	e.state.Pop(1)
	return ret, nil
}

// Variable returns a script variable set via bot.set_var.
func (e *Engine) Variable(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.variables[name]
	return v, ok
}

// SetVariable sets a script variable readable via bot.get_var.
func (e *Engine) SetVariable(name, value string) {
	e.mu.Lock()
	e.variables[name] = value
	e.mu.Unlock()
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		e.state.Close()
		e.state = nil
		e.triggers = nil
	}
}
