package scripting

import (
	"regexp"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the bot.* API table into L. Triggers registered
// while scripts load are staged and only committed when the whole load
// succeeds; triggers registered later, from inside a running callback, attach
// directly to the live engine.
//
// Every closure here runs inside OnLine, Call, or LoadScripts, all of which
// hold e.mu: engine fields are accessed without further locking.
func (e *Engine) registerModules(L *lua.LState, staged *[]trigger) {
	bot := L.NewTable()

	L.SetField(bot, "add_trigger", L.NewFunction(func(l *lua.LState) int {
		pattern := l.CheckString(1)
		fn := l.CheckFunction(2)
		re, err := regexp.Compile(pattern)
		if err != nil {
			l.RaiseError("add_trigger: bad pattern %q: %s", pattern, err)
			return 0
		}
		tr := trigger{pattern: re, fn: fn}
		if e.state == L {
			e.triggers = append(e.triggers, tr)
		} else {
			*staged = append(*staged, tr)
		}
		return 0
	}))

	L.SetField(bot, "send", L.NewFunction(func(l *lua.LState) int {
		cmd := l.CheckString(1)
		if e.Send == nil {
			return 0
		}
		if err := e.Send(cmd); err != nil {
			e.logger.Warn("script send failed", zap.String("command", cmd), zap.Error(err))
		}
		return 0
	}))

	L.SetField(bot, "echo", L.NewFunction(func(l *lua.LState) int {
		if e.Echo != nil {
			e.Echo(l.CheckString(1))
		}
		return 0
	}))

	L.SetField(bot, "log", L.NewFunction(func(l *lua.LState) int {
		e.logger.Info("script log", zap.String("message", l.CheckString(1)))
		return 0
	}))

	L.SetField(bot, "get_var", L.NewFunction(func(l *lua.LState) int {
		if v, ok := e.variables[l.CheckString(1)]; ok {
			l.Push(lua.LString(v))
		} else {
			l.Push(lua.LNil)
		}
		return 1
	}))

	L.SetField(bot, "set_var", L.NewFunction(func(l *lua.LState) int {
		e.variables[l.CheckString(1)] = l.CheckString(2)
		return 0
	}))

	L.SetField(bot, "create_room", L.NewFunction(func(l *lua.LState) int {
		if e.CreateRoom == nil {
			return 0
		}
		if err := e.CreateRoom(l.CheckString(1), l.CheckString(2)); err != nil {
			l.RaiseError("create_room: %s", err)
		}
		return 0
	}))

	L.SetField(bot, "handle_movement", L.NewFunction(func(l *lua.LState) int {
		if e.HandleMovement == nil {
			return 0
		}
		dir := l.CheckString(1)
		name := l.CheckString(2)
		exits := tableToStrings(l.CheckTable(3))
		roomID := l.OptString(4, "")
		if err := e.HandleMovement(dir, name, exits, roomID); err != nil {
			l.RaiseError("handle_movement: %s", err)
		}
		return 0
	}))

	L.SetField(bot, "add_unexplored_exits", L.NewFunction(func(l *lua.LState) int {
		if e.AddUnexploredExits == nil {
			return 0
		}
		roomID := l.CheckString(1)
		dirs := tableToStrings(l.CheckTable(2))
		if err := e.AddUnexploredExits(roomID, dirs); err != nil {
			l.RaiseError("add_unexplored_exits: %s", err)
		}
		return 0
	}))

	L.SetField(bot, "set_room_zone", L.NewFunction(func(l *lua.LState) int {
		if e.SetRoomZone == nil {
			return 0
		}
		if err := e.SetRoomZone(l.CheckString(1), l.CheckString(2)); err != nil {
			l.RaiseError("set_room_zone: %s", err)
		}
		return 0
	}))

	L.SetField(bot, "search_rooms", L.NewFunction(func(l *lua.LState) int {
		result := l.NewTable()
		if e.SearchRooms != nil {
			for _, r := range e.SearchRooms(l.CheckString(1)) {
				result.Append(roomToTable(l, r))
			}
		}
		l.Push(result)
		return 1
	}))

	L.SetField(bot, "current_room", L.NewFunction(func(l *lua.LState) int {
		if e.CurrentRoom == nil {
			l.Push(lua.LNil)
			return 1
		}
		r, ok := e.CurrentRoom()
		if !ok {
			l.Push(lua.LNil)
			return 1
		}
		l.Push(roomToTable(l, r))
		return 1
	}))

	L.SetGlobal("bot", bot)
}

// tableToStrings flattens an array-style Lua table into a string slice.
func tableToStrings(t *lua.LTable) []string {
	var out []string
	t.ForEach(func(_, v lua.LValue) {
		out = append(out, v.String())
	})
	return out
}

// roomToTable converts a RoomInfo into a Lua table.
func roomToTable(l *lua.LState, r RoomInfo) *lua.LTable {
	t := l.NewTable()
	l.SetField(t, "id", lua.LString(r.ID))
	l.SetField(t, "name", lua.LString(r.Name))
	l.SetField(t, "zone", lua.LString(r.Zone))
	return t
}
