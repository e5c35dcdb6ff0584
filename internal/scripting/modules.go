package scripting

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/event"
)

// RegisterModules defines the factions global in L: factions.log(level, msg)
// and one upper-case constant per event kind (factions.LAND_CLAIMED, ...).
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	mod.RawSetString("log", L.NewFunction(m.luaLog))
	for _, k := range event.Kinds {
		mod.RawSetString(strings.ToUpper(string(k)), lua.LString(k))
	}
	L.SetGlobal("factions", mod)
}

func (m *Manager) luaLog(L *lua.LState) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)
	log := m.logger.With(zap.String("source", "lua"))
	switch level {
	case "debug":
		log.Debug(msg)
	case "warn":
		log.Warn(msg)
	case "error":
		log.Error(msg)
	default:
		log.Info(msg)
	}
	return 0
}
