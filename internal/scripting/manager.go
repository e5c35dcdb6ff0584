package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/event"
)

// HandlerName returns the Lua global invoked for events of kind k,
// for example "on_land_claimed".
func HandlerName(k event.Kind) string {
	return "on_" + string(k)
}

// ObserverName returns the Lua global invoked once an event of kind k has
// been committed, for example "after_land_claimed".
func ObserverName(k event.Kind) string {
	return "after_" + string(k)
}

// Manager owns one sandboxed VM and dispatches bus events to it.
//
// A handler receives the event as a table. Returning false from an on_
// handler cancels a cancellable event; returning a number from
// on_faction_deposit replaces the deposited amount. Any other return value,
// and anything an after_ handler returns, is ignored.
//
// Manager is safe for concurrent use; invocations are serialized.
type Manager struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	logger *zap.Logger
}

// NewManager creates a Manager with an empty VM.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a Manager whose VM has the factions module registered.
func NewManager(logger *zap.Logger, instLimit int) *Manager {
	m := &Manager{limit: instLimit, logger: logger}
	m.L = m.newState()
	return m
}

func (m *Manager) newState() *lua.LState {
	L := NewSandboxedState()
	m.RegisterModules(L)
	return L
}

// LoadDir replaces the VM with a fresh one running every *.lua file in dir in
// lexicographic order.
//
// Precondition: dir must be a readable directory.
// Postcondition: On error the previous VM stays active.
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	L := m.newState()
	for _, path := range files {
		if err := Limited(L, m.limit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	m.swap(L)
	m.logger.Info("scripts loaded", zap.String("dir", dir), zap.Int("files", len(files)))
	return nil
}

// LoadString runs src in the current VM under the instruction limit.
func (m *Manager) LoadString(src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := Limited(m.L, m.limit, func() error { return m.L.DoString(src) }); err != nil {
		return fmt.Errorf("scripting: loading chunk: %w", err)
	}
	return nil
}

func (m *Manager) swap(L *lua.LState) {
	m.mu.Lock()
	old := m.L
	m.L = L
	m.mu.Unlock()
	old.Close()
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.L.Close()
}

// Attach subscribes the manager to every event on bus: on_<kind> handlers run
// before the effect and may veto it, after_<kind> handlers run once it is
// committed.
//
// Postcondition: The returned function detaches both.
func (m *Manager) Attach(bus *event.Bus) (detach func()) {
	unsub := bus.SubscribeAll(m.Handle)
	unobserve := bus.Observe(m.Observe)
	return func() {
		unsub()
		unobserve()
	}
}

// Handle dispatches e to its on_<kind> handler, if one is defined. Lua runtime
// errors and budget exhaustion are logged at Warn and leave e unchanged.
func (m *Manager) Handle(e *event.Event) {
	ret, ok := m.call(HandlerName(e.Kind), e)
	if !ok {
		return
	}
	switch v := ret.(type) {
	case lua.LBool:
		if !bool(v) {
			e.Cancel()
		}
	case lua.LNumber:
		e.SetAmount(float64(v))
	}
}

// Observe dispatches a committed e to its after_<kind> handler. Return values
// are ignored.
func (m *Manager) Observe(e *event.Event) {
	m.call(ObserverName(e.Kind), e)
}

func (m *Manager) call(name string, e *event.Event) (lua.LValue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn := m.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, false
	}

	var ret lua.LValue = lua.LNil
	err := Limited(m.L, m.limit, func() error {
		if err := m.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, eventTable(m.L, e)); err != nil {
			return err
		}
		ret = m.L.Get(-1)
		m.L.Pop(1)
		return nil
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("handler", name),
			zap.Stringer("event_id", e.ID),
			zap.Error(err),
		)
		return lua.LNil, false
	}
	return ret, true
}

func eventTable(L *lua.LState, e *event.Event) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(e.ID.String()))
	t.RawSetString("kind", lua.LString(e.Kind))
	t.RawSetString("at", lua.LNumber(e.At.Unix()))
	t.RawSetString("cancellable", lua.LBool(e.Kind.Cancellable()))
	for k, v := range map[string]string{
		"faction":  e.Faction,
		"actor":    e.Actor,
		"target":   e.Target,
		"previous": e.Previous,
		"relation": e.Relation,
		"world":    e.World,
	} {
		if v != "" {
			t.RawSetString(k, lua.LString(v))
		}
	}
	switch e.Kind {
	case event.LandClaimed, event.LandUnclaimed:
		t.RawSetString("x", lua.LNumber(e.X))
		t.RawSetString("z", lua.LNumber(e.Z))
	case event.PowerChanged:
		t.RawSetString("old_power", lua.LNumber(e.OldPower))
		t.RawSetString("new_power", lua.LNumber(e.NewPower))
	case event.FactionDeposit, event.FactionWithdraw:
		t.RawSetString("amount", lua.LNumber(e.Amount))
	}
	return t
}
