// Package presence tracks which actors are connected and where they stand.
package presence

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cory-johannsen/factions/internal/game/fault"
)

var (
	ErrAlreadyConnected = fault.New(fault.Conflict, "actor already connected")
	ErrNotConnected     = fault.New(fault.NotFound, "actor not connected")
)

// Position is a world location.
type Position struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

// Session is one connected actor.
type Session struct {
	// Actor is the stable actor identifier.
	Actor string
	// Position is the last reported location; zero until the first move.
	Position Position
	// ConnectedAt is when the session started.
	ConnectedAt time.Time
}

// Tracker tracks connected actors and per-world occupancy.
// All methods are safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*Session        // actor → session
	worlds   map[string]map[string]bool // world → set of actors
	now      func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*Session),
		worlds:   make(map[string]map[string]bool),
		now:      time.Now,
	}
}

// Connect registers a session for actor.
//
// Precondition: actor must be non-empty.
// Postcondition: Returns ErrAlreadyConnected if a session exists.
func (t *Tracker) Connect(actor string) (Session, error) {
	if actor == "" {
		return Session{}, fmt.Errorf("connect: %w", fault.New(fault.Invalid, "empty actor"))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[actor]; ok {
		return Session{}, ErrAlreadyConnected
	}
	s := &Session{Actor: actor, ConnectedAt: t.now()}
	t.sessions[actor] = s
	return *s, nil
}

// Disconnect removes actor's session and world occupancy.
//
// Postcondition: Returns ErrNotConnected if no session exists.
func (t *Tracker) Disconnect(actor string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[actor]
	if !ok {
		return ErrNotConnected
	}
	t.leaveWorld(actor, s.Position.World)
	delete(t.sessions, actor)
	return nil
}

// Move records a new position for actor.
//
// Postcondition: Returns the previous position, or ErrNotConnected.
func (t *Tracker) Move(actor string, pos Position) (Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[actor]
	if !ok {
		return Position{}, ErrNotConnected
	}
	old := s.Position
	if old.World != pos.World {
		t.leaveWorld(actor, old.World)
		if t.worlds[pos.World] == nil {
			t.worlds[pos.World] = make(map[string]bool)
		}
		t.worlds[pos.World][actor] = true
	}
	s.Position = pos
	return old, nil
}

// IsOnline reports whether actor has a session.
func (t *Tracker) IsOnline(actor string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[actor]
	return ok
}

// Get returns a copy of actor's session.
func (t *Tracker) Get(actor string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[actor]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Online returns every connected actor, sorted.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.sessions))
}

// InWorld returns the connected actors last seen in world, sorted.
func (t *Tracker) InWorld(world string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.worlds[world]))
}

// Count returns the number of connected actors.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *Tracker) leaveWorld(actor, world string) {
	if world == "" {
		return
	}
	if set, ok := t.worlds[world]; ok {
		delete(set, actor)
		if len(set) == 0 {
			delete(t.worlds, world)
		}
	}
}
