// Package territory is the single consistency domain over the faction
// registry, the claim grid and the power ledger.
//
// Every mutating operation takes one exclusive lock, validates, publishes its
// domain events for veto, applies the change and persists. Accepted events
// reach bus observers only after the commit; an operation that fails after
// publishing drops them. Hot-path queries share a
// read lock, so a reader observes either the state before a mutation or the
// state after it.
package territory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/economy"
	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/fault"
	"github.com/cory-johannsen/factions/internal/game/power"
	"github.com/cory-johannsen/factions/internal/game/presence"
	"github.com/cory-johannsen/factions/internal/game/rank"
	"github.com/cory-johannsen/factions/internal/storage"
)

var (
	ErrNotInFaction         = fault.New(fault.NotFound, "actor is not in a faction")
	ErrNoPermission         = fault.New(fault.PermissionDenied, "rank lacks permission")
	ErrNotOwnLand           = fault.New(fault.PermissionDenied, "land is not owned by your faction")
	ErrOverclaimDisabled    = fault.New(fault.PermissionDenied, "overclaiming is disabled")
	ErrOverclaimOwnLand     = fault.New(fault.Conflict, "land already belongs to your faction")
	ErrInsufficientPower    = fault.New(fault.Conflict, "insufficient power to overclaim")
	ErrCannotAfford         = fault.New(fault.Conflict, "cannot afford the cost")
	ErrCancelled            = fault.New(fault.Conflict, "cancelled by an event handler")
	ErrEconomyDisabled      = fault.New(fault.PermissionDenied, "economy is disabled")
	ErrHomeOutsideTerritory = fault.New(fault.PermissionDenied, "home must be inside your territory")
	ErrNoHome               = fault.New(fault.NotFound, "faction has no home")
	ErrCannotTarget         = fault.New(fault.PermissionDenied, "target rank is not below yours")
)

// Rules are the gameplay parameters applied by the service.
type Rules struct {
	// DeathPenalty is the power delta applied to a victim, normally negative.
	DeathPenalty int
	// KillReward is the power delta applied to the killer.
	KillReward int

	CostType          economy.CostType
	ClaimCostMoney    float64
	ClaimCostStrength int

	OverclaimEnabled    bool
	OverclaimCost       float64
	RequirePowerRatio   bool
	OverclaimPowerRatio float64

	DisablePvPOwnLand  bool
	DisablePvPAllyLand bool
	WildernessPvP      bool

	RequireHomeInOwnLand bool
	FlyEnabled           bool

	// FlushInterval of zero saves synchronously after each mutation.
	FlushInterval time.Duration
	SaveTimeout   time.Duration
}

// DefaultRules returns the stock gameplay parameters.
func DefaultRules() Rules {
	return Rules{
		DeathPenalty:         -10,
		KillReward:           5,
		CostType:             economy.CostBoth,
		ClaimCostMoney:       100,
		ClaimCostStrength:    10,
		OverclaimEnabled:     true,
		OverclaimCost:        500,
		RequirePowerRatio:    true,
		OverclaimPowerRatio:  2,
		DisablePvPOwnLand:    true,
		DisablePvPAllyLand:   true,
		WildernessPvP:        true,
		RequireHomeInOwnLand: true,
		FlyEnabled:           true,
		SaveTimeout:          10 * time.Second,
	}
}

// Service owns the territory state.
type Service struct {
	mu       sync.RWMutex
	reg      *faction.Registry
	grid     *claim.Grid
	ledger   *power.Ledger
	ranks    *rank.Table
	presence *presence.Tracker
	bank     *economy.Bank
	bus      *event.Bus
	gateway  storage.Gateway
	rules    Rules
	logger   *zap.Logger

	outbox []*event.Event // accepted, awaiting commit; guarded by mu

	saveMu sync.Mutex
	dirty  atomic.Uint64 // generation of the last applied mutation
	saved  atomic.Uint64 // generation of the last persisted snapshot
}

// NewService wires the territory domain.
//
// Precondition: every argument is non-nil; bank may wrap a nil provider.
// Postcondition: The returned service is empty until Load is called.
func NewService(
	reg *faction.Registry,
	tracker *presence.Tracker,
	bank *economy.Bank,
	bus *event.Bus,
	gateway storage.Gateway,
	rules Rules,
	logger *zap.Logger,
) *Service {
	if rules.SaveTimeout <= 0 {
		rules.SaveTimeout = 10 * time.Second
	}
	return &Service{
		reg:      reg,
		grid:     reg.Grid(),
		ledger:   reg.Ledger(),
		ranks:    reg.Ranks(),
		presence: tracker,
		bank:     bank,
		bus:      bus,
		gateway:  gateway,
		rules:    rules,
		logger:   logger,
	}
}

// Rules returns the active gameplay parameters.
func (s *Service) Rules() Rules { return s.rules }

// Bus returns the event bus the service publishes on.
func (s *Service) Bus() *event.Bus { return s.bus }

// Ranks returns the rank table.
func (s *Service) Ranks() *rank.Table { return s.ranks }

// Load replaces the in-memory state with the gateway's snapshot.
func (s *Service) Load(ctx context.Context) error {
	snap, err := s.gateway.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading territory state: %w", err)
	}
	s.mu.Lock()
	defer s.unlock()
	s.restoreLocked(snap)
	s.logger.Info("territory state loaded",
		zap.Int("factions", s.reg.Count()),
		zap.Int("claims", s.grid.Total()),
		zap.Int("actors", len(snap.Power)),
	)
	return nil
}

// Snapshot returns the current state in persistence form.
func (s *Service) Snapshot() storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Flush persists the current state if it changed since the last save.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.RLock()
	gen := s.dirty.Load()
	if gen == s.saved.Load() {
		s.mu.RUnlock()
		return nil
	}
	snap := s.snapshotLocked()
	s.mu.RUnlock()
	return s.write(ctx, snap, gen)
}

// Dirty reports whether mutations are waiting to be persisted.
func (s *Service) Dirty() bool {
	return s.dirty.Load() != s.saved.Load()
}

// commitLocked records a mutation, saves it in synchronous mode and releases
// the queued events to observers.
// Precondition: s.mu is held for writing.
func (s *Service) commitLocked() {
	gen := s.dirty.Add(1)
	if s.rules.FlushInterval <= 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.rules.SaveTimeout)
		_ = s.write(ctx, s.snapshotLocked(), gen)
		cancel()
	}
	out := s.outbox
	s.outbox = nil
	for _, e := range out {
		s.bus.Notify(e)
	}
}

// unlock discards events of an operation that never committed and releases
// the write lock.
func (s *Service) unlock() {
	s.outbox = nil
	s.mu.Unlock()
}

// write saves snap tagged with generation gen. Older generations never
// overwrite newer ones. Failures are logged; memory stays authoritative.
func (s *Service) write(ctx context.Context, snap storage.Snapshot, gen uint64) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if gen <= s.saved.Load() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.rules.SaveTimeout)
	defer cancel()
	start := time.Now()
	if err := s.gateway.Save(ctx, snap); err != nil {
		s.logger.Error("persisting territory state",
			zap.Uint64("generation", gen),
			zap.Error(err),
		)
		return fmt.Errorf("persisting territory state: %w", err)
	}
	s.saved.Store(gen)
	s.logger.Debug("territory state persisted",
		zap.Uint64("generation", gen),
		zap.Int("factions", len(snap.Factions)),
		zap.Int("claims", len(snap.Claims)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// publish offers e to subscribers and reports whether it survived
// cancellation. A surviving event is queued for the next commitLocked.
func (s *Service) publish(e *event.Event) bool {
	if !s.bus.Publish(e) {
		return false
	}
	s.outbox = append(s.outbox, e)
	return true
}

func (s *Service) publishPower(c faction.PowerChange) {
	if c.Faction == "" {
		return
	}
	s.publish(&event.Event{
		Kind:     event.PowerChanged,
		Faction:  c.Faction,
		Actor:    c.Actor,
		OldPower: c.Old,
		NewPower: c.New,
	})
}

// memberWith resolves actor's faction and checks perm.
// Precondition: s.mu is held.
func (s *Service) memberWith(actor, perm string) (*faction.Faction, rank.Rank, error) {
	f, ok := s.reg.FactionOf(actor)
	if !ok {
		return nil, rank.Rank{}, ErrNotInFaction
	}
	r := f.Members[actor].Rank
	if perm != "" && !r.HasPermission(perm) {
		return nil, r, ErrNoPermission
	}
	return f, r, nil
}

// Authorize returns the name of actor's faction if actor's rank grants perm.
func (s *Service) Authorize(actor, perm string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, _, err := s.memberWith(actor, perm)
	if err != nil {
		return "", err
	}
	return f.Name, nil
}
