package territory_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/economy"
	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/power"
	"github.com/cory-johannsen/factions/internal/game/presence"
	"github.com/cory-johannsen/factions/internal/game/rank"
	"github.com/cory-johannsen/factions/internal/game/territory"
	"github.com/cory-johannsen/factions/internal/storage"
)

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

const startingPower = 20

type fixture struct {
	svc     *territory.Service
	store   *storage.Memory
	wallet  *economy.MemoryProvider
	tracker *presence.Tracker
	bus     *event.Bus
	logs    *observer.ObservedLogs
}

type fixtureOpt func(*fixtureConfig)

type fixtureConfig struct {
	rules    territory.Rules
	economy  bool
	snapshot storage.Snapshot
	policy   claim.Policy
	seed     map[string]float64
}

func withRules(mutate func(*territory.Rules)) fixtureOpt {
	return func(c *fixtureConfig) { mutate(&c.rules) }
}

func withoutEconomy() fixtureOpt {
	return func(c *fixtureConfig) { c.economy = false }
}

func withSnapshot(snap storage.Snapshot) fixtureOpt {
	return func(c *fixtureConfig) { c.snapshot = snap }
}

func withPolicy(p claim.Policy) fixtureOpt {
	return func(c *fixtureConfig) { c.policy = p }
}

func withFunds(seed map[string]float64) fixtureOpt {
	return func(c *fixtureConfig) { c.seed = seed }
}

func newFixture(t testingT, opts ...fixtureOpt) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		rules:   territory.DefaultRules(),
		economy: true,
		policy:  claim.Policy{MaxPerFaction: 50},
		seed:    map[string]float64{"alice": 1000, "bob": 1000, "carol": 1000, "dave": 1000},
	}
	for _, o := range opts {
		o(&cfg)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	ledger, err := power.NewLedger(startingPower, 100)
	require.NoError(t, err)
	grid := claim.NewGrid(cfg.policy)
	tracker := presence.NewTracker()
	reg := faction.NewRegistry(rank.DefaultTable(), grid, ledger, faction.Options{Presence: tracker})

	wallet := economy.NewMemoryProvider(cfg.seed)
	var provider economy.Provider
	if cfg.economy {
		provider = wallet
	}
	bank := economy.NewBank(provider, time.Second)
	bus := event.NewBus(logger)
	store := storage.NewMemory(cfg.snapshot)

	svc := territory.NewService(reg, tracker, bank, bus, store, cfg.rules, logger)
	require.NoError(t, svc.Load(context.Background()))
	return &fixture{svc: svc, store: store, wallet: wallet, tracker: tracker, bus: bus, logs: logs}
}

// found creates a faction and connects its founder.
func (fx *fixture) found(t testingT, founder, name string) {
	t.Helper()
	_, err := fx.svc.CreateFaction(founder, name)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Connect(founder))
}

// join adds actor to name at rk and connects them.
func (fx *fixture) join(t testingT, name, actor string, rk rank.Rank) {
	t.Helper()
	require.NoError(t, fx.svc.AddMember(name, actor, rk))
	require.NoError(t, fx.svc.Connect(actor))
}

func (fx *fixture) funds(t testingT, actor string) float64 {
	t.Helper()
	b, err := fx.wallet.Balance(context.Background(), actor)
	require.NoError(t, err)
	return b
}

// record collects every committed event.
func (fx *fixture) record() *[]event.Event {
	var seen []event.Event
	fx.bus.Observe(func(e *event.Event) { seen = append(seen, *e) })
	return &seen
}

func kinds(events []event.Event) []event.Kind {
	out := make([]event.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func cell(x, z int) claim.Key { return claim.Key{World: "world", X: x, Z: z} }
