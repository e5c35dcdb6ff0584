package main

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/config"
	"github.com/cory-johannsen/factions/internal/eventfeed"
	"github.com/cory-johannsen/factions/internal/factionserver"
	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/economy"
	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/power"
	"github.com/cory-johannsen/factions/internal/game/presence"
	"github.com/cory-johannsen/factions/internal/game/rank"
	"github.com/cory-johannsen/factions/internal/game/territory"
	"github.com/cory-johannsen/factions/internal/scripting"
	"github.com/cory-johannsen/factions/internal/storage"
	"github.com/cory-johannsen/factions/internal/storage/postgres"
	"github.com/cory-johannsen/factions/internal/storage/sqlite"
	"github.com/cory-johannsen/factions/internal/storage/yamlstore"
)

// App is every long-lived component of the daemon.
type App struct {
	Service *territory.Service
	Gateway storage.Gateway
	Flusher *territory.Flusher
	Scripts *scripting.Manager
	Feed    *eventfeed.Feed
	RPC     *factionserver.Server
}

var providerSet = wire.NewSet(
	provideRanks,
	provideGrid,
	provideLedger,
	presence.NewTracker,
	provideRegistry,
	provideBank,
	event.NewBus,
	provideGateway,
	provideRules,
	territory.NewService,
	provideFlusher,
	provideScripts,
	provideFeed,
	provideGRPCConfig,
	factionserver.NewServer,
)

func provideRanks(cfg *config.Config) (*rank.Table, error) {
	overrides := make(map[string]rank.Override, len(cfg.Ranks))
	for key, r := range cfg.Ranks {
		overrides[key] = rank.Override{Name: r.Name, Prefix: r.Prefix, Permissions: r.Permissions}
	}
	return rank.NewTable(overrides)
}

func provideGrid(cfg *config.Config) *claim.Grid {
	return claim.NewGrid(claim.Policy{
		MaxPerFaction:   cfg.Claiming.MaxClaims,
		RequireAdjacent: cfg.Claiming.RequireAdjacent,
		DisabledWorlds:  cfg.Claiming.DisabledWorlds,
	})
}

func provideLedger(cfg *config.Config) (*power.Ledger, error) {
	return power.NewLedger(cfg.Power.Starting, cfg.Power.MaxPerPlayer)
}

func provideRegistry(cfg *config.Config, ranks *rank.Table, grid *claim.Grid, ledger *power.Ledger, tracker *presence.Tracker) *faction.Registry {
	return faction.NewRegistry(ranks, grid, ledger, faction.Options{
		InviteTTL:           cfg.Diplomacy.InviteTTL,
		AllyRequestTTL:      cfg.Diplomacy.AllyRequestTTL,
		CountOfflineMembers: cfg.Power.CountOfflineMembers,
		Presence:            tracker,
	})
}

// provideBank returns a bank over the configured provider; "none" yields a
// disabled bank.
func provideBank(cfg *config.Config) *economy.Bank {
	var provider economy.Provider
	if cfg.Economy.Provider == "memory" {
		provider = economy.NewMemoryProvider(nil)
	}
	return economy.NewBank(provider, cfg.Economy.Timeout)
}

func provideGateway(ctx context.Context, cfg *config.Config) (storage.Gateway, error) {
	switch cfg.Storage.Backend {
	case storage.BackendPostgres:
		if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
			return nil, err
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := pool.Health(ctx, cfg.Storage.SaveTimeout); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewStore(pool), nil
	case storage.BackendSQLite:
		return sqlite.Open(cfg.Storage.Path)
	case storage.BackendYAML:
		return yamlstore.New(cfg.Storage.Path), nil
	case storage.BackendMemory:
		return storage.NewMemory(storage.Snapshot{}), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func provideRules(cfg *config.Config) (territory.Rules, error) {
	cost, err := economy.ParseCostType(cfg.Claiming.CostType)
	if err != nil {
		return territory.Rules{}, err
	}
	return territory.Rules{
		DeathPenalty:         cfg.Power.DeathPenalty,
		KillReward:           cfg.Power.KillReward,
		CostType:             cost,
		ClaimCostMoney:       cfg.Economy.ClaimCostMoney,
		ClaimCostStrength:    cfg.Economy.ClaimCostStrength,
		OverclaimEnabled:     cfg.Claiming.OverclaimEnabled,
		OverclaimCost:        cfg.Economy.OverclaimCost,
		RequirePowerRatio:    cfg.Claiming.RequirePowerRatio,
		OverclaimPowerRatio:  cfg.Claiming.OverclaimPowerRatio,
		DisablePvPOwnLand:    cfg.PvP.DisableOwnLand,
		DisablePvPAllyLand:   cfg.PvP.DisableAllyLand,
		WildernessPvP:        cfg.PvP.Wilderness,
		RequireHomeInOwnLand: cfg.Homes.RequireOwnLand,
		FlyEnabled:           cfg.Fly.Enabled,
		FlushInterval:        cfg.Storage.FlushInterval,
		SaveTimeout:          cfg.Storage.SaveTimeout,
	}, nil
}

func provideFlusher(cfg *config.Config, svc *territory.Service, logger *zap.Logger) *territory.Flusher {
	return territory.NewFlusher(svc, cfg.Storage.FlushInterval, logger)
}

// provideScripts attaches the Lua hooks to bus. With no scripting.dir the
// manager is attached with an empty VM.
func provideScripts(cfg *config.Config, bus *event.Bus, logger *zap.Logger) (*scripting.Manager, error) {
	m := scripting.NewManager(logger, cfg.Scripting.InstructionLimit)
	if cfg.Scripting.Dir != "" {
		if err := m.LoadDir(cfg.Scripting.Dir); err != nil {
			m.Close()
			return nil, err
		}
	}
	m.Attach(bus)
	return m, nil
}

func provideFeed(cfg *config.Config, bus *event.Bus, logger *zap.Logger) *eventfeed.Feed {
	f := eventfeed.New(cfg.Feed, logger)
	f.Attach(bus)
	return f
}

func provideGRPCConfig(cfg *config.Config) config.GRPCConfig {
	return cfg.GRPC
}
