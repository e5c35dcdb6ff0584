package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/config"
	"github.com/cory-johannsen/factions/internal/game/economy"
	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/storage"
	"github.com/cory-johannsen/factions/internal/storage/sqlite"
	"github.com/cory-johannsen/factions/internal/storage/yamlstore"
)

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.LoadFromViper(v)
	require.NoError(t, err)
	cfg.Storage.Backend = storage.BackendMemory
	cfg.GRPC.Port = 0
	return cfg
}

func TestProvideGateway(t *testing.T) {
	ctx := context.Background()
	cfg := defaultConfig(t)

	g, err := provideGateway(ctx, &cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, g)

	cfg.Storage.Backend = storage.BackendYAML
	cfg.Storage.Path = filepath.Join(t.TempDir(), "factions.yaml")
	g, err = provideGateway(ctx, &cfg)
	require.NoError(t, err)
	assert.IsType(t, &yamlstore.Store{}, g)

	cfg.Storage.Backend = storage.BackendSQLite
	cfg.Storage.Path = filepath.Join(t.TempDir(), "factions.db")
	g, err = provideGateway(ctx, &cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, g)
	require.NoError(t, g.Close())

	cfg.Storage.Backend = "mongo"
	_, err = provideGateway(ctx, &cfg)
	assert.Error(t, err)
}

func TestProvideRules(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Claiming.CostType = "money"
	cfg.PvP.Wilderness = false
	cfg.Storage.FlushInterval = time.Minute

	rules, err := provideRules(&cfg)
	require.NoError(t, err)
	assert.Equal(t, economy.CostMoney, rules.CostType)
	assert.False(t, rules.WildernessPvP)
	assert.Equal(t, -10, rules.DeathPenalty)
	assert.Equal(t, time.Minute, rules.FlushInterval)

	cfg.Claiming.CostType = "gems"
	_, err = provideRules(&cfg)
	assert.Error(t, err)
}

func TestProvideRanks(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Ranks = map[string]config.RankConfig{"officer": {Name: "Captain"}}
	ranks, err := provideRanks(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "Captain", ranks.Officer().Name)
}

func TestProvideBank(t *testing.T) {
	cfg := defaultConfig(t)
	assert.False(t, provideBank(&cfg).Enabled())
	cfg.Economy.Provider = "memory"
	assert.True(t, provideBank(&cfg).Enabled())
}

func TestProvideScripts(t *testing.T) {
	cfg := defaultConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spawn.lua"),
		[]byte(`function on_land_claimed(e) return e.world ~= "spawn" end`), 0644))
	cfg.Scripting.Dir = dir

	bus := event.NewBus(zap.NewNop())
	m, err := provideScripts(&cfg, bus, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	assert.False(t, bus.Publish(&event.Event{Kind: event.LandClaimed, World: "spawn"}))

	cfg.Scripting.Dir = filepath.Join(dir, "missing")
	_, err = provideScripts(&cfg, bus, zap.NewNop())
	assert.Error(t, err)
}

func TestInitApp(t *testing.T) {
	cfg := defaultConfig(t)
	app, err := initApp(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Scripts.Close)
	require.NoError(t, app.Service.Load(context.Background()))

	_, err = app.Service.CreateFaction("alice", "Iron")
	require.NoError(t, err)
	assert.Equal(t, []string{"Iron"}, app.Service.Factions())

	lc := newLifecycle(&cfg, app, zap.NewNop())
	assert.NotNil(t, lc)
}
