package economy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/factions/internal/game/economy"
	"github.com/cory-johannsen/factions/internal/game/fault"
)

func TestParseCostType(t *testing.T) {
	for in, want := range map[string]economy.CostType{
		"money": economy.CostMoney, "STRENGTH": economy.CostStrength, " both ": economy.CostBoth, "none": economy.CostNone,
	} {
		got, err := economy.ParseCostType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := economy.ParseCostType("gold")
	assert.Error(t, err)

	assert.True(t, economy.CostBoth.UsesMoney())
	assert.True(t, economy.CostBoth.UsesStrength())
	assert.False(t, economy.CostStrength.UsesMoney())
	assert.False(t, economy.CostNone.UsesStrength())
}

func TestBank_DisabledIsFree(t *testing.T) {
	bank := economy.NewBank(nil, time.Second)
	ctx := context.Background()
	assert.False(t, bank.Enabled())

	ok, err := bank.CanAfford(ctx, "alice", 1e9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, bank.Charge(ctx, "alice", 1e9))
	assert.NoError(t, bank.Pay(ctx, "alice", 5))
}

func TestBank_ChargeAndPay(t *testing.T) {
	mem := economy.NewMemoryProvider(map[string]float64{"alice": 100})
	bank := economy.NewBank(mem, time.Second)
	ctx := context.Background()

	ok, err := bank.CanAfford(ctx, "alice", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, bank.Charge(ctx, "alice", 60))
	err = bank.Charge(ctx, "alice", 60)
	assert.ErrorIs(t, err, economy.ErrInsufficientFunds)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))

	require.NoError(t, bank.Pay(ctx, "alice", 10))
	bal, err := bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, bal, 1e-9)

	assert.ErrorIs(t, bank.Charge(ctx, "alice", -1), economy.ErrInvalidAmount)
}

func TestBank_ProviderFailureIsExternal(t *testing.T) {
	mem := economy.NewMemoryProvider(map[string]float64{"alice": 100})
	mem.FailCredits(true)
	bank := economy.NewBank(mem, time.Second)

	err := bank.Pay(context.Background(), "alice", 10)
	assert.ErrorIs(t, err, economy.ErrUnavailable)
	assert.Equal(t, fault.ExternalFailure, fault.KindOf(err))
}

func TestBank_Timeout(t *testing.T) {
	mem := economy.NewMemoryProvider(map[string]float64{"alice": 100})
	mem.SetDelay(time.Second)
	bank := economy.NewBank(mem, 20*time.Millisecond)

	err := bank.Charge(context.Background(), "alice", 10)
	assert.ErrorIs(t, err, economy.ErrTimeout)
	assert.Equal(t, fault.ExternalFailure, fault.KindOf(err))

	mem.SetDelay(0)
	bal, err := bank.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, bal, 1e-9, "timed-out debit must not apply")
}
