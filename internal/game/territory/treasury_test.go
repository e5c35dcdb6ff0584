package territory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/factions/internal/game/economy"
	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/rank"
	"github.com/cory-johannsen/factions/internal/game/territory"
)

func TestDepositWithdraw(t *testing.T) {
	fx := newFixture(t)
	fx.found(t, "alice", "Iron")
	ctx := context.Background()

	balance, err := fx.svc.Deposit(ctx, "alice", 200)
	require.NoError(t, err)
	assert.Equal(t, 200.0, balance)
	assert.Equal(t, 800.0, fx.funds(t, "alice"))

	balance, err = fx.svc.Withdraw(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, 150.0, balance)
	assert.Equal(t, 850.0, fx.funds(t, "alice"))

	_, err = fx.svc.Withdraw(ctx, "alice", 1000)
	require.ErrorIs(t, err, faction.ErrInsufficientFunds)
	got, err := fx.svc.Balance("iron")
	require.NoError(t, err)
	assert.Equal(t, 150.0, got)
}

func TestDeposit_Validation(t *testing.T) {
	fx := newFixture(t)
	fx.found(t, "alice", "Iron")
	fx.join(t, "Iron", "bob", rank.DefaultTable().Recruit())
	ctx := context.Background()

	_, err := fx.svc.Deposit(ctx, "alice", 0)
	require.ErrorIs(t, err, faction.ErrInvalidAmount)
	_, err = fx.svc.Deposit(ctx, "alice", -5)
	require.ErrorIs(t, err, faction.ErrInvalidAmount)
	_, err = fx.svc.Deposit(ctx, "bob", 10)
	require.ErrorIs(t, err, territory.ErrNoPermission)
	_, err = fx.svc.Deposit(ctx, "alice", 5000)
	require.ErrorIs(t, err, territory.ErrCannotAfford)

	got, err := fx.svc.Balance("Iron")
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Equal(t, 1000.0, fx.funds(t, "alice"))
}

func TestDeposit_HandlerOverridesAmount(t *testing.T) {
	fx := newFixture(t)
	fx.found(t, "alice", "Iron")
	fx.bus.Subscribe(event.FactionDeposit, func(e *event.Event) { e.SetAmount(10) })

	balance, err := fx.svc.Deposit(context.Background(), "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, 10.0, balance)
	assert.Equal(t, 990.0, fx.funds(t, "alice"))
}

func TestDeposit_Cancelled(t *testing.T) {
	fx := newFixture(t)
	fx.found(t, "alice", "Iron")
	fx.bus.Subscribe(event.FactionDeposit, func(e *event.Event) { e.Cancel() })

	_, err := fx.svc.Deposit(context.Background(), "alice", 100)
	require.ErrorIs(t, err, territory.ErrCancelled)
	assert.Equal(t, 1000.0, fx.funds(t, "alice"))
}

func TestWithdraw_RollsBackWhenPaymentFails(t *testing.T) {
	fx := newFixture(t)
	fx.found(t, "alice", "Iron")
	ctx := context.Background()
	_, err := fx.svc.Deposit(ctx, "alice", 200)
	require.NoError(t, err)
	seen := fx.record()

	fx.wallet.FailCredits(true)
	balance, err := fx.svc.Withdraw(ctx, "alice", 50)
	require.ErrorIs(t, err, economy.ErrUnavailable)
	assert.Equal(t, 200.0, balance)
	assert.Equal(t, 800.0, fx.funds(t, "alice"))
	assert.Empty(t, *seen)

	got, err := fx.svc.Balance("Iron")
	require.NoError(t, err)
	assert.Equal(t, 200.0, got)
}

func TestTreasury_EconomyDisabled(t *testing.T) {
	fx := newFixture(t, withoutEconomy())
	fx.found(t, "alice", "Iron")

	_, err := fx.svc.Deposit(context.Background(), "alice", 10)
	require.ErrorIs(t, err, territory.ErrEconomyDisabled)
	_, err = fx.svc.Withdraw(context.Background(), "alice", 10)
	require.ErrorIs(t, err, territory.ErrEconomyDisabled)
}

func TestDeposit_FailureNotifiesNobody(t *testing.T) {
	fx := newFixture(t)
	fx.found(t, "alice", "Iron")
	ctx := context.Background()
	seen := fx.record()
	vetoed := 0
	fx.bus.Subscribe(event.FactionDeposit, func(*event.Event) { vetoed++ })

	_, err := fx.svc.Deposit(ctx, "alice", 5000)
	require.ErrorIs(t, err, territory.ErrCannotAfford)
	assert.Zero(t, vetoed, "unaffordable deposit is rejected before publishing")

	fx.wallet.FailDebits(true)
	balance, err := fx.svc.Deposit(ctx, "alice", 100)
	require.ErrorIs(t, err, economy.ErrUnavailable)
	assert.Zero(t, balance)
	assert.Equal(t, 1, vetoed)
	assert.Empty(t, *seen)
	assert.Equal(t, 1000.0, fx.funds(t, "alice"))

	fx.wallet.FailDebits(false)
	_, err = fx.svc.Deposit(ctx, "alice", 100)
	require.NoError(t, err)
	require.Equal(t, []event.Kind{event.FactionDeposit}, kinds(*seen))
	assert.Equal(t, 100.0, (*seen)[0].Amount)
}
