package event_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/factions/internal/game/event"
)

func TestPublish_FillsIdentity(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	e := &event.Event{Kind: event.FactionCreated, Faction: "Red"}
	assert.True(t, bus.Publish(e))
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.At.IsZero())
}

func TestPublish_OrderKindThenAll(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var order []string
	bus.SubscribeAll(func(*event.Event) { order = append(order, "all") })
	bus.Subscribe(event.LandClaimed, func(*event.Event) { order = append(order, "kind") })
	bus.Subscribe(event.PowerChanged, func(*event.Event) { order = append(order, "other") })

	bus.Publish(&event.Event{Kind: event.LandClaimed})
	assert.Equal(t, []string{"kind", "all"}, order)
}

func TestCancel_OnlyCancellableKinds(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	bus.SubscribeAll(func(e *event.Event) { e.Cancel() })

	assert.False(t, bus.Publish(&event.Event{Kind: event.LandClaimed}))
	assert.False(t, bus.Publish(&event.Event{Kind: event.FactionDeposit}))
	assert.True(t, bus.Publish(&event.Event{Kind: event.FactionCreated}))
}

func TestSetAmount(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	bus.Subscribe(event.FactionDeposit, func(e *event.Event) { e.SetAmount(e.Amount / 2) })

	e := &event.Event{Kind: event.FactionDeposit, Amount: 100}
	require.True(t, bus.Publish(e))
	assert.InDelta(t, 50.0, e.Amount, 1e-9)

	other := &event.Event{Kind: event.FactionWithdraw, Amount: 100}
	other.SetAmount(1)
	assert.InDelta(t, 100.0, other.Amount, 1e-9)
}

func TestUnsubscribe(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	calls := 0
	unsub := bus.Subscribe(event.FactionJoined, func(*event.Event) { calls++ })
	unsubAll := bus.SubscribeAll(func(*event.Event) { calls++ })

	bus.Publish(&event.Event{Kind: event.FactionJoined})
	unsub()
	unsubAll()
	bus.Publish(&event.Event{Kind: event.FactionJoined})
	assert.Equal(t, 2, calls)
}

func TestPanickingHandlerIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := event.NewBus(zap.New(core))
	reached := false
	bus.Subscribe(event.FactionLeft, func(*event.Event) { panic("boom") })
	bus.Subscribe(event.FactionLeft, func(*event.Event) { reached = true })

	assert.True(t, bus.Publish(&event.Event{Kind: event.FactionLeft}))
	assert.True(t, reached, "later handlers still run")
	assert.Equal(t, 1, logs.FilterMessage("event handler panicked").Len())
}

func TestObserversOnlySeeNotify(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var observed []event.Kind
	unobserve := bus.Observe(func(e *event.Event) { observed = append(observed, e.Kind) })

	e := &event.Event{Kind: event.FactionDeposit, Amount: 5}
	require.True(t, bus.Publish(e))
	assert.Empty(t, observed, "publish alone must not reach observers")

	bus.Notify(e)
	assert.Equal(t, []event.Kind{event.FactionDeposit}, observed)

	unobserve()
	bus.Notify(e)
	assert.Len(t, observed, 1)
}
