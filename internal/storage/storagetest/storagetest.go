// Package storagetest holds the behaviour every storage.Gateway must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/factions/internal/storage"
)

// Sample returns a snapshot touching every record field: three factions with
// an alliance, a rivalry, a home, and claims in two factions.
func Sample() storage.Snapshot {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return storage.Snapshot{
		Factions: []storage.FactionRecord{
			{
				Name:      "Gold",
				Leader:    "bob",
				CreatedAt: created,
				Members:   []storage.MemberRecord{{Actor: "bob", Rank: "leader", JoinedAt: created}},
				Allies:    []string{"Iron"},
			},
			{
				Name:        "Iron",
				Leader:      "alice",
				Description: "forge first",
				Balance:     250.5,
				Home:        &storage.HomeRecord{World: "world", X: 1.5, Y: 64, Z: -3},
				CreatedAt:   created,
				Members: []storage.MemberRecord{
					{Actor: "alice", Rank: "leader", JoinedAt: created},
					{Actor: "carol", Rank: "member", JoinedAt: created.Add(time.Minute)},
				},
				Allies:  []string{"Gold"},
				Enemies: []string{"Rust"},
			},
			{
				Name:      "Rust",
				Leader:    "dave",
				CreatedAt: created,
				Members:   []storage.MemberRecord{{Actor: "dave", Rank: "leader", JoinedAt: created}},
			},
		},
		Claims: []storage.ClaimRecord{
			{World: "world", X: 0, Z: 0, Faction: "Iron", ClaimedAt: created},
			{World: "world", X: 0, Z: 1, Faction: "Iron", ClaimedAt: created},
			{World: "world", X: 5, Z: -2, Faction: "Rust", ClaimedAt: created},
		},
		Power: map[string]int{"alice": 20, "bob": 14, "carol": 0, "dave": 3},
	}
}

// Run exercises open against the shared Gateway contract. open must return a
// fresh, empty gateway for each call.
func Run(t *testing.T, open func(t *testing.T) storage.Gateway) {
	t.Run("EmptyLoad", func(t *testing.T) {
		g := open(t)
		snap, err := g.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, snap.Factions)
		assert.Empty(t, snap.Claims)
		assert.NotNil(t, snap.Power)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		g := open(t)
		ctx := context.Background()
		want := Sample()
		require.NoError(t, g.Save(ctx, want))

		got, err := g.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		g := open(t)
		ctx := context.Background()
		require.NoError(t, g.Save(ctx, Sample()))

		next := Sample()
		next.Factions = next.Factions[2:]
		next.Claims = next.Claims[2:]
		next.Power = map[string]int{"dave": 4}
		require.NoError(t, g.Save(ctx, next))

		got, err := g.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got.Factions, 1)
		assert.Equal(t, "Rust", got.Factions[0].Name)
		assert.Nil(t, got.Factions[0].Home)
		assert.Len(t, got.Claims, 1)
		assert.Equal(t, map[string]int{"dave": 4}, got.Power)
	})

	t.Run("SaveEmpty", func(t *testing.T) {
		g := open(t)
		ctx := context.Background()
		require.NoError(t, g.Save(ctx, Sample()))
		require.NoError(t, g.Save(ctx, storage.Snapshot{}))

		got, err := g.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got.Factions)
		assert.Empty(t, got.Claims)
		assert.Empty(t, got.Power)
	})
}
