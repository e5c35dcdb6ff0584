package claim_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/factions/internal/game/claim"
)

func key(x, z int) claim.Key { return claim.Key{World: "w", X: x, Z: z} }

func TestClaim_AdjacencyEnforced(t *testing.T) {
	g := claim.NewGrid(claim.Policy{MaxPerFaction: 10, RequireAdjacent: true})
	_, err := g.Claim("F", key(0, 0))
	require.NoError(t, err)

	_, err = g.Claim("F", key(1, 0))
	assert.NoError(t, err)

	_, err = g.Claim("F", key(5, 5))
	assert.ErrorIs(t, err, claim.ErrNotAdjacent)
	assert.Equal(t, 2, g.CountFor("F"))
}

func TestClaim_DiagonalIsNotAdjacent(t *testing.T) {
	g := claim.NewGrid(claim.Policy{RequireAdjacent: true})
	_, err := g.Claim("F", key(0, 0))
	require.NoError(t, err)
	_, err = g.Claim("F", key(1, 1))
	assert.ErrorIs(t, err, claim.ErrNotAdjacent)
}

func TestClaim_AdjacencyIgnoresOtherFactions(t *testing.T) {
	g := claim.NewGrid(claim.Policy{RequireAdjacent: true})
	_, err := g.Claim("F", key(0, 0))
	require.NoError(t, err)
	_, err = g.Claim("G", key(1, 0))
	require.NoError(t, err, "first claim of a faction is never adjacency-checked")
	_, err = g.Claim("G", key(-1, 0))
	assert.ErrorIs(t, err, claim.ErrNotAdjacent)
}

func TestClaim_ValidationOrder(t *testing.T) {
	g := claim.NewGrid(claim.Policy{MaxPerFaction: 1, RequireAdjacent: true, DisabledWorlds: []string{"Nether"}})
	_, err := g.Claim("F", key(0, 0))
	require.NoError(t, err)

	_, err = g.Claim("F", key(0, 0))
	assert.ErrorIs(t, err, claim.ErrAlreadyClaimed, "already-claimed wins over the limit")

	_, err = g.Claim("F", key(9, 9))
	assert.ErrorIs(t, err, claim.ErrLimitReached, "limit wins over adjacency")

	_, err = g.Claim("G", claim.Key{World: "nether", X: 0, Z: 0})
	assert.ErrorIs(t, err, claim.ErrWorldDisabled)
}

func TestClaim_UnlimitedWhenMaxIsZero(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	for i := range 50 {
		_, err := g.Claim("F", key(i*3, 0))
		require.NoError(t, err)
	}
	assert.Equal(t, 50, g.CountFor("F"))
}

func TestUnclaim(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	_, err := g.Claim("F", key(0, 0))
	require.NoError(t, err)

	assert.True(t, g.Unclaim(key(0, 0)))
	assert.False(t, g.Unclaim(key(0, 0)))
	assert.Equal(t, 0, g.CountFor("F"))
	assert.Equal(t, 0, g.Total())
}

func TestTransfer_KeepsTimestamp(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.SetClock(func() time.Time { return t0 })
	_, err := g.Claim("F", key(2, 3))
	require.NoError(t, err)

	g.SetClock(func() time.Time { return t0.Add(time.Hour) })
	assert.True(t, g.Transfer(key(2, 3), "G"))

	c, ok := g.At(key(2, 3))
	require.True(t, ok)
	assert.Equal(t, "G", c.Faction)
	assert.Equal(t, t0, c.ClaimedAt)
	assert.Equal(t, 0, g.CountFor("F"))
	assert.Equal(t, 1, g.CountFor("G"))

	assert.False(t, g.Transfer(key(9, 9), "G"))
}

func TestRemoveAllFor(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	for i := range 5 {
		_, err := g.Claim("F", key(i, 0))
		require.NoError(t, err)
	}
	_, err := g.Claim("G", key(0, 1))
	require.NoError(t, err)

	assert.Equal(t, 5, g.RemoveAllFor("F"))
	assert.Equal(t, 0, g.CountFor("F"))
	assert.Empty(t, g.ForFaction("F"))
	assert.Equal(t, 1, g.Total())
}

func TestRename(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	_, err := g.Claim("Old", key(0, 0))
	require.NoError(t, err)
	_, err = g.Claim("Old", key(0, 1))
	require.NoError(t, err)

	g.Rename("Old", "New")
	assert.Equal(t, 0, g.CountFor("Old"))
	assert.Equal(t, 2, g.CountFor("New"))
	assert.Equal(t, "New", g.OwnerOf(key(0, 1)))
}

func TestInRadius_SquareInclusive(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	for _, k := range []claim.Key{key(0, 0), key(2, 2), key(-2, 2), key(3, 0), {World: "x", X: 0, Z: 0}} {
		_, err := g.Claim("F", k)
		require.NoError(t, err)
	}
	got := g.InRadius(key(0, 0), 2)
	require.Len(t, got, 3, "corners of the square count, other worlds do not")
	assert.Empty(t, g.InRadius(key(0, 0), -1))
}

func TestInWorldSorted(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	for _, k := range []claim.Key{key(3, 0), key(1, 5), key(1, -2), {World: "other", X: 0, Z: 0}} {
		_, err := g.Claim("F", k)
		require.NoError(t, err)
	}
	got := g.InWorld("w")
	require.Len(t, got, 3)
	assert.Equal(t, key(1, -2), got[0].Key)
	assert.Equal(t, key(1, 5), got[1].Key)
	assert.Equal(t, key(3, 0), got[2].Key)
}

func TestChunkOf_FloorDivide(t *testing.T) {
	assert.Equal(t, claim.Key{World: "w", X: 0, Z: 0}, claim.ChunkOf("w", 15.9, 0))
	assert.Equal(t, claim.Key{World: "w", X: 1, Z: -1}, claim.ChunkOf("w", 16, -0.5))
	assert.Equal(t, claim.Key{World: "w", X: -2, Z: -1}, claim.ChunkOf("w", -17, -16))
}

func TestKeyAdjacent(t *testing.T) {
	assert.True(t, key(0, 0).Adjacent(key(0, -1)))
	assert.False(t, key(0, 0).Adjacent(key(1, 1)))
	assert.False(t, key(0, 0).Adjacent(key(0, 0)))
	assert.False(t, key(0, 0).Adjacent(claim.Key{World: "o", X: 1}))
	assert.Equal(t, "w:1:-2", key(1, -2).String())
}

func TestRestore_RebuildsCounts(t *testing.T) {
	g := claim.NewGrid(claim.Policy{})
	g.Restore([]claim.Claim{
		{Key: key(0, 0), Faction: "F"},
		{Key: key(0, 1), Faction: "F"},
		{Key: key(0, 1), Faction: "G"},
	})
	assert.Equal(t, 1, g.CountFor("F"))
	assert.Equal(t, 1, g.CountFor("G"))
	assert.Equal(t, 2, g.Total())
}

// Property: every cell has at most one owner and per-faction counts agree with the cells.
func TestPropertyUniquenessAndCounts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := claim.NewGrid(claim.Policy{
			MaxPerFaction:   rapid.IntRange(0, 8).Draw(t, "max"),
			RequireAdjacent: rapid.Bool().Draw(t, "adjacent"),
		})
		factions := []string{"A", "B", "C"}
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := range steps {
			f := rapid.SampledFrom(factions).Draw(t, "faction")
			k := key(rapid.IntRange(-3, 3).Draw(t, "x"), rapid.IntRange(-3, 3).Draw(t, "z"))
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0, 1:
				before, owned := g.At(k)
				_, err := g.Claim(f, k)
				if owned && !errors.Is(err, claim.ErrAlreadyClaimed) {
					t.Fatalf("step %d: claiming owned cell %v (owner %s) returned %v", i, k, before.Faction, err)
				}
			case 2:
				g.Unclaim(k)
			case 3:
				g.Transfer(k, f)
			}
		}
		seen := make(map[claim.Key]bool)
		counts := make(map[string]int)
		for _, c := range g.All() {
			if seen[c.Key] {
				t.Fatalf("duplicate claim for %v", c.Key)
			}
			seen[c.Key] = true
			counts[c.Faction]++
		}
		for _, f := range factions {
			if counts[f] != g.CountFor(f) {
				t.Fatalf("count mismatch for %s: cells=%d CountFor=%d", f, counts[f], g.CountFor(f))
			}
		}
	})
}
