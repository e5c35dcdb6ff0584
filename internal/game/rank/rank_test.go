package rank_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/factions/internal/game/rank"
)

func TestDefaultTable_Order(t *testing.T) {
	tbl := rank.DefaultTable()
	all := tbl.All()
	require.Len(t, all, 5)
	names := []string{"Recruit", "Member", "Officer", "Co-Leader", "Leader"}
	for i, r := range all {
		assert.Equal(t, i+1, r.Level)
		assert.Equal(t, names[i], r.Name)
	}
}

func TestNextPrevious_Boundaries(t *testing.T) {
	tbl := rank.DefaultTable()

	_, ok := tbl.Next(tbl.Leader())
	assert.False(t, ok)
	_, ok = tbl.Previous(tbl.Recruit())
	assert.False(t, ok)

	next, ok := tbl.Next(tbl.Member())
	require.True(t, ok)
	assert.True(t, next.Equal(tbl.Officer()))

	prev, ok := tbl.Previous(tbl.Member())
	require.True(t, ok)
	assert.True(t, prev.Equal(tbl.Recruit()))
}

func TestFromName(t *testing.T) {
	tbl := rank.DefaultTable()
	assert.Equal(t, rank.LevelRecruit, tbl.FromName("RECRUIT").Level)
	assert.Equal(t, rank.LevelCoLeader, tbl.FromName("co-leader").Level)
	assert.Equal(t, rank.LevelCoLeader, tbl.FromName("coleader").Level)
	assert.Equal(t, rank.LevelLeader, tbl.FromName("Leader").Level)
	assert.Equal(t, rank.LevelMember, tbl.FromName("emperor").Level)
	assert.Equal(t, rank.LevelMember, tbl.FromName("").Level)
}

func TestLookup(t *testing.T) {
	tbl := rank.DefaultTable()
	r, ok := tbl.Lookup("Co_Leader")
	require.True(t, ok)
	assert.Equal(t, rank.LevelCoLeader, r.Level)

	_, ok = tbl.Lookup("emperor")
	assert.False(t, ok)
}

func TestFromLevel_DefaultsToMember(t *testing.T) {
	tbl := rank.DefaultTable()
	assert.Equal(t, "Officer", tbl.FromLevel(3).Name)
	assert.Equal(t, "Member", tbl.FromLevel(0).Name)
	assert.Equal(t, "Member", tbl.FromLevel(42).Name)
}

func TestHasPermission(t *testing.T) {
	tbl := rank.DefaultTable()
	assert.True(t, tbl.Leader().HasPermission(rank.PermWithdraw), "leader wildcard")
	assert.True(t, tbl.CoLeader().HasPermission(rank.PermWithdraw))
	assert.False(t, tbl.Officer().HasPermission(rank.PermWithdraw))
	assert.True(t, tbl.Officer().HasPermission(rank.PermClaim))
	assert.False(t, tbl.Recruit().HasPermission(rank.PermDeposit))
}

func TestOutranksAndCanTarget(t *testing.T) {
	tbl := rank.DefaultTable()
	assert.True(t, tbl.Officer().Outranks(tbl.Member()))
	assert.False(t, tbl.Officer().Outranks(tbl.Officer()))
	assert.True(t, tbl.Officer().CanTarget(tbl.Officer()))
	assert.False(t, tbl.Member().CanTarget(tbl.Officer()))
}

func TestNewTable_Overrides(t *testing.T) {
	tbl, err := rank.NewTable(map[string]rank.Override{
		"officer":   {Name: "Captain", Prefix: "[Cpt]"},
		"co-leader": {Permissions: []string{rank.PermChat}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Captain", tbl.Officer().Name)
	assert.Equal(t, "[Cpt]", tbl.Officer().Prefix)
	assert.Equal(t, rank.LevelOfficer, tbl.FromName("captain").Level)
	assert.Equal(t, rank.LevelOfficer, tbl.FromName("officer").Level, "canonical key still resolves")
	assert.False(t, tbl.CoLeader().HasPermission(rank.PermKick))
	assert.Equal(t, "coleader", tbl.Key(tbl.CoLeader()))
}

func TestNewTable_Errors(t *testing.T) {
	_, err := rank.NewTable(map[string]rank.Override{"emperor": {Name: "Emperor"}})
	assert.Error(t, err)

	_, err = rank.NewTable(map[string]rank.Override{"recruit": {Name: "Member"}})
	assert.Error(t, err, "duplicate display names must be rejected")
}

func TestEqual_ByNameAndLevel(t *testing.T) {
	a := rank.Rank{Name: "Member", Level: 2, Prefix: "[M]"}
	b := rank.Rank{Name: "Member", Level: 2, Prefix: "[X]"}
	c := rank.Rank{Name: "Member", Level: 3}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

// Property: Next then Previous is the identity for every rank below Leader.
func TestPropertyNextPreviousRoundTrip(t *testing.T) {
	tbl := rank.DefaultTable()
	rapid.Check(t, func(t *rapid.T) {
		level := rapid.IntRange(rank.LevelRecruit, rank.LevelCoLeader).Draw(t, "level")
		r := tbl.FromLevel(level)
		up, ok := tbl.Next(r)
		if !ok {
			t.Fatalf("Next(%s) failed", r)
		}
		down, ok := tbl.Previous(up)
		if !ok || !down.Equal(r) {
			t.Fatalf("Previous(Next(%s)) = %s", r, down)
		}
	})
}

// Property: FromName always yields one of the five canonical levels.
func TestPropertyFromNameTotal(t *testing.T) {
	tbl := rank.DefaultTable()
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")
		r := tbl.FromName(name)
		if r.Level < rank.LevelRecruit || r.Level > rank.LevelLeader {
			t.Fatalf("FromName(%q) returned level %d", name, r.Level)
		}
	})
}
