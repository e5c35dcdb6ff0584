package faction_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/factions/internal/game/faction"
)

func TestInvitation_Lifecycle(t *testing.T) {
	fx := newFixture(t, false)
	fx.create(t, "alice", "Red")

	exp, err := fx.reg.Invite("Red", "bob")
	require.NoError(t, err)
	assert.Equal(t, fx.clock.now().Add(5*time.Minute), exp)
	assert.True(t, fx.reg.HasInvitation("red", "bob"))
	assert.Equal(t, []string{"Red"}, fx.reg.Invitations("bob"))

	assert.True(t, fx.reg.RevokeInvitation("Red", "bob"))
	assert.False(t, fx.reg.RevokeInvitation("Red", "bob"))
	assert.ErrorIs(t, fx.reg.AcceptInvitation("Red", "bob"), faction.ErrNoInvitation)

	_, err = fx.reg.Invite("Red", "bob")
	require.NoError(t, err)
	require.NoError(t, fx.reg.AcceptInvitation("Red", "bob"))
	r, ok := fx.reg.RankOf("bob")
	require.True(t, ok)
	assert.Equal(t, "Member", r.Name)
	assert.False(t, fx.reg.HasInvitation("Red", "bob"), "joining consumes invitations")

	_, err = fx.reg.Invite("Red", "alice")
	assert.ErrorIs(t, err, faction.ErrAlreadyMember)
}

func TestInvitation_ExpiresLazily(t *testing.T) {
	fx := newFixture(t, false)
	fx.create(t, "alice", "Red")
	_, err := fx.reg.Invite("Red", "bob")
	require.NoError(t, err)

	fx.clock.advance(5*time.Minute - time.Second)
	assert.True(t, fx.reg.HasInvitation("Red", "bob"))

	fx.clock.advance(time.Second)
	assert.ErrorIs(t, fx.reg.AcceptInvitation("Red", "bob"), faction.ErrInvitationExpired)
	assert.ErrorIs(t, fx.reg.AcceptInvitation("Red", "bob"), faction.ErrNoInvitation, "expired entry was collected")
	assert.Empty(t, fx.reg.Invitations("bob"))
}

func TestAlliance_AcceptIsSymmetric(t *testing.T) {
	fx := newFixture(t, false)
	a := fx.create(t, "alice", "A")
	b := fx.create(t, "bob", "B")

	_, err := fx.reg.RequestAlliance("A", "B")
	require.NoError(t, err)
	_, err = fx.reg.RequestAlliance("B", "A")
	require.NoError(t, err)
	assert.True(t, fx.reg.HasAllianceRequest("A", "B"))

	require.NoError(t, fx.reg.AcceptAlliance("B", "A"))
	assert.True(t, a.IsAlly("B"))
	assert.True(t, b.IsAlly("A"))
	assert.False(t, fx.reg.HasAllianceRequest("B", "A"), "reverse request cleared")
	assert.Empty(t, fx.reg.AllianceRequests("A"))

	_, err = fx.reg.RequestAlliance("A", "B")
	assert.ErrorIs(t, err, faction.ErrAlreadyAllied)
}

func TestAlliance_Errors(t *testing.T) {
	fx := newFixture(t, false)
	fx.create(t, "alice", "A")
	fx.create(t, "bob", "B")

	_, err := fx.reg.RequestAlliance("A", "a")
	assert.ErrorIs(t, err, faction.ErrSelfRelation)
	_, err = fx.reg.RequestAlliance("A", "Z")
	assert.ErrorIs(t, err, faction.ErrFactionNotFound)

	assert.ErrorIs(t, fx.reg.AcceptAlliance("B", "A"), faction.ErrNoRequest)
	assert.ErrorIs(t, fx.reg.DenyAlliance("B", "A"), faction.ErrNoRequest)
	assert.ErrorIs(t, fx.reg.BreakAlliance("A", "B"), faction.ErrNotAllied)
	assert.ErrorIs(t, fx.reg.MakeNeutral("A", "B"), faction.ErrNotEnemies)
}

func TestAlliance_Expiry(t *testing.T) {
	fx := newFixture(t, false)
	fx.create(t, "alice", "A")
	fx.create(t, "bob", "B")
	_, err := fx.reg.RequestAlliance("A", "B")
	require.NoError(t, err)

	fx.clock.advance(10 * time.Minute)
	assert.ErrorIs(t, fx.reg.AcceptAlliance("B", "A"), faction.ErrRequestExpired)
	assert.ErrorIs(t, fx.reg.AcceptAlliance("B", "A"), faction.ErrNoRequest)
}

func TestAlliance_DenyAndBreak(t *testing.T) {
	fx := newFixture(t, false)
	a := fx.create(t, "alice", "A")
	b := fx.create(t, "bob", "B")

	_, err := fx.reg.RequestAlliance("A", "B")
	require.NoError(t, err)
	require.NoError(t, fx.reg.DenyAlliance("B", "A"))
	assert.False(t, fx.reg.HasAllianceRequest("A", "B"))

	_, err = fx.reg.RequestAlliance("A", "B")
	require.NoError(t, err)
	require.NoError(t, fx.reg.AcceptAlliance("B", "A"))
	require.NoError(t, fx.reg.BreakAlliance("B", "A"))
	assert.False(t, a.IsAlly("B"))
	assert.False(t, b.IsAlly("A"))
}

func TestDeclareEnemy_BreaksAlliance(t *testing.T) {
	fx := newFixture(t, false)
	a := fx.create(t, "alice", "A")
	b := fx.create(t, "bob", "B")
	_, err := fx.reg.RequestAlliance("A", "B")
	require.NoError(t, err)
	require.NoError(t, fx.reg.AcceptAlliance("B", "A"))

	require.NoError(t, fx.reg.DeclareEnemy("A", "B"))
	assert.False(t, a.IsAlly("B"))
	assert.False(t, b.IsAlly("A"))
	assert.True(t, a.IsEnemy("B"))
	assert.True(t, b.IsEnemy("A"))
	assert.ErrorIs(t, fx.reg.DeclareEnemy("B", "A"), faction.ErrAlreadyEnemies)

	require.NoError(t, fx.reg.MakeNeutral("B", "A"))
	assert.False(t, a.IsEnemy("B"))
	assert.False(t, b.IsEnemy("A"))
}

func TestAcceptAlliance_ClearsEnemies(t *testing.T) {
	fx := newFixture(t, false)
	a := fx.create(t, "alice", "A")
	b := fx.create(t, "bob", "B")
	require.NoError(t, fx.reg.DeclareEnemy("A", "B"))

	_, err := fx.reg.RequestAlliance("A", "B")
	require.NoError(t, err)
	require.NoError(t, fx.reg.AcceptAlliance("B", "A"))
	assert.False(t, a.IsEnemy("B"))
	assert.False(t, b.IsEnemy("A"))
	assert.True(t, a.IsAlly("B"))
}

// Property: relationships stay symmetric and a pair is never both allied and
// enemies, for any sequence of diplomacy operations.
func TestPropertyDiplomacySymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fx := newFixture(t, false)
		names := []string{"A", "B", "C", "D"}
		for i, n := range names {
			fx.create(t, string(rune('a'+i)), n)
		}
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for range steps {
			x := rapid.SampledFrom(names).Draw(t, "x")
			y := rapid.SampledFrom(names).Draw(t, "y")
			switch rapid.IntRange(0, 6).Draw(t, "op") {
			case 0:
				_, _ = fx.reg.RequestAlliance(x, y)
			case 1:
				_ = fx.reg.AcceptAlliance(x, y)
			case 2:
				_ = fx.reg.DenyAlliance(x, y)
			case 3:
				_ = fx.reg.BreakAlliance(x, y)
			case 4:
				_ = fx.reg.DeclareEnemy(x, y)
			case 5:
				_ = fx.reg.MakeNeutral(x, y)
			case 6:
				fx.clock.advance(time.Duration(rapid.IntRange(0, 15).Draw(t, "minutes")) * time.Minute)
			}
		}
		for _, x := range names {
			fx1, _ := fx.reg.Get(x)
			if fx1.IsAlly(x) || fx1.IsEnemy(x) {
				t.Fatalf("%s relates to itself", x)
			}
			for _, y := range names {
				fy, _ := fx.reg.Get(y)
				if fx1.IsAlly(y) != fy.IsAlly(x) {
					t.Fatalf("asymmetric alliance %s/%s", x, y)
				}
				if fx1.IsEnemy(y) != fy.IsEnemy(x) {
					t.Fatalf("asymmetric enmity %s/%s", x, y)
				}
				if fx1.IsAlly(y) && fx1.IsEnemy(y) {
					t.Fatalf("%s is both ally and enemy of %s", x, y)
				}
			}
		}
	})
}
