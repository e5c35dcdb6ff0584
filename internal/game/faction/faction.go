// Package faction holds the faction data model, the registry that owns it, and
// the diplomacy queues for invitations and alliance requests.
package faction

import (
	"maps"
	"slices"
	"time"

	"github.com/cory-johannsen/factions/internal/game/fault"
	"github.com/cory-johannsen/factions/internal/game/rank"
)

var (
	ErrNameTaken          = fault.New(fault.Conflict, "faction name already taken")
	ErrInvalidName        = fault.New(fault.Invalid, "invalid faction name")
	ErrAlreadyMember      = fault.New(fault.Conflict, "actor already belongs to a faction")
	ErrFactionNotFound    = fault.New(fault.NotFound, "faction not found")
	ErrNotMember          = fault.New(fault.NotFound, "actor is not a member of the faction")
	ErrAlreadyHighest     = fault.New(fault.Conflict, "rank is already the highest")
	ErrAlreadyLowest      = fault.New(fault.Conflict, "rank is already the lowest")
	ErrLeadershipTransfer = fault.New(fault.Conflict, "leadership transfer required")
	ErrAlreadyLeader      = fault.New(fault.Conflict, "actor is already the leader")
	ErrLeaderCannotLeave  = fault.New(fault.Conflict, "leader cannot leave while other members remain")
	ErrInvalidRank        = fault.New(fault.Invalid, "invalid rank")
	ErrInvalidAmount      = fault.New(fault.Invalid, "amount must be positive")
	ErrInsufficientFunds  = fault.New(fault.Conflict, "insufficient treasury balance")
)

// Member is one actor's membership record.
type Member struct {
	Actor    string
	Rank     rank.Rank
	JoinedAt time.Time
}

// Home is a faction's teleport point.
type Home struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

// Faction is a player organization. Values returned outside the registry are clones.
type Faction struct {
	Name        string
	Leader      string
	Description string
	Members     map[string]*Member
	Allies      map[string]struct{}
	Enemies     map[string]struct{}
	Balance     float64
	Home        *Home
	CreatedAt   time.Time
}

func newFaction(name string, createdAt time.Time) *Faction {
	return &Faction{
		Name:      name,
		Members:   make(map[string]*Member),
		Allies:    make(map[string]struct{}),
		Enemies:   make(map[string]struct{}),
		CreatedAt: createdAt,
	}
}

// Member returns the membership record for actor.
func (f *Faction) Member(actor string) (Member, bool) {
	m, ok := f.Members[actor]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// HasMember reports whether actor belongs to f.
func (f *Faction) HasMember(actor string) bool {
	_, ok := f.Members[actor]
	return ok
}

// IsAlly reports whether other is in f's ally set.
func (f *Faction) IsAlly(other string) bool {
	_, ok := f.Allies[other]
	return ok
}

// IsEnemy reports whether other is in f's enemy set.
func (f *Faction) IsEnemy(other string) bool {
	_, ok := f.Enemies[other]
	return ok
}

// Size returns the member count.
func (f *Faction) Size() int { return len(f.Members) }

// MemberNames returns the member actors sorted by rank (highest first), then name.
func (f *Faction) MemberNames() []string {
	out := slices.Collect(maps.Keys(f.Members))
	slices.SortFunc(out, func(a, b string) int {
		la, lb := f.Members[a].Rank.Level, f.Members[b].Rank.Level
		if la != lb {
			return lb - la
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return out
}

// AllyNames returns the sorted ally set.
func (f *Faction) AllyNames() []string {
	return slices.Sorted(maps.Keys(f.Allies))
}

// EnemyNames returns the sorted enemy set.
func (f *Faction) EnemyNames() []string {
	return slices.Sorted(maps.Keys(f.Enemies))
}

// Clone returns a deep copy.
func (f *Faction) Clone() *Faction {
	c := *f
	c.Members = make(map[string]*Member, len(f.Members))
	for k, m := range f.Members {
		mm := *m
		mm.Rank.Permissions = slices.Clone(m.Rank.Permissions)
		c.Members[k] = &mm
	}
	c.Allies = maps.Clone(f.Allies)
	c.Enemies = maps.Clone(f.Enemies)
	if f.Home != nil {
		h := *f.Home
		c.Home = &h
	}
	return &c
}

// Relation classifies how one faction regards another.
type Relation int

const (
	RelationNone Relation = iota
	RelationSelf
	RelationAlly
	RelationEnemy
	RelationNeutral
)

func (r Relation) String() string {
	switch r {
	case RelationSelf:
		return "own"
	case RelationAlly:
		return "ally"
	case RelationEnemy:
		return "enemy"
	case RelationNeutral:
		return "neutral"
	default:
		return "none"
	}
}
