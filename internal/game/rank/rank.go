// Package rank defines the ordered permission levels inside a faction.
package rank

import (
	"fmt"
	"slices"
	"strings"
)

// Canonical rank levels, ascending.
const (
	LevelRecruit  = 1
	LevelMember   = 2
	LevelOfficer  = 3
	LevelCoLeader = 4
	LevelLeader   = 5
)

// Permission strings checked by the command layer.
const (
	PermAll      = "*"
	PermChat     = "faction.chat"
	PermHome     = "faction.home"
	PermSetHome  = "faction.sethome"
	PermDeposit  = "faction.deposit"
	PermWithdraw = "faction.withdraw"
	PermInvite   = "faction.invite"
	PermKick     = "faction.kick"
	PermPromote  = "faction.promote"
	PermDemote   = "faction.demote"
	PermClaim    = "faction.claim"
	PermUnclaim  = "faction.unclaim"
	PermAlly     = "faction.ally"
	PermEnemy    = "faction.enemy"
)

// Rank is an immutable permission level. Equality is by (Name, Level).
type Rank struct {
	Name        string
	Prefix      string
	Level       int
	Permissions []string
}

// HasPermission reports whether the rank grants perm, either directly or via "*".
func (r Rank) HasPermission(perm string) bool {
	return slices.Contains(r.Permissions, perm) || slices.Contains(r.Permissions, PermAll)
}

// Equal reports whether r and o denote the same rank.
func (r Rank) Equal(o Rank) bool {
	return r.Name == o.Name && r.Level == o.Level
}

// IsZero reports whether r is the zero value (no rank chosen).
func (r Rank) IsZero() bool {
	return r.Level == 0 && r.Name == ""
}

// Outranks reports whether r is strictly above o, the check used for promote,
// demote, and kick.
func (r Rank) Outranks(o Rank) bool {
	return r.Level > o.Level
}

// CanTarget reports whether r is at or above o.
func (r Rank) CanTarget(o Rank) bool {
	return r.Level >= o.Level
}

func (r Rank) String() string {
	return r.Name
}

// Override replaces the display fields of one canonical rank. Empty fields keep
// the default; a nil Permissions keeps the default set.
type Override struct {
	Name        string
	Prefix      string
	Permissions []string
}

// Table is the ordered list of the five canonical ranks. It is immutable after
// construction and safe for concurrent use.
type Table struct {
	ranks [5]Rank
}

var canonicalKeys = [5]string{"recruit", "member", "officer", "coleader", "leader"}

func defaults() [5]Rank {
	return [5]Rank{
		{Name: "Recruit", Prefix: "[R]", Level: LevelRecruit, Permissions: []string{PermChat, PermHome}},
		{Name: "Member", Prefix: "[M]", Level: LevelMember, Permissions: []string{PermChat, PermHome, PermDeposit}},
		{Name: "Officer", Prefix: "[O]", Level: LevelOfficer, Permissions: []string{
			PermChat, PermHome, PermDeposit, PermInvite, PermClaim, PermUnclaim,
		}},
		{Name: "Co-Leader", Prefix: "[C]", Level: LevelCoLeader, Permissions: []string{
			PermChat, PermHome, PermDeposit, PermWithdraw, PermInvite, PermKick,
			PermPromote, PermDemote, PermClaim, PermUnclaim, PermAlly, PermEnemy,
		}},
		{Name: "Leader", Prefix: "[L]", Level: LevelLeader, Permissions: []string{PermAll}},
	}
}

// DefaultTable returns the table with the built-in names, prefixes and permissions.
func DefaultTable() *Table {
	return &Table{ranks: defaults()}
}

// NewTable builds a table applying overrides keyed by canonical rank key
// ("recruit", "member", "officer", "coleader", "leader").
//
// Postcondition: Returns an error on an unknown key or on two ranks sharing a name.
func NewTable(overrides map[string]Override) (*Table, error) {
	t := &Table{ranks: defaults()}
	for key, o := range overrides {
		idx := slices.Index(canonicalKeys[:], normalize(key))
		if idx < 0 {
			return nil, fmt.Errorf("unknown rank %q", key)
		}
		if o.Name != "" {
			t.ranks[idx].Name = o.Name
		}
		if o.Prefix != "" {
			t.ranks[idx].Prefix = o.Prefix
		}
		if o.Permissions != nil {
			t.ranks[idx].Permissions = slices.Clone(o.Permissions)
		}
	}
	seen := make(map[string]bool, len(t.ranks))
	for _, r := range t.ranks {
		n := strings.ToLower(r.Name)
		if seen[n] {
			return nil, fmt.Errorf("duplicate rank name %q", r.Name)
		}
		seen[n] = true
	}
	return t, nil
}

// All returns the ranks in ascending order.
func (t *Table) All() []Rank {
	out := make([]Rank, len(t.ranks))
	copy(out, t.ranks[:])
	return out
}

// Recruit returns the lowest rank.
func (t *Table) Recruit() Rank { return t.ranks[0] }

// Member returns the default rank for new members.
func (t *Table) Member() Rank { return t.ranks[1] }

// Officer returns the level 3 rank.
func (t *Table) Officer() Rank { return t.ranks[2] }

// CoLeader returns the level 4 rank.
func (t *Table) CoLeader() Rank { return t.ranks[3] }

// Leader returns the highest rank.
func (t *Table) Leader() Rank { return t.ranks[4] }

// Next returns the rank one level above r.
//
// Postcondition: Returns (zero, false) when r is the Leader or unknown.
func (t *Table) Next(r Rank) (Rank, bool) {
	return t.byLevel(r.Level + 1)
}

// Previous returns the rank one level below r.
//
// Postcondition: Returns (zero, false) when r is the Recruit or unknown.
func (t *Table) Previous(r Rank) (Rank, bool) {
	return t.byLevel(r.Level - 1)
}

// FromName resolves a rank by canonical key or configured display name,
// case-insensitively. Unknown input yields Member.
func (t *Table) FromName(name string) Rank {
	if r, ok := t.Lookup(name); ok {
		return r
	}
	return t.Member()
}

// Lookup resolves name by canonical key or display name, ignoring case,
// spaces, dashes and underscores.
func (t *Table) Lookup(name string) (Rank, bool) {
	n := normalize(name)
	if idx := slices.Index(canonicalKeys[:], n); idx >= 0 {
		return t.ranks[idx], true
	}
	for _, r := range t.ranks {
		if normalize(r.Name) == n {
			return r, true
		}
	}
	return Rank{}, false
}

// FromLevel resolves a rank by level. Unmapped levels yield Member.
func (t *Table) FromLevel(level int) Rank {
	if r, ok := t.byLevel(level); ok {
		return r
	}
	return t.Member()
}

// Key returns the canonical key of r ("recruit" .. "leader"), used for persistence.
func (t *Table) Key(r Rank) string {
	if r.Level < LevelRecruit || r.Level > LevelLeader {
		return canonicalKeys[1]
	}
	return canonicalKeys[r.Level-1]
}

func (t *Table) byLevel(level int) (Rank, bool) {
	if level < LevelRecruit || level > LevelLeader {
		return Rank{}, false
	}
	return t.ranks[level-1], true
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}
