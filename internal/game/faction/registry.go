package faction

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/power"
	"github.com/cory-johannsen/factions/internal/game/rank"
)

var validName = regexp.MustCompile(`^[\p{L}\p{N}_-]{1,32}$`)

// Presence reports whether an actor is currently connected.
type Presence interface {
	IsOnline(actor string) bool
}

// Options tunes a Registry.
type Options struct {
	InviteTTL      time.Duration
	AllyRequestTTL time.Duration
	// CountOfflineMembers includes disconnected members in aggregate power.
	CountOfflineMembers bool
	Presence            Presence
	Now                 func() time.Time
}

// Registry owns every faction, the actor→faction index and the diplomacy
// queues, and cascades structural changes into the claim grid.
//
// Registry is not safe for concurrent use; territory.Service serializes access.
// Pointers it returns are only valid while the caller holds that serialization.
type Registry struct {
	ranks  *rank.Table
	grid   *claim.Grid
	ledger *power.Ledger

	factions map[string]*Faction // keyed by lower-cased name
	actors   map[string]*Faction

	// invites: actor → faction name → expiry.
	invites map[string]map[string]time.Time
	// allyRequests: target faction → requesting faction → expiry.
	allyRequests map[string]map[string]time.Time

	opts Options
}

// NewRegistry creates an empty registry.
//
// Precondition: ranks, grid and ledger are non-nil.
func NewRegistry(ranks *rank.Table, grid *claim.Grid, ledger *power.Ledger, opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = 5 * time.Minute
	}
	if opts.AllyRequestTTL <= 0 {
		opts.AllyRequestTTL = 10 * time.Minute
	}
	return &Registry{
		ranks:        ranks,
		grid:         grid,
		ledger:       ledger,
		factions:     make(map[string]*Faction),
		actors:       make(map[string]*Faction),
		invites:      make(map[string]map[string]time.Time),
		allyRequests: make(map[string]map[string]time.Time),
		opts:         opts,
	}
}

// Ranks returns the rank table.
func (r *Registry) Ranks() *rank.Table { return r.ranks }

// Grid returns the claim grid the registry cascades into.
func (r *Registry) Grid() *claim.Grid { return r.grid }

// Ledger returns the power ledger.
func (r *Registry) Ledger() *power.Ledger { return r.ledger }

// Create registers a new faction with founder as its sole Leader.
//
// Postcondition: Returns ErrInvalidName, ErrNameTaken or ErrAlreadyMember without side effects.
func (r *Registry) Create(founder, name string) (*Faction, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	if _, ok := r.factions[strings.ToLower(name)]; ok {
		return nil, ErrNameTaken
	}
	if _, ok := r.actors[founder]; ok {
		return nil, ErrAlreadyMember
	}
	now := r.opts.Now()
	f := newFaction(name, now)
	f.Leader = founder
	f.Members[founder] = &Member{Actor: founder, Rank: r.ranks.Leader(), JoinedAt: now}
	r.factions[strings.ToLower(name)] = f
	r.actors[founder] = f
	delete(r.invites, founder)
	return f, nil
}

// Disbanded describes the cascade performed by Disband.
type Disbanded struct {
	Faction       *Faction
	Members       []string
	ClaimsRemoved int
}

// Disband deletes the faction, every membership mapping, every claim it owns,
// its entries in other factions' ally and enemy sets, and pending diplomacy.
func (r *Registry) Disband(name string) (Disbanded, error) {
	f, ok := r.Get(name)
	if !ok {
		return Disbanded{}, ErrFactionNotFound
	}
	members := f.MemberNames()
	for _, actor := range members {
		delete(r.actors, actor)
	}
	removed := r.grid.RemoveAllFor(f.Name)
	for _, other := range r.factions {
		delete(other.Allies, f.Name)
		delete(other.Enemies, f.Name)
	}
	delete(r.allyRequests, f.Name)
	for target, reqs := range r.allyRequests {
		delete(reqs, f.Name)
		if len(reqs) == 0 {
			delete(r.allyRequests, target)
		}
	}
	for actor, pending := range r.invites {
		delete(pending, f.Name)
		if len(pending) == 0 {
			delete(r.invites, actor)
		}
	}
	delete(r.factions, strings.ToLower(f.Name))
	return Disbanded{Faction: f, Members: members, ClaimsRemoved: removed}, nil
}

// AddMember adds actor to the faction. A zero rank means Member.
//
// Postcondition: Returns ErrAlreadyMember if actor belongs to any faction;
// ErrLeadershipTransfer if rk is the Leader rank.
func (r *Registry) AddMember(name, actor string, rk rank.Rank) error {
	f, ok := r.Get(name)
	if !ok {
		return ErrFactionNotFound
	}
	if _, ok := r.actors[actor]; ok {
		return ErrAlreadyMember
	}
	if rk.IsZero() {
		rk = r.ranks.Member()
	}
	if rk.Level >= rank.LevelLeader {
		return ErrLeadershipTransfer
	}
	if rk.Level < rank.LevelRecruit {
		return ErrInvalidRank
	}
	f.Members[actor] = &Member{Actor: actor, Rank: rk, JoinedAt: r.opts.Now()}
	r.actors[actor] = f
	delete(r.invites, actor)
	return nil
}

// Removal describes the outcome of RemoveMember.
type Removal struct {
	Faction   string
	Disbanded *Disbanded
}

// RemoveMember removes actor from the faction. Removing the last member
// disbands the faction.
//
// Postcondition: Returns ErrLeaderCannotLeave if actor is the leader and other members remain.
func (r *Registry) RemoveMember(name, actor string) (Removal, error) {
	f, ok := r.Get(name)
	if !ok {
		return Removal{}, ErrFactionNotFound
	}
	if !f.HasMember(actor) {
		return Removal{}, ErrNotMember
	}
	if f.Leader == actor && f.Size() > 1 {
		return Removal{}, ErrLeaderCannotLeave
	}
	out := Removal{Faction: f.Name}
	if f.Size() == 1 {
		d, err := r.Disband(f.Name)
		if err != nil {
			return Removal{}, err
		}
		out.Disbanded = &d
		return out, nil
	}
	delete(f.Members, actor)
	delete(r.actors, actor)
	return out, nil
}

// Promote moves actor up one rank.
//
// Postcondition: Returns ErrAlreadyHighest for the Leader and
// ErrLeadershipTransfer for a Co-Leader.
func (r *Registry) Promote(name, actor string) (rank.Rank, error) {
	m, err := r.member(name, actor)
	if err != nil {
		return rank.Rank{}, err
	}
	next, ok := r.ranks.Next(m.Rank)
	if !ok {
		return m.Rank, ErrAlreadyHighest
	}
	if next.Level == rank.LevelLeader {
		return m.Rank, ErrLeadershipTransfer
	}
	m.Rank = next
	return next, nil
}

// Demote moves actor down one rank.
//
// Postcondition: Returns ErrAlreadyLowest for a Recruit and
// ErrLeadershipTransfer for the Leader.
func (r *Registry) Demote(name, actor string) (rank.Rank, error) {
	m, err := r.member(name, actor)
	if err != nil {
		return rank.Rank{}, err
	}
	if m.Rank.Level == rank.LevelLeader {
		return m.Rank, ErrLeadershipTransfer
	}
	prev, ok := r.ranks.Previous(m.Rank)
	if !ok {
		return m.Rank, ErrAlreadyLowest
	}
	m.Rank = prev
	return prev, nil
}

// SetRank assigns a non-Leader rank directly.
func (r *Registry) SetRank(name, actor string, rk rank.Rank) error {
	m, err := r.member(name, actor)
	if err != nil {
		return err
	}
	if rk.Level < rank.LevelRecruit || rk.Level > rank.LevelLeader {
		return ErrInvalidRank
	}
	if rk.Level == rank.LevelLeader || m.Rank.Level == rank.LevelLeader {
		return ErrLeadershipTransfer
	}
	m.Rank = r.ranks.FromLevel(rk.Level)
	return nil
}

// TransferLeadership makes actor the Leader; the previous leader becomes Co-Leader.
func (r *Registry) TransferLeadership(name, actor string) (previous string, err error) {
	m, err := r.member(name, actor)
	if err != nil {
		return "", err
	}
	f := r.actors[actor]
	if f.Leader == actor {
		return "", ErrAlreadyLeader
	}
	previous = f.Leader
	if old, ok := f.Members[previous]; ok {
		old.Rank = r.ranks.CoLeader()
	}
	m.Rank = r.ranks.Leader()
	f.Leader = actor
	return previous, nil
}

// Rename changes the faction's name everywhere it is indexed.
func (r *Registry) Rename(name, newName string) error {
	f, ok := r.Get(name)
	if !ok {
		return ErrFactionNotFound
	}
	if !validName.MatchString(newName) {
		return ErrInvalidName
	}
	if other, ok := r.factions[strings.ToLower(newName)]; ok && other != f {
		return ErrNameTaken
	}
	old := f.Name
	if old == newName {
		return nil
	}
	delete(r.factions, strings.ToLower(old))
	f.Name = newName
	r.factions[strings.ToLower(newName)] = f
	r.grid.Rename(old, newName)
	for _, other := range r.factions {
		if _, ok := other.Allies[old]; ok {
			delete(other.Allies, old)
			other.Allies[newName] = struct{}{}
		}
		if _, ok := other.Enemies[old]; ok {
			delete(other.Enemies, old)
			other.Enemies[newName] = struct{}{}
		}
	}
	if reqs, ok := r.allyRequests[old]; ok {
		delete(r.allyRequests, old)
		r.allyRequests[newName] = reqs
	}
	for _, reqs := range r.allyRequests {
		if exp, ok := reqs[old]; ok {
			delete(reqs, old)
			reqs[newName] = exp
		}
	}
	for _, pending := range r.invites {
		if exp, ok := pending[old]; ok {
			delete(pending, old)
			pending[newName] = exp
		}
	}
	return nil
}

// SetDescription replaces the faction description.
func (r *Registry) SetDescription(name, description string) error {
	f, ok := r.Get(name)
	if !ok {
		return ErrFactionNotFound
	}
	f.Description = description
	return nil
}

// SetHome sets or, with a nil home, clears the faction home.
func (r *Registry) SetHome(name string, home *Home) error {
	f, ok := r.Get(name)
	if !ok {
		return ErrFactionNotFound
	}
	if home == nil {
		f.Home = nil
		return nil
	}
	h := *home
	f.Home = &h
	return nil
}

// Credit adds amount to the treasury.
func (r *Registry) Credit(name string, amount float64) (float64, error) {
	f, ok := r.Get(name)
	if !ok {
		return 0, ErrFactionNotFound
	}
	if !(amount > 0) {
		return f.Balance, ErrInvalidAmount
	}
	f.Balance += amount
	return f.Balance, nil
}

// Debit removes amount from the treasury.
//
// Postcondition: Returns ErrInsufficientFunds and leaves the balance unchanged
// if amount exceeds it.
func (r *Registry) Debit(name string, amount float64) (float64, error) {
	f, ok := r.Get(name)
	if !ok {
		return 0, ErrFactionNotFound
	}
	if !(amount > 0) {
		return f.Balance, ErrInvalidAmount
	}
	if amount > f.Balance {
		return f.Balance, ErrInsufficientFunds
	}
	f.Balance -= amount
	return f.Balance, nil
}

// PowerChange is the result of a ledger mutation. Faction is empty when the
// actor belongs to no faction.
type PowerChange struct {
	Actor   string
	Faction string
	Old     int
	New     int
}

// Changed reports whether the value moved.
func (c PowerChange) Changed() bool { return c.Old != c.New }

// PowerOf returns the actor's individual power.
func (r *Registry) PowerOf(actor string) int {
	return r.ledger.Get(actor)
}

// AdjustPower adds delta to the actor's power, clamped to [0, max].
func (r *Registry) AdjustPower(actor string, delta int) PowerChange {
	old, updated := r.ledger.Adjust(actor, delta)
	return r.powerChange(actor, old, updated)
}

// SetPower assigns the actor's power, clamped to [0, max].
func (r *Registry) SetPower(actor string, value int) PowerChange {
	old, updated := r.ledger.Set(actor, value)
	return r.powerChange(actor, old, updated)
}

func (r *Registry) powerChange(actor string, old, updated int) PowerChange {
	c := PowerChange{Actor: actor, Old: old, New: updated}
	if f, ok := r.actors[actor]; ok {
		c.Faction = f.Name
	}
	return c
}

// Power returns the faction's aggregate power. Unless CountOfflineMembers is
// set only connected members contribute.
func (r *Registry) Power(name string) (int, error) {
	f, ok := r.Get(name)
	if !ok {
		return 0, ErrFactionNotFound
	}
	return r.powerOf(f), nil
}

func (r *Registry) powerOf(f *Faction) int {
	if r.opts.CountOfflineMembers || r.opts.Presence == nil {
		return r.ledger.Sum(f.MemberNames())
	}
	return r.ledger.Sum(r.OnlineMembers(f))
}

// MaxPower returns member count times the per-player maximum.
func (r *Registry) MaxPower(name string) (int, error) {
	f, ok := r.Get(name)
	if !ok {
		return 0, ErrFactionNotFound
	}
	return f.Size() * r.ledger.Max(), nil
}

// OnlineMembers returns the connected members of f.
func (r *Registry) OnlineMembers(f *Faction) []string {
	if r.opts.Presence == nil {
		return nil
	}
	var out []string
	for _, actor := range f.MemberNames() {
		if r.opts.Presence.IsOnline(actor) {
			out = append(out, actor)
		}
	}
	return out
}

// Get returns the faction with the given name, case-insensitively.
func (r *Registry) Get(name string) (*Faction, bool) {
	f, ok := r.factions[strings.ToLower(name)]
	return f, ok
}

// FactionOf returns the actor's faction.
func (r *Registry) FactionOf(actor string) (*Faction, bool) {
	f, ok := r.actors[actor]
	return f, ok
}

// RankOf returns the actor's rank in their faction.
func (r *Registry) RankOf(actor string) (rank.Rank, bool) {
	f, ok := r.actors[actor]
	if !ok {
		return rank.Rank{}, false
	}
	return f.Members[actor].Rank, true
}

// All returns every faction sorted by name.
func (r *Registry) All() []*Faction {
	out := slices.Collect(maps.Values(r.factions))
	slices.SortFunc(out, func(a, b *Faction) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Count returns the number of factions.
func (r *Registry) Count() int { return len(r.factions) }

// CountWithOnlineMembers returns the number of factions with at least one connected member.
func (r *Registry) CountWithOnlineMembers() int {
	n := 0
	for _, f := range r.factions {
		if len(r.OnlineMembers(f)) > 0 {
			n++
		}
	}
	return n
}

// Relation classifies how faction a regards faction b.
func (r *Registry) Relation(a, b string) Relation {
	fa, ok := r.Get(a)
	if !ok {
		return RelationNone
	}
	fb, ok := r.Get(b)
	if !ok {
		return RelationNone
	}
	switch {
	case fa == fb:
		return RelationSelf
	case fa.IsAlly(fb.Name):
		return RelationAlly
	case fa.IsEnemy(fb.Name):
		return RelationEnemy
	default:
		return RelationNeutral
	}
}

// Restore replaces the registry contents with factions, rebuilding the actor
// index. Pending invitations and alliance requests are cleared.
func (r *Registry) Restore(factions []*Faction) {
	r.factions = make(map[string]*Faction, len(factions))
	r.actors = make(map[string]*Faction)
	r.invites = make(map[string]map[string]time.Time)
	r.allyRequests = make(map[string]map[string]time.Time)
	for _, f := range factions {
		c := f.Clone()
		if c.Members == nil {
			c.Members = make(map[string]*Member)
		}
		if c.Allies == nil {
			c.Allies = make(map[string]struct{})
		}
		if c.Enemies == nil {
			c.Enemies = make(map[string]struct{})
		}
		r.factions[strings.ToLower(c.Name)] = c
		for actor := range c.Members {
			r.actors[actor] = c
		}
	}
}

func (r *Registry) member(name, actor string) (*Member, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, ErrFactionNotFound
	}
	m, ok := f.Members[actor]
	if !ok {
		return nil, ErrNotMember
	}
	return m, nil
}
