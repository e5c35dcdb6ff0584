// Package claim implements the exclusive ownership map over world chunks.
package claim

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/cory-johannsen/factions/internal/game/fault"
)

// ChunkSize is the edge length of one claimable cell in world units.
const ChunkSize = 16

var (
	// ErrAlreadyClaimed is returned when the target cell has an owner.
	ErrAlreadyClaimed = fault.New(fault.Conflict, "land is already claimed")
	// ErrLimitReached is returned when the faction holds the maximum number of claims.
	ErrLimitReached = fault.New(fault.Conflict, "claim limit reached")
	// ErrNotAdjacent is returned when adjacency is required and the cell touches no owned cell.
	ErrNotAdjacent = fault.New(fault.Conflict, "claim must be adjacent to existing territory")
	// ErrWorldDisabled is returned for worlds where claiming is turned off.
	ErrWorldDisabled = fault.New(fault.PermissionDenied, "claiming is disabled in this world")
	// ErrNotClaimed is returned when an operation needs an owned cell.
	ErrNotClaimed = fault.New(fault.NotFound, "land is not claimed")
)

// Key identifies one cell.
type Key struct {
	World string
	X     int
	Z     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.World, k.X, k.Z)
}

// Neighbors returns the four edge-adjacent cells in N, S, E, W order.
func (k Key) Neighbors() [4]Key {
	return [4]Key{
		{World: k.World, X: k.X, Z: k.Z - 1},
		{World: k.World, X: k.X, Z: k.Z + 1},
		{World: k.World, X: k.X + 1, Z: k.Z},
		{World: k.World, X: k.X - 1, Z: k.Z},
	}
}

// Adjacent reports whether o shares an edge with k. Diagonals are not adjacent.
func (k Key) Adjacent(o Key) bool {
	if k.World != o.World {
		return false
	}
	dx, dz := k.X-o.X, k.Z-o.Z
	return (dx == 0 && (dz == 1 || dz == -1)) || (dz == 0 && (dx == 1 || dx == -1))
}

// ChunkOf converts a world position to the containing cell.
func ChunkOf(world string, x, z float64) Key {
	return Key{
		World: world,
		X:     int(math.Floor(x / ChunkSize)),
		Z:     int(math.Floor(z / ChunkSize)),
	}
}

// Claim is one owned cell.
type Claim struct {
	Key
	Faction   string
	ClaimedAt time.Time
}

// Policy holds the validation rules applied by Grid.Claim.
type Policy struct {
	// MaxPerFaction <= 0 means unlimited.
	MaxPerFaction   int
	RequireAdjacent bool
	DisabledWorlds  []string
}

// Grid maps cells to their owning faction.
//
// Grid is not safe for concurrent use; territory.Service serializes access.
type Grid struct {
	policy Policy
	cells  map[Key]*Claim
	counts map[string]int
	now    func() time.Time
}

// NewGrid creates an empty grid.
func NewGrid(policy Policy) *Grid {
	return &Grid{
		policy: policy,
		cells:  make(map[Key]*Claim),
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// SetClock replaces the timestamp source. Intended for tests.
func (g *Grid) SetClock(now func() time.Time) { g.now = now }

// Policy returns the grid's validation rules.
func (g *Grid) Policy() Policy { return g.policy }

// WorldDisabled reports whether claiming is turned off for world.
func (g *Grid) WorldDisabled(world string) bool {
	return slices.ContainsFunc(g.policy.DisabledWorlds, func(w string) bool {
		return strings.EqualFold(w, world)
	})
}

// CanClaim runs the claim validation without mutating the grid.
//
// Postcondition: Returns nil, ErrWorldDisabled, ErrAlreadyClaimed,
// ErrLimitReached or ErrNotAdjacent, checked in that order.
func (g *Grid) CanClaim(faction string, k Key) error {
	if g.WorldDisabled(k.World) {
		return ErrWorldDisabled
	}
	if _, ok := g.cells[k]; ok {
		return ErrAlreadyClaimed
	}
	n := g.counts[faction]
	if g.policy.MaxPerFaction > 0 && n >= g.policy.MaxPerFaction {
		return ErrLimitReached
	}
	if g.policy.RequireAdjacent && n > 0 && !g.touches(faction, k) {
		return ErrNotAdjacent
	}
	return nil
}

// Claim assigns k to faction.
//
// Precondition: faction is non-empty.
// Postcondition: On success the returned claim is owned by faction; on error the grid is unchanged.
func (g *Grid) Claim(faction string, k Key) (Claim, error) {
	if err := g.CanClaim(faction, k); err != nil {
		return Claim{}, err
	}
	c := &Claim{Key: k, Faction: faction, ClaimedAt: g.now()}
	g.cells[k] = c
	g.counts[faction]++
	return *c, nil
}

// Unclaim removes the claim on k.
//
// Postcondition: Returns true if a claim was removed.
func (g *Grid) Unclaim(k Key) bool {
	c, ok := g.cells[k]
	if !ok {
		return false
	}
	delete(g.cells, k)
	g.decrement(c.Faction)
	return true
}

// Transfer moves an existing claim to faction, keeping its ClaimedAt.
//
// Postcondition: Returns false if k is unclaimed.
func (g *Grid) Transfer(k Key, faction string) bool {
	c, ok := g.cells[k]
	if !ok {
		return false
	}
	if c.Faction == faction {
		return true
	}
	g.decrement(c.Faction)
	c.Faction = faction
	g.counts[faction]++
	return true
}

// RemoveAllFor deletes every claim owned by faction and returns how many were removed.
func (g *Grid) RemoveAllFor(faction string) int {
	removed := 0
	for k, c := range g.cells {
		if c.Faction == faction {
			delete(g.cells, k)
			removed++
		}
	}
	delete(g.counts, faction)
	return removed
}

// Rename reassigns every claim of from to to.
func (g *Grid) Rename(from, to string) {
	if from == to {
		return
	}
	for _, c := range g.cells {
		if c.Faction == from {
			c.Faction = to
		}
	}
	if n, ok := g.counts[from]; ok {
		g.counts[to] += n
		delete(g.counts, from)
	}
}

// At returns the claim on k.
func (g *Grid) At(k Key) (Claim, bool) {
	c, ok := g.cells[k]
	if !ok {
		return Claim{}, false
	}
	return *c, true
}

// OwnerOf returns the owning faction name, or "" for wilderness.
func (g *Grid) OwnerOf(k Key) string {
	if c, ok := g.cells[k]; ok {
		return c.Faction
	}
	return ""
}

// InRadius returns the claims in the inclusive square of half-width radius
// around center, in row-major order (z outer, x inner).
func (g *Grid) InRadius(center Key, radius int) []Claim {
	if radius < 0 {
		return nil
	}
	var out []Claim
	for z := center.Z - radius; z <= center.Z+radius; z++ {
		for x := center.X - radius; x <= center.X+radius; x++ {
			if c, ok := g.cells[Key{World: center.World, X: x, Z: z}]; ok {
				out = append(out, *c)
			}
		}
	}
	return out
}

// InWorld returns every claim in world, sorted by key.
func (g *Grid) InWorld(world string) []Claim {
	return g.collect(func(c *Claim) bool { return c.World == world })
}

// ForFaction returns every claim owned by faction, sorted by key.
func (g *Grid) ForFaction(faction string) []Claim {
	return g.collect(func(c *Claim) bool { return c.Faction == faction })
}

// CountFor returns the number of cells owned by faction.
func (g *Grid) CountFor(faction string) int {
	return g.counts[faction]
}

// Total returns the number of claimed cells.
func (g *Grid) Total() int {
	return len(g.cells)
}

// All returns every claim, sorted by key.
func (g *Grid) All() []Claim {
	return g.collect(func(*Claim) bool { return true })
}

// Restore replaces the grid contents. Later duplicates of a key overwrite earlier ones.
func (g *Grid) Restore(claims []Claim) {
	g.cells = make(map[Key]*Claim, len(claims))
	g.counts = make(map[string]int)
	for _, c := range claims {
		if prev, ok := g.cells[c.Key]; ok {
			g.decrement(prev.Faction)
		}
		cc := c
		g.cells[c.Key] = &cc
		g.counts[c.Faction]++
	}
}

func (g *Grid) touches(faction string, k Key) bool {
	for _, n := range k.Neighbors() {
		if c, ok := g.cells[n]; ok && c.Faction == faction {
			return true
		}
	}
	return false
}

func (g *Grid) decrement(faction string) {
	g.counts[faction]--
	if g.counts[faction] <= 0 {
		delete(g.counts, faction)
	}
}

func (g *Grid) collect(keep func(*Claim) bool) []Claim {
	var out []Claim
	for _, c := range g.cells {
		if keep(c) {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b Claim) int { return compareKeys(a.Key, b.Key) })
	return out
}

func compareKeys(a, b Key) int {
	if c := strings.Compare(a.World, b.World); c != 0 {
		return c
	}
	if a.X != b.X {
		if a.X < b.X {
			return -1
		}
		return 1
	}
	if a.Z < b.Z {
		return -1
	}
	if a.Z > b.Z {
		return 1
	}
	return 0
}
