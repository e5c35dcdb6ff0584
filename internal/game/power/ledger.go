// Package power tracks the bounded per-actor power resource.
package power

import (
	"fmt"
	"maps"
)

// Ledger maps actors to power values clamped to [0, Max].
//
// Ledger is not safe for concurrent use; territory.Service serializes access.
type Ledger struct {
	starting int
	max      int
	values   map[string]int
}

// NewLedger creates an empty ledger.
//
// Precondition: 0 <= starting <= max.
// Postcondition: Returns an error when the bounds are inconsistent.
func NewLedger(starting, max int) (*Ledger, error) {
	if max < 0 {
		return nil, fmt.Errorf("max power must be >= 0, got %d", max)
	}
	if starting < 0 || starting > max {
		return nil, fmt.Errorf("starting power %d outside [0, %d]", starting, max)
	}
	return &Ledger{starting: starting, max: max, values: make(map[string]int)}, nil
}

// Max returns the per-actor ceiling.
func (l *Ledger) Max() int { return l.max }

// Starting returns the value assigned on first contact.
func (l *Ledger) Starting() int { return l.starting }

// Initialize records the starting value for an actor seen for the first time.
//
// Postcondition: Returns true if a new entry was created.
func (l *Ledger) Initialize(actor string) bool {
	if _, ok := l.values[actor]; ok {
		return false
	}
	l.values[actor] = l.starting
	return true
}

// Known reports whether the actor has a ledger entry.
func (l *Ledger) Known(actor string) bool {
	_, ok := l.values[actor]
	return ok
}

// Get returns the actor's power, or the starting value for unknown actors.
func (l *Ledger) Get(actor string) int {
	if v, ok := l.values[actor]; ok {
		return v
	}
	return l.starting
}

// Adjust adds delta to the actor's power with saturation at both bounds.
//
// Postcondition: 0 <= new <= Max; the entry exists afterwards.
func (l *Ledger) Adjust(actor string, delta int) (old, updated int) {
	old = l.Get(actor)
	updated = saturatingAdd(old, delta, l.max)
	l.values[actor] = updated
	return old, updated
}

// Set assigns an absolute value, clamped to the bounds.
func (l *Ledger) Set(actor string, value int) (old, updated int) {
	old = l.Get(actor)
	updated = l.clamp(value)
	l.values[actor] = updated
	return old, updated
}

// Sum returns the total power of the given actors.
func (l *Ledger) Sum(actors []string) int {
	total := 0
	for _, a := range actors {
		total += l.Get(a)
	}
	return total
}

// Snapshot returns a copy of every entry.
func (l *Ledger) Snapshot() map[string]int {
	return maps.Clone(l.values)
}

// Restore replaces the ledger contents, clamping each stored value.
func (l *Ledger) Restore(values map[string]int) {
	l.values = make(map[string]int, len(values))
	for actor, v := range values {
		l.values[actor] = l.clamp(v)
	}
}

func (l *Ledger) clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > l.max {
		return l.max
	}
	return v
}

// saturatingAdd returns v+delta clamped to [0, max] without overflowing.
// Precondition: 0 <= v <= max.
func saturatingAdd(v, delta, max int) int {
	switch {
	case delta > 0:
		if delta >= max-v {
			return max
		}
	case delta < 0:
		if delta <= -v {
			return 0
		}
	}
	return v + delta
}
