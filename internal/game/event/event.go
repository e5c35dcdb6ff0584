// Package event defines the domain notifications emitted by territory.Service
// and the synchronous bus that delivers them.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a domain event.
type Kind string

const (
	FactionCreated   Kind = "faction_created"
	FactionJoined    Kind = "faction_joined"
	FactionLeft      Kind = "faction_left"
	FactionDisbanded Kind = "faction_disbanded"
	FactionRenamed   Kind = "faction_renamed"
	RelationChanged  Kind = "relation_changed"
	LandClaimed      Kind = "land_claimed"
	LandUnclaimed    Kind = "land_unclaimed"
	PowerChanged     Kind = "power_changed"
	FactionDeposit   Kind = "faction_deposit"
	FactionWithdraw  Kind = "faction_withdraw"
)

// Kinds lists every event kind in declaration order.
var Kinds = []Kind{
	FactionCreated, FactionJoined, FactionLeft, FactionDisbanded, FactionRenamed,
	RelationChanged, LandClaimed, LandUnclaimed, PowerChanged, FactionDeposit, FactionWithdraw,
}

// Cancellable reports whether handlers may veto events of kind k.
func (k Kind) Cancellable() bool {
	return k == LandClaimed || k == FactionDeposit
}

// Event is one notification. Fields not meaningful for a kind are zero.
//
// Previous holds the prior owner for LandClaimed overclaims and the old name
// for FactionRenamed. Target holds the other faction for RelationChanged.
type Event struct {
	ID       uuid.UUID `json:"id"`
	Kind     Kind      `json:"kind"`
	At       time.Time `json:"at"`
	Faction  string    `json:"faction,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	Target   string    `json:"target,omitempty"`
	Previous string    `json:"previous,omitempty"`
	Relation string    `json:"relation,omitempty"`
	World    string    `json:"world,omitempty"`
	X        int       `json:"x,omitempty"`
	Z        int       `json:"z,omitempty"`
	OldPower int       `json:"old_power,omitempty"`
	NewPower int       `json:"new_power,omitempty"`
	Amount   float64   `json:"amount,omitempty"`

	cancelled bool
}

// Cancel vetoes a cancellable event. It has no effect on other kinds.
func (e *Event) Cancel() {
	if e.Kind.Cancellable() {
		e.cancelled = true
	}
}

// Cancelled reports whether a handler vetoed the event.
func (e *Event) Cancelled() bool { return e.cancelled }

// SetAmount lets a FactionDeposit handler change the deposited amount.
//
// Postcondition: Ignored for other kinds and for non-positive amounts.
func (e *Event) SetAmount(amount float64) {
	if e.Kind == FactionDeposit && amount > 0 {
		e.Amount = amount
	}
}
