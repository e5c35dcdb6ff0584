package faction

import (
	"maps"
	"slices"
	"time"

	"github.com/cory-johannsen/factions/internal/game/fault"
)

var (
	ErrNoInvitation      = fault.New(fault.NotFound, "no pending invitation")
	ErrInvitationExpired = fault.New(fault.NotFound, "invitation expired")
	ErrNoRequest         = fault.New(fault.NotFound, "no pending alliance request")
	ErrRequestExpired    = fault.New(fault.NotFound, "alliance request expired")
	ErrSelfRelation      = fault.New(fault.Invalid, "a faction cannot target itself")
	ErrAlreadyAllied     = fault.New(fault.Conflict, "factions are already allies")
	ErrAlreadyEnemies    = fault.New(fault.Conflict, "factions are already enemies")
	ErrNotAllied         = fault.New(fault.NotFound, "factions are not allies")
	ErrNotEnemies        = fault.New(fault.NotFound, "factions are not enemies")
)

// pending looks up an expiring entry and garbage-collects it if it has lapsed.
// It reports (present, expired).
func (r *Registry) pending(queue map[string]map[string]time.Time, outer, inner string) (bool, bool) {
	entries, ok := queue[outer]
	if !ok {
		return false, false
	}
	exp, ok := entries[inner]
	if !ok {
		return false, false
	}
	if !r.opts.Now().Before(exp) {
		delete(entries, inner)
		if len(entries) == 0 {
			delete(queue, outer)
		}
		return false, true
	}
	return true, false
}

func drop(queue map[string]map[string]time.Time, outer, inner string) bool {
	entries, ok := queue[outer]
	if !ok {
		return false
	}
	if _, ok := entries[inner]; !ok {
		return false
	}
	delete(entries, inner)
	if len(entries) == 0 {
		delete(queue, outer)
	}
	return true
}

func put(queue map[string]map[string]time.Time, outer, inner string, exp time.Time) {
	entries, ok := queue[outer]
	if !ok {
		entries = make(map[string]time.Time)
		queue[outer] = entries
	}
	entries[inner] = exp
}

// Invite records a pending invitation for actor, replacing any earlier one
// from the same faction.
//
// Postcondition: Returns ErrAlreadyMember if actor belongs to a faction.
func (r *Registry) Invite(name, actor string) (time.Time, error) {
	f, ok := r.Get(name)
	if !ok {
		return time.Time{}, ErrFactionNotFound
	}
	if _, ok := r.actors[actor]; ok {
		return time.Time{}, ErrAlreadyMember
	}
	exp := r.opts.Now().Add(r.opts.InviteTTL)
	put(r.invites, actor, f.Name, exp)
	return exp, nil
}

// HasInvitation reports whether actor holds an unexpired invitation from the faction.
func (r *Registry) HasInvitation(name, actor string) bool {
	f, ok := r.Get(name)
	if !ok {
		return false
	}
	present, _ := r.pending(r.invites, actor, f.Name)
	return present
}

// Invitations returns the factions with an unexpired invitation for actor, sorted.
func (r *Registry) Invitations(actor string) []string {
	entries := r.invites[actor]
	for _, name := range slices.Collect(maps.Keys(entries)) {
		r.pending(r.invites, actor, name)
	}
	return slices.Sorted(maps.Keys(r.invites[actor]))
}

// RevokeInvitation removes a pending invitation.
//
// Postcondition: Returns false if none existed.
func (r *Registry) RevokeInvitation(name, actor string) bool {
	f, ok := r.Get(name)
	if !ok {
		return false
	}
	return drop(r.invites, actor, f.Name)
}

// AcceptInvitation joins actor to the faction as Member and consumes every
// pending invitation for that actor.
func (r *Registry) AcceptInvitation(name, actor string) error {
	f, ok := r.Get(name)
	if !ok {
		return ErrFactionNotFound
	}
	present, expired := r.pending(r.invites, actor, f.Name)
	if expired {
		return ErrInvitationExpired
	}
	if !present {
		return ErrNoInvitation
	}
	return r.AddMember(f.Name, actor, r.ranks.Member())
}

func (r *Registry) pair(a, b string) (*Faction, *Faction, error) {
	fa, ok := r.Get(a)
	if !ok {
		return nil, nil, ErrFactionNotFound
	}
	fb, ok := r.Get(b)
	if !ok {
		return nil, nil, ErrFactionNotFound
	}
	if fa == fb {
		return nil, nil, ErrSelfRelation
	}
	return fa, fb, nil
}

// RequestAlliance records that from asks to ally with to.
func (r *Registry) RequestAlliance(from, to string) (time.Time, error) {
	ff, ft, err := r.pair(from, to)
	if err != nil {
		return time.Time{}, err
	}
	if ff.IsAlly(ft.Name) {
		return time.Time{}, ErrAlreadyAllied
	}
	exp := r.opts.Now().Add(r.opts.AllyRequestTTL)
	put(r.allyRequests, ft.Name, ff.Name, exp)
	return exp, nil
}

// HasAllianceRequest reports whether from has an unexpired request pending with to.
func (r *Registry) HasAllianceRequest(from, to string) bool {
	ff, ft, err := r.pair(from, to)
	if err != nil {
		return false
	}
	present, _ := r.pending(r.allyRequests, ft.Name, ff.Name)
	return present
}

// AllianceRequests returns the factions with an unexpired request pending with target, sorted.
func (r *Registry) AllianceRequests(target string) []string {
	f, ok := r.Get(target)
	if !ok {
		return nil
	}
	for _, name := range slices.Collect(maps.Keys(r.allyRequests[f.Name])) {
		r.pending(r.allyRequests, f.Name, name)
	}
	return slices.Sorted(maps.Keys(r.allyRequests[f.Name]))
}

// AcceptAlliance accepts requester's pending request to accepter. Both factions
// become mutual allies, mutual enemy status is cleared and requests in both
// directions are consumed.
func (r *Registry) AcceptAlliance(accepter, requester string) error {
	fa, fr, err := r.pair(accepter, requester)
	if err != nil {
		return err
	}
	present, expired := r.pending(r.allyRequests, fa.Name, fr.Name)
	if expired {
		return ErrRequestExpired
	}
	if !present {
		return ErrNoRequest
	}
	drop(r.allyRequests, fa.Name, fr.Name)
	drop(r.allyRequests, fr.Name, fa.Name)
	delete(fa.Enemies, fr.Name)
	delete(fr.Enemies, fa.Name)
	fa.Allies[fr.Name] = struct{}{}
	fr.Allies[fa.Name] = struct{}{}
	return nil
}

// DenyAlliance discards requester's pending request to denier.
func (r *Registry) DenyAlliance(denier, requester string) error {
	fd, fr, err := r.pair(denier, requester)
	if err != nil {
		return err
	}
	if !drop(r.allyRequests, fd.Name, fr.Name) {
		return ErrNoRequest
	}
	return nil
}

// BreakAlliance returns an allied pair to neutral on both sides.
func (r *Registry) BreakAlliance(a, b string) error {
	fa, fb, err := r.pair(a, b)
	if err != nil {
		return err
	}
	if !fa.IsAlly(fb.Name) && !fb.IsAlly(fa.Name) {
		return ErrNotAllied
	}
	delete(fa.Allies, fb.Name)
	delete(fb.Allies, fa.Name)
	return nil
}

// DeclareEnemy breaks any alliance between the pair, drops pending requests
// between them and marks them mutual enemies.
func (r *Registry) DeclareEnemy(a, b string) error {
	fa, fb, err := r.pair(a, b)
	if err != nil {
		return err
	}
	if fa.IsEnemy(fb.Name) && fb.IsEnemy(fa.Name) {
		return ErrAlreadyEnemies
	}
	delete(fa.Allies, fb.Name)
	delete(fb.Allies, fa.Name)
	drop(r.allyRequests, fa.Name, fb.Name)
	drop(r.allyRequests, fb.Name, fa.Name)
	fa.Enemies[fb.Name] = struct{}{}
	fb.Enemies[fa.Name] = struct{}{}
	return nil
}

// MakeNeutral clears enemy status on both sides.
func (r *Registry) MakeNeutral(a, b string) error {
	fa, fb, err := r.pair(a, b)
	if err != nil {
		return err
	}
	if !fa.IsEnemy(fb.Name) && !fb.IsEnemy(fa.Name) {
		return ErrNotEnemies
	}
	delete(fa.Enemies, fb.Name)
	delete(fb.Enemies, fa.Name)
	return nil
}
