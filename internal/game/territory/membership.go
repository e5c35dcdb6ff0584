package territory

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/rank"
)

// CreateFaction registers a faction founded by founder.
//
// Postcondition: Emits FactionCreated and returns a copy of the new faction.
func (s *Service) CreateFaction(founder, name string) (*faction.Faction, error) {
	s.mu.Lock()
	defer s.unlock()
	f, err := s.reg.Create(founder, name)
	if err != nil {
		return nil, err
	}
	s.ledger.Initialize(founder)
	s.publish(&event.Event{Kind: event.FactionCreated, Faction: f.Name, Actor: founder})
	s.commitLocked()
	s.logger.Info("faction created", zap.String("faction", f.Name), zap.String("leader", founder))
	return f.Clone(), nil
}

// Disband deletes the faction with all its claims and memberships.
func (s *Service) Disband(name string) error {
	s.mu.Lock()
	defer s.unlock()
	d, err := s.reg.Disband(name)
	if err != nil {
		return err
	}
	s.publishDisband(d)
	s.commitLocked()
	return nil
}

func (s *Service) publishDisband(d faction.Disbanded) {
	s.publish(&event.Event{Kind: event.FactionDisbanded, Faction: d.Faction.Name, Actor: d.Faction.Leader})
	s.logger.Info("faction disbanded",
		zap.String("faction", d.Faction.Name),
		zap.Int("members", len(d.Members)),
		zap.Int("claims_removed", d.ClaimsRemoved),
	)
}

// AddMember adds actor to the faction at rk, or Member when rk is zero.
func (s *Service) AddMember(name, actor string, rk rank.Rank) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.reg.AddMember(name, actor, rk); err != nil {
		return err
	}
	s.afterJoinLocked(actor)
	return nil
}

func (s *Service) afterJoinLocked(actor string) {
	f, _ := s.reg.FactionOf(actor)
	s.ledger.Initialize(actor)
	s.publish(&event.Event{Kind: event.FactionJoined, Faction: f.Name, Actor: actor})
	s.commitLocked()
}

// RemoveMember removes actor from the faction; removing the last member disbands it.
func (s *Service) RemoveMember(name, actor string) error {
	s.mu.Lock()
	defer s.unlock()
	return s.removeLocked(name, actor)
}

func (s *Service) removeLocked(name, actor string) error {
	out, err := s.reg.RemoveMember(name, actor)
	if err != nil {
		return err
	}
	s.publish(&event.Event{Kind: event.FactionLeft, Faction: out.Faction, Actor: actor})
	if out.Disbanded != nil {
		s.publishDisband(*out.Disbanded)
	}
	s.commitLocked()
	return nil
}

// Leave removes actor from their own faction.
func (s *Service) Leave(actor string) error {
	s.mu.Lock()
	defer s.unlock()
	f, ok := s.reg.FactionOf(actor)
	if !ok {
		return ErrNotInFaction
	}
	return s.removeLocked(f.Name, actor)
}

// Kick removes target from kicker's faction. kicker needs the kick permission
// and must outrank target.
func (s *Service) Kick(kicker, target string) error {
	s.mu.Lock()
	defer s.unlock()
	f, r, err := s.memberWith(kicker, rank.PermKick)
	if err != nil {
		return err
	}
	m, ok := f.Members[target]
	if !ok {
		return faction.ErrNotMember
	}
	if !r.Outranks(m.Rank) {
		return ErrCannotTarget
	}
	return s.removeLocked(f.Name, target)
}

// Promote moves actor up one rank.
func (s *Service) Promote(name, actor string) (rank.Rank, error) {
	s.mu.Lock()
	defer s.unlock()
	r, err := s.reg.Promote(name, actor)
	if err != nil {
		return r, err
	}
	s.commitLocked()
	return r, nil
}

// Demote moves actor down one rank.
func (s *Service) Demote(name, actor string) (rank.Rank, error) {
	s.mu.Lock()
	defer s.unlock()
	r, err := s.reg.Demote(name, actor)
	if err != nil {
		return r, err
	}
	s.commitLocked()
	return r, nil
}

// SetRank assigns a non-Leader rank.
func (s *Service) SetRank(name, actor string, rk rank.Rank) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.reg.SetRank(name, actor, rk); err != nil {
		return err
	}
	s.commitLocked()
	return nil
}

// TransferLeadership hands the Leader rank to actor.
func (s *Service) TransferLeadership(name, actor string) error {
	s.mu.Lock()
	defer s.unlock()
	prev, err := s.reg.TransferLeadership(name, actor)
	if err != nil {
		return err
	}
	s.commitLocked()
	s.logger.Info("leadership transferred",
		zap.String("faction", name),
		zap.String("from", prev),
		zap.String("to", actor),
	)
	return nil
}

// Invite records a pending invitation and returns its expiry.
func (s *Service) Invite(name, actor string) (time.Time, error) {
	s.mu.Lock()
	defer s.unlock()
	return s.reg.Invite(name, actor)
}

// HasInvitation reports whether actor holds an unexpired invitation.
func (s *Service) HasInvitation(name, actor string) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.reg.HasInvitation(name, actor)
}

// Invitations lists the factions that invited actor.
func (s *Service) Invitations(actor string) []string {
	s.mu.Lock()
	defer s.unlock()
	return s.reg.Invitations(actor)
}

// RevokeInvitation withdraws or declines an invitation.
func (s *Service) RevokeInvitation(name, actor string) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.reg.RevokeInvitation(name, actor)
}

// AcceptInvitation joins actor to the inviting faction as Member.
func (s *Service) AcceptInvitation(name, actor string) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.reg.AcceptInvitation(name, actor); err != nil {
		return err
	}
	s.afterJoinLocked(actor)
	return nil
}

// Rename changes a faction's name, including its claims and relations.
func (s *Service) Rename(name, newName string) error {
	s.mu.Lock()
	defer s.unlock()
	f, ok := s.reg.Get(name)
	if !ok {
		return faction.ErrFactionNotFound
	}
	old := f.Name
	if err := s.reg.Rename(name, newName); err != nil {
		return err
	}
	s.publish(&event.Event{Kind: event.FactionRenamed, Faction: newName, Previous: old})
	s.commitLocked()
	return nil
}

// SetDescription replaces the faction description.
func (s *Service) SetDescription(name, description string) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.reg.SetDescription(name, description); err != nil {
		return err
	}
	s.commitLocked()
	return nil
}

// SetHome sets actor's faction home to home.
//
// Postcondition: Returns ErrHomeOutsideTerritory when homes must be in own land
// and the cell under home is not owned by actor's faction.
func (s *Service) SetHome(actor string, home faction.Home) error {
	s.mu.Lock()
	defer s.unlock()
	f, _, err := s.memberWith(actor, rank.PermSetHome)
	if err != nil {
		return err
	}
	if s.rules.RequireHomeInOwnLand {
		k := claim.ChunkOf(home.World, home.X, home.Z)
		if s.grid.OwnerOf(k) != f.Name {
			return ErrHomeOutsideTerritory
		}
	}
	if err := s.reg.SetHome(f.Name, &home); err != nil {
		return err
	}
	s.commitLocked()
	return nil
}

// ClearHome removes the faction home.
func (s *Service) ClearHome(name string) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.reg.SetHome(name, nil); err != nil {
		return err
	}
	s.commitLocked()
	return nil
}

// Home returns the home of actor's faction.
func (s *Service) Home(actor string) (faction.Home, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, _, err := s.memberWith(actor, rank.PermHome)
	if err != nil {
		return faction.Home{}, err
	}
	if f.Home == nil {
		return faction.Home{}, ErrNoHome
	}
	return *f.Home, nil
}
