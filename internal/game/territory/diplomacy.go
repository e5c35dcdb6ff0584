package territory

import (
	"time"

	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/faction"
)

// RequestAlliance records that from asks to ally with to and returns the expiry.
func (s *Service) RequestAlliance(from, to string) (time.Time, error) {
	s.mu.Lock()
	defer s.unlock()
	return s.reg.RequestAlliance(from, to)
}

// AllianceRequests lists factions with a pending request to target.
func (s *Service) AllianceRequests(target string) []string {
	s.mu.Lock()
	defer s.unlock()
	return s.reg.AllianceRequests(target)
}

// AcceptAlliance makes accepter and requester mutual allies.
func (s *Service) AcceptAlliance(accepter, requester string) error {
	return s.relate(accepter, requester, faction.RelationAlly, s.reg.AcceptAlliance)
}

// DenyAlliance discards a pending request.
func (s *Service) DenyAlliance(denier, requester string) error {
	s.mu.Lock()
	defer s.unlock()
	return s.reg.DenyAlliance(denier, requester)
}

// BreakAlliance returns an allied pair to neutral.
func (s *Service) BreakAlliance(a, b string) error {
	return s.relate(a, b, faction.RelationNeutral, s.reg.BreakAlliance)
}

// DeclareEnemy marks the pair as mutual enemies, breaking any alliance.
func (s *Service) DeclareEnemy(a, b string) error {
	return s.relate(a, b, faction.RelationEnemy, s.reg.DeclareEnemy)
}

// MakeNeutral clears mutual enemy status.
func (s *Service) MakeNeutral(a, b string) error {
	return s.relate(a, b, faction.RelationNeutral, s.reg.MakeNeutral)
}

func (s *Service) relate(a, b string, rel faction.Relation, apply func(a, b string) error) error {
	s.mu.Lock()
	defer s.unlock()
	if err := apply(a, b); err != nil {
		return err
	}
	fa, _ := s.reg.Get(a)
	fb, _ := s.reg.Get(b)
	s.publish(&event.Event{
		Kind:     event.RelationChanged,
		Faction:  fa.Name,
		Target:   fb.Name,
		Relation: rel.String(),
	})
	s.commitLocked()
	return nil
}
