package territory

import (
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/rank"
)

// Info is a read-only view of one faction.
type Info struct {
	Faction  *faction.Faction
	Power    int
	MaxPower int
	Claims   int
	Online   []string
}

// Info returns a copy of the named faction with derived figures.
func (s *Service) Info(name string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.reg.Get(name)
	if !ok {
		return Info{}, faction.ErrFactionNotFound
	}
	p, _ := s.reg.Power(f.Name)
	maxPower, _ := s.reg.MaxPower(f.Name)
	return Info{
		Faction:  f.Clone(),
		Power:    p,
		MaxPower: maxPower,
		Claims:   s.grid.CountFor(f.Name),
		Online:   s.reg.OnlineMembers(f),
	}, nil
}

// FactionOf returns the name of actor's faction.
func (s *Service) FactionOf(actor string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.reg.FactionOf(actor)
	if !ok {
		return "", false
	}
	return f.Name, true
}

// RankOf returns actor's rank.
func (s *Service) RankOf(actor string) (rank.Rank, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.RankOf(actor)
}

// Relation classifies how faction a regards faction b.
func (s *Service) Relation(a, b string) faction.Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Relation(a, b)
}

// Factions returns every faction name, sorted.
func (s *Service) Factions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.reg.All()
	out := make([]string, len(all))
	for i, f := range all {
		out[i] = f.Name
	}
	return out
}

// Stats summarizes the world.
type Stats struct {
	Factions       int
	ActiveFactions int
	Claims         int
	Online         int
}

// Stats returns world-level counts.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Factions:       s.reg.Count(),
		ActiveFactions: s.reg.CountWithOnlineMembers(),
		Claims:         s.grid.Total(),
		Online:         s.presence.Count(),
	}
}
