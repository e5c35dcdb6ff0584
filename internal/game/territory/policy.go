package territory

import (
	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/faction"
)

// Standing classifies a cell relative to an observing actor.
type Standing string

const (
	Wilderness Standing = "wilderness"
	Own        Standing = "own"
	Allied     Standing = "ally"
	Hostile    Standing = "enemy"
	Neutral    Standing = "neutral"
)

// MapCell is one entry of a territory map.
type MapCell struct {
	Key      claim.Key
	Owner    string
	Standing Standing
}

// standingLocked classifies k for actor.
// Precondition: s.mu is held.
func (s *Service) standingLocked(actor string, k claim.Key) (Standing, string) {
	owner := s.grid.OwnerOf(k)
	if owner == "" {
		return Wilderness, ""
	}
	mine, ok := s.reg.FactionOf(actor)
	if !ok {
		return Neutral, owner
	}
	switch s.reg.Relation(mine.Name, owner) {
	case faction.RelationSelf:
		return Own, owner
	case faction.RelationAlly:
		return Allied, owner
	case faction.RelationEnemy:
		return Hostile, owner
	default:
		return Neutral, owner
	}
}

// Standing classifies the cell k for actor and returns its owner.
func (s *Service) Standing(actor string, k claim.Key) (Standing, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.standingLocked(actor, k)
}

// CanBuild reports whether actor may place or break blocks in k: allowed in
// wilderness, own land and ally land.
func (s *Service) CanBuild(actor string, k claim.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch st, _ := s.standingLocked(actor, k); st {
	case Wilderness, Own, Allied:
		return true
	default:
		return false
	}
}

// CanFly reports whether actor may fly in k: only inside own land.
func (s *Service) CanFly(actor string, k claim.Key) bool {
	if !s.rules.FlyEnabled {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, _ := s.standingLocked(actor, k)
	return st == Own
}

// PvPAllowed reports the territory-level PvP setting for k, ignoring who fights.
func (s *Service) PvPAllowed(k claim.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grid.OwnerOf(k) == "" {
		return s.rules.WildernessPvP
	}
	return true
}

// CanDamage reports whether attacker may damage victim while victim stands in k.
func (s *Service) CanDamage(victim, attacker string, k claim.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vf, vok := s.reg.FactionOf(victim)
	af, aok := s.reg.FactionOf(attacker)
	if vok && aok {
		if vf == af || vf.IsAlly(af.Name) {
			return false
		}
	}
	owner := s.grid.OwnerOf(k)
	if owner == "" {
		return s.rules.WildernessPvP
	}
	land, ok := s.reg.Get(owner)
	if !ok {
		return true
	}
	if s.rules.DisablePvPOwnLand && ((vok && vf == land) || (aok && af == land)) {
		return false
	}
	if s.rules.DisablePvPAllyLand && ((vok && land.IsAlly(vf.Name)) || (aok && land.IsAlly(af.Name))) {
		return false
	}
	return true
}

// Map classifies the square of cells with half-width half around center,
// row-major with z outer.
func (s *Service) Map(actor string, center claim.Key, half int) [][]MapCell {
	if half < 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([][]MapCell, 0, 2*half+1)
	for z := center.Z - half; z <= center.Z+half; z++ {
		row := make([]MapCell, 0, 2*half+1)
		for x := center.X - half; x <= center.X+half; x++ {
			k := claim.Key{World: center.World, X: x, Z: z}
			st, owner := s.standingLocked(actor, k)
			row = append(row, MapCell{Key: k, Owner: owner, Standing: st})
		}
		rows = append(rows, row)
	}
	return rows
}
