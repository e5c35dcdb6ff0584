package territory

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/rank"
	"github.com/cory-johannsen/factions/internal/storage"
)

// snapshotLocked converts the live state to persistence records.
// Precondition: s.mu is held.
func (s *Service) snapshotLocked() storage.Snapshot {
	all := s.reg.All()
	snap := storage.Snapshot{
		Factions: make([]storage.FactionRecord, 0, len(all)),
		Power:    s.ledger.Snapshot(),
	}
	for _, f := range all {
		rec := storage.FactionRecord{
			Name:        f.Name,
			Leader:      f.Leader,
			Description: f.Description,
			Balance:     f.Balance,
			CreatedAt:   f.CreatedAt,
			Allies:      f.AllyNames(),
			Enemies:     f.EnemyNames(),
		}
		if f.Home != nil {
			rec.Home = &storage.HomeRecord{World: f.Home.World, X: f.Home.X, Y: f.Home.Y, Z: f.Home.Z}
		}
		for _, actor := range f.MemberNames() {
			m := f.Members[actor]
			rec.Members = append(rec.Members, storage.MemberRecord{
				Actor:    actor,
				Rank:     s.ranks.Key(m.Rank),
				JoinedAt: m.JoinedAt,
			})
		}
		snap.Factions = append(snap.Factions, rec)
	}
	for _, c := range s.grid.All() {
		snap.Claims = append(snap.Claims, storage.ClaimRecord{
			World:     c.World,
			X:         c.X,
			Z:         c.Z,
			Faction:   c.Faction,
			ClaimedAt: c.ClaimedAt,
		})
	}
	return snap
}

// restoreLocked rebuilds registry, grid and ledger from snap, repairing
// records that would violate the invariants: members claimed by two factions
// keep the first, a faction without a valid leader promotes its highest
// member, and claims or relations naming unknown factions are dropped.
// Precondition: s.mu is held for writing.
func (s *Service) restoreLocked(snap storage.Snapshot) {
	known := make(map[string]bool, len(snap.Factions))
	for _, rec := range snap.Factions {
		known[rec.Name] = true
	}

	seen := make(map[string]string)
	factions := make([]*faction.Faction, 0, len(snap.Factions))
	for _, rec := range snap.Factions {
		f := &faction.Faction{
			Name:        rec.Name,
			Leader:      rec.Leader,
			Description: rec.Description,
			Balance:     rec.Balance,
			CreatedAt:   rec.CreatedAt,
			Members:     make(map[string]*faction.Member, len(rec.Members)),
			Allies:      make(map[string]struct{}),
			Enemies:     make(map[string]struct{}),
		}
		if f.Balance < 0 {
			f.Balance = 0
		}
		if rec.Home != nil {
			f.Home = &faction.Home{World: rec.Home.World, X: rec.Home.X, Y: rec.Home.Y, Z: rec.Home.Z}
		}
		for _, m := range rec.Members {
			if other, dup := seen[m.Actor]; dup {
				s.logger.Warn("dropping duplicate membership",
					zap.String("actor", m.Actor),
					zap.String("faction", rec.Name),
					zap.String("kept", other),
				)
				continue
			}
			seen[m.Actor] = rec.Name
			r := s.ranks.FromName(m.Rank)
			if r.Level == rank.LevelLeader {
				r = s.ranks.CoLeader()
			}
			f.Members[m.Actor] = &faction.Member{Actor: m.Actor, Rank: r, JoinedAt: m.JoinedAt}
		}
		if len(f.Members) == 0 {
			s.logger.Warn("dropping empty faction", zap.String("faction", rec.Name))
			known[rec.Name] = false
			continue
		}
		if _, ok := f.Members[f.Leader]; !ok {
			f.Leader = highestMember(f)
			s.logger.Warn("repairing faction leader",
				zap.String("faction", f.Name),
				zap.String("leader", f.Leader),
			)
		}
		f.Members[f.Leader].Rank = s.ranks.Leader()
		for _, a := range rec.Allies {
			if known[a] && a != rec.Name {
				f.Allies[a] = struct{}{}
			}
		}
		for _, e := range rec.Enemies {
			if known[e] && e != rec.Name {
				if _, allied := f.Allies[e]; !allied {
					f.Enemies[e] = struct{}{}
				}
			}
		}
		factions = append(factions, f)
	}
	// Second pass: relations must be mutual and only name surviving factions.
	byName := make(map[string]*faction.Faction, len(factions))
	for _, f := range factions {
		byName[f.Name] = f
	}
	for _, f := range factions {
		for a := range f.Allies {
			if o, ok := byName[a]; !ok || !o.IsAlly(f.Name) {
				delete(f.Allies, a)
			}
		}
		for e := range f.Enemies {
			if o, ok := byName[e]; !ok || !o.IsEnemy(f.Name) {
				delete(f.Enemies, e)
			}
		}
	}
	s.reg.Restore(factions)

	claims := make([]claim.Claim, 0, len(snap.Claims))
	for _, c := range snap.Claims {
		if _, ok := byName[c.Faction]; !ok {
			s.logger.Warn("dropping claim of unknown faction",
				zap.String("faction", c.Faction),
				zap.String("world", c.World),
				zap.Int("x", c.X),
				zap.Int("z", c.Z),
			)
			continue
		}
		claims = append(claims, claim.Claim{
			Key:       claim.Key{World: c.World, X: c.X, Z: c.Z},
			Faction:   c.Faction,
			ClaimedAt: c.ClaimedAt,
		})
	}
	s.grid.Restore(claims)
	s.ledger.Restore(snap.Power)
}

func highestMember(f *faction.Faction) string {
	best := ""
	bestLevel := 0
	for _, actor := range f.MemberNames() {
		if l := f.Members[actor].Rank.Level; l > bestLevel {
			best, bestLevel = actor, l
		}
	}
	return best
}
