package territory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/rank"
)

// claimCost returns the money and strength a normal claim costs.
func (s *Service) claimCost() (money float64, strength int) {
	if !s.bank.Enabled() {
		return 0, 0
	}
	if s.rules.CostType.UsesMoney() {
		money = s.rules.ClaimCostMoney
	}
	if s.rules.CostType.UsesStrength() {
		strength = s.rules.ClaimCostStrength
	}
	return money, strength
}

// Claim assigns the cell to actor's faction, charging the configured cost.
//
// Postcondition: On any error, including a cancelled LandClaimed event or an
// economy failure, grid, ledger and balances are unchanged.
func (s *Service) Claim(ctx context.Context, actor string, k claim.Key) (claim.Claim, error) {
	s.mu.Lock()
	defer s.unlock()
	f, _, err := s.memberWith(actor, rank.PermClaim)
	if err != nil {
		return claim.Claim{}, err
	}
	if err := s.grid.CanClaim(f.Name, k); err != nil {
		return claim.Claim{}, err
	}
	money, strength := s.claimCost()
	if strength > 0 && s.ledger.Get(actor) < strength {
		return claim.Claim{}, ErrCannotAfford
	}
	if ok, err := s.bank.CanAfford(ctx, actor, money); err != nil {
		return claim.Claim{}, err
	} else if !ok {
		return claim.Claim{}, ErrCannotAfford
	}

	if !s.publish(&event.Event{Kind: event.LandClaimed, Faction: f.Name, Actor: actor, World: k.World, X: k.X, Z: k.Z}) {
		return claim.Claim{}, ErrCancelled
	}
	if err := s.bank.Charge(ctx, actor, money); err != nil {
		return claim.Claim{}, fmt.Errorf("charging claim: %w", err)
	}
	c, err := s.grid.Claim(f.Name, k)
	if err != nil {
		s.refund(ctx, actor, money)
		return claim.Claim{}, err
	}
	if strength > 0 {
		s.publishPower(s.reg.AdjustPower(actor, -strength))
	}
	s.commitLocked()
	s.logger.Debug("land claimed",
		zap.String("faction", f.Name),
		zap.String("actor", actor),
		zap.Stringer("cell", k),
	)
	return c, nil
}

// Overclaim transfers another faction's cell to actor's faction when the
// power ratio and the overclaim cost allow it.
func (s *Service) Overclaim(ctx context.Context, actor string, k claim.Key) (claim.Claim, error) {
	if !s.rules.OverclaimEnabled {
		return claim.Claim{}, ErrOverclaimDisabled
	}
	s.mu.Lock()
	defer s.unlock()
	f, _, err := s.memberWith(actor, rank.PermClaim)
	if err != nil {
		return claim.Claim{}, err
	}
	existing, ok := s.grid.At(k)
	if !ok {
		return claim.Claim{}, claim.ErrNotClaimed
	}
	defender, ok := s.reg.Get(existing.Faction)
	if !ok {
		return claim.Claim{}, claim.ErrNotClaimed
	}
	if defender == f {
		return claim.Claim{}, ErrOverclaimOwnLand
	}
	if s.rules.RequirePowerRatio {
		ours, _ := s.reg.Power(f.Name)
		theirs, _ := s.reg.Power(defender.Name)
		if !PowerRatioMet(ours, theirs, s.rules.OverclaimPowerRatio) {
			return claim.Claim{}, ErrInsufficientPower
		}
	}
	cost := 0.0
	if s.bank.Enabled() {
		cost = s.rules.OverclaimCost
	}
	if ok, err := s.bank.CanAfford(ctx, actor, cost); err != nil {
		return claim.Claim{}, err
	} else if !ok {
		return claim.Claim{}, ErrCannotAfford
	}

	if !s.publish(&event.Event{
		Kind: event.LandClaimed, Faction: f.Name, Actor: actor, Previous: defender.Name,
		World: k.World, X: k.X, Z: k.Z,
	}) {
		return claim.Claim{}, ErrCancelled
	}
	if err := s.bank.Charge(ctx, actor, cost); err != nil {
		return claim.Claim{}, fmt.Errorf("charging overclaim: %w", err)
	}
	s.grid.Transfer(k, f.Name)
	s.commitLocked()
	s.logger.Info("land overclaimed",
		zap.String("faction", f.Name),
		zap.String("previous", defender.Name),
		zap.Stringer("cell", k),
	)
	c, _ := s.grid.At(k)
	return c, nil
}

// PowerRatioMet reports whether challenger power reaches ratio times defender power.
func PowerRatioMet(challenger, defender int, ratio float64) bool {
	return float64(challenger) >= float64(defender)*ratio
}

func (s *Service) refund(ctx context.Context, actor string, amount float64) {
	if err := s.bank.Pay(ctx, actor, amount); err != nil {
		s.logger.Error("refunding claim cost",
			zap.String("actor", actor),
			zap.Float64("amount", amount),
			zap.Error(err),
		)
	}
}

// Unclaim releases a cell owned by actor's faction.
func (s *Service) Unclaim(actor string, k claim.Key) error {
	s.mu.Lock()
	defer s.unlock()
	f, _, err := s.memberWith(actor, rank.PermUnclaim)
	if err != nil {
		return err
	}
	if s.grid.OwnerOf(k) != f.Name {
		return ErrNotOwnLand
	}
	s.grid.Unclaim(k)
	s.publish(&event.Event{Kind: event.LandUnclaimed, Faction: f.Name, Actor: actor, World: k.World, X: k.X, Z: k.Z})
	s.commitLocked()
	return nil
}

// UnclaimAll releases every cell of actor's faction. Only the leader may do this.
func (s *Service) UnclaimAll(actor string) (int, error) {
	s.mu.Lock()
	defer s.unlock()
	f, _, err := s.memberWith(actor, "")
	if err != nil {
		return 0, err
	}
	if f.Leader != actor {
		return 0, ErrNoPermission
	}
	cells := s.grid.ForFaction(f.Name)
	s.grid.RemoveAllFor(f.Name)
	for _, c := range cells {
		s.publish(&event.Event{Kind: event.LandUnclaimed, Faction: f.Name, Actor: actor, World: c.World, X: c.X, Z: c.Z})
	}
	if len(cells) > 0 {
		s.commitLocked()
	}
	return len(cells), nil
}

// ClaimAt returns the claim on k.
func (s *Service) ClaimAt(k claim.Key) (claim.Claim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.At(k)
}

// ClaimsInRadius returns claims in the inclusive square around center.
func (s *Service) ClaimsInRadius(center claim.Key, radius int) []claim.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.InRadius(center, radius)
}

// ClaimsInWorld returns every claim in world.
func (s *Service) ClaimsInWorld(world string) []claim.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.InWorld(world)
}

// ClaimsOf returns every claim owned by the named faction.
func (s *Service) ClaimsOf(name string) []claim.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.reg.Get(name)
	if !ok {
		return nil
	}
	return s.grid.ForFaction(f.Name)
}

// TotalClaims returns the number of claimed cells.
func (s *Service) TotalClaims() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Total()
}
