package territory

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/presence"
)

// Connect marks actor online and creates their power entry on first contact.
func (s *Service) Connect(actor string) error {
	if _, err := s.presence.Connect(actor); err != nil && !errors.Is(err, presence.ErrAlreadyConnected) {
		return err
	}
	s.mu.Lock()
	defer s.unlock()
	if s.ledger.Initialize(actor) {
		s.commitLocked()
		s.logger.Debug("power initialized", zap.String("actor", actor), zap.Int("power", s.ledger.Starting()))
	}
	return nil
}

// Disconnect marks actor offline.
func (s *Service) Disconnect(actor string) error {
	return s.presence.Disconnect(actor)
}

// Move records actor's position for map and presence queries.
func (s *Service) Move(actor string, pos presence.Position) error {
	_, err := s.presence.Move(actor, pos)
	return err
}

// IsOnline reports whether actor is connected.
func (s *Service) IsOnline(actor string) bool {
	return s.presence.IsOnline(actor)
}

// HandleDeath applies the death penalty to victim and the kill reward to killer.
// killer may be empty for non-player deaths.
func (s *Service) HandleDeath(victim, killer string) {
	s.mu.Lock()
	defer s.unlock()
	s.publishPower(s.reg.AdjustPower(victim, s.rules.DeathPenalty))
	if killer != "" && killer != victim {
		s.publishPower(s.reg.AdjustPower(killer, s.rules.KillReward))
	}
	s.commitLocked()
}

// AdjustPower adds delta to actor's power, clamped to [0, max].
// A PowerChanged event is emitted if actor belongs to a faction.
func (s *Service) AdjustPower(actor string, delta int) faction.PowerChange {
	s.mu.Lock()
	defer s.unlock()
	c := s.reg.AdjustPower(actor, delta)
	s.publishPower(c)
	s.commitLocked()
	return c
}

// SetPower assigns actor's power, clamped to [0, max].
func (s *Service) SetPower(actor string, value int) faction.PowerChange {
	s.mu.Lock()
	defer s.unlock()
	c := s.reg.SetPower(actor, value)
	s.publishPower(c)
	s.commitLocked()
	return c
}

// PowerOf returns actor's individual power.
func (s *Service) PowerOf(actor string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.PowerOf(actor)
}

// FactionPower returns the named faction's aggregate and maximum power.
func (s *Service) FactionPower(name string) (current, maximum int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if current, err = s.reg.Power(name); err != nil {
		return 0, 0, err
	}
	maximum, err = s.reg.MaxPower(name)
	return current, maximum, err
}
