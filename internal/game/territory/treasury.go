package territory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/game/event"
	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/rank"
)

// Deposit moves amount from actor's personal balance into the faction treasury.
// Handlers of the FactionDeposit event may cancel it or change the amount.
//
// Postcondition: Returns the new treasury balance; on error nothing moved.
func (s *Service) Deposit(ctx context.Context, actor string, amount float64) (float64, error) {
	if !s.bank.Enabled() {
		return 0, ErrEconomyDisabled
	}
	if !(amount > 0) {
		return 0, faction.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.unlock()
	f, _, err := s.memberWith(actor, rank.PermDeposit)
	if err != nil {
		return 0, err
	}
	if ok, err := s.bank.CanAfford(ctx, actor, amount); err != nil {
		return f.Balance, err
	} else if !ok {
		return f.Balance, ErrCannotAfford
	}
	e := &event.Event{Kind: event.FactionDeposit, Faction: f.Name, Actor: actor, Amount: amount}
	if !s.publish(e) {
		return f.Balance, ErrCancelled
	}
	amount = e.Amount
	if err := s.bank.Charge(ctx, actor, amount); err != nil {
		return f.Balance, fmt.Errorf("charging deposit: %w", err)
	}
	balance, err := s.reg.Credit(f.Name, amount)
	if err != nil {
		s.refund(ctx, actor, amount)
		return f.Balance, err
	}
	s.commitLocked()
	return balance, nil
}

// Withdraw moves amount from the faction treasury to actor's personal balance.
//
// Postcondition: If crediting the actor fails the treasury debit is undone and
// the balance is unchanged.
func (s *Service) Withdraw(ctx context.Context, actor string, amount float64) (float64, error) {
	if !s.bank.Enabled() {
		return 0, ErrEconomyDisabled
	}
	s.mu.Lock()
	defer s.unlock()
	f, _, err := s.memberWith(actor, rank.PermWithdraw)
	if err != nil {
		return 0, err
	}
	balance, err := s.reg.Debit(f.Name, amount)
	if err != nil {
		return balance, err
	}
	if err := s.bank.Pay(ctx, actor, amount); err != nil {
		restored, rerr := s.reg.Credit(f.Name, amount)
		if rerr != nil {
			s.logger.Error("restoring treasury after failed withdraw",
				zap.String("faction", f.Name),
				zap.Float64("amount", amount),
				zap.Error(rerr),
			)
		}
		return restored, fmt.Errorf("paying withdrawal: %w", err)
	}
	s.publish(&event.Event{Kind: event.FactionWithdraw, Faction: f.Name, Actor: actor, Amount: amount})
	s.commitLocked()
	return balance, nil
}

// Balance returns the named faction's treasury balance.
func (s *Service) Balance(name string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.reg.Get(name)
	if !ok {
		return 0, faction.ErrFactionNotFound
	}
	return f.Balance, nil
}
