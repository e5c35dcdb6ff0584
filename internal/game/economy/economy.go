// Package economy wraps the external personal-currency provider that claim,
// overclaim and treasury operations charge against.
package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cory-johannsen/factions/internal/game/fault"
)

var (
	// ErrInsufficientFunds is returned when the actor cannot cover a debit.
	ErrInsufficientFunds = fault.New(fault.Conflict, "insufficient funds")
	// ErrUnavailable wraps any provider failure that is not a funds check.
	ErrUnavailable = fault.New(fault.ExternalFailure, "economy provider unavailable")
	// ErrTimeout is returned when the provider does not answer within the bank timeout.
	ErrTimeout = fault.New(fault.ExternalFailure, "economy provider timed out")
	// ErrInvalidAmount is returned for non-positive or non-finite amounts.
	ErrInvalidAmount = fault.New(fault.Invalid, "amount must be positive")
)

// Provider is the external currency ledger.
type Provider interface {
	Balance(ctx context.Context, actor string) (float64, error)
	Credit(ctx context.Context, actor string, amount float64) error
	Debit(ctx context.Context, actor string, amount float64) error
}

// CostType selects which resources a claim consumes.
type CostType string

const (
	CostMoney    CostType = "money"
	CostStrength CostType = "strength"
	CostBoth     CostType = "both"
	CostNone     CostType = "none"
)

// ParseCostType parses a configured cost type, case-insensitively.
func ParseCostType(s string) (CostType, error) {
	switch ct := CostType(strings.ToLower(strings.TrimSpace(s))); ct {
	case CostMoney, CostStrength, CostBoth, CostNone:
		return ct, nil
	default:
		return "", fmt.Errorf("unknown cost type %q", s)
	}
}

// UsesMoney reports whether the currency provider is charged.
func (c CostType) UsesMoney() bool { return c == CostMoney || c == CostBoth }

// UsesStrength reports whether power is consumed.
func (c CostType) UsesStrength() bool { return c == CostStrength || c == CostBoth }

// Bank applies a timeout to every provider call and classifies failures.
// A Bank without a provider treats every charge as free.
type Bank struct {
	provider Provider
	timeout  time.Duration
}

// NewBank wraps provider. A nil provider disables all costs.
//
// Precondition: timeout > 0 when provider is non-nil.
func NewBank(provider Provider, timeout time.Duration) *Bank {
	return &Bank{provider: provider, timeout: timeout}
}

// Enabled reports whether a provider is configured.
func (b *Bank) Enabled() bool { return b != nil && b.provider != nil }

// Balance returns the actor's personal balance.
func (b *Bank) Balance(ctx context.Context, actor string) (float64, error) {
	if !b.Enabled() {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	v, err := b.provider.Balance(ctx, actor)
	if err != nil {
		return 0, classify(ctx, "balance", err)
	}
	return v, nil
}

// CanAfford reports whether actor holds at least amount. Always true when disabled.
func (b *Bank) CanAfford(ctx context.Context, actor string, amount float64) (bool, error) {
	if !b.Enabled() || amount <= 0 {
		return true, nil
	}
	v, err := b.Balance(ctx, actor)
	if err != nil {
		return false, err
	}
	return v >= amount, nil
}

// Charge debits amount from actor. Free when disabled or amount is zero.
func (b *Bank) Charge(ctx context.Context, actor string, amount float64) error {
	if !b.Enabled() || amount == 0 {
		return nil
	}
	if !(amount > 0) {
		return ErrInvalidAmount
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.provider.Debit(ctx, actor, amount); err != nil {
		return classify(ctx, "debit", err)
	}
	return nil
}

// Pay credits amount to actor. A no-op when disabled or amount is zero.
func (b *Bank) Pay(ctx context.Context, actor string, amount float64) error {
	if !b.Enabled() || amount == 0 {
		return nil
	}
	if !(amount > 0) {
		return ErrInvalidAmount
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.provider.Credit(ctx, actor, amount); err != nil {
		return classify(ctx, "credit", err)
	}
	return nil
}

func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("economy %s: %w", op, ErrTimeout)
	}
	if fault.KindOf(err) != fault.Unknown {
		return fmt.Errorf("economy %s: %w", op, err)
	}
	return fmt.Errorf("economy %s: %w: %w", op, ErrUnavailable, err)
}
