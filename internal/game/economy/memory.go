package economy

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errInjected is returned by a MemoryProvider switched into failure mode.
var errInjected = errors.New("injected provider failure")

// MemoryProvider is an in-process Provider for development and tests.
type MemoryProvider struct {
	mu          sync.Mutex
	balances    map[string]float64
	failCredits bool
	failDebits  bool
	delay       time.Duration
}

// NewMemoryProvider returns a provider seeded with the given balances.
func NewMemoryProvider(seed map[string]float64) *MemoryProvider {
	m := &MemoryProvider{balances: make(map[string]float64, len(seed))}
	for k, v := range seed {
		m.balances[k] = v
	}
	return m
}

// FailCredits makes subsequent Credit calls fail.
func (m *MemoryProvider) FailCredits(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCredits = fail
}

// FailDebits makes subsequent Debit calls fail.
func (m *MemoryProvider) FailDebits(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDebits = fail
}

// SetDelay makes every call wait d or until ctx is done.
func (m *MemoryProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

func (m *MemoryProvider) wait(ctx context.Context) error {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Balance implements Provider.
func (m *MemoryProvider) Balance(ctx context.Context, actor string) (float64, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[actor], nil
}

// Credit implements Provider.
func (m *MemoryProvider) Credit(ctx context.Context, actor string, amount float64) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCredits {
		return errInjected
	}
	m.balances[actor] += amount
	return nil
}

// Debit implements Provider.
func (m *MemoryProvider) Debit(ctx context.Context, actor string, amount float64) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDebits {
		return errInjected
	}
	if m.balances[actor] < amount {
		return ErrInsufficientFunds
	}
	m.balances[actor] -= amount
	return nil
}
