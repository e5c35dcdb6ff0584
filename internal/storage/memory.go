package storage

import (
	"context"
	"sync"
)

// Memory is a Gateway that keeps the last saved snapshot in process.
// All methods are safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	snap  Snapshot
	saves int
	err   error
}

// NewMemory returns a gateway preloaded with snap.
func NewMemory(snap Snapshot) *Memory {
	return &Memory{snap: snap.Clone()}
}

// Load implements Gateway.
func (m *Memory) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone(), nil
}

// Save implements Gateway.
func (m *Memory) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Close implements Gateway.
func (m *Memory) Close() error { return nil }

// Saves returns how many saves succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailWith makes subsequent saves return err; nil restores normal behavior.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
