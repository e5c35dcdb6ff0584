// Package storage defines the persistence contract for territory state and the
// flat records every backend reads and writes.
package storage

import (
	"context"
	"maps"
	"slices"
	"time"
)

// Backend names accepted by storage.backend.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendYAML     = "yaml"
	BackendMemory   = "memory"
)

// Gateway loads and saves the full territory state.
type Gateway interface {
	// Load returns the last saved snapshot, or an empty one if nothing was saved.
	Load(ctx context.Context) (Snapshot, error)
	// Save replaces the stored state with snap.
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// Snapshot is the complete persisted state.
type Snapshot struct {
	Factions []FactionRecord
	Claims   []ClaimRecord
	Power    map[string]int
}

// FactionRecord is one faction. Ranks are stored by canonical key.
type FactionRecord struct {
	Name        string         `yaml:"-"`
	Leader      string         `yaml:"leader"`
	Description string         `yaml:"description,omitempty"`
	Balance     float64        `yaml:"balance"`
	Home        *HomeRecord    `yaml:"home,omitempty"`
	CreatedAt   time.Time      `yaml:"created_at"`
	Members     []MemberRecord `yaml:"members"`
	Allies      []string       `yaml:"allies,omitempty"`
	Enemies     []string       `yaml:"enemies,omitempty"`
}

// MemberRecord is one membership row.
type MemberRecord struct {
	Actor    string    `yaml:"actor"`
	Rank     string    `yaml:"rank"`
	JoinedAt time.Time `yaml:"joined_at"`
}

// HomeRecord is a faction home.
type HomeRecord struct {
	World string  `yaml:"world"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Z     float64 `yaml:"z"`
}

// ClaimRecord is one owned cell.
type ClaimRecord struct {
	World     string    `yaml:"world"`
	X         int       `yaml:"x"`
	Z         int       `yaml:"z"`
	Faction   string    `yaml:"faction"`
	ClaimedAt time.Time `yaml:"claimed_at"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Factions: make([]FactionRecord, len(s.Factions)),
		Claims:   slices.Clone(s.Claims),
		Power:    maps.Clone(s.Power),
	}
	for i, f := range s.Factions {
		f.Members = slices.Clone(f.Members)
		f.Allies = slices.Clone(f.Allies)
		f.Enemies = slices.Clone(f.Enemies)
		if f.Home != nil {
			h := *f.Home
			f.Home = &h
		}
		out.Factions[i] = f
	}
	if out.Power == nil {
		out.Power = make(map[string]int)
	}
	return out
}
