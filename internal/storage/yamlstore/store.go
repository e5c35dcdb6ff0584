// Package yamlstore persists territory snapshots as a single YAML document.
package yamlstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/factions/internal/storage"
)

// document is the on-disk layout. Factions are keyed by name.
type document struct {
	Factions map[string]storage.FactionRecord `yaml:"factions"`
	Claims   []storage.ClaimRecord            `yaml:"claims"`
	Power    map[string]int                   `yaml:"power"`
}

// Store is a storage.Gateway writing to one YAML file. Saves replace the file
// atomically via rename.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store for path. The file is created on the first Save.
//
// Precondition: path must not be empty.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Close implements storage.Gateway.
func (s *Store) Close() error { return nil }

// Load implements storage.Gateway.
//
// Postcondition: A missing file yields an empty snapshot and no error.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return storage.Snapshot{Power: make(map[string]int)}, nil
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return storage.Snapshot{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}

	snap := storage.Snapshot{Claims: doc.Claims, Power: doc.Power}
	if snap.Power == nil {
		snap.Power = make(map[string]int)
	}
	for name, f := range doc.Factions {
		f.Name = name
		snap.Factions = append(snap.Factions, f)
	}
	slices.SortFunc(snap.Factions, func(a, b storage.FactionRecord) int {
		return strings.Compare(a.Name, b.Name)
	})
	return snap, nil
}

// Save implements storage.Gateway.
//
// Postcondition: On error the previous file is left intact.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := document{
		Factions: make(map[string]storage.FactionRecord, len(snap.Factions)),
		Claims:   snap.Claims,
		Power:    snap.Power,
	}
	for _, f := range snap.Factions {
		if _, dup := doc.Factions[f.Name]; dup {
			return fmt.Errorf("duplicate faction %q in snapshot", f.Name)
		}
		doc.Factions[f.Name] = f
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
