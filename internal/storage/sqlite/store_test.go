package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/factions/internal/storage"
	"github.com/cory-johannsen/factions/internal/storage/sqlite"
	"github.com/cory-johannsen/factions/internal/storage/storagetest"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Gateway(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Gateway {
		return openStore(t, filepath.Join(t.TempDir(), "factions.db"))
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factions.db")
	ctx := context.Background()

	first, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, storagetest.Sample()))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	got, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, storagetest.Sample(), got)
}

func TestStore_DanglingClaimRollsBack(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "factions.db"))
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, storagetest.Sample()))

	bad := storagetest.Sample()
	bad.Claims = append(bad.Claims, storage.ClaimRecord{World: "world", X: 9, Z: 9, Faction: "Ghost", ClaimedAt: time.Now()})
	assert.Error(t, s.Save(ctx, bad))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Factions, 3)
	assert.Len(t, got.Claims, 3)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := sqlite.Open(filepath.Join(t.TempDir(), "missing", "dir", "factions.db"))
	assert.Error(t, err)
}
