package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/factions/internal/storage"
)

const (
	relationAlly  = "ally"
	relationEnemy = "enemy"
)

// Store is a storage.Gateway over the schema in migrations/.
// Each Save replaces every table inside a single transaction.
type Store struct {
	pool *Pool
}

// NewStore creates a Store that owns pool.
//
// Precondition: pool must be connected and migrated.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Load implements storage.Gateway.
//
// Postcondition: Returns an empty snapshot with a non-nil Power map when the
// tables are empty.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	db := s.pool.DB()
	snap := storage.Snapshot{Power: make(map[string]int)}

	factions, index, err := loadFactions(ctx, db)
	if err != nil {
		return storage.Snapshot{}, err
	}
	if err := loadMembers(ctx, db, factions, index); err != nil {
		return storage.Snapshot{}, err
	}
	if err := loadRelations(ctx, db, factions, index); err != nil {
		return storage.Snapshot{}, err
	}
	snap.Factions = factions

	rows, err := db.Query(ctx, `SELECT world, x, z, faction, claimed_at FROM claims ORDER BY world, x, z`)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("querying claims: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c storage.ClaimRecord
		if err := rows.Scan(&c.World, &c.X, &c.Z, &c.Faction, &c.ClaimedAt); err != nil {
			return storage.Snapshot{}, fmt.Errorf("scanning claim row: %w", err)
		}
		c.ClaimedAt = c.ClaimedAt.UTC()
		snap.Claims = append(snap.Claims, c)
	}
	if err := rows.Err(); err != nil {
		return storage.Snapshot{}, fmt.Errorf("reading claims: %w", err)
	}

	prow, err := db.Query(ctx, `SELECT actor, power FROM actor_power`)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("querying power: %w", err)
	}
	defer prow.Close()
	for prow.Next() {
		var actor string
		var value int
		if err := prow.Scan(&actor, &value); err != nil {
			return storage.Snapshot{}, fmt.Errorf("scanning power row: %w", err)
		}
		snap.Power[actor] = value
	}
	if err := prow.Err(); err != nil {
		return storage.Snapshot{}, fmt.Errorf("reading power: %w", err)
	}
	return snap, nil
}

func loadFactions(ctx context.Context, db *pgxpool.Pool) ([]storage.FactionRecord, map[string]int, error) {
	rows, err := db.Query(ctx, `
		SELECT name, leader, description, balance,
		       home_world, home_x, home_y, home_z, created_at
		FROM factions ORDER BY name`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying factions: %w", err)
	}
	defer rows.Close()

	var out []storage.FactionRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			f          storage.FactionRecord
			world      *string
			hx, hy, hz *float64
		)
		if err := rows.Scan(&f.Name, &f.Leader, &f.Description, &f.Balance,
			&world, &hx, &hy, &hz, &f.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scanning faction row: %w", err)
		}
		f.CreatedAt = f.CreatedAt.UTC()
		if world != nil && hx != nil && hy != nil && hz != nil {
			f.Home = &storage.HomeRecord{World: *world, X: *hx, Y: *hy, Z: *hz}
		}
		index[f.Name] = len(out)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading factions: %w", err)
	}
	return out, index, nil
}

func loadMembers(ctx context.Context, db *pgxpool.Pool, factions []storage.FactionRecord, index map[string]int) error {
	rows, err := db.Query(ctx, `
		SELECT actor, faction, rank, joined_at
		FROM faction_members ORDER BY faction, joined_at, actor`)
	if err != nil {
		return fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m storage.MemberRecord
		var name string
		if err := rows.Scan(&m.Actor, &name, &m.Rank, &m.JoinedAt); err != nil {
			return fmt.Errorf("scanning member row: %w", err)
		}
		m.JoinedAt = m.JoinedAt.UTC()
		if i, ok := index[name]; ok {
			factions[i].Members = append(factions[i].Members, m)
		}
	}
	return rows.Err()
}

func loadRelations(ctx context.Context, db *pgxpool.Pool, factions []storage.FactionRecord, index map[string]int) error {
	rows, err := db.Query(ctx, `SELECT faction, other, kind FROM faction_relations ORDER BY faction, other`)
	if err != nil {
		return fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, other, kind string
		if err := rows.Scan(&name, &other, &kind); err != nil {
			return fmt.Errorf("scanning relation row: %w", err)
		}
		i, ok := index[name]
		if !ok {
			continue
		}
		switch kind {
		case relationAlly:
			factions[i].Allies = append(factions[i].Allies, other)
		case relationEnemy:
			factions[i].Enemies = append(factions[i].Enemies, other)
		}
	}
	return rows.Err()
}

// Save implements storage.Gateway.
//
// Postcondition: On error the previous contents are left intact.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	tx, err := s.pool.DB().Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE claims, faction_relations, faction_members, factions, actor_power`); err != nil {
		return fmt.Errorf("clearing tables: %w", err)
	}

	var factions, members, relations, claims, power [][]any
	for _, f := range snap.Factions {
		var world *string
		var hx, hy, hz *float64
		if f.Home != nil {
			world, hx, hy, hz = &f.Home.World, &f.Home.X, &f.Home.Y, &f.Home.Z
		}
		factions = append(factions, []any{
			f.Name, f.Leader, f.Description, f.Balance, world, hx, hy, hz, nonZero(f.CreatedAt),
		})
		for _, m := range f.Members {
			members = append(members, []any{m.Actor, f.Name, m.Rank, nonZero(m.JoinedAt)})
		}
		for _, a := range f.Allies {
			relations = append(relations, []any{f.Name, a, relationAlly})
		}
		for _, e := range f.Enemies {
			relations = append(relations, []any{f.Name, e, relationEnemy})
		}
	}
	for _, c := range snap.Claims {
		claims = append(claims, []any{c.World, c.X, c.Z, c.Faction, nonZero(c.ClaimedAt)})
	}
	for actor, value := range snap.Power {
		power = append(power, []any{actor, value})
	}

	copies := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"factions", []string{"name", "leader", "description", "balance", "home_world", "home_x", "home_y", "home_z", "created_at"}, factions},
		{"faction_members", []string{"actor", "faction", "rank", "joined_at"}, members},
		{"faction_relations", []string{"faction", "other", "kind"}, relations},
		{"claims", []string{"world", "x", "z", "faction", "claimed_at"}, claims},
		{"actor_power", []string{"actor", "power"}, power},
	}
	for _, c := range copies {
		if len(c.rows) == 0 {
			continue
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{c.table}, c.columns, pgx.CopyFromRows(c.rows)); err != nil {
			return fmt.Errorf("copying %s: %w", c.table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

func nonZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
