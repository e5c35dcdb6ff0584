// Package sqlite persists territory snapshots in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/factions/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS factions (
	name        TEXT PRIMARY KEY COLLATE NOCASE,
	leader      TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	balance     REAL NOT NULL DEFAULT 0 CHECK (balance >= 0),
	home_world  TEXT,
	home_x      REAL,
	home_y      REAL,
	home_z      REAL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS faction_members (
	actor     TEXT PRIMARY KEY,
	faction   TEXT NOT NULL REFERENCES factions (name) ON DELETE CASCADE,
	rank      TEXT NOT NULL,
	joined_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS faction_relations (
	faction TEXT NOT NULL REFERENCES factions (name) ON DELETE CASCADE,
	other   TEXT NOT NULL REFERENCES factions (name) ON DELETE CASCADE,
	kind    TEXT NOT NULL CHECK (kind IN ('ally', 'enemy')),
	PRIMARY KEY (faction, other)
);

CREATE TABLE IF NOT EXISTS claims (
	world      TEXT    NOT NULL,
	x          INTEGER NOT NULL,
	z          INTEGER NOT NULL,
	faction    TEXT    NOT NULL REFERENCES factions (name) ON DELETE CASCADE,
	claimed_at INTEGER NOT NULL,
	PRIMARY KEY (world, x, z)
);

CREATE TABLE IF NOT EXISTS actor_power (
	actor TEXT PRIMARY KEY,
	power INTEGER NOT NULL CHECK (power >= 0)
);

CREATE INDEX IF NOT EXISTS idx_members_faction ON faction_members (faction);
CREATE INDEX IF NOT EXISTS idx_claims_faction ON claims (faction);
`

// Store is a storage.Gateway backed by SQLite. Timestamps are stored as
// Unix nanoseconds.
type Store struct {
	conn *sqlx.DB
}

type factionRow struct {
	Name        string          `db:"name"`
	Leader      string          `db:"leader"`
	Description string          `db:"description"`
	Balance     float64         `db:"balance"`
	HomeWorld   sql.NullString  `db:"home_world"`
	HomeX       sql.NullFloat64 `db:"home_x"`
	HomeY       sql.NullFloat64 `db:"home_y"`
	HomeZ       sql.NullFloat64 `db:"home_z"`
	CreatedAt   int64           `db:"created_at"`
}

type memberRow struct {
	Actor    string `db:"actor"`
	Faction  string `db:"faction"`
	Rank     string `db:"rank"`
	JoinedAt int64  `db:"joined_at"`
}

type relationRow struct {
	Faction string `db:"faction"`
	Other   string `db:"other"`
	Kind    string `db:"kind"`
}

type claimRow struct {
	World     string `db:"world"`
	X         int    `db:"x"`
	Z         int    `db:"z"`
	Faction   string `db:"faction"`
	ClaimedAt int64  `db:"claimed_at"`
}

type powerRow struct {
	Actor string `db:"actor"`
	Power int    `db:"power"`
}

// Open opens or creates the database at path and ensures the schema exists.
//
// Postcondition: Returns a ready Store or a non-nil error.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Load implements storage.Gateway.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	var (
		factions  []factionRow
		members   []memberRow
		relations []relationRow
		claims    []claimRow
		power     []powerRow
	)
	queries := []struct {
		dest  any
		query string
	}{
		{&factions, `SELECT * FROM factions ORDER BY name`},
		{&members, `SELECT * FROM faction_members ORDER BY faction, joined_at, actor`},
		{&relations, `SELECT * FROM faction_relations ORDER BY faction, other`},
		{&claims, `SELECT * FROM claims ORDER BY world, x, z`},
		{&power, `SELECT * FROM actor_power`},
	}
	for _, q := range queries {
		if err := s.conn.SelectContext(ctx, q.dest, q.query); err != nil {
			return storage.Snapshot{}, fmt.Errorf("loading %q: %w", q.query, err)
		}
	}

	snap := storage.Snapshot{Power: make(map[string]int, len(power))}
	index := make(map[string]int, len(factions))
	for _, r := range factions {
		f := storage.FactionRecord{
			Name:        r.Name,
			Leader:      r.Leader,
			Description: r.Description,
			Balance:     r.Balance,
			CreatedAt:   fromNanos(r.CreatedAt),
		}
		if r.HomeWorld.Valid {
			f.Home = &storage.HomeRecord{
				World: r.HomeWorld.String,
				X:     r.HomeX.Float64,
				Y:     r.HomeY.Float64,
				Z:     r.HomeZ.Float64,
			}
		}
		index[f.Name] = len(snap.Factions)
		snap.Factions = append(snap.Factions, f)
	}
	for _, m := range members {
		if i, ok := index[m.Faction]; ok {
			snap.Factions[i].Members = append(snap.Factions[i].Members, storage.MemberRecord{
				Actor:    m.Actor,
				Rank:     m.Rank,
				JoinedAt: fromNanos(m.JoinedAt),
			})
		}
	}
	for _, r := range relations {
		i, ok := index[r.Faction]
		if !ok {
			continue
		}
		switch r.Kind {
		case "ally":
			snap.Factions[i].Allies = append(snap.Factions[i].Allies, r.Other)
		case "enemy":
			snap.Factions[i].Enemies = append(snap.Factions[i].Enemies, r.Other)
		}
	}
	for _, c := range claims {
		snap.Claims = append(snap.Claims, storage.ClaimRecord{
			World:     c.World,
			X:         c.X,
			Z:         c.Z,
			Faction:   c.Faction,
			ClaimedAt: fromNanos(c.ClaimedAt),
		})
	}
	for _, p := range power {
		snap.Power[p.Actor] = p.Power
	}
	return snap, nil
}

// Save implements storage.Gateway (full replace in one transaction).
//
// Postcondition: On error the previous contents are left intact.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"claims", "faction_relations", "faction_members", "factions", "actor_power"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	var (
		factions  []factionRow
		members   []memberRow
		relations []relationRow
		claims    []claimRow
		power     []powerRow
	)
	for _, f := range snap.Factions {
		r := factionRow{
			Name:        f.Name,
			Leader:      f.Leader,
			Description: f.Description,
			Balance:     f.Balance,
			CreatedAt:   toNanos(f.CreatedAt),
		}
		if f.Home != nil {
			r.HomeWorld = sql.NullString{String: f.Home.World, Valid: true}
			r.HomeX = sql.NullFloat64{Float64: f.Home.X, Valid: true}
			r.HomeY = sql.NullFloat64{Float64: f.Home.Y, Valid: true}
			r.HomeZ = sql.NullFloat64{Float64: f.Home.Z, Valid: true}
		}
		factions = append(factions, r)
		for _, m := range f.Members {
			members = append(members, memberRow{Actor: m.Actor, Faction: f.Name, Rank: m.Rank, JoinedAt: toNanos(m.JoinedAt)})
		}
		for _, a := range f.Allies {
			relations = append(relations, relationRow{Faction: f.Name, Other: a, Kind: "ally"})
		}
		for _, e := range f.Enemies {
			relations = append(relations, relationRow{Faction: f.Name, Other: e, Kind: "enemy"})
		}
	}
	for _, c := range snap.Claims {
		claims = append(claims, claimRow{World: c.World, X: c.X, Z: c.Z, Faction: c.Faction, ClaimedAt: toNanos(c.ClaimedAt)})
	}
	for actor, value := range snap.Power {
		power = append(power, powerRow{Actor: actor, Power: value})
	}

	if err := insertAll(ctx, tx, `INSERT INTO factions
		(name, leader, description, balance, home_world, home_x, home_y, home_z, created_at)
		VALUES (:name, :leader, :description, :balance, :home_world, :home_x, :home_y, :home_z, :created_at)`, factions); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, `INSERT INTO faction_members (actor, faction, rank, joined_at)
		VALUES (:actor, :faction, :rank, :joined_at)`, members); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, `INSERT INTO faction_relations (faction, other, kind)
		VALUES (:faction, :other, :kind)`, relations); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, `INSERT INTO claims (world, x, z, faction, claimed_at)
		VALUES (:world, :x, :z, :faction, :claimed_at)`, claims); err != nil {
		return err
	}
	if err := insertAll(ctx, tx, `INSERT INTO actor_power (actor, power) VALUES (:actor, :power)`, power); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

func insertAll[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r); err != nil {
			return fmt.Errorf("inserting row: %w", err)
		}
	}
	return nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
