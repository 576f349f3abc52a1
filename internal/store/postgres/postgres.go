// Package postgres stores tournament aggregates as JSONB documents with an
// optimistic version column.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Config struct {
	DSN      string
	MaxConns int
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Load(ctx context.Context, code string) (*engine.Tournament, int64, error) {
	const query = `SELECT doc, version FROM tournaments WHERE code = $1`

	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx, query, code).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, store.ErrNotFound
		}
		return nil, 0, fmt.Errorf("postgres: load %s: %w", code, err)
	}
	var t engine.Tournament
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, 0, fmt.Errorf("postgres: decode %s: %w", code, err)
	}
	t.Normalize()
	return &t, version, nil
}

func (s *Store) Save(ctx context.Context, t *engine.Tournament, expected int64) (int64, error) {
	doc, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("postgres: encode %s: %w", t.Code, err)
	}

	const query = `
		UPDATE tournaments
		SET doc = $2, version = version + 1, updated_at = NOW()
		WHERE code = $1 AND version = $3`

	tag, err := s.pool.Exec(ctx, query, t.Code, doc, expected)
	if err != nil {
		return 0, fmt.Errorf("postgres: save %s: %w", t.Code, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tournaments WHERE code = $1)`, t.Code).Scan(&exists); err != nil {
			return 0, fmt.Errorf("postgres: save %s: %w", t.Code, err)
		}
		if !exists {
			return 0, store.ErrNotFound
		}
		return 0, store.ErrConflict
	}
	return expected + 1, nil
}

func (s *Store) Put(ctx context.Context, t *engine.Tournament) (int64, error) {
	doc, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("postgres: encode %s: %w", t.Code, err)
	}

	const query = `
		INSERT INTO tournaments (code, doc, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (code) DO UPDATE SET
			doc        = EXCLUDED.doc,
			version    = tournaments.version + 1,
			updated_at = NOW()
		RETURNING version`

	var version int64
	if err := s.pool.QueryRow(ctx, query, t.Code, doc).Scan(&version); err != nil {
		return 0, fmt.Errorf("postgres: put %s: %w", t.Code, err)
	}
	return version, nil
}

// Migrate applies the embedded migrations in filename order, recording each in
// schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
	if _, err := s.pool.Exec(ctx, createTracker); err != nil {
		return fmt.Errorf("postgres: create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if err := s.applyMigration(ctx, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, name string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)", name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: check migration %s: %w", name, err)
	}
	if exists {
		return nil
	}

	data, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("postgres: read migration %s: %w", name, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx for %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(data)); err != nil {
		return fmt.Errorf("postgres: exec migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
		return fmt.Errorf("postgres: record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit migration %s: %w", name, err)
	}
	return nil
}
