// Package store persists source settings, runtime configuration and
// provider owned state in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases shared and serializes
	// writers.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// migrate runs database migrations up to the current schema version.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := s.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	migrations := []func(context.Context) error{
		s.migrateV1,
		s.migrateV2,
	}
	for i, m := range migrations {
		if version >= i+1 {
			continue
		}
		if err := m(ctx); err != nil {
			return err
		}
		if _, err := s.conn.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the source settings and configuration tables.
func (s *Store) migrateV1(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata_sources (
			provider_name TEXT PRIMARY KEY,
			is_aux_search_enabled INTEGER NOT NULL DEFAULT 0,
			display_order INTEGER NOT NULL DEFAULT 99,
			use_proxy INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migration v1: %w", err)
	}
	return nil
}

// migrateV2 adds provider owned state: OAuth credentials and episode
// group mappings.
func (s *Store) migrateV2(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS bangumi_auth (
			user_id INTEGER PRIMARY KEY,
			bangumi_user_id INTEGER NOT NULL DEFAULT 0,
			nickname TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at INTEGER NOT NULL DEFAULT 0,
			authorized_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS oauth_states (
			state TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tmdb_episode_mappings (
			id INTEGER PRIMARY KEY,
			tmdb_tv_id INTEGER NOT NULL,
			group_id TEXT NOT NULL,
			tmdb_episode_id INTEGER NOT NULL,
			tmdb_season_number INTEGER NOT NULL,
			tmdb_episode_number INTEGER NOT NULL,
			custom_season_number INTEGER NOT NULL,
			custom_episode_number INTEGER NOT NULL,
			absolute_episode_number INTEGER NOT NULL,
			UNIQUE(group_id, tmdb_episode_id)
		);

		CREATE INDEX IF NOT EXISTS idx_tmdb_mappings_tv ON tmdb_episode_mappings(tmdb_tv_id);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migration v2: %w", err)
	}
	return nil
}
