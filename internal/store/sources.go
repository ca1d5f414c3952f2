package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// ErrUnknownSource is returned when updating a source without a settings row.
var ErrUnknownSource = errors.New("unknown metadata source")

// SyncDiscoveredProviders inserts a settings row for every name that does
// not have one yet. Existing rows are left untouched. New rows are appended
// after the current highest display order.
func (s *Store) SyncDiscoveredProviders(ctx context.Context, names []string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxOrder int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(display_order), 0) FROM metadata_sources").Scan(&maxOrder); err != nil {
		return fmt.Errorf("failed to read display order: %w", err)
	}

	for _, name := range names {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM metadata_sources WHERE provider_name = ?", name).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up metadata source %s: %w", name, err)
		}

		maxOrder++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO metadata_sources (provider_name, is_aux_search_enabled, display_order, use_proxy)
			VALUES (?, 0, ?, 0)
		`, name, maxOrder); err != nil {
			return fmt.Errorf("failed to insert metadata source %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata source sync: %w", err)
	}
	return nil
}

// AllSourceSettings returns every settings row ordered by display order.
func (s *Store) AllSourceSettings(ctx context.Context) ([]provider.SourceSetting, error) {
	return s.querySettings(ctx, `
		SELECT provider_name, is_aux_search_enabled, display_order, use_proxy
		FROM metadata_sources ORDER BY display_order, provider_name
	`)
}

// EnabledAuxSources returns the rows enabled for auxiliary alias search.
func (s *Store) EnabledAuxSources(ctx context.Context) ([]provider.SourceSetting, error) {
	return s.querySettings(ctx, `
		SELECT provider_name, is_aux_search_enabled, display_order, use_proxy
		FROM metadata_sources WHERE is_aux_search_enabled = 1
		ORDER BY display_order, provider_name
	`)
}

func (s *Store) querySettings(ctx context.Context, query string) ([]provider.SourceSetting, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var settings []provider.SourceSetting
	for rows.Next() {
		var setting provider.SourceSetting
		if err := rows.Scan(&setting.ProviderName, &setting.IsAuxSearchEnabled, &setting.DisplayOrder, &setting.UseProxy); err != nil {
			return nil, fmt.Errorf("failed to scan metadata source: %w", err)
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

// SetAuxSearchEnabled toggles auxiliary alias search for a source.
func (s *Store) SetAuxSearchEnabled(ctx context.Context, name string, enabled bool) error {
	return s.updateSource(ctx, "UPDATE metadata_sources SET is_aux_search_enabled = ? WHERE provider_name = ?", enabled, name)
}

// SetUseProxy toggles proxy use for a source.
func (s *Store) SetUseProxy(ctx context.Context, name string, useProxy bool) error {
	return s.updateSource(ctx, "UPDATE metadata_sources SET use_proxy = ? WHERE provider_name = ?", useProxy, name)
}

// SetDisplayOrder moves a source in the display order.
func (s *Store) SetDisplayOrder(ctx context.Context, name string, order int) error {
	return s.updateSource(ctx, "UPDATE metadata_sources SET display_order = ? WHERE provider_name = ?", order, name)
}

func (s *Store) updateSource(ctx context.Context, query string, value any, name string) error {
	res, err := s.conn.ExecContext(ctx, query, value, name)
	if err != nil {
		return fmt.Errorf("failed to update metadata source %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update metadata source %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return nil
}
