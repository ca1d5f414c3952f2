package store

import (
	"context"
	"fmt"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// ReplaceEpisodeMappings replaces every mapping stored for a show with the
// mappings of one episode group.
func (s *Store) ReplaceEpisodeMappings(ctx context.Context, tvID int, groupID string, mappings []provider.EpisodeMapping) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tmdb_episode_mappings WHERE tmdb_tv_id = ?", tvID); err != nil {
		return fmt.Errorf("failed to clear episode mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tmdb_episode_mappings (
			tmdb_tv_id, group_id, tmdb_episode_id, tmdb_season_number, tmdb_episode_number,
			custom_season_number, custom_episode_number, absolute_episode_number
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare episode mapping insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range mappings {
		if _, err := stmt.ExecContext(ctx, tvID, groupID, m.EpisodeID, m.SeasonNumber, m.EpisodeNumber,
			m.CustomSeason, m.CustomEpisode, m.AbsoluteIndex); err != nil {
			return fmt.Errorf("failed to insert episode mapping %d: %w", m.EpisodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit episode mappings: %w", err)
	}
	return nil
}

// EpisodeMappings returns the stored mappings of a show in absolute order.
func (s *Store) EpisodeMappings(ctx context.Context, tvID int) ([]provider.EpisodeMapping, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT tmdb_tv_id, group_id, tmdb_episode_id, tmdb_season_number, tmdb_episode_number,
			custom_season_number, custom_episode_number, absolute_episode_number
		FROM tmdb_episode_mappings WHERE tmdb_tv_id = ? ORDER BY absolute_episode_number
	`, tvID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episode mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []provider.EpisodeMapping
	for rows.Next() {
		var m provider.EpisodeMapping
		if err := rows.Scan(&m.TMDBTVID, &m.GroupID, &m.EpisodeID, &m.SeasonNumber, &m.EpisodeNumber,
			&m.CustomSeason, &m.CustomEpisode, &m.AbsoluteIndex); err != nil {
			return nil, fmt.Errorf("failed to scan episode mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
