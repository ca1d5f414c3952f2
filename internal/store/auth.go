package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// OAuthStateTTL is how long an issued OAuth state stays valid.
const OAuthStateTTL = 10 * time.Minute

// ErrInvalidOAuthState is returned for unknown, consumed or expired states.
var ErrInvalidOAuthState = errors.New("invalid or expired oauth state")

// now is replaced in tests.
var now = time.Now

// BangumiAuth returns the stored Bangumi credentials of a user. A user that
// never authorized gets an unauthenticated record.
func (s *Store) BangumiAuth(ctx context.Context, userID int64) (*provider.BangumiAuth, error) {
	auth := provider.BangumiAuth{UserID: userID}
	err := s.conn.QueryRowContext(ctx, `
		SELECT bangumi_user_id, nickname, avatar_url, access_token, refresh_token, expires_at
		FROM bangumi_auth WHERE user_id = ?
	`, userID).Scan(&auth.BangumiUserID, &auth.Nickname, &auth.AvatarURL, &auth.AccessToken, &auth.RefreshToken, &auth.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &auth, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bangumi auth: %w", err)
	}
	auth.IsAuthenticated = auth.AccessToken != ""
	return &auth, nil
}

// SaveBangumiAuth stores the credentials of a user, replacing older ones.
func (s *Store) SaveBangumiAuth(ctx context.Context, auth provider.BangumiAuth) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO bangumi_auth (user_id, bangumi_user_id, nickname, avatar_url, access_token, refresh_token, expires_at, authorized_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			bangumi_user_id = excluded.bangumi_user_id,
			nickname = excluded.nickname,
			avatar_url = excluded.avatar_url,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			authorized_at = CURRENT_TIMESTAMP
	`, auth.UserID, auth.BangumiUserID, auth.Nickname, auth.AvatarURL, auth.AccessToken, auth.RefreshToken, auth.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save bangumi auth: %w", err)
	}
	return nil
}

// DeleteBangumiAuth removes the stored credentials of a user.
func (s *Store) DeleteBangumiAuth(ctx context.Context, userID int64) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM bangumi_auth WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete bangumi auth: %w", err)
	}
	return nil
}

// CreateOAuthState issues a single use state token bound to a user.
func (s *Store) CreateOAuthState(ctx context.Context, userID int64) (string, error) {
	state := uuid.NewString()
	expires := now().Add(OAuthStateTTL).Unix()
	if _, err := s.conn.ExecContext(ctx, "INSERT INTO oauth_states (state, user_id, expires_at) VALUES (?, ?, ?)", state, userID, expires); err != nil {
		return "", fmt.Errorf("failed to create oauth state: %w", err)
	}
	return state, nil
}

// ConsumeOAuthState returns the user bound to state and deletes it.
func (s *Store) ConsumeOAuthState(ctx context.Context, state string) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID, expires int64
	err = tx.QueryRowContext(ctx, "SELECT user_id, expires_at FROM oauth_states WHERE state = ?", state).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidOAuthState
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read oauth state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM oauth_states WHERE state = ? OR expires_at < ?", state, now().Unix()); err != nil {
		return 0, fmt.Errorf("failed to delete oauth state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit oauth state: %w", err)
	}

	if expires < now().Unix() {
		return 0, ErrInvalidOAuthState
	}
	return userID, nil
}
