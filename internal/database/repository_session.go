package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// =====================================================
// SESSION OPERATIONS (single-device policy)
// =====================================================

// CreateSession creates a new session for a user. All prior live sessions for
// the user are revoked in the same transaction, so a login from a new device
// fingerprint leaves exactly one usable session. Both steps commit together;
// the caller never observes a user with zero or two live sessions.
func (r *Repository) CreateSession(ctx context.Context, session *UserSession) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE user_sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
		session.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke prior sessions: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO user_sessions (user_id, token_hash, device_fingerprint, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, last_used_at
	`,
		session.UserID,
		session.TokenHash,
		session.DeviceFingerprint,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt, &session.LastUsedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	return nil
}

// GetSessionByTokenHash retrieves a session by its token hash
func (r *Repository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*UserSession, error) {
	query := `
		SELECT id, user_id, token_hash, device_fingerprint,
			COALESCE(ip_address, ''), COALESCE(user_agent, ''),
			expires_at, revoked_at, created_at, last_used_at
		FROM user_sessions WHERE token_hash = $1
	`

	session := &UserSession{}
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.TokenHash, &session.DeviceFingerprint,
		&session.IPAddress, &session.UserAgent,
		&session.ExpiresAt, &session.RevokedAt, &session.CreatedAt, &session.LastUsedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// GetActiveSession returns the user's live session, if any
func (r *Repository) GetActiveSession(ctx context.Context, userID string) (*UserSession, error) {
	query := `
		SELECT id, user_id, token_hash, device_fingerprint,
			COALESCE(ip_address, ''), COALESCE(user_agent, ''),
			expires_at, revoked_at, created_at, last_used_at
		FROM user_sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	session := &UserSession{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&session.ID, &session.UserID, &session.TokenHash, &session.DeviceFingerprint,
		&session.IPAddress, &session.UserAgent,
		&session.ExpiresAt, &session.RevokedAt, &session.CreatedAt, &session.LastUsedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	return session, nil
}

// RevokeSession revokes a single session
func (r *Repository) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE user_sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllUserSessions revokes every live session for a user
func (r *Repository) RevokeAllUserSessions(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE user_sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry
func (r *Repository) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM user_sessions WHERE expires_at < NOW()`,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}
