package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// =====================================================
// USER CRUD OPERATIONS
// =====================================================

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, onboarding_completed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.OnboardingCompleted,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*User, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(name, ''), role,
			onboarding_completed, banned, banned_at, COALESCE(ban_reason, ''),
			last_login_at, created_at, updated_at
		FROM users WHERE id = $1
	`

	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role,
		&user.OnboardingCompleted, &user.Banned, &user.BannedAt, &user.BanReason,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(name, ''), role,
			onboarding_completed, banned, banned_at, COALESCE(ban_reason, ''),
			last_login_at, created_at, updated_at
		FROM users WHERE email = $1
	`

	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role,
		&user.OnboardingCompleted, &user.Banned, &user.BannedAt, &user.BanReason,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// EmailExists checks if an email is already registered
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// UpdateUserPassword updates a user's password hash
func (r *Repository) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateUserLastLogin updates the last login timestamp
func (r *Repository) UpdateUserLastLogin(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SetUserBanned bans or unbans a user
func (r *Repository) SetUserBanned(ctx context.Context, userID string, banned bool, reason string) error {
	var bannedAt *time.Time
	if banned {
		now := time.Now()
		bannedAt = &now
	}

	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET banned = $2, banned_at = $3, ban_reason = $4, updated_at = NOW() WHERE id = $1`,
		userID, banned, bannedAt, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to set banned flag: %w", err)
	}
	return nil
}

// SetUserRole changes a user's role
func (r *Repository) SetUserRole(ctx context.Context, userID string, role UserRole) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	return nil
}

// SetOnboardingCompleted marks the user's onboarding as complete
func (r *Repository) SetOnboardingCompleted(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET onboarding_completed = TRUE, updated_at = NOW() WHERE id = $1`, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set onboarding completed: %w", err)
	}
	return nil
}

// ListUsers returns users ordered by creation time, newest first
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(name, ''), role,
			onboarding_completed, banned, banned_at, COALESCE(ban_reason, ''),
			last_login_at, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		err := rows.Scan(
			&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role,
			&user.OnboardingCompleted, &user.Banned, &user.BannedAt, &user.BanReason,
			&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
