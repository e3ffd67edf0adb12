package database

import (
	"time"
)

// UserRole represents the user's role
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User represents a platform user
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"` // Never serialize
	Name                string     `json:"name,omitempty"`
	Role                UserRole   `json:"role"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	Banned              bool       `json:"banned"`
	BannedAt            *time.Time `json:"banned_at,omitempty"`
	BanReason           string     `json:"ban_reason,omitempty"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// UserSession represents an active session bound to a device fingerprint.
// The single-device policy keeps at most one live session per user: a login
// from a new fingerprint revokes every prior session.
type UserSession struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	TokenHash         string     `json:"-"` // Never serialize
	DeviceFingerprint string     `json:"device_fingerprint"`
	IPAddress         string     `json:"ip_address,omitempty"`
	UserAgent         string     `json:"user_agent,omitempty"`
	ExpiresAt         time.Time  `json:"expires_at"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUsedAt        time.Time  `json:"last_used_at"`
}
