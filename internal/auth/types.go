package auth

import (
	"time"
)

// UserClaims represents the JWT claims for a user. The claims carry identity
// and routing hints only; subscription and ban state live in the durable
// store and the access checkpoint, never in the credential.
type UserClaims struct {
	UserID              string `json:"user_id"`
	Email               string `json:"email"`
	Name                string `json:"name"`
	Role                string `json:"role"`
	DeviceID            string `json:"device_id"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// TokenPair represents an access and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // Access token expiry in seconds
	TokenType    string `json:"token_type"` // Always "Bearer"
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,min=2"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"device_id,omitempty"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

// UserResponse represents user data returned to the client
type UserResponse struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Role                string     `json:"role"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshResponse represents a token refresh response
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// Config holds authentication configuration
type Config struct {
	// JWT settings
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`

	// Password settings
	MinPasswordLength int `json:"min_password_length"`

	// Trial granted on registration
	TrialDays int `json:"trial_days"`
}

// DefaultConfig returns default authentication configuration
func DefaultConfig() Config {
	return Config{
		JWTSecret:            "", // Must be set
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		MinPasswordLength:    8,
		TrialDays:            14,
	}
}

// Error types for authentication
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common authentication errors
var (
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	ErrUserNotFound       = AuthError{Code: "USER_NOT_FOUND", Message: "user not found"}
	ErrEmailExists        = AuthError{Code: "EMAIL_EXISTS", Message: "email already registered"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrSessionRevoked     = AuthError{Code: "SESSION_REVOKED", Message: "session has been revoked"}
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden          = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrAccountBanned      = AuthError{Code: "ACCOUNT_BANNED", Message: "account has been banned"}
	ErrWeakPassword       = AuthError{Code: "WEAK_PASSWORD", Message: "password does not meet requirements"}
)
