package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studyhall-platform/internal/database"
)

// TrialStarter grants a trial subscription to a freshly registered user.
// Implemented by the subscription service; an interface here keeps the
// dependency one-way.
type TrialStarter interface {
	StartTrial(ctx context.Context, userID string) (*database.Subscription, error)
}

// Service handles authentication operations
type Service struct {
	repo            *database.Repository
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	trialStarter    TrialStarter
	config          Config
}

// NewService creates a new authentication service
func NewService(repo *database.Repository, config Config, trialStarter TrialStarter) *Service {
	if config.JWTSecret == "" {
		log.Fatal("JWT secret is required")
	}

	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = 15 * time.Minute
	}
	if config.RefreshTokenDuration == 0 {
		config.RefreshTokenDuration = 7 * 24 * time.Hour
	}

	return &Service{
		repo:            repo,
		jwtManager:      NewJWTManager(config.JWTSecret, config.AccessTokenDuration, config.RefreshTokenDuration),
		passwordManager: NewPasswordManager(DefaultBcryptCost, config.MinPasswordLength),
		trialStarter:    trialStarter,
		config:          config,
	}
}

// GetJWTManager returns the JWT manager for use in middleware
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwtManager
}

// Register creates a new user account and grants the registration trial
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*database.User, error) {
	// Check if email exists
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	// Validate password strength
	if err := s.passwordManager.ValidatePasswordStrength(req.Password); err != nil {
		return nil, AuthError{Code: "WEAK_PASSWORD", Message: err.Error()}
	}

	// Hash password
	passwordHash, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Role:         database.RoleStudent,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Grant the trial. Registration already succeeded, so a trial failure is
	// logged rather than surfaced; the user can still be granted one later.
	if s.trialStarter != nil {
		if _, err := s.trialStarter.StartTrial(ctx, user.ID); err != nil {
			log.Printf("Warning: failed to start trial for user %s: %v", user.ID, err)
		}
	}

	return user, nil
}

// Login authenticates a user and returns tokens. Creating the session
// revokes every other session for the user, so a login on a second device
// signs the first one out.
func (s *Service) Login(ctx context.Context, req LoginRequest, ipAddress, userAgent string) (*LoginResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !s.passwordManager.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if user.Banned {
		return nil, ErrAccountBanned
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	claims := UserClaims{
		UserID:              user.ID,
		Email:               user.Email,
		Name:                user.Name,
		Role:                string(user.Role),
		DeviceID:            deviceID,
		OnboardingCompleted: user.OnboardingCompleted,
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	session := &database.UserSession{
		UserID:            user.ID,
		TokenHash:         HashSessionToken(tokenPair.RefreshToken),
		DeviceFingerprint: deviceID,
		IPAddress:         ipAddress,
		UserAgent:         userAgent,
		ExpiresAt:         time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.repo.UpdateUserLastLogin(ctx, user.ID); err != nil {
		log.Printf("Warning: failed to update last login for user %s: %v", user.ID, err)
	}

	return &LoginResponse{
		User:         toUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// RefreshTokens rotates the access and refresh tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	tokenHash := HashSessionToken(refreshToken)

	session, err := s.repo.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrInvalidToken
	}

	if session.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	if user.Banned {
		return nil, ErrAccountBanned
	}

	claims := UserClaims{
		UserID:              user.ID,
		Email:               user.Email,
		Name:                user.Name,
		Role:                string(user.Role),
		DeviceID:            session.DeviceFingerprint,
		OnboardingCompleted: user.OnboardingCompleted,
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	// Refresh token rotation. CreateSession revokes the old session along
	// with any other lingering ones.
	newSession := &database.UserSession{
		UserID:            user.ID,
		TokenHash:         HashSessionToken(tokenPair.RefreshToken),
		DeviceFingerprint: session.DeviceFingerprint,
		IPAddress:         session.IPAddress,
		UserAgent:         session.UserAgent,
		ExpiresAt:         time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}

	if err := s.repo.CreateSession(ctx, newSession); err != nil {
		return nil, fmt.Errorf("failed to create new session: %w", err)
	}

	return &RefreshResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// Logout revokes a user's session
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tokenHash := HashSessionToken(refreshToken)

	session, err := s.repo.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil // Already logged out or invalid token
	}

	return s.repo.RevokeSession(ctx, session.ID)
}

// LogoutAll revokes all sessions for a user
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.repo.RevokeAllUserSessions(ctx, userID)
}

// ChangePassword changes a user's password and signs out every device
func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	if !s.passwordManager.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := s.passwordManager.ValidatePasswordStrength(req.NewPassword); err != nil {
		return AuthError{Code: "WEAK_PASSWORD", Message: err.Error()}
	}

	newHash, err := s.passwordManager.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.repo.RevokeAllUserSessions(ctx, userID); err != nil {
		log.Printf("Warning: failed to revoke sessions after password change: %v", err)
	}

	return nil
}

// CompleteOnboarding marks onboarding done and reissues tokens so the claim
// in the credential reflects the new state immediately.
func (s *Service) CompleteOnboarding(ctx context.Context, userID, deviceID, ipAddress, userAgent string) (*TokenPair, error) {
	if err := s.repo.SetOnboardingCompleted(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to complete onboarding: %w", err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	claims := UserClaims{
		UserID:              user.ID,
		Email:               user.Email,
		Name:                user.Name,
		Role:                string(user.Role),
		DeviceID:            deviceID,
		OnboardingCompleted: true,
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	session := &database.UserSession{
		UserID:            user.ID,
		TokenHash:         HashSessionToken(tokenPair.RefreshToken),
		DeviceFingerprint: deviceID,
		IPAddress:         ipAddress,
		UserAgent:         userAgent,
		ExpiresAt:         time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return tokenPair, nil
}

// GetUserByID retrieves a user by ID
func (s *Service) GetUserByID(ctx context.Context, userID string) (*database.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *Service) CleanupExpiredSessions(ctx context.Context) error {
	return s.repo.DeleteExpiredSessions(ctx)
}

func toUserResponse(user *database.User) UserResponse {
	return UserResponse{
		ID:                  user.ID,
		Email:               user.Email,
		Name:                user.Name,
		Role:                string(user.Role),
		OnboardingCompleted: user.OnboardingCompleted,
		CreatedAt:           user.CreatedAt,
		LastLoginAt:         user.LastLoginAt,
	}
}
