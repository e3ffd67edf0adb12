package auth

import (
	"testing"
	"time"
)

func testClaims() UserClaims {
	return UserClaims{
		UserID:              "user-1",
		Email:               "student@example.com",
		Name:                "Student",
		Role:                "student",
		DeviceID:            "device-1",
		OnboardingCompleted: true,
	}
}

// ============================================================================
// TEST: Access token round trip
// ============================================================================

func TestJWT_GenerateAndValidate(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("Expected user id user-1, got %s", claims.UserID)
	}
	if claims.Role != "student" {
		t.Errorf("Expected role student, got %s", claims.Role)
	}
	if claims.DeviceID != "device-1" {
		t.Errorf("Expected device id device-1, got %s", claims.DeviceID)
	}
	if !claims.OnboardingCompleted {
		t.Error("Expected onboarding flag to survive the round trip")
	}
}

// ============================================================================
// TEST: Rejection cases
// ============================================================================

func TestJWT_WrongSecretRejected(t *testing.T) {
	signer := NewJWTManager("secret-a", 15*time.Minute, time.Hour)
	verifier := NewJWTManager("secret-b", 15*time.Minute, time.Hour)

	token, err := signer.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := verifier.ValidateAccessToken(token); err == nil {
		t.Fatal("Expected token signed with a different secret to be rejected")
	}
}

func TestJWT_ExpiredTokenRejected(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute, time.Hour)

	token, err := m.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := m.ValidateAccessToken(token); err == nil {
		t.Fatal("Expected expired token to be rejected")
	}
}

func TestJWT_GarbageRejected(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.ValidateAccessToken(raw); err == nil {
			t.Errorf("Expected %q to be rejected", raw)
		}
	}
}

// ============================================================================
// TEST: Refresh tokens are opaque and unique
// ============================================================================

func TestJWT_RefreshTokensUnique(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	first, err := m.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}
	second, err := m.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	if first == second {
		t.Error("Expected refresh tokens to be unique")
	}
	if len(first) < 32 {
		t.Errorf("Expected a long opaque token, got %d chars", len(first))
	}
}
