package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// TEST: Password strength validation
// ============================================================================

func TestValidatePasswordStrength(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"three classes, long enough", "Passw0rd", true},
		{"all four classes", "Passw0rd!", true},
		{"lower, digits, special", "pass-w0rd", true},
		{"too short", "Pw0!", false},
		{"only lowercase", "passwordpassword", false},
		{"lowercase and digits only", "password123", false},
		{"too long", strings.Repeat("Aa1!", 40), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := pm.ValidatePasswordStrength(tc.password)
			if tc.valid && err != nil {
				t.Errorf("Expected %q to be valid, got %v", tc.password, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("Expected %q to be rejected", tc.password)
			}
		})
	}
}

// ============================================================================
// TEST: Hash and verify round trip
// ============================================================================

func TestHashAndVerifyPassword(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	hash, err := pm.HashPassword("Passw0rd!")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if !pm.VerifyPassword("Passw0rd!", hash) {
		t.Error("Expected correct password to verify")
	}
	if pm.VerifyPassword("Wr0ngPass!", hash) {
		t.Error("Expected wrong password to fail verification")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	if _, err := pm.HashPassword(strings.Repeat("a", MaxPasswordLength+1)); err == nil {
		t.Error("Expected oversized password to be rejected before hashing")
	}
}

// ============================================================================
// TEST: Session token hashing
// ============================================================================

func TestHashSessionToken(t *testing.T) {
	first := HashSessionToken("some-refresh-token")
	second := HashSessionToken("some-refresh-token")

	if first != second {
		t.Error("Expected deterministic session token hashes")
	}
	if len(first) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(first))
	}
	if first == HashSessionToken("another-token") {
		t.Error("Expected different tokens to hash differently")
	}
}
