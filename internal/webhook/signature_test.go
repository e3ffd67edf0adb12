package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"studyhall-platform/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "ERROR", Output: "stderr"})
}

func signPayload(secret string, p *Payload) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalString(p)))
	return hex.EncodeToString(mac.Sum(nil))
}

func testPayload() *Payload {
	return &Payload{
		OrderID:   "ord_5f3a9c",
		PaymentID: "pay_8812",
		Status:    StatusSuccess,
		Amount:    "9.99",
		Sequence:  3,
	}
}

// ============================================================================
// TEST: Provider signature verification
// ============================================================================

func TestVerifyProvider_ValidSignature(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	payload := testPayload()
	payload.Signature = signPayload("provider-secret", payload)

	if err := v.VerifyProvider(payload); err != nil {
		t.Fatalf("Expected valid signature to verify, got %v", err)
	}
}

func TestVerifyProvider_UppercaseHexAccepted(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	payload := testPayload()
	payload.Signature = strings.ToUpper(signPayload("provider-secret", payload))

	if err := v.VerifyProvider(payload); err != nil {
		t.Fatalf("Expected uppercase hex signature to verify, got %v", err)
	}
}

func TestVerifyProvider_TamperedFieldRejected(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	payload := testPayload()
	payload.Signature = signPayload("provider-secret", payload)

	// Flip the outcome after signing
	payload.Status = StatusFailed

	err := v.VerifyProvider(payload)
	var sigErr SignatureError
	if !errors.As(err, &sigErr) || sigErr.Code != ErrBadSignature.Code {
		t.Fatalf("Expected %s, got %v", ErrBadSignature.Code, err)
	}
}

func TestVerifyProvider_SequenceBoundToSignature(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	payload := testPayload()
	payload.Signature = signPayload("provider-secret", payload)

	// Replaying an old signature with a bumped sequence must fail
	payload.Sequence = 4

	if err := v.VerifyProvider(payload); err == nil {
		t.Fatal("Expected signature failure after sequence change")
	}
}

func TestVerifyProvider_MissingSignature(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	err := v.VerifyProvider(testPayload())
	var sigErr SignatureError
	if !errors.As(err, &sigErr) || sigErr.Code != ErrMissingSignature.Code {
		t.Fatalf("Expected %s, got %v", ErrMissingSignature.Code, err)
	}
}

func TestVerifyProvider_WrongSecretRejected(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	payload := testPayload()
	payload.Signature = signPayload("some-other-secret", payload)

	if err := v.VerifyProvider(payload); err == nil {
		t.Fatal("Expected signature failure with the wrong secret")
	}
}

// ============================================================================
// TEST: Missing secret policy
// ============================================================================

func TestVerifyProvider_UnsetSecretPolicy(t *testing.T) {
	payload := testPayload()

	// Production fails closed
	prod := NewVerifier("", "internal-secret", true, testLogger())
	err := prod.VerifyProvider(payload)
	var sigErr SignatureError
	if !errors.As(err, &sigErr) || sigErr.Code != ErrSecretUnset.Code {
		t.Fatalf("Expected %s in production, got %v", ErrSecretUnset.Code, err)
	}

	// Development warns and allows
	dev := NewVerifier("", "internal-secret", false, testLogger())
	if err := dev.VerifyProvider(payload); err != nil {
		t.Fatalf("Expected development to allow unsigned payload, got %v", err)
	}
}

// ============================================================================
// TEST: Internal confirmation signature
// ============================================================================

func TestVerifyInternal_RoundTrip(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	header := v.SignInternal("pay_8812")

	if err := v.VerifyInternal("pay_8812", header); err != nil {
		t.Fatalf("Expected internal signature to verify, got %v", err)
	}

	if err := v.VerifyInternal("pay_9999", header); err == nil {
		t.Fatal("Expected failure for a different payment id")
	}
}

func TestVerifyInternal_DistinctFromProviderSecret(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	// A header computed with the provider secret must not pass the internal
	// check
	mac := hmac.New(sha256.New, []byte("provider-secret"))
	mac.Write([]byte("pay_8812"))
	forged := hex.EncodeToString(mac.Sum(nil))

	if err := v.VerifyInternal("pay_8812", forged); err == nil {
		t.Fatal("Expected failure for a header signed with the provider secret")
	}
}

func TestVerifyInternal_MissingHeader(t *testing.T) {
	v := NewVerifier("provider-secret", "internal-secret", true, testLogger())

	err := v.VerifyInternal("pay_8812", "")
	var sigErr SignatureError
	if !errors.As(err, &sigErr) || sigErr.Code != ErrMissingSignature.Code {
		t.Fatalf("Expected %s, got %v", ErrMissingSignature.Code, err)
	}
}
