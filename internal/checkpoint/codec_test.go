package checkpoint

import (
	"strings"
	"testing"
	"time"

	"studyhall-platform/internal/subscription"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testCodec() *Codec {
	return mustCodec("test-secret")
}

func mustCodec(secret string) *Codec {
	codec, err := NewCodec(secret, 24*time.Hour, 365*24*time.Hour, false)
	if err != nil {
		panic(err)
	}
	return codec
}

func lookupFrom(flags []SignedFlag) func(string) (string, bool) {
	byName := make(map[string]string, len(flags))
	for _, f := range flags {
		byName[f.Name] = f.Value
	}
	return func(name string) (string, bool) {
		v, ok := byName[name]
		return v, ok
	}
}

// ============================================================================
// TEST: Secret policy
// ============================================================================

func TestNewCodec_EmptySecretFatalInProduction(t *testing.T) {
	if _, err := NewCodec("", time.Hour, time.Hour, true); err != ErrSecretUnset {
		t.Fatalf("Expected ErrSecretUnset in production, got %v", err)
	}

	// Development tolerates the unset secret so local runs work
	codec, err := NewCodec("", time.Hour, time.Hour, false)
	if err != nil {
		t.Fatalf("Unexpected error in development mode: %v", err)
	}
	if codec == nil {
		t.Fatal("Expected a codec in development mode")
	}
}

func TestNewCodec_EmptyKeyForgeryImpossibleInProduction(t *testing.T) {
	// A flag signed with the empty key verifies only against an empty-key
	// codec, which production refuses to construct
	devCodec, err := NewCodec("", time.Hour, time.Hour, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	forged := devCodec.SignFlag(FlagAccess, "active:full", testNow.Add(time.Hour))

	if _, ok := testCodec().VerifyFlag(FlagAccess, forged, testNow); ok {
		t.Fatal("Empty-key flag must not verify against a keyed codec")
	}
}

// ============================================================================
// TEST: Encode then decode round trip
// ============================================================================

func TestCodec_RoundTrip(t *testing.T) {
	codec := testCodec()

	set := Set{
		State:              subscription.StateTrial,
		Tier:               subscription.TierFull,
		RemainingTrialDays: 9,
		Onboarded:          true,
		Epoch:              4,
	}

	flags := codec.Encode(set, testNow)
	decoded := codec.Decode(lookupFrom(flags), testNow.Add(time.Minute))

	if !decoded.HasAccess {
		t.Fatal("Expected access flag to be present")
	}
	if decoded.State != subscription.StateTrial {
		t.Errorf("Expected state %s, got %s", subscription.StateTrial, decoded.State)
	}
	if decoded.Tier != subscription.TierFull {
		t.Errorf("Expected tier %s, got %s", subscription.TierFull, decoded.Tier)
	}
	if decoded.RemainingTrialDays != 9 {
		t.Errorf("Expected 9 remaining trial days, got %d", decoded.RemainingTrialDays)
	}
	if !decoded.HasOnboarded || !decoded.Onboarded {
		t.Error("Expected onboarded flag to decode true")
	}
	if !decoded.HasEpoch || decoded.Epoch != 4 {
		t.Errorf("Expected epoch 4, got %d (present=%v)", decoded.Epoch, decoded.HasEpoch)
	}
}

func TestCodec_TrialDaysFlagOnlyForTrial(t *testing.T) {
	codec := testCodec()

	flags := codec.Encode(Set{
		State: subscription.StateActive,
		Tier:  subscription.TierFull,
	}, testNow)

	for _, f := range flags {
		if f.Name == FlagTrialDays {
			t.Error("Trial days flag must not be issued outside the trial state")
		}
	}
}

// ============================================================================
// TEST: Tampered flags are absent
// ============================================================================

func TestCodec_TamperedValueRejected(t *testing.T) {
	codec := testCodec()

	encoded := codec.SignFlag(FlagAccess, "expired:read_only", testNow.Add(time.Hour))

	// Upgrade the payload without re-signing
	tampered := strings.Replace(encoded, "expired:read_only", "active:full", 1)

	if _, ok := codec.VerifyFlag(FlagAccess, tampered, testNow); ok {
		t.Fatal("Tampered flag must not verify")
	}
}

func TestCodec_WrongSecretRejected(t *testing.T) {
	signer := mustCodec("secret-a")
	verifier := mustCodec("secret-b")

	encoded := signer.SignFlag(FlagAccess, "active:full", testNow.Add(time.Hour))

	if _, ok := verifier.VerifyFlag(FlagAccess, encoded, testNow); ok {
		t.Fatal("Flag signed with a different secret must not verify")
	}
}

func TestCodec_FlagNameBoundToSignature(t *testing.T) {
	codec := testCodec()

	// A valid onboarded flag replayed under the access flag name
	encoded := codec.SignFlag(FlagOnboarded, "true", testNow.Add(time.Hour))

	if _, ok := codec.VerifyFlag(FlagAccess, encoded, testNow); ok {
		t.Fatal("Flag must not verify under a different name")
	}
}

func TestCodec_TamperedExpiryRejected(t *testing.T) {
	codec := testCodec()

	encoded := codec.SignFlag(FlagAccess, "active:full", testNow.Add(time.Hour))
	parts := strings.Split(encoded, "|")
	if len(parts) != 4 {
		t.Fatalf("Unexpected wire format: %s", encoded)
	}

	// Stretch the embedded expiry by a year
	parts[2] = "1804852800"
	stretched := strings.Join(parts, "|")

	if _, ok := codec.VerifyFlag(FlagAccess, stretched, testNow); ok {
		t.Fatal("Flag with an edited expiry must not verify")
	}
}

// ============================================================================
// TEST: Expiry inside the signed payload
// ============================================================================

func TestCodec_ExpiredFlagAbsent(t *testing.T) {
	codec := testCodec()

	encoded := codec.SignFlag(FlagAccess, "active:full", testNow.Add(time.Hour))

	if _, ok := codec.VerifyFlag(FlagAccess, encoded, testNow.Add(2*time.Hour)); ok {
		t.Fatal("Expired flag must not verify")
	}

	// Still valid just before expiry
	if _, ok := codec.VerifyFlag(FlagAccess, encoded, testNow.Add(59*time.Minute)); !ok {
		t.Fatal("Flag should verify before its expiry")
	}
}

// ============================================================================
// TEST: Structural garbage
// ============================================================================

func TestCodec_MalformedFlagsAbsent(t *testing.T) {
	codec := testCodec()

	malformed := []string{
		"",
		"v1",
		"v1|value",
		"v1|value|notanumber|sig",
		"v2|active:full|1804852800|sig",
		"||||",
		"active:full",
	}

	for _, raw := range malformed {
		if _, ok := codec.VerifyFlag(FlagAccess, raw, testNow); ok {
			t.Errorf("Malformed flag %q must not verify", raw)
		}
	}
}

func TestCodec_UnknownTierRejectedOnDecode(t *testing.T) {
	codec := testCodec()

	raw := codec.SignFlag(FlagAccess, "active:superuser", testNow.Add(time.Hour))
	decoded := codec.Decode(func(name string) (string, bool) {
		if name == FlagAccess {
			return raw, true
		}
		return "", false
	}, testNow)

	if decoded.HasAccess {
		t.Fatal("Access flag with an unknown tier must decode as absent")
	}
}

func TestCodec_MissingFlagsDecodeAbsent(t *testing.T) {
	codec := testCodec()

	decoded := codec.Decode(func(string) (string, bool) { return "", false }, testNow)

	if decoded.HasAccess || decoded.HasOnboarded || decoded.HasEpoch {
		t.Errorf("Expected all flags absent, got %+v", decoded)
	}
}
