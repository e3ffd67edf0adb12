package subscription

import (
	"testing"
	"time"

	"studyhall-platform/internal/database"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time {
	return &t
}

func defaultRules() Rules {
	return Rules{GracePeriodDays: 3}
}

// ============================================================================
// TEST: Banned users are denied regardless of subscription state
// ============================================================================

func TestEvaluate_BannedUserDenied(t *testing.T) {
	subs := []*database.Subscription{
		{
			Status:  database.StatusActive,
			EndDate: timePtr(testNow.AddDate(0, 1, 0)),
		},
	}

	eval := Evaluate(subs, true, testNow, defaultRules())

	if eval.State != StateAccessDenied {
		t.Errorf("Expected state %s, got %s", StateAccessDenied, eval.State)
	}
	if eval.Tier != TierDenied {
		t.Errorf("Expected tier %s, got %s", TierDenied, eval.Tier)
	}
}

// ============================================================================
// TEST: Active subscription grants full access
// ============================================================================

func TestEvaluate_ActiveSubscription(t *testing.T) {
	subs := []*database.Subscription{
		{
			Status:  database.StatusActive,
			EndDate: timePtr(testNow.Add(time.Hour)),
		},
	}

	eval := Evaluate(subs, false, testNow, defaultRules())

	if eval.State != StateActive {
		t.Errorf("Expected state %s, got %s", StateActive, eval.State)
	}
	if eval.Tier != TierFull {
		t.Errorf("Expected tier %s, got %s", TierFull, eval.Tier)
	}
}

func TestEvaluate_ActiveOutranksExpiredSiblings(t *testing.T) {
	subs := []*database.Subscription{
		{
			Status:  database.StatusExpired,
			EndDate: timePtr(testNow.AddDate(0, -2, 0)),
		},
		{
			Status:  database.StatusActive,
			EndDate: timePtr(testNow.AddDate(0, 1, 0)),
		},
	}

	eval := Evaluate(subs, false, testNow, defaultRules())

	if eval.State != StateActive {
		t.Errorf("Expected state %s, got %s", StateActive, eval.State)
	}
}

// ============================================================================
// TEST: Trial remaining days use ceiling semantics
// ============================================================================

func TestEvaluate_TrialRemainingDays(t *testing.T) {
	testCases := []struct {
		name          string
		trialEnd      time.Time
		expectedState State
		expectedDays  int
	}{
		{
			name:          "one hour left counts as one day",
			trialEnd:      testNow.Add(time.Hour),
			expectedState: StateTrial,
			expectedDays:  1,
		},
		{
			name:          "exactly 24 hours left is one day",
			trialEnd:      testNow.Add(24 * time.Hour),
			expectedState: StateTrial,
			expectedDays:  1,
		},
		{
			name:          "a bit over one day rounds up to two",
			trialEnd:      testNow.Add(25 * time.Hour),
			expectedState: StateTrial,
			expectedDays:  2,
		},
		{
			name:          "thirteen and a half days rounds up to fourteen",
			trialEnd:      testNow.Add(13*24*time.Hour + 12*time.Hour),
			expectedState: StateTrial,
			expectedDays:  14,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			subs := []*database.Subscription{
				{
					Status:   database.StatusTrial,
					TrialEnd: timePtr(tc.trialEnd),
				},
			}

			eval := Evaluate(subs, false, testNow, defaultRules())

			if eval.State != tc.expectedState {
				t.Errorf("Expected state %s, got %s", tc.expectedState, eval.State)
			}
			if eval.Tier != TierFull {
				t.Errorf("Expected tier %s, got %s", TierFull, eval.Tier)
			}
			if eval.RemainingTrialDays != tc.expectedDays {
				t.Errorf("Expected %d remaining days, got %d", tc.expectedDays, eval.RemainingTrialDays)
			}
		})
	}
}

// ============================================================================
// TEST: Expired trial falls into grace, then expired
// ============================================================================

func TestEvaluate_GracePeriodWindow(t *testing.T) {
	testCases := []struct {
		name          string
		trialEnd      time.Time
		expectedState State
		expectGrace   bool
	}{
		{
			name:          "expired one hour ago is in grace",
			trialEnd:      testNow.Add(-time.Hour),
			expectedState: StateGracePeriod,
			expectGrace:   true,
		},
		{
			name:          "expired just under three days ago is still in grace",
			trialEnd:      testNow.Add(-3*24*time.Hour + time.Minute),
			expectedState: StateGracePeriod,
			expectGrace:   true,
		},
		{
			name:          "expired exactly three days ago is out of grace",
			trialEnd:      testNow.Add(-3 * 24 * time.Hour),
			expectedState: StateExpired,
			expectGrace:   false,
		},
		{
			name:          "expired a month ago is plain expired",
			trialEnd:      testNow.AddDate(0, -1, 0),
			expectedState: StateExpired,
			expectGrace:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			subs := []*database.Subscription{
				{
					Status:   database.StatusTrial,
					TrialEnd: timePtr(tc.trialEnd),
				},
			}

			eval := Evaluate(subs, false, testNow, defaultRules())

			if eval.State != tc.expectedState {
				t.Errorf("Expected state %s, got %s", tc.expectedState, eval.State)
			}
			if eval.Tier != TierReadOnly {
				t.Errorf("Expected tier %s, got %s", TierReadOnly, eval.Tier)
			}
			if eval.InGracePeriod != tc.expectGrace {
				t.Errorf("Expected InGracePeriod=%v, got %v", tc.expectGrace, eval.InGracePeriod)
			}
		})
	}
}

func TestEvaluate_GraceUsesMostRecentExpiry(t *testing.T) {
	// An old expired plan and a recently lapsed one: the recent one decides
	subs := []*database.Subscription{
		{
			Status:  database.StatusExpired,
			EndDate: timePtr(testNow.AddDate(0, -6, 0)),
		},
		{
			Status:  database.StatusExpired,
			EndDate: timePtr(testNow.Add(-time.Hour)),
		},
	}

	eval := Evaluate(subs, false, testNow, defaultRules())

	if eval.State != StateGracePeriod {
		t.Errorf("Expected state %s, got %s", StateGracePeriod, eval.State)
	}
	if !eval.InGracePeriod {
		t.Error("Expected InGracePeriod to be true")
	}
}

// ============================================================================
// TEST: Paused rows carry no access and no grace
// ============================================================================

func TestEvaluate_PausedGrantsNothing(t *testing.T) {
	subs := []*database.Subscription{
		{
			Status:  database.StatusPaused,
			OrderID: "ord_abc123",
		},
	}

	eval := Evaluate(subs, false, testNow, defaultRules())

	if eval.State != StateNoSubscription {
		t.Errorf("Expected state %s, got %s", StateNoSubscription, eval.State)
	}
	if eval.Tier != TierReadOnly {
		t.Errorf("Expected tier %s, got %s", TierReadOnly, eval.Tier)
	}
}

// ============================================================================
// TEST: No rows at all, nil rows, corrupt rows
// ============================================================================

func TestEvaluate_NoSubscriptions(t *testing.T) {
	eval := Evaluate(nil, false, testNow, defaultRules())

	if eval.State != StateNoSubscription {
		t.Errorf("Expected state %s, got %s", StateNoSubscription, eval.State)
	}
	if eval.Tier != TierReadOnly {
		t.Errorf("Expected tier %s, got %s", TierReadOnly, eval.Tier)
	}
}

func TestEvaluate_NilAndCorruptRowsDegrade(t *testing.T) {
	subs := []*database.Subscription{
		nil,
		{Status: database.StatusTrial}, // Trial without a trial end
		{Status: database.SubscriptionStatus("garbage")},
	}

	eval := Evaluate(subs, false, testNow, defaultRules())

	if eval.State != StateNoSubscription {
		t.Errorf("Expected state %s, got %s", StateNoSubscription, eval.State)
	}
	if eval.Tier != TierReadOnly {
		t.Errorf("Expected tier %s, got %s", TierReadOnly, eval.Tier)
	}
}

// ============================================================================
// TEST: Active row with a past end date no longer grants access
// ============================================================================

func TestEvaluate_ActivePastEndDateNotFull(t *testing.T) {
	subs := []*database.Subscription{
		{
			Status:  database.StatusActive,
			EndDate: timePtr(testNow.Add(-time.Hour)),
		},
	}

	eval := Evaluate(subs, false, testNow, defaultRules())

	if eval.Tier == TierFull {
		t.Error("An active row past its end date must not grant full access")
	}
	if eval.State != StateGracePeriod {
		t.Errorf("Expected state %s, got %s", StateGracePeriod, eval.State)
	}
}

// ============================================================================
// TEST: Feature limits per tier
// ============================================================================

func TestLimitsFor(t *testing.T) {
	caps := FeatureLimits{
		TimetableDays:  7,
		Notes:          10,
		FocusSessions:  5,
		PrivateLessons: 1,
	}

	readOnly := LimitsFor(TierReadOnly, caps)
	if readOnly != caps {
		t.Errorf("Expected read-only caps %+v, got %+v", caps, readOnly)
	}

	full := LimitsFor(TierFull, caps)
	if full.TimetableDays != Unlimited || full.Notes != Unlimited ||
		full.FocusSessions != Unlimited || full.PrivateLessons != Unlimited {
		t.Errorf("Expected unlimited caps for full tier, got %+v", full)
	}
}
