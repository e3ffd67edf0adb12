package gateway

import (
	"strings"
	"testing"

	"studyhall-platform/internal/subscription"
)

func fullAccessInput() Input {
	return Input{
		Authenticated:       true,
		Role:                "student",
		Onboarded:           true,
		State:               subscription.StateActive,
		Tier:                subscription.TierFull,
		SubscriptionEnabled: true,
	}
}

func readOnlyInput(state subscription.State) Input {
	in := fullAccessInput()
	in.State = state
	in.Tier = subscription.TierReadOnly
	return in
}

// ============================================================================
// TEST: Route classification
// ============================================================================

func TestClassify(t *testing.T) {
	testCases := []struct {
		path     string
		expected RouteClass
	}{
		{"/", ClassPublic},
		{"/login", ClassAuthPage},
		{"/register", ClassAuthPage},
		{"/api/auth/login", ClassPublic},
		{"/api/webhooks/payment", ClassPublic},
		{"/api/plans", ClassPublic},
		{"/health", ClassPublic},
		{"/onboarding", ClassOnboarding},
		{"/api/auth/complete-onboarding", ClassOnboarding},
		{"/admin", ClassAdmin},
		{"/api/admin/users", ClassAdmin},
		{"/account", ClassExempt},
		{"/api/auth/me", ClassExempt},
		{"/api/subscription/checkout", ClassExempt},
		{"/checkout", ClassExempt},
		{"/timetable", ClassProtected},
		{"/api/notes", ClassProtected},
		{"/some/unknown/path", ClassProtected},
	}

	for _, tc := range testCases {
		route := Classify(tc.path, "GET")
		if route.Class != tc.expected {
			t.Errorf("Classify(%q) = %s, expected %s", tc.path, route.Class, tc.expected)
		}
	}
}

func TestRouteIsMutation(t *testing.T) {
	reads := []string{"GET", "HEAD", "OPTIONS"}
	for _, method := range reads {
		if Classify("/api/notes", method).IsMutation() {
			t.Errorf("%s must not count as a mutation", method)
		}
	}

	writes := []string{"POST", "PUT", "PATCH", "DELETE"}
	for _, method := range writes {
		if !Classify("/api/notes", method).IsMutation() {
			t.Errorf("%s must count as a mutation", method)
		}
	}
}

// ============================================================================
// TEST: Unauthenticated access
// ============================================================================

func TestDecide_PublicAllowsAnonymous(t *testing.T) {
	route := Classify("/api/plans", "GET")

	decision := Decide(route, Input{SubscriptionEnabled: true})

	if decision.Action != ActionAllow {
		t.Errorf("Expected allow, got %s", decision.Action)
	}
}

func TestDecide_ProtectedBouncesAnonymousToLogin(t *testing.T) {
	route := Classify("/timetable", "GET")

	decision := Decide(route, Input{SubscriptionEnabled: true})

	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect, got %s", decision.Action)
	}
	if !strings.HasPrefix(decision.Target, TargetLogin) {
		t.Errorf("Expected login target, got %s", decision.Target)
	}
	if !strings.Contains(decision.Target, "redirect=%2Ftimetable") {
		t.Errorf("Expected return path in target, got %s", decision.Target)
	}
	if decision.Reason != ReasonUnauthenticated {
		t.Errorf("Expected reason %s, got %s", ReasonUnauthenticated, decision.Reason)
	}
}

func TestDecide_AuthPageBouncesSignedInUser(t *testing.T) {
	route := Classify("/login", "GET")

	decision := Decide(route, fullAccessInput())

	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect, got %s", decision.Action)
	}
	if decision.Target != TargetHome {
		t.Errorf("Expected %s, got %s", TargetHome, decision.Target)
	}

	adminIn := fullAccessInput()
	adminIn.Role = "admin"
	decision = Decide(route, adminIn)
	if decision.Target != TargetAdminHome {
		t.Errorf("Expected admin home %s, got %s", TargetAdminHome, decision.Target)
	}
}

// ============================================================================
// TEST: Banned users
// ============================================================================

func TestDecide_BannedUserBouncedToLoginEverywhere(t *testing.T) {
	in := fullAccessInput()
	in.State = subscription.StateAccessDenied
	in.Tier = subscription.TierDenied

	for _, path := range []string{"/timetable", "/account", "/api/subscription/me", "/onboarding"} {
		decision := Decide(Classify(path, "GET"), in)
		if decision.Action != ActionRedirect {
			t.Errorf("Banned user on %s: expected redirect, got %s", path, decision.Action)
			continue
		}
		if !strings.HasPrefix(decision.Target, TargetLogin) {
			t.Errorf("Banned user on %s: expected %s target, got %s", path, TargetLogin, decision.Target)
		}
		if decision.Reason != ReasonBanned {
			t.Errorf("Banned user on %s: expected reason %s, got %s", path, ReasonBanned, decision.Reason)
		}
	}
}

func TestDecide_BannedUserSessionInvalidated(t *testing.T) {
	in := fullAccessInput()
	in.State = subscription.StateAccessDenied
	in.Tier = subscription.TierDenied

	decision := Decide(Classify("/timetable", "GET"), in)
	if !decision.ClearSession {
		t.Error("Banned bounce must carry the session-invalidation signal")
	}

	// Ordinary redirects leave the session alone
	anon := Decide(Classify("/timetable", "GET"), Input{SubscriptionEnabled: true})
	if anon.ClearSession {
		t.Error("Unauthenticated bounce must not clear a session")
	}
	paywalled := Decide(Classify("/api/notes", "POST"), readOnlyInput(subscription.StateExpired))
	if paywalled.ClearSession {
		t.Error("Paywall bounce must not clear the session")
	}
}

func TestDecide_BannedUserStillSeesPublicPages(t *testing.T) {
	in := fullAccessInput()
	in.Tier = subscription.TierDenied

	decision := Decide(Classify("/", "GET"), in)
	if decision.Action != ActionAllow {
		t.Errorf("Expected allow on public page, got %s", decision.Action)
	}
}

// ============================================================================
// TEST: Soft lock, read-only tier
// ============================================================================

func TestDecide_ReadOnlyViewsAllowed(t *testing.T) {
	decision := Decide(Classify("/timetable", "GET"), readOnlyInput(subscription.StateExpired))

	if decision.Action != ActionAllowReadOnly {
		t.Fatalf("Expected allow_read_only, got %s", decision.Action)
	}
	if decision.Reason != ReasonReadOnly {
		t.Errorf("Expected reason %s, got %s", ReasonReadOnly, decision.Reason)
	}
}

func TestDecide_ReadOnlyMutationsHitPaywall(t *testing.T) {
	decision := Decide(Classify("/api/notes", "POST"), readOnlyInput(subscription.StateExpired))

	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect, got %s", decision.Action)
	}
	if !strings.HasPrefix(decision.Target, TargetPaywall) {
		t.Errorf("Expected paywall target, got %s", decision.Target)
	}
	if !strings.Contains(decision.Target, "reason="+ReasonExpired) {
		t.Errorf("Expected expired reason in target, got %s", decision.Target)
	}
}

func TestDecide_NoSubscriptionReasonOnPaywall(t *testing.T) {
	decision := Decide(Classify("/api/notes", "POST"), readOnlyInput(subscription.StateNoSubscription))

	if decision.Reason != ReasonNoSubscription {
		t.Errorf("Expected reason %s, got %s", ReasonNoSubscription, decision.Reason)
	}
}

func TestDecide_ReadOnlyStillReachesAccountAndCheckout(t *testing.T) {
	in := readOnlyInput(subscription.StateExpired)

	// Exempt routes allow mutations too: checkout is a POST
	for _, tc := range []struct{ path, method string }{
		{"/account", "GET"},
		{"/api/subscription/checkout", "POST"},
		{"/api/auth/logout-all", "POST"},
	} {
		decision := Decide(Classify(tc.path, tc.method), in)
		if decision.Action != ActionAllow {
			t.Errorf("Expected allow on %s %s, got %s", tc.method, tc.path, decision.Action)
		}
	}
}

// ============================================================================
// TEST: Kill switch
// ============================================================================

func TestDecide_KillSwitchGrantsFullAccess(t *testing.T) {
	in := readOnlyInput(subscription.StateExpired)
	in.SubscriptionEnabled = false

	decision := Decide(Classify("/api/notes", "POST"), in)

	if decision.Action != ActionAllow {
		t.Errorf("Expected allow with gating off, got %s", decision.Action)
	}
}

func TestDecide_KillSwitchDoesNotUnbanOrUnauthenticate(t *testing.T) {
	// Gating off still requires a credential
	decision := Decide(Classify("/timetable", "GET"), Input{})
	if decision.Action != ActionRedirect {
		t.Errorf("Expected redirect for anonymous user, got %s", decision.Action)
	}

	// And still locks out banned users
	in := fullAccessInput()
	in.Tier = subscription.TierDenied
	in.SubscriptionEnabled = false
	decision = Decide(Classify("/timetable", "GET"), in)
	if decision.Action != ActionRedirect {
		t.Errorf("Expected redirect for banned user, got %s", decision.Action)
	}
}

// ============================================================================
// TEST: Onboarding gating
// ============================================================================

func TestDecide_NotOnboardedForcedIntoFlow(t *testing.T) {
	in := fullAccessInput()
	in.Onboarded = false

	decision := Decide(Classify("/timetable", "GET"), in)
	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect, got %s", decision.Action)
	}
	if !strings.HasPrefix(decision.Target, TargetOnboarding) {
		t.Errorf("Expected onboarding target, got %s", decision.Target)
	}

	// The flow itself stays reachable
	decision = Decide(Classify("/onboarding", "GET"), in)
	if decision.Action != ActionAllow {
		t.Errorf("Expected allow on onboarding page, got %s", decision.Action)
	}
	decision = Decide(Classify("/api/auth/complete-onboarding", "POST"), in)
	if decision.Action != ActionAllow {
		t.Errorf("Expected allow on completion endpoint, got %s", decision.Action)
	}
}

func TestDecide_OnboardedCannotRevisitFlow(t *testing.T) {
	decision := Decide(Classify("/onboarding", "GET"), fullAccessInput())

	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect, got %s", decision.Action)
	}
	if decision.Target != TargetHome {
		t.Errorf("Expected %s, got %s", TargetHome, decision.Target)
	}
}

// ============================================================================
// TEST: Admin role
// ============================================================================

func TestDecide_AdminRouteRequiresRole(t *testing.T) {
	decision := Decide(Classify("/api/admin/users", "GET"), fullAccessInput())

	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect for non-admin, got %s", decision.Action)
	}
	if decision.Reason != ReasonNotAdmin {
		t.Errorf("Expected reason %s, got %s", ReasonNotAdmin, decision.Reason)
	}
}

func TestDecide_AdminAllowedOnAdminAndSharedRoutes(t *testing.T) {
	// Admin access ignores subscription state on the surfaces admins use
	in := readOnlyInput(subscription.StateExpired)
	in.Role = "admin"

	for _, tc := range []struct{ path, method string }{
		{"/admin", "GET"},
		{"/api/admin/users", "GET"},
		{"/account", "GET"},
		{"/api/auth/me", "GET"},
	} {
		decision := Decide(Classify(tc.path, tc.method), in)
		if decision.Action != ActionAllow {
			t.Errorf("Admin on %s %s: expected allow, got %s", tc.method, tc.path, decision.Action)
		}
	}
}

func TestDecide_AdminBouncedOffStudentSurface(t *testing.T) {
	in := fullAccessInput()
	in.Role = "admin"

	for _, tc := range []struct{ path, method string }{
		{"/timetable", "GET"},
		{"/api/notes", "POST"},
		{"/onboarding", "GET"},
	} {
		decision := Decide(Classify(tc.path, tc.method), in)
		if decision.Action != ActionRedirect {
			t.Errorf("Admin on %s %s: expected redirect, got %s", tc.method, tc.path, decision.Action)
			continue
		}
		if !strings.HasPrefix(decision.Target, TargetAdminHome) {
			t.Errorf("Admin on %s %s: expected %s target, got %s", tc.method, tc.path, TargetAdminHome, decision.Target)
		}
	}
}

// ============================================================================
// TEST: Maintenance mode
// ============================================================================

func TestDecide_MaintenanceWallsOutStudents(t *testing.T) {
	in := fullAccessInput()
	in.MaintenanceMode = true

	decision := Decide(Classify("/timetable", "GET"), in)
	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect, got %s", decision.Action)
	}
	if !strings.HasPrefix(decision.Target, TargetMaintenance) {
		t.Errorf("Expected maintenance target, got %s", decision.Target)
	}
}

func TestDecide_MaintenanceExemptions(t *testing.T) {
	// Admins pass the wall
	in := fullAccessInput()
	in.Role = "admin"
	in.MaintenanceMode = true

	decision := Decide(Classify("/api/admin/users", "GET"), in)
	if decision.Action != ActionAllow {
		t.Errorf("Admin during maintenance: expected allow, got %s", decision.Action)
	}

	// Login stays open so an admin can sign in to lift it
	decision = Decide(Classify("/login", "GET"), Input{MaintenanceMode: true})
	if decision.Action != ActionAllow {
		t.Errorf("Login during maintenance: expected allow, got %s", decision.Action)
	}

	// Payment webhooks keep landing
	decision = Decide(Classify("/api/webhooks/payment", "POST"), Input{MaintenanceMode: true})
	if decision.Action != ActionAllow {
		t.Errorf("Webhook during maintenance: expected allow, got %s", decision.Action)
	}
}

// ============================================================================
// TEST: Unknown tier fails closed
// ============================================================================

func TestDecide_UnknownTierHitsPaywall(t *testing.T) {
	in := fullAccessInput()
	in.Tier = subscription.Tier("mystery")

	decision := Decide(Classify("/timetable", "GET"), in)

	if decision.Action != ActionRedirect {
		t.Fatalf("Expected redirect, got %s", decision.Action)
	}
	if !strings.HasPrefix(decision.Target, TargetPaywall) {
		t.Errorf("Expected paywall target, got %s", decision.Target)
	}
}
