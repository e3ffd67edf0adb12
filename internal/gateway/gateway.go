// Package gateway makes the per-request access decision. The decision
// function is pure: it sees a classified route and a resolved view of the
// caller and returns what to do, without touching the network or the
// database. The middleware around it owns the plumbing.
package gateway

import (
	"net/url"

	"studyhall-platform/internal/subscription"
)

// Action is what the edge should do with the request
type Action string

const (
	ActionAllow         Action = "allow"
	ActionAllowReadOnly Action = "allow_read_only"
	ActionRedirect      Action = "redirect"
)

// Deny reasons surfaced to the client in headers and redirect params
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonBanned          = "banned"
	ReasonExpired         = "subscription_expired"
	ReasonNoSubscription  = "no_subscription"
	ReasonReadOnly        = "read_only"
	ReasonOnboarding      = "onboarding_required"
	ReasonMaintenance     = "maintenance"
	ReasonNotAdmin        = "admin_required"
)

// Input is the resolved view of the caller at decision time. The middleware
// fills it from the credential and the checkpoint, falling back to the
// durable store when the checkpoint cannot be trusted.
type Input struct {
	Authenticated      bool
	Role               string
	Onboarded          bool
	State              subscription.State
	Tier               subscription.Tier
	RemainingTrialDays int

	MaintenanceMode     bool
	SubscriptionEnabled bool
}

// Decision is the gateway's answer for one request
type Decision struct {
	Action Action
	Target string // Redirect target, with reason and return params attached
	Reason string
	State  subscription.State
	Tier   subscription.Tier

	// ClearSession tells the edge to drop the client's credential and
	// checkpoint cookies along with the redirect
	ClearSession bool
}

// Decide applies the access rules in priority order. Maintenance outranks
// everything but admin access; bans outrank subscription state; onboarding
// outranks the paywall. Unauthenticated users only ever see public pages and
// the login bounce.
func Decide(route Route, in Input) Decision {
	isAdmin := in.Authenticated && in.Role == "admin"

	// Maintenance wall. Admins and the routes needed to lift it stay open.
	if in.MaintenanceMode && !isAdmin && !route.MaintenanceExempt() {
		return redirect(TargetMaintenance, ReasonMaintenance, in)
	}

	// Signed-in users have no business on the login and register pages
	if route.Class == ClassAuthPage {
		if in.Authenticated {
			return redirect(homeFor(isAdmin), "", in)
		}
		return allow(in)
	}

	if route.Class == ClassPublic {
		return allow(in)
	}

	if !in.Authenticated {
		return Decision{
			Action: ActionRedirect,
			Target: TargetLogin + "?redirect=" + url.QueryEscape(route.Path),
			Reason: ReasonUnauthenticated,
		}
	}

	// Banned users reach nothing past the public surface. The bounce goes
	// back to login and carries the session-invalidation signal: the
	// credential predates the ban and must not keep probing.
	if in.Tier == subscription.TierDenied {
		d := redirect(TargetLogin, ReasonBanned, in)
		d.ClearSession = true
		return d
	}

	if route.Class == ClassAdmin {
		if !isAdmin {
			return redirect(TargetHome, ReasonNotAdmin, in)
		}
		return allow(in)
	}

	// Admins live on the admin surface. The student UI bounces them into
	// the admin area; only the shared account and auth endpoints stay open.
	if isAdmin {
		if route.Class == ClassExempt {
			return allow(in)
		}
		return redirect(TargetAdminHome, "", in)
	}

	if !in.Onboarded {
		if route.Class == ClassOnboarding || route.Class == ClassExempt {
			return allow(in)
		}
		return redirect(TargetOnboarding, ReasonOnboarding, in)
	}
	if route.Class == ClassOnboarding {
		// Onboarding is done; the flow is not revisitable
		return redirect(TargetHome, "", in)
	}

	if route.Class == ClassExempt {
		return allow(in)
	}

	// Kill switch: with subscription enforcement off, every authenticated
	// user gets full access
	if !in.SubscriptionEnabled {
		return allow(in)
	}

	switch in.Tier {
	case subscription.TierFull:
		return allow(in)
	case subscription.TierReadOnly:
		if route.IsMutation() {
			reason := ReasonExpired
			if in.State == subscription.StateNoSubscription {
				reason = ReasonNoSubscription
			}
			return Decision{
				Action: ActionRedirect,
				Target: TargetPaywall + "?reason=" + reason + "&redirect=" + url.QueryEscape(route.Path),
				Reason: reason,
				State:  in.State,
				Tier:   in.Tier,
			}
		}
		return Decision{
			Action: ActionAllowReadOnly,
			Reason: ReasonReadOnly,
			State:  in.State,
			Tier:   in.Tier,
		}
	default:
		// Unknown tier degrades to the paywall rather than to access
		return redirect(TargetPaywall, ReasonExpired, in)
	}
}

func allow(in Input) Decision {
	return Decision{Action: ActionAllow, State: in.State, Tier: in.Tier}
}

func redirect(target, reason string, in Input) Decision {
	if reason != "" {
		target = target + "?reason=" + reason
	}
	return Decision{
		Action: ActionRedirect,
		Target: target,
		Reason: reason,
		State:  in.State,
		Tier:   in.Tier,
	}
}

func homeFor(isAdmin bool) string {
	if isAdmin {
		return TargetAdminHome
	}
	return TargetHome
}
