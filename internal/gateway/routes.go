package gateway

import (
	"strings"
)

// RouteClass partitions the URL space for the access decision. Every request
// falls into exactly one class; unknown paths land in ClassProtected, which
// is the conservative default.
type RouteClass string

const (
	ClassPublic     RouteClass = "public"      // No credential needed, never blocked
	ClassAuthPage   RouteClass = "auth_page"   // Login/register, bounced when already signed in
	ClassOnboarding RouteClass = "onboarding"  // Reachable only mid-onboarding
	ClassAdmin      RouteClass = "admin"       // Admin role required
	ClassExempt     RouteClass = "exempt"      // Authenticated but never subscription-gated
	ClassProtected  RouteClass = "protected"   // Full gating applies
)

// Route is a classified request
type Route struct {
	Path   string
	Method string
	Class  RouteClass
}

// Well-known redirect targets
const (
	TargetLogin       = "/login"
	TargetHome        = "/dashboard"
	TargetAdminHome   = "/admin"
	TargetPaywall     = "/paywall"
	TargetDenied      = "/account-suspended"
	TargetOnboarding  = "/onboarding"
	TargetMaintenance = "/maintenance"
)

var publicPrefixes = []string{
	"/",
	"/login",
	"/register",
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/refresh",
	"/api/auth/logout",
	"/api/webhooks/",
	"/api/plans",
	"/health",
	"/maintenance",
	"/paywall",
	"/account-suspended",
	"/static/",
	"/favicon.ico",
}

var authPagePaths = map[string]bool{
	"/login":    true,
	"/register": true,
}

var onboardingPrefixes = []string{
	"/onboarding",
	"/api/auth/complete-onboarding",
}

var adminPrefixes = []string{
	"/admin",
	"/api/admin/",
}

// Exempt routes stay reachable for expired and read-only users: they need to
// see their account, the catalog and the checkout flow to become paying
// users again.
var exemptPrefixes = []string{
	"/account",
	"/api/auth/me",
	"/api/auth/change-password",
	"/api/auth/logout-all",
	"/api/subscription/",
	"/checkout",
}

// Maintenance-exempt paths stay open while the platform is down for
// maintenance
var maintenanceExemptPrefixes = []string{
	"/maintenance",
	"/health",
	"/api/admin/",
	"/admin",
	"/api/auth/login",
	"/login",
	"/api/webhooks/",
}

// Classify assigns a route class to a request path. Order matters: admin and
// onboarding outrank the public catch-alls, and the bare root is public only
// as an exact match.
func Classify(path, method string) Route {
	route := Route{Path: path, Method: method}

	switch {
	case matchesPrefix(path, adminPrefixes):
		route.Class = ClassAdmin
	case authPagePaths[path]:
		route.Class = ClassAuthPage
	case matchesPrefix(path, onboardingPrefixes):
		route.Class = ClassOnboarding
	case matchesPrefix(path, exemptPrefixes):
		route.Class = ClassExempt
	case path == "/" || matchesPrefix(path, publicPrefixes):
		route.Class = ClassPublic
	default:
		route.Class = ClassProtected
	}

	return route
}

// IsMutation reports whether the request changes state. The read-only tier
// is a soft lock: views stay open, mutations bounce to the paywall.
func (r Route) IsMutation() bool {
	switch strings.ToUpper(r.Method) {
	case "GET", "HEAD", "OPTIONS":
		return false
	}
	return true
}

// MaintenanceExempt reports whether the route stays open during maintenance
func (r Route) MaintenanceExempt() bool {
	return matchesPrefix(r.Path, maintenanceExemptPrefixes)
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
