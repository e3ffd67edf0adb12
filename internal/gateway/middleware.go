package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"studyhall-platform/internal/auth"
	"studyhall-platform/internal/checkpoint"
	"studyhall-platform/internal/logging"
	"studyhall-platform/internal/subscription"
)

// Response headers set on every decided request
const (
	HeaderState          = "X-Access-State"
	HeaderTier           = "X-Access-Tier"
	HeaderReadOnly       = "X-Read-Only"
	HeaderReason         = "X-Access-Reason"
	HeaderSessionInvalid = "X-Session-Invalidated"
)

// SystemFlags reports the platform-wide toggles. Implemented by the cache
// service with config fallback, so an admin can flip maintenance without a
// redeploy.
type SystemFlags interface {
	MaintenanceMode(ctx context.Context) bool
	SubscriptionEnabled(ctx context.Context) bool
}

// Gateway wires the pure decision function into the request path
type Gateway struct {
	refresher *checkpoint.Refresher
	flags     SystemFlags
	logger    *logging.Logger
}

// New creates the gateway
func New(refresher *checkpoint.Refresher, flags SystemFlags, logger *logging.Logger) *Gateway {
	return &Gateway{
		refresher: refresher,
		flags:     flags,
		logger:    logger.WithComponent("access-gateway"),
	}
}

// Middleware returns the gin middleware enforcing the access decision. It
// expects auth.OptionalMiddleware to have run first so a valid credential is
// already in the context.
func (g *Gateway) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := Classify(c.Request.URL.Path, c.Request.Method)
		claims := auth.GetUserClaims(c)
		now := time.Now()

		in := Input{
			MaintenanceMode:     g.flags.MaintenanceMode(c.Request.Context()),
			SubscriptionEnabled: g.flags.SubscriptionEnabled(c.Request.Context()),
		}

		if claims != nil {
			in.Authenticated = true
			in.Role = claims.Role
			in.Onboarded = claims.OnboardingCompleted
			g.resolveAccess(c, claims.UserID, now, &in)
		}

		decision := Decide(route, in)
		g.apply(c, route, decision)
	}
}

// resolveAccess fills the subscription view of the input, preferring the
// client-held checkpoint and falling back to the durable store when the
// checkpoint is missing, tampered or stale.
func (g *Gateway) resolveAccess(c *gin.Context, userID string, now time.Time, in *Input) {
	codec := g.refresher.Codec()
	decoded := codec.Decode(func(name string) (string, bool) {
		value, err := c.Cookie(name)
		if err != nil {
			return "", false
		}
		return value, true
	}, now)

	// The stable onboarding flag outlives the credential, so when present it
	// wins over the possibly older claim
	if decoded.HasOnboarded {
		in.Onboarded = decoded.Onboarded
	}

	if decoded.HasAccess && g.epochFresh(c.Request.Context(), userID, decoded) {
		in.State = decoded.State
		in.Tier = decoded.Tier
		in.RemainingTrialDays = decoded.RemainingTrialDays
		return
	}

	// Durable fallback, then reissue so the next request rides the fast path
	set, err := g.refresher.Compute(c.Request.Context(), userID, now)
	if err != nil {
		// The store is down and there is no trustworthy checkpoint. Degrade
		// to read-only rather than locking the user out or letting them
		// mutate on unknown state.
		g.logger.Error("Access resolution failed, degrading to read-only",
			"user_id", userID, "error", err)
		in.State = subscription.StateNoSubscription
		in.Tier = subscription.TierReadOnly
		return
	}

	in.State = set.State
	in.Tier = set.Tier
	in.RemainingTrialDays = set.RemainingTrialDays
	in.Onboarded = set.Onboarded

	for _, flag := range codec.Encode(set, now) {
		c.SetCookie(flag.Name, flag.Value, flag.MaxAge, "/", "", false, true)
	}
}

// epochFresh reports whether the checkpoint was issued at or after the
// user's current invalidation epoch. Without an epoch store the TTL alone
// bounds staleness.
func (g *Gateway) epochFresh(ctx context.Context, userID string, decoded checkpoint.Decoded) bool {
	epochs := g.refresher.Epochs()
	if epochs == nil {
		return true
	}
	current, ok := epochs.GetEpoch(ctx, userID)
	if !ok {
		return true
	}
	return decoded.HasEpoch && decoded.Epoch >= current
}

func (g *Gateway) apply(c *gin.Context, route Route, decision Decision) {
	if decision.State != "" {
		c.Header(HeaderState, string(decision.State))
	}
	if decision.Tier != "" {
		c.Header(HeaderTier, string(decision.Tier))
	}

	switch decision.Action {
	case ActionAllow:
		c.Next()

	case ActionAllowReadOnly:
		c.Header(HeaderReadOnly, "true")
		c.Header(HeaderReason, decision.Reason)
		c.Next()

	case ActionRedirect:
		c.Header(HeaderReason, decision.Reason)
		if decision.ClearSession {
			g.clearSession(c)
		}
		if isAPIRequest(route.Path) {
			status := http.StatusForbidden
			if decision.Reason == ReasonUnauthenticated {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error":    strings.ToUpper(decision.Reason),
				"message":  "access denied",
				"redirect": decision.Target,
			})
			return
		}
		c.Redirect(http.StatusFound, decision.Target)
		c.Abort()

	default:
		// Unknown action fails closed
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "ACCESS_DENIED",
			"message": "access denied",
		})
	}
}

// clearSession expires every checkpoint cookie and tells the client to drop
// its credential. The server-side session rows are revoked at ban time; this
// closes the window for a credential issued before the ban.
func (g *Gateway) clearSession(c *gin.Context) {
	for _, name := range checkpoint.FlagNames() {
		c.SetCookie(name, "", -1, "/", "", false, true)
	}
	c.Header(HeaderSessionInvalid, "true")
}

func isAPIRequest(path string) bool {
	return strings.HasPrefix(path, "/api/")
}
