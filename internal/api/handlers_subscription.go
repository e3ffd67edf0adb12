package api

import (
	"errors"
	"net/http"
	"time"

	"studyhall-platform/internal/auth"
	"studyhall-platform/internal/subscription"

	"github.com/gin-gonic/gin"
)

// handleListPlans returns the active plan catalog. Public: anonymous
// visitors see pricing before they register.
func (s *Server) handleListPlans(c *gin.Context) {
	plans, err := s.subService.ListPlans(c.Request.Context(), true)
	if err != nil {
		s.logger.Error("Failed to list plans", "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load plans")
		return
	}

	successResponse(c, gin.H{"plans": plans})
}

// handleGetMySubscription returns the caller's evaluated access state, the
// subscription history behind it and the feature caps for their tier.
func (s *Server) handleGetMySubscription(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	ctx := c.Request.Context()

	eval, err := s.subService.EvaluateUser(ctx, userID, time.Now())
	if err != nil {
		s.logger.Error("Failed to evaluate subscription state", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to evaluate subscription")
		return
	}

	subs, err := s.subService.GetUserSubscriptions(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load subscriptions", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load subscriptions")
		return
	}

	successResponse(c, gin.H{
		"state":                eval.State,
		"tier":                 eval.Tier,
		"remaining_trial_days": eval.RemainingTrialDays,
		"in_grace_period":      eval.InGracePeriod,
		"limits":               subscription.LimitsFor(eval.Tier, s.config.ReadOnlyLimits),
		"subscriptions":        subs,
	})
}

// CheckoutRequest starts a payment flow for a plan
type CheckoutRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// handleStartCheckout creates a payment-pending subscription row and hands
// back the order id the payment provider will echo in its webhook.
func (s *Server) handleStartCheckout(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "plan_id is required")
		return
	}

	sub, err := s.subService.StartCheckout(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		s.writeLifecycleError(c, err)
		return
	}

	successResponse(c, gin.H{
		"subscription_id": sub.ID,
		"order_id":        sub.OrderID,
		"status":          sub.Status,
	})
}

// CancelRequest identifies the subscription to cancel
type CancelRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
}

// handleCancelSubscription cancels one of the caller's own subscriptions.
// Ownership is checked here; the service only knows about ids.
func (s *Server) handleCancelSubscription(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "subscription_id is required")
		return
	}

	ctx := c.Request.Context()

	existing, err := s.repo.GetSubscriptionByID(ctx, req.SubscriptionID)
	if err != nil {
		s.logger.Error("Failed to load subscription", "subscription_id", req.SubscriptionID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load subscription")
		return
	}
	if existing == nil || existing.UserID != userID {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "subscription not found")
		return
	}

	sub, err := s.subService.Cancel(ctx, req.SubscriptionID, userID)
	if err != nil {
		s.writeLifecycleError(c, err)
		return
	}

	// The browser just witnessed this transition, so refresh its checkpoint
	// rather than waiting for the flags to expire
	s.refresher.Invalidate(ctx, userID)
	if err := s.refresher.IssueCookies(c, userID); err != nil {
		s.logger.Warn("Checkpoint refresh after cancel failed", "user_id", userID, "error", err)
	}

	successResponse(c, gin.H{
		"subscription_id": sub.ID,
		"status":          sub.Status,
	})
}

// writeLifecycleError maps subscription service errors to HTTP responses
func (s *Server) writeLifecycleError(c *gin.Context, err error) {
	var lifeErr subscription.LifecycleError
	if errors.As(err, &lifeErr) {
		status := http.StatusConflict
		switch lifeErr.Code {
		case subscription.ErrOrderNotFound.Code, subscription.ErrPlanNotFound.Code:
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   lifeErr.Code,
			"message": lifeErr.Message,
		})
		return
	}

	s.logger.Error("Subscription operation failed", "error", err)
	errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "subscription operation failed")
}
