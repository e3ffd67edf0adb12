package api

import (
	"net/http"
	"strconv"
	"time"

	"studyhall-platform/internal/auth"
	"studyhall-platform/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ============================================================
// USER MANAGEMENT
// ============================================================

// handleAdminListUsers returns a paginated user list
func (s *Server) handleAdminListUsers(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)
	if limit > 200 {
		limit = 200
	}

	users, err := s.repo.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list users")
		return
	}

	successResponse(c, gin.H{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// handleAdminGetUser returns one user together with their evaluated access
// state, which is what support staff actually need when a user complains.
func (s *Server) handleAdminGetUser(c *gin.Context) {
	userID := c.Param("id")
	ctx := c.Request.Context()

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load user", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load user")
		return
	}
	if user == nil {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}

	eval, err := s.subService.EvaluateUser(ctx, userID, time.Now())
	if err != nil {
		s.logger.Error("Failed to evaluate user access", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to evaluate access")
		return
	}

	successResponse(c, gin.H{
		"user":  user,
		"state": eval.State,
		"tier":  eval.Tier,
	})
}

// BanRequest carries the reason recorded against the ban
type BanRequest struct {
	Reason string `json:"reason"`
}

// handleAdminBanUser bans a user, revokes their sessions and invalidates
// their checkpoint so the lockout takes effect on the next request.
func (s *Server) handleAdminBanUser(c *gin.Context) {
	s.setUserBan(c, true)
}

// handleAdminUnbanUser lifts a ban
func (s *Server) handleAdminUnbanUser(c *gin.Context) {
	s.setUserBan(c, false)
}

func (s *Server) setUserBan(c *gin.Context, banned bool) {
	userID := c.Param("id")
	actorID := auth.GetUserID(c)
	ctx := c.Request.Context()

	var req BanRequest
	if banned {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
			return
		}
	}

	before, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load user", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load user")
		return
	}
	if before == nil {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}

	if err := s.repo.SetUserBanned(ctx, userID, banned, req.Reason); err != nil {
		s.logger.Error("Failed to update ban flag", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update ban")
		return
	}

	after, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || after == nil {
		s.logger.Warn("Ban applied but reload failed", "user_id", userID, "error", err)
		after = before
	}

	if err := s.trail.BanChange(ctx, actorID, before, after); err != nil {
		s.logger.Warn("Failed to record ban audit entry", "user_id", userID, "error", err)
	}

	if banned {
		// Banned users lose their live session immediately, not at token
		// expiry
		if err := s.authService.LogoutAll(ctx, userID); err != nil {
			s.logger.Warn("Failed to revoke sessions for banned user", "user_id", userID, "error", err)
		}
	}

	s.refresher.Invalidate(ctx, userID)
	s.eventBus.PublishBanChange(userID, banned, req.Reason)

	successResponse(c, gin.H{
		"user_id": userID,
		"banned":  banned,
	})
}

// handleAdminGetUserAudit returns recent audit entries for a user
func (s *Server) handleAdminGetUserAudit(c *gin.Context) {
	userID := c.Param("id")
	limit := parseIntQuery(c, "limit", 50)

	entries, err := s.repo.GetUserAuditEntries(c.Request.Context(), userID, limit)
	if err != nil {
		s.logger.Error("Failed to load audit entries", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load audit entries")
		return
	}

	successResponse(c, gin.H{"entries": entries})
}

// handleAdminGetUserSubscriptions returns a user's full subscription history
func (s *Server) handleAdminGetUserSubscriptions(c *gin.Context) {
	userID := c.Param("id")

	subs, err := s.subService.GetUserSubscriptions(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to load subscriptions", "user_id", userID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load subscriptions")
		return
	}

	successResponse(c, gin.H{"subscriptions": subs})
}

// GrantRequest describes an admin-granted subscription
type GrantRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
	Days   int    `json:"days"`
}

// handleAdminGrantSubscription activates a subscription without a payment,
// used for support credits and manual fixes.
func (s *Server) handleAdminGrantSubscription(c *gin.Context) {
	userID := c.Param("id")
	actorID := auth.GetUserID(c)
	ctx := c.Request.Context()

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "plan_id is required")
		return
	}

	sub, err := s.subService.AdminGrant(ctx, userID, req.PlanID, actorID, req.Days)
	if err != nil {
		s.writeLifecycleError(c, err)
		return
	}

	s.refresher.Invalidate(ctx, userID)

	successResponse(c, gin.H{
		"subscription_id": sub.ID,
		"status":          sub.Status,
		"end_date":        sub.EndDate,
	})
}

// handleAdminCancelSubscription cancels any subscription by id
func (s *Server) handleAdminCancelSubscription(c *gin.Context) {
	subID := c.Param("id")
	actorID := auth.GetUserID(c)
	ctx := c.Request.Context()

	sub, err := s.subService.Cancel(ctx, subID, actorID)
	if err != nil {
		s.writeLifecycleError(c, err)
		return
	}

	s.refresher.Invalidate(ctx, sub.UserID)

	successResponse(c, gin.H{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
		"status":          sub.Status,
	})
}

// ============================================================
// PLAN MANAGEMENT
// ============================================================

// handleAdminListPlans returns all plans, inactive ones included
func (s *Server) handleAdminListPlans(c *gin.Context) {
	plans, err := s.subService.ListPlans(c.Request.Context(), false)
	if err != nil {
		s.logger.Error("Failed to list plans", "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list plans")
		return
	}

	successResponse(c, gin.H{"plans": plans})
}

// CreatePlanRequest describes a new catalog entry
type CreatePlanRequest struct {
	Name         string  `json:"name" binding:"required"`
	DisplayName  string  `json:"display_name" binding:"required"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	DurationDays int     `json:"duration_days" binding:"required"`
}

// handleAdminCreatePlan adds a plan to the catalog
func (s *Server) handleAdminCreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "name, display_name and duration_days are required")
		return
	}

	if req.Currency == "" {
		req.Currency = "USD"
	}

	plan := &database.SubscriptionPlan{
		ID:           uuid.New().String(),
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Description:  req.Description,
		Price:        req.Price,
		Currency:     req.Currency,
		DurationDays: req.DurationDays,
		IsActive:     true,
	}

	if err := s.repo.CreatePlan(c.Request.Context(), plan); err != nil {
		s.logger.Error("Failed to create plan", "name", req.Name, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create plan")
		return
	}

	if s.planCache != nil {
		s.planCache.InvalidatePlans(c.Request.Context())
	}

	successResponse(c, gin.H{"plan": plan})
}

// SetPlanActiveRequest toggles a plan's availability
type SetPlanActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// handleAdminSetPlanActive toggles whether a plan can be purchased.
// Deactivated plans stay referenced by existing subscriptions.
func (s *Server) handleAdminSetPlanActive(c *gin.Context) {
	planID := c.Param("id")

	var req SetPlanActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "active is required")
		return
	}

	if err := s.repo.SetPlanActive(c.Request.Context(), planID, *req.Active); err != nil {
		s.logger.Error("Failed to toggle plan", "plan_id", planID, "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update plan")
		return
	}

	if s.planCache != nil {
		s.planCache.InvalidatePlan(c.Request.Context(), planID)
		s.planCache.InvalidatePlans(c.Request.Context())
	}

	successResponse(c, gin.H{
		"plan_id": planID,
		"active":  *req.Active,
	})
}

// ============================================================
// SYSTEM FLAGS
// ============================================================

// handleAdminGetSystemFlags returns the current platform-wide switches
func (s *Server) handleAdminGetSystemFlags(c *gin.Context) {
	ctx := c.Request.Context()

	successResponse(c, gin.H{
		"maintenance_mode":     s.flags.MaintenanceMode(ctx),
		"subscription_enabled": s.flags.SubscriptionEnabled(ctx),
	})
}

// ToggleRequest flips a boolean system flag
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// handleAdminSetMaintenance toggles maintenance mode
func (s *Server) handleAdminSetMaintenance(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "enabled is required")
		return
	}

	actorID := auth.GetUserID(c)
	s.flags.SetMaintenanceMode(c.Request.Context(), *req.Enabled)
	s.eventBus.PublishMaintenanceToggled(*req.Enabled, actorID)

	s.logger.Info("Maintenance mode toggled", "enabled", *req.Enabled, "actor_id", actorID)

	successResponse(c, gin.H{"maintenance_mode": *req.Enabled})
}

// handleAdminSetSubscriptionEnabled toggles the subscription kill switch.
// With the switch off every authenticated user gets full access.
func (s *Server) handleAdminSetSubscriptionEnabled(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "enabled is required")
		return
	}

	s.flags.SetSubscriptionEnabled(c.Request.Context(), *req.Enabled)

	s.logger.Info("Subscription enforcement toggled", "enabled", *req.Enabled, "actor_id", auth.GetUserID(c))

	successResponse(c, gin.H{"subscription_enabled": *req.Enabled})
}

// ============================================================
// SWEEPER & CACHE
// ============================================================

// handleAdminSweeperStatus returns the expiry sweeper's scheduler state
func (s *Server) handleAdminSweeperStatus(c *gin.Context) {
	successResponse(c, s.scheduler.GetStatus())
}

// handleAdminRunSweep runs an expiry sweep immediately
func (s *Server) handleAdminRunSweep(c *gin.Context) {
	count, err := s.scheduler.RunSweepNow(c.Request.Context())
	if err != nil {
		s.logger.Error("Manual sweep failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "sweep failed")
		return
	}

	successResponse(c, gin.H{"expired": count})
}

// handleAdminCacheStats returns redis circuit-breaker statistics
func (s *Server) handleAdminCacheStats(c *gin.Context) {
	if s.cacheService == nil {
		successResponse(c, gin.H{"enabled": false})
		return
	}

	successResponse(c, gin.H{
		"enabled": true,
		"stats":   s.cacheService.GetStats(),
	})
}

// parseIntQuery reads an integer query parameter with a default
func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return def
	}
	return val
}
