package cache

import (
	"context"

	"studyhall-platform/internal/database"
)

// PlanCache caches the plan catalog in Redis. Plans change rarely and are
// read on every checkout and activation, so a short TTL plus explicit
// invalidation from the admin endpoints keeps reads off the database.
type PlanCache struct {
	cache *CacheService
}

// NewPlanCache creates a plan catalog cache
func NewPlanCache(cache *CacheService) *PlanCache {
	return &PlanCache{cache: cache}
}

// GetPlan returns a cached plan, or false on any miss or cache failure
func (pc *PlanCache) GetPlan(ctx context.Context, planID string) (*database.SubscriptionPlan, bool) {
	if pc.cache == nil {
		return nil, false
	}

	var plan database.SubscriptionPlan
	if err := pc.cache.GetJSON(ctx, PlanKey(planID), &plan); err != nil {
		return nil, false
	}
	return &plan, true
}

// SetPlan caches a plan, best effort
func (pc *PlanCache) SetPlan(ctx context.Context, plan *database.SubscriptionPlan) {
	if pc.cache == nil || plan == nil {
		return
	}
	_ = pc.cache.SetJSON(ctx, PlanKey(plan.ID), plan, DefaultPlanTTL)
}

// InvalidatePlans drops the cached catalog after an admin change
func (pc *PlanCache) InvalidatePlans(ctx context.Context) {
	if pc.cache == nil {
		return
	}
	_ = pc.cache.Delete(ctx, PrefixActivePlans)
}

// InvalidatePlan drops one cached plan
func (pc *PlanCache) InvalidatePlan(ctx context.Context, planID string) {
	if pc.cache == nil {
		return
	}
	_ = pc.cache.Delete(ctx, PlanKey(planID))
}
