package cache

import (
	"context"
	"sync"
	"time"

	"studyhall-platform/config"
)

// systemFlags is the persisted shape of the platform toggles
type systemFlags struct {
	MaintenanceMode     bool  `json:"maintenance_mode"`
	SubscriptionEnabled bool  `json:"subscription_enabled"`
	UpdatedAtUnix       int64 `json:"updated_at"`
}

// SystemFlagsService holds the platform-wide toggles in Redis so an admin
// can flip maintenance mode without a redeploy. Config supplies the defaults
// and the fallback when Redis is down; an admin write also lands in the
// in-process copy, so a single instance keeps working without Redis.
type SystemFlagsService struct {
	cache    *CacheService
	mu       sync.RWMutex
	fallback systemFlags
}

// NewSystemFlagsService creates the flags service seeded from config
func NewSystemFlagsService(cache *CacheService, cfg config.AccessConfig) *SystemFlagsService {
	return &SystemFlagsService{
		cache: cache,
		fallback: systemFlags{
			MaintenanceMode:     cfg.MaintenanceMode,
			SubscriptionEnabled: cfg.SubscriptionEnabled,
		},
	}
}

// MaintenanceMode reports whether the platform is down for maintenance
func (s *SystemFlagsService) MaintenanceMode(ctx context.Context) bool {
	return s.load(ctx).MaintenanceMode
}

// SubscriptionEnabled reports whether subscription gating is enforced
func (s *SystemFlagsService) SubscriptionEnabled(ctx context.Context) bool {
	return s.load(ctx).SubscriptionEnabled
}

// SetMaintenanceMode flips the maintenance toggle
func (s *SystemFlagsService) SetMaintenanceMode(ctx context.Context, enabled bool) {
	flags := s.load(ctx)
	flags.MaintenanceMode = enabled
	s.store(ctx, flags)
}

// SetSubscriptionEnabled flips the subscription enforcement toggle
func (s *SystemFlagsService) SetSubscriptionEnabled(ctx context.Context, enabled bool) {
	flags := s.load(ctx)
	flags.SubscriptionEnabled = enabled
	s.store(ctx, flags)
}

func (s *SystemFlagsService) load(ctx context.Context) systemFlags {
	if s.cache != nil {
		var flags systemFlags
		if err := s.cache.GetJSON(ctx, PrefixSystemFlags, &flags); err == nil {
			return flags
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

func (s *SystemFlagsService) store(ctx context.Context, flags systemFlags) {
	flags.UpdatedAtUnix = time.Now().Unix()

	s.mu.Lock()
	s.fallback = flags
	s.mu.Unlock()

	if s.cache != nil {
		// No TTL: the toggles persist until changed
		_ = s.cache.SetJSON(ctx, PrefixSystemFlags, flags, 0)
	}
}
