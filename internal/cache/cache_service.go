// Package cache provides Redis-based caching for the plan catalog, the
// system flags and the checkpoint epochs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"studyhall-platform/config"

	"github.com/redis/go-redis/v9"
)

// CacheService provides Redis-based caching with graceful degradation.
// When Redis is unavailable, operations return errors that callers should
// handle by falling back to the database or config defaults.
type CacheService struct {
	client       *redis.Client
	config       config.RedisConfig
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	// Circuit breaker settings
	maxFailures     int
	checkInterval   time.Duration
	recoveryBackoff time.Duration
}

// Key prefixes for different cache types
const (
	PrefixPlan            = "plan:%s"
	PrefixActivePlans     = "plans:active"
	PrefixSystemFlags     = "system:flags"
	PrefixCheckpointEpoch = "user:%s:checkpoint_epoch"
)

// Default TTLs
const (
	DefaultPlanTTL  = 1 * time.Hour
	DefaultFlagsTTL = 30 * time.Second
	DefaultEpochTTL = 48 * time.Hour
)

// NewCacheService creates a new CacheService with the provided configuration.
// It attempts to connect to Redis and verifies connectivity.
func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:          client,
		config:          cfg,
		healthy:         false,
		failureCount:    0,
		maxFailures:     3,
		checkInterval:   30 * time.Second,
		recoveryBackoff: 5 * time.Second,
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[CACHE] Initial Redis connection failed: %v", err)
		return cs, nil // Return service in degraded mode
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	log.Printf("[CACHE] Redis connected successfully at %s", cfg.Address)

	return cs, nil
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

// recordFailure tracks a Redis operation failure for circuit breaker.
func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			log.Printf("[CACHE] Circuit breaker OPEN: Redis marked unhealthy after %d failures", cs.failureCount)
		}
		cs.healthy = false
	}
}

// recordSuccess resets the failure counter on successful operation.
func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		log.Printf("[CACHE] Circuit breaker CLOSED: Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth performs a background health check if enough time has passed.
func (cs *CacheService) checkHealth(ctx context.Context) {
	cs.mu.RLock()
	timeSinceCheck := time.Since(cs.lastCheck)
	shouldCheck := !cs.healthy && timeSinceCheck >= cs.checkInterval
	cs.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(pingCtx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// Get retrieves a value from cache.
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return "", fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	result, err := cs.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", err // Cache miss, not a failure
		}
		cs.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return result, nil
}

// Set stores a value in cache with TTL.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// Delete removes a key from cache.
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := cs.client.Del(ctx, key).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// Increment atomically increments a counter key, setting the TTL on first
// increment.
func (cs *CacheService) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return 0, fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	val, err := cs.client.Incr(ctx, key).Result()
	if err != nil {
		cs.recordFailure()
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}

	if val == 1 && ttl > 0 {
		cs.client.Expire(ctx, key, ttl)
	}

	cs.recordSuccess()
	return val, nil
}

// GetInt64 retrieves an integer counter. A missing key is (0, nil).
func (cs *CacheService) GetInt64(ctx context.Context, key string) (int64, error) {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return 0, fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	val, err := cs.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		cs.recordFailure()
		return 0, fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return val, nil
}

// GetJSON retrieves and unmarshals a JSON value from cache.
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := cs.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

// SetJSON marshals and stores a JSON value in cache.
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return cs.Set(ctx, key, value, ttl)
}

// Close closes the Redis connection.
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Ping checks Redis connectivity.
func (cs *CacheService) Ping(ctx context.Context) error {
	if err := cs.client.Ping(ctx).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// Stats returns cache statistics for monitoring.
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
	PoolSize     int    `json:"pool_size"`
}

// GetStats returns current cache statistics.
func (cs *CacheService) GetStats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return Stats{
		Healthy:      cs.healthy,
		FailureCount: cs.failureCount,
		Address:      cs.config.Address,
		PoolSize:     cs.config.PoolSize,
	}
}

// PlanKey generates a cache key for one plan.
func PlanKey(planID string) string {
	return fmt.Sprintf(PrefixPlan, planID)
}

// CheckpointEpochKey generates a cache key for a user's checkpoint epoch.
func CheckpointEpochKey(userID string) string {
	return fmt.Sprintf(PrefixCheckpointEpoch, userID)
}
