package cache

import (
	"context"
)

// EpochStore keeps the per-user checkpoint invalidation counters in Redis.
// A bump makes every previously issued checkpoint stale. When Redis is down
// reads report "no epoch", which callers treat as "trust the flag TTLs".
type EpochStore struct {
	cache *CacheService
}

// NewEpochStore creates the epoch store
func NewEpochStore(cache *CacheService) *EpochStore {
	return &EpochStore{cache: cache}
}

// GetEpoch returns the user's current epoch. ok is false when the store
// cannot answer, including the never-bumped case with a cold cache.
func (es *EpochStore) GetEpoch(ctx context.Context, userID string) (int64, bool) {
	if es.cache == nil {
		return 0, false
	}

	epoch, err := es.cache.GetInt64(ctx, CheckpointEpochKey(userID))
	if err != nil {
		return 0, false
	}
	return epoch, true
}

// BumpEpoch increments the user's epoch and returns the new value
func (es *EpochStore) BumpEpoch(ctx context.Context, userID string) int64 {
	if es.cache == nil {
		return 0
	}

	epoch, err := es.cache.Increment(ctx, CheckpointEpochKey(userID), DefaultEpochTTL)
	if err != nil {
		return 0
	}
	return epoch
}
