package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mn-address-parser/app/models"
)

// CacheService is the in-process cache with a fixed TTL.
type CacheService struct {
	mu         sync.RWMutex
	cache      map[string]models.AddressCache
	timestamps map[string]time.Time
	ttl        time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheService creates an empty cache. A ttl of zero keeps entries forever.
func NewCacheService(ttl time.Duration) *CacheService {
	return &CacheService{
		cache:      make(map[string]models.AddressCache),
		timestamps: make(map[string]time.Time),
		ttl:        ttl,
	}
}

// Get returns a copy of the entry stored under key.
func (cs *CacheService) Get(ctx context.Context, key string) (*models.AddressCache, bool, error) {
	cs.mu.RLock()
	entry, exists := cs.cache[key]
	expired := exists && cs.isExpired(key, entry)
	cs.mu.RUnlock()

	if !exists || expired {
		if expired {
			cs.deleteExpired(key)
		}
		cs.misses.Add(1)
		return nil, false, nil
	}

	cs.hits.Add(1)
	return &entry, true, nil
}

// Set stores a copy of entry.
func (cs *CacheService) Set(ctx context.Context, key string, entry *models.AddressCache) error {
	if entry == nil {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.timestamps[key] = time.Now()
	cs.cache[key] = *entry
	return nil
}

// Delete removes key.
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.cache, key)
	delete(cs.timestamps, key)
	return nil
}

// Clear empties the cache.
func (cs *CacheService) Clear(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache = make(map[string]models.AddressCache)
	cs.timestamps = make(map[string]time.Time)
	return nil
}

// InvalidateByGazetteerVersion drops entries keyed under another version.
func (cs *CacheService) InvalidateByGazetteerVersion(ctx context.Context, currentVersion string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.cache {
		if keyVersion(key) != currentVersion {
			delete(cs.cache, key)
			delete(cs.timestamps, key)
		}
	}
	return nil
}

// Size returns the number of stored entries, expired ones included.
func (cs *CacheService) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return len(cs.cache)
}

// GetStats reports hit counters and the live entry count.
func (cs *CacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	cs.mu.RLock()
	active := int64(0)
	for key, entry := range cs.cache {
		if !cs.isExpired(key, entry) {
			active++
		}
	}
	cs.mu.RUnlock()

	return newCacheStats(CacheBackendMemory, cs.hits.Load(), cs.misses.Load(), active), nil
}

// CleanupExpired removes every expired entry.
func (cs *CacheService) CleanupExpired() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key, entry := range cs.cache {
		if cs.isExpired(key, entry) {
			delete(cs.cache, key)
			delete(cs.timestamps, key)
		}
	}
}

// isExpired must be called with mu held.
func (cs *CacheService) isExpired(key string, entry models.AddressCache) bool {
	if cs.ttl <= 0 || entry.ManuallyVerified {
		return false
	}
	timestamp, exists := cs.timestamps[key]
	if !exists {
		return true
	}
	return time.Since(timestamp) > cs.ttl
}

func (cs *CacheService) deleteExpired(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if entry, ok := cs.cache[key]; ok && cs.isExpired(key, entry) {
		delete(cs.cache, key)
		delete(cs.timestamps, key)
	}
}

// Exists reports whether a live entry is stored under key.
func (cs *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.cache[key]
	return exists && !cs.isExpired(key, entry), nil
}

// GetTTL returns the time key has left, or 0.
func (cs *CacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	timestamp, exists := cs.timestamps[key]
	if !exists || cs.ttl <= 0 {
		return 0, nil
	}

	remaining := cs.ttl - time.Since(timestamp)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// StartCleanupWorker sweeps expired entries every interval until ctx ends.
func (cs *CacheService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// Close is a no-op.
func (cs *CacheService) Close() error {
	return nil
}
