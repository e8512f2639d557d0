package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mn-address-parser/app/models"
	"go.uber.org/zap"
)

// HybridCacheService layers a fast cache (Redis) over a persistent one
// (MongoDB). Reads fall through, writes go to both.
type HybridCacheService struct {
	l1     ICacheService
	l2     ICacheService
	logger *zap.Logger
}

// NewHybridCacheService combines l1 and l2.
func NewHybridCacheService(l1, l2 ICacheService, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{l1: l1, l2: l2, logger: logger}
}

// Get tries l1, then l2. An l2 hit is copied back into l1 in the background.
func (hcs *HybridCacheService) Get(ctx context.Context, key string) (*models.AddressCache, bool, error) {
	entry, found, err := hcs.l1.Get(ctx, key)
	if err != nil {
		hcs.logger.Warn("l1 cache failed, falling back to l2", zap.Error(err))
	} else if found {
		return entry, true, nil
	}

	entry, found, err = hcs.l2.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	synced := *entry
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := hcs.l1.Set(bgCtx, key, &synced); err != nil {
			hcs.logger.Warn("failed to sync l2 hit into l1", zap.Error(err), zap.String("key", key))
		}
	}()

	return entry, true, nil
}

// both runs f against the two tiers concurrently and joins their errors.
func (hcs *HybridCacheService) both(op string, f func(ICacheService) error) error {
	errCh := make(chan error, 2)
	for _, tier := range []ICacheService{hcs.l1, hcs.l2} {
		go func(c ICacheService) { errCh <- f(c) }(tier)
	}

	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("hybrid cache %s: %w", op, errors.Join(errs...))
	}
	return nil
}

// Set writes to both tiers.
func (hcs *HybridCacheService) Set(ctx context.Context, key string, entry *models.AddressCache) error {
	return hcs.both("set", func(c ICacheService) error { return c.Set(ctx, key, entry) })
}

// Delete removes key from both tiers.
func (hcs *HybridCacheService) Delete(ctx context.Context, key string) error {
	return hcs.both("delete", func(c ICacheService) error { return c.Delete(ctx, key) })
}

// Clear empties both tiers.
func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	if err := hcs.both("clear", func(c ICacheService) error { return c.Clear(ctx) }); err != nil {
		return err
	}
	hcs.logger.Info("cleared hybrid cache")
	return nil
}

// InvalidateByGazetteerVersion invalidates both tiers.
func (hcs *HybridCacheService) InvalidateByGazetteerVersion(ctx context.Context, currentVersion string) error {
	return hcs.both("invalidate", func(c ICacheService) error {
		return c.InvalidateByGazetteerVersion(ctx, currentVersion)
	})
}

// GetStats adds the counters of both tiers. The item count is l2's, since
// l1 only mirrors it.
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	l1Stats, l1Err := hcs.l1.GetStats(ctx)
	l2Stats, l2Err := hcs.l2.GetStats(ctx)

	switch {
	case l1Err != nil && l2Err != nil:
		return nil, fmt.Errorf("hybrid cache stats: %w", errors.Join(l1Err, l2Err))
	case l1Err != nil:
		return l2Stats, nil
	case l2Err != nil:
		return l1Stats, nil
	}

	// an l1 miss is only a miss overall if l2 missed too
	return newCacheStats(CacheBackendHybrid,
		l1Stats.TotalHits+l2Stats.TotalHits,
		l2Stats.TotalMiss,
		l2Stats.TotalItems), nil
}

// Exists checks l1, then l2.
func (hcs *HybridCacheService) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := hcs.l1.Exists(ctx, key)
	if err != nil {
		hcs.logger.Warn("l1 exists failed, falling back to l2", zap.Error(err))
	} else if exists {
		return true, nil
	}
	return hcs.l2.Exists(ctx, key)
}

// GetTTL reports l1's TTL.
func (hcs *HybridCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return hcs.l1.GetTTL(ctx, key)
}

// Close closes both tiers.
func (hcs *HybridCacheService) Close() error {
	return hcs.both("close", func(c ICacheService) error { return c.Close() })
}
