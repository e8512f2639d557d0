package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mn-address-parser/app/config"
	"github.com/mn-address-parser/app/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// NoopCacheService never stores anything.
type NoopCacheService struct{}

func (NoopCacheService) Get(context.Context, string) (*models.AddressCache, bool, error) {
	return nil, false, nil
}

func (NoopCacheService) Set(context.Context, string, *models.AddressCache) error { return nil }

func (NoopCacheService) Delete(context.Context, string) error { return nil }

func (NoopCacheService) Clear(context.Context) error { return nil }

func (NoopCacheService) InvalidateByGazetteerVersion(context.Context, string) error { return nil }

func (NoopCacheService) GetStats(context.Context) (*CacheStats, error) {
	return newCacheStats(CacheBackendNone, 0, 0, 0), nil
}

func (NoopCacheService) Exists(context.Context, string) (bool, error) { return false, nil }

func (NoopCacheService) GetTTL(context.Context, string) (time.Duration, error) { return 0, nil }

func (NoopCacheService) Close() error { return nil }

// NewCacheFromConfig builds the backend named by cache.backend. db is only
// needed by the mongo and hybrid backends.
func NewCacheFromConfig(cfg *config.AppConfig, db *mongo.Database, logger *zap.Logger) (ICacheService, error) {
	switch cfg.Cache.Backend {
	case CacheBackendNone:
		return NoopCacheService{}, nil

	case CacheBackendMemory, "":
		return NewCacheService(cfg.Cache.TTL), nil

	case CacheBackendRedis:
		return NewRedisCacheService(cfg.Redis.URL, cfg.Cache.TTL, logger)

	case CacheBackendMongo:
		if db == nil {
			return nil, fmt.Errorf("cache backend %q needs mongo", cfg.Cache.Backend)
		}
		return NewMongoCacheService(db, cfg.Cache.L1Size, logger)

	case CacheBackendHybrid:
		if db == nil {
			return nil, fmt.Errorf("cache backend %q needs mongo", cfg.Cache.Backend)
		}
		l1, err := NewRedisCacheService(cfg.Redis.URL, cfg.Cache.TTL, logger)
		if err != nil {
			return nil, err
		}
		l2, err := NewMongoCacheService(db, cfg.Cache.L1Size, logger)
		if err != nil {
			_ = l1.Close()
			return nil, err
		}
		return NewHybridCacheService(l1, l2, logger), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}
