package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mn-address-parser/app/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "mn_addr:"

// RedisCacheService keeps parses in Redis as JSON with a TTL.
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService connects to redisURL and pings it.
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheServiceWithClient(client, ttl, logger), nil
}

// NewRedisCacheServiceWithClient wraps an existing client.
func NewRedisCacheServiceWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCacheService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: redisKeyPrefix,
		ttl:    ttl,
	}
}

// Get loads the entry stored under key.
func (rcs *RedisCacheService) Get(ctx context.Context, key string) (*models.AddressCache, bool, error) {
	cacheKey := rcs.prefix + key

	val, err := rcs.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		rcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		rcs.logger.Error("redis get failed", zap.Error(err), zap.String("key", cacheKey))
		return nil, false, err
	}

	var entry models.AddressCache
	if err := json.Unmarshal(val, &entry); err != nil {
		rcs.logger.Error("failed to decode cached parse", zap.Error(err), zap.String("key", cacheKey))
		return nil, false, err
	}

	rcs.hits.Add(1)
	return &entry, true, nil
}

// Set stores entry under key. Manually verified entries do not expire.
func (rcs *RedisCacheService) Set(ctx context.Context, key string, entry *models.AddressCache) error {
	if entry == nil {
		return nil
	}
	cacheKey := rcs.prefix + key

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cached parse: %w", err)
	}

	ttl := rcs.ttl
	if entry.ManuallyVerified {
		ttl = 0
	}
	if err := rcs.client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		rcs.logger.Error("redis set failed", zap.Error(err), zap.String("key", cacheKey))
		return err
	}
	return nil
}

// Delete removes key.
func (rcs *RedisCacheService) Delete(ctx context.Context, key string) error {
	return rcs.client.Del(ctx, rcs.prefix+key).Err()
}

// Clear removes every key under the service prefix.
func (rcs *RedisCacheService) Clear(ctx context.Context) error {
	n, err := rcs.deleteMatching(ctx, func(string) bool { return true })
	if err != nil {
		return err
	}
	rcs.logger.Info("cleared redis cache", zap.Int("keys_deleted", n))
	return nil
}

// InvalidateByGazetteerVersion removes keys written under other versions.
func (rcs *RedisCacheService) InvalidateByGazetteerVersion(ctx context.Context, currentVersion string) error {
	keep := rcs.prefix + currentVersion + ":"
	n, err := rcs.deleteMatching(ctx, func(k string) bool { return !strings.HasPrefix(k, keep) })
	if err != nil {
		return err
	}
	rcs.logger.Info("invalidated redis cache",
		zap.String("gazetteer_version", currentVersion),
		zap.Int("keys_deleted", n))
	return nil
}

func (rcs *RedisCacheService) deleteMatching(ctx context.Context, match func(string) bool) (int, error) {
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 500).Iterator()

	deleted := 0
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := rcs.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		if k := iter.Val(); match(k) {
			batch = append(batch, k)
		}
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan keys: %w", err)
	}
	return deleted, flush()
}

// GetStats reports hit counters and the number of keys under the prefix.
func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	var items int64
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		rcs.logger.Warn("failed to count redis keys", zap.Error(err))
	}

	return newCacheStats(CacheBackendRedis, rcs.hits.Load(), rcs.misses.Load(), items), nil
}

// Exists reports whether key is stored.
func (rcs *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rcs.client.Exists(ctx, rcs.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetTTL returns the TTL Redis reports for key.
func (rcs *RedisCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return rcs.client.TTL(ctx, rcs.prefix+key).Result()
}

// Close closes the client.
func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}
