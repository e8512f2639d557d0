package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/mn-address-parser/app/models"
)

// Cache backends selectable through cache.backend.
const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendMongo  = "mongo"
	CacheBackendHybrid = "hybrid"
)

// CacheStats summarizes a cache tier.
type CacheStats struct {
	Backend    string  `json:"backend"`
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

func newCacheStats(backend string, hits, misses, items int64) *CacheStats {
	stats := &CacheStats{Backend: backend, TotalHits: hits, TotalMiss: misses, TotalItems: items}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ICacheService stores parses keyed by CacheKey.
type ICacheService interface {
	Get(ctx context.Context, key string) (*models.AddressCache, bool, error)
	Set(ctx context.Context, key string, entry *models.AddressCache) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// InvalidateByGazetteerVersion drops every entry parsed against a
	// version other than currentVersion.
	InvalidateByGazetteerVersion(ctx context.Context, currentVersion string) error

	GetStats(ctx context.Context) (*CacheStats, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetTTL(ctx context.Context, key string) (time.Duration, error)
	Close() error
}

// CacheKey is "<gazetteer version>:<sha256 of the normalized text>". Keys of
// one version share a prefix, which is what invalidation scans for.
func CacheKey(gazetteerVersion, normalized string) string {
	return gazetteerVersion + ":" + Fingerprint(normalized)
}

// Fingerprint hashes a normalized address.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// keyVersion returns the gazetteer version encoded in a cache key.
func keyVersion(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[:i]
	}
	return ""
}
