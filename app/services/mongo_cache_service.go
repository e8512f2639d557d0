package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mn-address-parser/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const addressCacheCollection = "address_cache"

// MongoCacheService is a persistent cache in MongoDB fronted by an
// in-process LRU.
type MongoCacheService struct {
	collection *mongo.Collection
	l1Cache    *lru.Cache[string, models.AddressCache]
	logger     *zap.Logger

	l1Hits    atomic.Int64
	l1Miss    atomic.Int64
	mongoHits atomic.Int64
	mongoMiss atomic.Int64
}

// NewMongoCacheService creates the collection indexes and the LRU.
func NewMongoCacheService(db *mongo.Database, l1Size int, logger *zap.Logger) (*MongoCacheService, error) {
	if l1Size <= 0 {
		l1Size = 10000
	}
	l1Cache, err := lru.New[string, models.AddressCache](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}

	collection := db.Collection(addressCacheCollection)

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fingerprint", Value: 1}, {Key: "gazetteer_version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "gazetteer_version", Value: 1}}},
		{Keys: bson.D{{Key: "last_accessed", Value: 1}}},
		{Keys: bson.D{{Key: "manually_verified", Value: 1}}},
		{Keys: bson.D{{Key: "trusted", Value: 1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("failed to create address_cache indexes", zap.Error(err))
	}

	return &MongoCacheService{
		collection: collection,
		l1Cache:    l1Cache,
		logger:     logger,
	}, nil
}

func splitKey(key string) bson.M {
	version, fingerprint := keyVersion(key), key
	if i := strings.LastIndex(key, ":"); i >= 0 {
		fingerprint = key[i+1:]
	}
	return bson.M{"fingerprint": fingerprint, "gazetteer_version": version}
}

// Get checks the LRU, then MongoDB.
func (mcs *MongoCacheService) Get(ctx context.Context, key string) (*models.AddressCache, bool, error) {
	if entry, found := mcs.l1Cache.Get(key); found {
		mcs.l1Hits.Add(1)
		return &entry, true, nil
	}
	mcs.l1Miss.Add(1)

	var entry models.AddressCache
	err := mcs.collection.FindOne(ctx, splitKey(key)).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		mcs.mongoMiss.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query address cache: %w", err)
	}
	mcs.mongoHits.Add(1)

	go mcs.updateAccessStats(entry.ID)

	mcs.l1Cache.Add(key, entry)
	return &entry, true, nil
}

// Set upserts entry into both tiers.
func (mcs *MongoCacheService) Set(ctx context.Context, key string, entry *models.AddressCache) error {
	if entry == nil {
		return nil
	}
	mcs.l1Cache.Add(key, *entry)

	doc := *entry
	doc.ID = primitive.NilObjectID
	filter := splitKey(key)
	doc.Fingerprint = filter["fingerprint"].(string)
	doc.GazetteerVersion = filter["gazetteer_version"].(string)

	_, err := mcs.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		mcs.logger.Error("failed to store cached parse", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to store cached parse: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (mcs *MongoCacheService) Delete(ctx context.Context, key string) error {
	mcs.l1Cache.Remove(key)

	if _, err := mcs.collection.DeleteOne(ctx, splitKey(key)); err != nil {
		return fmt.Errorf("failed to delete cached parse: %w", err)
	}
	return nil
}

// Clear removes every entry that was not manually verified.
func (mcs *MongoCacheService) Clear(ctx context.Context) error {
	mcs.l1Cache.Purge()

	if _, err := mcs.collection.DeleteMany(ctx, bson.M{"manually_verified": bson.M{"$ne": true}}); err != nil {
		return fmt.Errorf("failed to clear address cache: %w", err)
	}
	return nil
}

// InvalidateByGazetteerVersion drops entries of other versions. Manual
// corrections survive a version change.
func (mcs *MongoCacheService) InvalidateByGazetteerVersion(ctx context.Context, currentVersion string) error {
	mcs.l1Cache.Purge()

	filter := bson.M{
		"gazetteer_version": bson.M{"$ne": currentVersion},
		"manually_verified": bson.M{"$ne": true},
	}
	result, err := mcs.collection.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to invalidate address cache: %w", err)
	}

	mcs.logger.Info("invalidated address cache",
		zap.String("gazetteer_version", currentVersion),
		zap.Int64("deleted_count", result.DeletedCount))
	return nil
}

// GetStats reports both tiers.
func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	count, err := mcs.collection.EstimatedDocumentCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count address cache: %w", err)
	}

	hits := mcs.l1Hits.Load() + mcs.mongoHits.Load()
	return newCacheStats(CacheBackendMongo, hits, mcs.mongoMiss.Load(), count), nil
}

// GetL1Stats breaks the counters down per tier.
func (mcs *MongoCacheService) GetL1Stats() map[string]interface{} {
	return map[string]interface{}{
		"l1_size":    mcs.l1Cache.Len(),
		"l1_hits":    mcs.l1Hits.Load(),
		"l1_miss":    mcs.l1Miss.Load(),
		"mongo_hits": mcs.mongoHits.Load(),
		"mongo_miss": mcs.mongoMiss.Load(),
	}
}

// Exists checks the LRU, then MongoDB.
func (mcs *MongoCacheService) Exists(ctx context.Context, key string) (bool, error) {
	if mcs.l1Cache.Contains(key) {
		return true, nil
	}

	count, err := mcs.collection.CountDocuments(ctx, splitKey(key), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check address cache: %w", err)
	}
	return count > 0, nil
}

// GetTTL is always 0: entries live until invalidated.
func (mcs *MongoCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, nil
}

// Close is a no-op. The client belongs to the caller.
func (mcs *MongoCacheService) Close() error {
	return nil
}

func (mcs *MongoCacheService) updateAccessStats(id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"last_accessed": time.Now()},
		"$inc": bson.M{"access_count": 1},
	}
	if _, err := mcs.collection.UpdateByID(ctx, id, update); err != nil {
		mcs.logger.Warn("failed to update cache access stats", zap.Error(err))
	}
}

// WarmUp loads the most used entries of currentVersion into the LRU.
func (mcs *MongoCacheService) WarmUp(ctx context.Context, currentVersion string, limit int) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := mcs.collection.Find(ctx, bson.M{"gazetteer_version": currentVersion}, opts)
	if err != nil {
		return fmt.Errorf("failed to warm up cache: %w", err)
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var entry models.AddressCache
		if err := cursor.Decode(&entry); err != nil {
			mcs.logger.Warn("failed to decode cache entry during warm up", zap.Error(err))
			continue
		}
		mcs.l1Cache.Add(entry.GazetteerVersion+":"+entry.Fingerprint, entry)
		count++
	}

	mcs.logger.Info("cache warm up finished",
		zap.Int("loaded_items", count),
		zap.Int("l1_size", mcs.l1Cache.Len()))
	return cursor.Err()
}
