package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/helpers/utils"
	"github.com/mn-address-parser/internal/normalizer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const addressReviewCollection = "address_review"

// ErrReviewNotFound is returned for unknown review ids.
var ErrReviewNotFound = errors.New("review not found")

// ErrReviewClosed is returned when acting on an already reviewed item.
var ErrReviewClosed = errors.New("review is already completed")

// IReviewStore persists review items.
type IReviewStore interface {
	// InsertPending stores review unless a pending review for the same
	// normalized text exists. It reports whether review was stored.
	InsertPending(ctx context.Context, review *models.AddressReview) (bool, error)
	Get(ctx context.Context, id string) (*models.AddressReview, error)
	Update(ctx context.Context, review *models.AddressReview) error
	List(ctx context.Context, status string, limit, offset int) ([]models.AddressReview, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// MemoryReviewStore keeps reviews in process. Used when Mongo is not
// configured and in tests.
type MemoryReviewStore struct {
	mu      sync.RWMutex
	reviews map[string]models.AddressReview
	order   []string
}

func NewMemoryReviewStore() *MemoryReviewStore {
	return &MemoryReviewStore{reviews: make(map[string]models.AddressReview)}
}

// InsertPending checks and inserts under one lock.
func (s *MemoryReviewStore) InsertPending(ctx context.Context, review *models.AddressReview) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reviews[review.ID]; exists {
		return false, fmt.Errorf("review %s already exists", review.ID)
	}
	for _, r := range s.reviews {
		if r.Normalized == review.Normalized && r.IsPending() {
			return false, nil
		}
	}
	s.reviews[review.ID] = *review
	s.order = append(s.order, review.ID)
	return true, nil
}

func (s *MemoryReviewStore) Get(ctx context.Context, id string) (*models.AddressReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	review, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	return &review, nil
}

func (s *MemoryReviewStore) Update(ctx context.Context, review *models.AddressReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[review.ID]; !ok {
		return ErrReviewNotFound
	}
	s.reviews[review.ID] = *review
	return nil
}

// List returns reviews oldest first.
func (s *MemoryReviewStore) List(ctx context.Context, status string, limit, offset int) ([]models.AddressReview, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.AddressReview
	for _, id := range s.order {
		r := s.reviews[id]
		if status == "" || r.Status == status {
			matched = append(matched, r)
		}
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.AddressReview{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *MemoryReviewStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, r := range s.reviews {
		counts[r.Status]++
	}
	return counts, nil
}

// MongoReviewStore keeps reviews in the address_review collection.
type MongoReviewStore struct {
	collection *mongo.Collection
}

// NewMongoReviewStore creates the collection indexes. The partial unique
// index on normalized allows one pending review per text.
func NewMongoReviewStore(db *mongo.Database, logger *zap.Logger) *MongoReviewStore {
	collection := db.Collection(addressReviewCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{
			Keys: bson.D{{Key: "normalized", Value: 1}},
			Options: options.Index().
				SetName("normalized_pending_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.ReviewStatusPending}),
		},
	})
	if err != nil {
		logger.Warn("failed to create address_review indexes", zap.Error(err))
	}
	return &MongoReviewStore{collection: collection}
}

// InsertPending relies on the partial unique index: a duplicate key means
// the text is already queued.
func (s *MongoReviewStore) InsertPending(ctx context.Context, review *models.AddressReview) (bool, error) {
	if _, err := s.collection.InsertOne(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert review: %w", err)
	}
	return true, nil
}

func (s *MongoReviewStore) Get(ctx context.Context, id string) (*models.AddressReview, error) {
	var review models.AddressReview
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	return &review, nil
}

func (s *MongoReviewStore) Update(ctx context.Context, review *models.AddressReview) error {
	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": review.ID}, review)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (s *MongoReviewStore) List(ctx context.Context, status string, limit, offset int) ([]models.AddressReview, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []models.AddressReview{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, 0, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, total, nil
}

func (s *MongoReviewStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode review counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ReviewService queues untrusted parses and applies operator decisions.
// Decisions are written to the cache as manually verified entries, so the
// next parse of the same text returns them.
type ReviewService struct {
	store            IReviewStore
	cache            ICacheService
	gazetteerVersion string
	logger           *zap.Logger
}

func NewReviewService(store IReviewStore, cache ICacheService, gazetteerVersion string, logger *zap.Logger) *ReviewService {
	if cache == nil {
		cache = NoopCacheService{}
	}
	return &ReviewService{
		store:            store,
		cache:            cache,
		gazetteerVersion: gazetteerVersion,
		logger:           logger,
	}
}

// Enqueue queues result unless the same normalized text is already pending.
// It returns nil, nil for a duplicate.
func (rs *ReviewService) Enqueue(ctx context.Context, raw, normalized string, result models.ParsedAddress) (*models.AddressReview, error) {
	review := models.NewAddressReview(utils.GenerateUUID(), raw, normalized, result)
	inserted, err := rs.store.InsertPending(ctx, review)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}

	rs.logger.Debug("queued address for review",
		zap.String("review_id", review.ID),
		zap.String("normalized", normalized),
		zap.String("pattern", result.MatchedPattern))
	return review, nil
}

// List pages through reviews of one status, or all when status is empty.
func (rs *ReviewService) List(ctx context.Context, status string, limit, offset int) ([]models.AddressReview, int64, error) {
	if status != "" && !(&models.AddressReview{Status: status}).IsValidStatus() {
		return nil, 0, fmt.Errorf("unknown review status %q", status)
	}
	return rs.store.List(ctx, status, limit, offset)
}

// Counts returns the number of reviews per status.
func (rs *ReviewService) Counts(ctx context.Context) (map[string]int64, error) {
	return rs.store.CountByStatus(ctx)
}

// Approve accepts the automatic result.
func (rs *ReviewService) Approve(ctx context.Context, id, reviewerID string) (*models.AddressReview, error) {
	return rs.complete(ctx, id, func(r *models.AddressReview) { r.Approve(reviewerID) })
}

// Correct stores an operator's result. Block defaults to "0" and the
// pattern to "none" when left empty.
func (rs *ReviewService) Correct(ctx context.Context, id string, manual models.ParsedAddress, reviewerID string) (*models.AddressReview, error) {
	if manual.Block == "" {
		manual.Block = models.DefaultBlock
	}
	if manual.MatchedPattern == "" {
		manual.MatchedPattern = models.PatternNone
	}
	manual.District = normalizer.Normalize(manual.District)
	return rs.complete(ctx, id, func(r *models.AddressReview) { r.SetManualResult(manual, reviewerID) })
}

func (rs *ReviewService) complete(ctx context.Context, id string, apply func(*models.AddressReview)) (*models.AddressReview, error) {
	if !utils.IsUUID(id) {
		return nil, ErrReviewNotFound
	}
	review, err := rs.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.IsCompleted() {
		return nil, ErrReviewClosed
	}

	apply(review)
	if err := rs.store.Update(ctx, review); err != nil {
		return nil, err
	}

	entry := models.NewAddressCache(
		Fingerprint(review.Normalized),
		review.RawAddress,
		review.Normalized,
		normalizer.Latin(review.Normalized),
		review.FinalResult(),
		true,
		rs.gazetteerVersion,
	)
	entry.ManuallyVerified = true
	if err := rs.cache.Set(ctx, CacheKey(rs.gazetteerVersion, review.Normalized), entry); err != nil {
		rs.logger.Warn("failed to cache reviewed address", zap.Error(err), zap.String("review_id", id))
	}

	rs.logger.Info("review completed",
		zap.String("review_id", id),
		zap.String("status", review.Status))
	return review, nil
}
