package services

import (
	"context"
	"sync"
	"testing"

	"github.com/mn-address-parser/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReviewService(cache ICacheService) *ReviewService {
	return NewReviewService(NewMemoryReviewStore(), cache, "2024.1", zap.NewNop())
}

func TestReviewService_EnqueueDeduplicatesPending(t *testing.T) {
	ctx := context.Background()
	rs := newTestReviewService(nil)
	result := *models.NewEmptyParsedAddress()

	first, err := rs.Enqueue(ctx, "тоот 25", "ТООТ 25", result)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.ReviewStatusPending, first.Status)

	dup, err := rs.Enqueue(ctx, "ТООТ  25", "ТООТ 25", result)
	require.NoError(t, err)
	assert.Nil(t, dup)

	reviews, total, err := rs.List(ctx, models.ReviewStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reviews, 1)
	assert.Equal(t, first.ID, reviews[0].ID)
}

func TestReviewService_EnqueueConcurrentSameText(t *testing.T) {
	ctx := context.Background()
	rs := newTestReviewService(nil)
	result := *models.NewEmptyParsedAddress()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		queued int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			review, err := rs.Enqueue(ctx, "тоот 25", "ТООТ 25", result)
			assert.NoError(t, err)
			if review != nil {
				mu.Lock()
				queued++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, queued)
	counts, err := rs.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.ReviewStatusPending])
}

func TestReviewService_ApproveCachesResult(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(0)
	rs := newTestReviewService(cache)

	auto := models.ParsedAddress{District: "БАЯНЗҮРХ", Building: 15, Block: "0", Door: 45, Confidence: 0.98, MatchedPattern: models.PatternBuildingDoor}
	review, err := rs.Enqueue(ctx, "бзд 15 байр 45 тоот", "БЗД 15 БАЙР 45 ТООТ", auto)
	require.NoError(t, err)

	approved, err := rs.Approve(ctx, review.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewerID)
	assert.Equal(t, "operator-1", *approved.ReviewerID)
	assert.NotNil(t, approved.ReviewedAt)

	entry, found, err := cache.Get(ctx, CacheKey("2024.1", "БЗД 15 БАЙР 45 ТООТ"))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, entry.ManuallyVerified)
	assert.Equal(t, auto, entry.Result)

	_, err = rs.Approve(ctx, review.ID, "operator-2")
	assert.ErrorIs(t, err, ErrReviewClosed)
}

func TestReviewService_CorrectFillsDefaults(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(0)
	rs := newTestReviewService(cache)

	review, err := rs.Enqueue(ctx, "тоот 25", "ТООТ 25", *models.NewEmptyParsedAddress())
	require.NoError(t, err)

	manual := models.ParsedAddress{District: "баянгол", SubDistrictID: 4, Building: 22, Door: 25, Confidence: 1}
	corrected, err := rs.Correct(ctx, review.ID, manual, "operator-1")
	require.NoError(t, err)

	final := corrected.FinalResult()
	assert.Equal(t, "БАЯНГОЛ", final.District)
	assert.Equal(t, models.DefaultBlock, final.Block)
	assert.Equal(t, models.PatternNone, final.MatchedPattern)

	entry, found, err := cache.Get(ctx, CacheKey("2024.1", "ТООТ 25"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, final, entry.Result)
}

func TestReviewService_Errors(t *testing.T) {
	ctx := context.Background()
	rs := newTestReviewService(nil)

	_, err := rs.Approve(ctx, "missing", "op")
	assert.ErrorIs(t, err, ErrReviewNotFound)

	_, err = rs.Approve(ctx, "7f1c3a52-0d4e-4c1b-9a55-2f8f3d6b9e01", "op")
	assert.ErrorIs(t, err, ErrReviewNotFound)

	_, _, err = rs.List(ctx, "bogus", 10, 0)
	assert.Error(t, err)
}

func TestReviewService_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	rs := newTestReviewService(nil)

	var ids []string
	for _, n := range []string{"A", "B", "C"} {
		r, err := rs.Enqueue(ctx, n, n, *models.NewEmptyParsedAddress())
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	_, err := rs.Approve(ctx, ids[1], "op")
	require.NoError(t, err)

	all, total, err := rs.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	page, total, err := rs.List(ctx, models.ReviewStatusPending, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)

	empty, _, err := rs.List(ctx, models.ReviewStatusPending, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	counts, err := rs.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.ReviewStatusPending])
	assert.Equal(t, int64(1), counts[models.ReviewStatusApproved])
}
