package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/app/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAddressService(t *testing.T, cache ICacheService, reviews *ReviewService) *AddressService {
	t.Helper()
	return NewAddressService(newTestParser(t), cache, reviews, nil, ServiceOptions{Workers: 4}, zap.NewNop())
}

func waitForJob(t *testing.T, svc *AddressService, jobID string) *JobStatus {
	t.Helper()
	var status *JobStatus
	require.Eventually(t, func() bool {
		s, err := svc.GetJobStatus(jobID)
		if err != nil {
			return false
		}
		status = s
		return status.Status == JobStatusDone || status.Status == JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestParseOne_Trusted(t *testing.T) {
	svc := newTestAddressService(t, NewCacheService(0), nil)

	outcome, err := svc.ParseOne(context.Background(), trustedAddress, requests.DefaultParseOptions())
	require.NoError(t, err)
	assert.True(t, outcome.Trusted)
	assert.False(t, outcome.CacheHit)
	assert.Nil(t, outcome.Trace)
	assert.Equal(t, "БАЯНЗҮРХ", outcome.Result.District)
	assert.Equal(t, 3, outcome.Result.SubDistrictID)
}

func TestParseOne_CacheHit(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(0)
	svc := newTestAddressService(t, cache, nil)
	opts := requests.DefaultParseOptions()

	first, err := svc.ParseOne(ctx, trustedAddress, opts)
	require.NoError(t, err)
	second, err := svc.ParseOne(ctx, "  "+trustedAddress+"  ", opts)
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, *first.Result, *second.Result)
	assert.Equal(t, first.Trusted, second.Trusted)

	stats := svc.GetStats()
	assert.Equal(t, int64(2), stats.TotalParsed)
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestParseOne_ExplainSkipsCacheRead(t *testing.T) {
	ctx := context.Background()
	svc := newTestAddressService(t, NewCacheService(0), nil)

	_, err := svc.ParseOne(ctx, trustedAddress, requests.DefaultParseOptions())
	require.NoError(t, err)

	outcome, err := svc.ParseOne(ctx, trustedAddress, requests.ParseOptions{UseCache: true, Explain: true})
	require.NoError(t, err)
	assert.False(t, outcome.CacheHit)
	assert.NotNil(t, outcome.Trace)
}

func TestParseOne_EmptyAddress(t *testing.T) {
	cache := NewCacheService(0)
	reviews := newTestReviewService(nil)
	svc := newTestAddressService(t, cache, reviews)

	outcome, err := svc.ParseOne(context.Background(), "   ", requests.DefaultParseOptions())
	require.NoError(t, err)
	assert.Equal(t, *models.NewEmptyParsedAddress(), *outcome.Result)
	assert.False(t, outcome.Trusted)
	assert.Zero(t, cache.Size())

	counts, err := reviews.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts[models.ReviewStatusPending])
}

func TestParseOne_UntrustedIsQueued(t *testing.T) {
	ctx := context.Background()
	reviews := newTestReviewService(nil)
	svc := newTestAddressService(t, NoopCacheService{}, reviews)

	for i := 0; i < 2; i++ {
		outcome, err := svc.ParseOne(ctx, untrustedAddress, requests.DefaultParseOptions())
		require.NoError(t, err)
		assert.False(t, outcome.Trusted)
		assert.Equal(t, models.PatternDoorOnly, outcome.Result.MatchedPattern)
	}

	pending, total, err := reviews.List(ctx, models.ReviewStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, untrustedAddress, pending[0].RawAddress)
	assert.Equal(t, int64(1), svc.GetStats().Queued)
}

func TestParseOne_CancelledContext(t *testing.T) {
	svc := newTestAddressService(t, NoopCacheService{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ParseOne(ctx, trustedAddress, requests.DefaultParseOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseAll_KeepsInputOrder(t *testing.T) {
	svc := newTestAddressService(t, NoopCacheService{}, nil)

	// Buildings start at 10 so none equals the khoroo number and gets stripped.
	addresses := make([]string, 50)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("БЗД 3-р хороо %d-р байр %d тоот", i+10, i+100)
	}

	var calls atomic.Int64
	outcomes, err := svc.ParseAll(context.Background(), addresses, requests.ParseOptions{}, 8, func(done int, _ *ParseOutcome) {
		calls.Add(1)
	})
	require.NoError(t, err)
	require.Len(t, outcomes, len(addresses))
	assert.Equal(t, int64(len(addresses)), calls.Load())

	for i, o := range outcomes {
		assert.Equal(t, addresses[i], o.Raw)
		assert.Equal(t, i+10, o.Result.Building)
		assert.Equal(t, i+100, o.Result.Door)
	}
}

func TestBatchJob_Lifecycle(t *testing.T) {
	svc := newTestAddressService(t, NoopCacheService{}, nil)
	addresses := []string{trustedAddress, untrustedAddress, ""}

	job := svc.SubmitJob(addresses, requests.DefaultParseOptions())
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, 3, job.Total)

	status := waitForJob(t, svc, job.JobID)
	assert.Equal(t, JobStatusDone, status.Status)
	assert.Equal(t, 3, status.Processed)
	assert.Equal(t, 1, status.Trusted)
	assert.Equal(t, 1.0, status.Progress)

	results, err := svc.GetJobResults(job.JobID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, untrustedAddress, results[1].Raw)

	stream, err := svc.GetJobResultsStream(context.Background(), job.JobID)
	require.NoError(t, err)
	var streamed []*ParseOutcome
	for o := range stream {
		streamed = append(streamed, o)
	}
	assert.Equal(t, results, streamed)
}

func TestBatchJob_Errors(t *testing.T) {
	svc := newTestAddressService(t, NoopCacheService{}, nil)

	_, err := svc.GetJobStatus("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.GetJobResults("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)

	svc.mu.Lock()
	svc.jobs["pending"] = &JobStatus{JobID: "pending", Status: JobStatusRunning, Total: 1}
	svc.mu.Unlock()

	_, err = svc.GetJobResults("pending")
	assert.ErrorIs(t, err, ErrJobNotFinished)
}

func TestEstimateBatchProcessingTime(t *testing.T) {
	svc := newTestAddressService(t, NoopCacheService{}, nil)

	assert.Equal(t, 0, svc.EstimateBatchProcessingTime(0))
	assert.GreaterOrEqual(t, svc.EstimateBatchProcessingTime(10000), 1)
}

func TestSuggestDistricts(t *testing.T) {
	svc := newTestAddressService(t, NoopCacheService{}, nil)
	_, err := svc.SuggestDistricts(context.Background(), "бзд", 5)
	assert.ErrorIs(t, err, ErrSearchDisabled)

	index := &fakeIndex{units: []models.AdminUnit{{AdminID: "BZD", Name: "БАЯНЗҮРХ"}}}
	svc = NewAddressService(newTestParser(t), NoopCacheService{}, nil, index, ServiceOptions{}, zap.NewNop())
	units, err := svc.SuggestDistricts(context.Background(), "бзд", 5)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "BZD", units[0].AdminID)
}

func TestGetStats_ByPattern(t *testing.T) {
	svc := newTestAddressService(t, NoopCacheService{}, nil)
	ctx := context.Background()

	_, err := svc.ParseOne(ctx, trustedAddress, requests.DefaultParseOptions())
	require.NoError(t, err)
	_, err = svc.ParseOne(ctx, untrustedAddress, requests.DefaultParseOptions())
	require.NoError(t, err)

	stats := svc.GetStats()
	assert.Equal(t, int64(2), stats.TotalParsed)
	assert.Equal(t, int64(1), stats.Trusted)
	assert.Equal(t, int64(1), stats.Untrusted)
	assert.Equal(t, int64(1), stats.ByPattern[models.PatternStrictBlocks])
	assert.Equal(t, int64(1), stats.ByPattern[models.PatternDoorOnly])
}
