package services

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/app/requests"
	"github.com/mn-address-parser/helpers/utils"
	"github.com/mn-address-parser/internal/external"
	"github.com/mn-address-parser/internal/normalizer"
	"github.com/mn-address-parser/internal/parser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotFinished is returned when results are requested too early.
	ErrJobNotFinished = errors.New("job has not finished")
	// ErrSearchDisabled is returned when no search index is configured.
	ErrSearchDisabled = errors.New("district search is disabled")
)

// Job states.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// DistrictIndex serves district suggestions. GazetteerSearcher implements it.
type DistrictIndex interface {
	Suggest(ctx context.Context, query string, limit int) ([]models.AdminUnit, error)
	BuildIndexes(synonyms map[string][]string) (int64, error)
	SeedData(units []models.AdminUnit) ([]int64, error)
	Health() error
}

// ParseOutcome is one parsed address with its service-level metadata.
type ParseOutcome struct {
	Raw        string                `json:"raw"`
	Normalized string                `json:"normalized"`
	Result     *models.ParsedAddress `json:"result"`
	Trusted    bool                  `json:"trusted"`
	CacheHit   bool                  `json:"cache_hit"`
	Trace      *models.ParseTrace    `json:"trace,omitempty"`
}

// JobStatus tracks a batch job.
type JobStatus struct {
	JobID              string
	Status             string
	Progress           float64
	Processed          int
	Total              int
	Trusted            int
	EstimatedRemaining int
	Message            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ServiceOptions configure AddressService.
type ServiceOptions struct {
	TrustedMinConfidence float64
	Workers              int
}

// ParseStats summarizes the parses served since start.
type ParseStats struct {
	TotalParsed   int64            `json:"total_parsed"`
	CacheHits     int64            `json:"cache_hits"`
	Trusted       int64            `json:"trusted"`
	Untrusted     int64            `json:"untrusted"`
	Queued        int64            `json:"queued_for_review"`
	ByPattern     map[string]int64 `json:"by_pattern"`
	AvgParseUs    float64          `json:"avg_parse_us"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
}

// AddressService parses addresses on behalf of the HTTP API and the CLI.
type AddressService struct {
	parser     *parser.AddressParser
	cache      ICacheService
	reviews    *ReviewService
	searcher   DistrictIndex
	logger     *zap.Logger
	trustedMin float64
	workers    int
	startTime  time.Time

	mu         sync.RWMutex
	jobs       map[string]*JobStatus
	jobResults map[string][]*ParseOutcome

	totalParsed atomic.Int64
	cacheHits   atomic.Int64
	trusted     atomic.Int64
	queued      atomic.Int64
	parseNanos  atomic.Int64
	patternMu   sync.Mutex
	byPattern   map[string]int64
}

// NewAddressService wires the parser to its collaborators. cache, reviews
// and searcher may be nil.
func NewAddressService(p *parser.AddressParser, cache ICacheService, reviews *ReviewService, searcher DistrictIndex, opts ServiceOptions, logger *zap.Logger) *AddressService {
	if cache == nil {
		cache = NoopCacheService{}
	}
	if opts.TrustedMinConfidence <= 0 {
		opts.TrustedMinConfidence = models.DefaultTrustedConfidence
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &AddressService{
		parser:     p,
		cache:      cache,
		reviews:    reviews,
		searcher:   searcher,
		logger:     logger,
		trustedMin: opts.TrustedMinConfidence,
		workers:    opts.Workers,
		startTime:  time.Now(),
		jobs:       make(map[string]*JobStatus),
		jobResults: make(map[string][]*ParseOutcome),
		byPattern:  make(map[string]int64),
	}
}

// GazetteerVersion is the version of the alias table in use.
func (as *AddressService) GazetteerVersion() string {
	return as.parser.Table().Version()
}

// ParseOne parses raw, consulting the cache first when asked to. An empty
// address is not an error; it yields the default result. Cache and review
// failures are logged and never fail the parse.
func (as *AddressService) ParseOne(ctx context.Context, raw string, opts requests.ParseOptions) (*ParseOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := normalizer.Normalize(raw)
	cacheable := opts.UseCache && normalized != ""
	key := CacheKey(as.GazetteerVersion(), normalized)

	if cacheable && !opts.Explain {
		entry, found, err := as.cache.Get(ctx, key)
		if err != nil {
			as.logger.Warn("cache lookup failed", zap.Error(err))
		} else if found {
			result := entry.Result
			outcome := &ParseOutcome{
				Raw:        raw,
				Normalized: normalized,
				Result:     &result,
				Trusted:    entry.Trusted,
				CacheHit:   true,
			}
			as.record(outcome, 0)
			return outcome, nil
		}
	}

	start := time.Now()
	outcome := &ParseOutcome{Raw: raw, Normalized: normalized}
	if opts.Explain {
		outcome.Result, outcome.Trace = as.parser.ParseWithTrace(raw)
	} else {
		outcome.Result = as.parser.Parse(raw)
	}
	elapsed := time.Since(start)
	outcome.Trusted = outcome.Result.Trusted(as.trustedMin)

	if cacheable {
		entry := models.NewAddressCache(Fingerprint(normalized), raw, normalized,
			normalizer.Latin(normalized), *outcome.Result, outcome.Trusted, as.GazetteerVersion())
		if err := as.cache.Set(ctx, key, entry); err != nil {
			as.logger.Warn("failed to cache parse", zap.Error(err))
		}
	}

	if !outcome.Trusted && as.reviews != nil && normalized != "" {
		review, err := as.reviews.Enqueue(ctx, raw, normalized, *outcome.Result)
		if err != nil {
			as.logger.Warn("failed to queue review", zap.Error(err))
		} else if review != nil {
			as.queued.Add(1)
		}
	}

	as.record(outcome, elapsed)
	return outcome, nil
}

func (as *AddressService) record(outcome *ParseOutcome, elapsed time.Duration) {
	as.totalParsed.Add(1)
	if outcome.CacheHit {
		as.cacheHits.Add(1)
	} else {
		as.parseNanos.Add(int64(elapsed))
	}
	if outcome.Trusted {
		as.trusted.Add(1)
	}

	as.patternMu.Lock()
	as.byPattern[outcome.Result.MatchedPattern]++
	as.patternMu.Unlock()
}

// ParseAll parses addresses with a bounded worker pool. Results are in
// input order. progress, when set, is called after each address.
func (as *AddressService) ParseAll(ctx context.Context, addresses []string, opts requests.ParseOptions, workers int, progress func(done int, outcome *ParseOutcome)) ([]*ParseOutcome, error) {
	if workers <= 0 {
		workers = as.workers
	}

	results := make([]*ParseOutcome, len(addresses))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, raw := range addresses {
		i, raw := i, raw
		g.Go(func() error {
			outcome, err := as.ParseOne(gctx, raw, opts)
			if err != nil {
				return err
			}
			results[i] = outcome
			n := done.Add(1)
			if progress != nil {
				progress(int(n), outcome)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SubmitJob registers a batch job and runs it in the background.
func (as *AddressService) SubmitJob(addresses []string, opts requests.ParseOptions) *JobStatus {
	now := time.Now()
	job := &JobStatus{
		JobID:     utils.GenerateUUID(),
		Status:    JobStatusPending,
		Total:     len(addresses),
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}

	as.mu.Lock()
	as.jobs[job.JobID] = job
	snapshot := *job
	as.mu.Unlock()

	go as.ProcessBatchJob(context.Background(), job.JobID, addresses, opts)
	return &snapshot
}

// ProcessBatchJob runs a registered job to completion.
func (as *AddressService) ProcessBatchJob(ctx context.Context, jobID string, addresses []string, opts requests.ParseOptions) {
	started := time.Now()
	as.updateJob(jobID, func(job *JobStatus) {
		job.Status = JobStatusRunning
		job.Message = "processing"
	})

	var trusted atomic.Int64
	results, err := as.ParseAll(ctx, addresses, opts, as.workers, func(done int, outcome *ParseOutcome) {
		if outcome.Trusted {
			trusted.Add(1)
		}
		as.updateJob(jobID, func(job *JobStatus) {
			if done <= job.Processed {
				return
			}
			job.Processed = done
			job.Trusted = int(trusted.Load())
			job.Progress = float64(done) / float64(job.Total)
			perItem := time.Since(started) / time.Duration(done)
			job.EstimatedRemaining = int((perItem * time.Duration(job.Total-done)).Seconds())
		})
	})

	if err != nil {
		as.logger.Error("batch job failed", zap.String("job_id", jobID), zap.Error(err))
		as.updateJob(jobID, func(job *JobStatus) {
			job.Status = JobStatusFailed
			job.Message = err.Error()
		})
		return
	}

	as.mu.Lock()
	as.jobResults[jobID] = results
	if job, ok := as.jobs[jobID]; ok {
		job.Status = JobStatusDone
		job.Progress = 1
		job.Processed = len(results)
		job.Trusted = int(trusted.Load())
		job.EstimatedRemaining = 0
		job.Message = "completed"
		job.UpdatedAt = time.Now()
	}
	as.mu.Unlock()

	as.logger.Info("batch job completed",
		zap.String("job_id", jobID),
		zap.Int("total_addresses", len(addresses)),
		zap.Int64("trusted", trusted.Load()),
		zap.Duration("duration", time.Since(started)))
}

func (as *AddressService) updateJob(jobID string, f func(*JobStatus)) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if job, ok := as.jobs[jobID]; ok {
		f(job)
		job.UpdatedAt = time.Now()
	}
}

// EstimateBatchProcessingTime guesses a job's duration in whole seconds from
// the average parse time seen so far.
func (as *AddressService) EstimateBatchProcessingTime(addressCount int) int {
	perItem := time.Millisecond
	parsed := as.totalParsed.Load() - as.cacheHits.Load()
	if parsed > 0 {
		perItem = time.Duration(as.parseNanos.Load() / parsed)
	}
	total := perItem * time.Duration(addressCount) / time.Duration(as.workers)
	return int((total + time.Second - 1) / time.Second)
}

// GetJobStatus returns a copy of the job's state.
func (as *AddressService) GetJobStatus(jobID string) (*JobStatus, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	job, exists := as.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// GetJobResults returns a finished job's results in input order.
func (as *AddressService) GetJobResults(jobID string) ([]*ParseOutcome, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	if _, exists := as.jobs[jobID]; !exists {
		return nil, ErrJobNotFound
	}
	results, done := as.jobResults[jobID]
	if !done {
		return nil, ErrJobNotFinished
	}
	return results, nil
}

// GetJobResultsStream yields a finished job's results one at a time. The
// channel closes when ctx ends or the results run out.
func (as *AddressService) GetJobResultsStream(ctx context.Context, jobID string) (<-chan *ParseOutcome, error) {
	results, err := as.GetJobResults(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan *ParseOutcome, 100)
	go func() {
		defer close(ch)
		for _, result := range results {
			select {
			case ch <- result:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Compare parses raw with both this parser and libpostal. It bypasses the
// cache and the review queue.
func (as *AddressService) Compare(ctx context.Context, raw string) (*ParseOutcome, external.LP, error) {
	if err := ctx.Err(); err != nil {
		return nil, external.LP{}, err
	}
	outcome := &ParseOutcome{Raw: raw, Normalized: normalizer.Normalize(raw)}
	outcome.Result, outcome.Trace = as.parser.ParseWithTrace(raw)
	outcome.Trusted = outcome.Result.Trusted(as.trustedMin)

	lp, err := external.ExtractWithLibpostal(raw)
	if err != nil {
		return outcome, external.LP{}, err
	}
	return outcome, lp, nil
}

// SuggestDistricts asks the search index for districts resembling query.
func (as *AddressService) SuggestDistricts(ctx context.Context, query string, limit int) ([]models.AdminUnit, error) {
	if as.searcher == nil {
		return nil, ErrSearchDisabled
	}
	return as.searcher.Suggest(ctx, query, limit)
}

// GetStartTime is when the service was created.
func (as *AddressService) GetStartTime() time.Time {
	return as.startTime
}

// GetStats snapshots the parse counters.
func (as *AddressService) GetStats() ParseStats {
	total := as.totalParsed.Load()
	hits := as.cacheHits.Load()
	trusted := as.trusted.Load()

	stats := ParseStats{
		TotalParsed:   total,
		CacheHits:     hits,
		Trusted:       trusted,
		Untrusted:     total - trusted,
		Queued:        as.queued.Load(),
		ByPattern:     make(map[string]int64),
		UptimeSeconds: int64(time.Since(as.startTime).Seconds()),
		StartTime:     as.startTime.Format(time.RFC3339),
	}
	if parsed := total - hits; parsed > 0 {
		stats.AvgParseUs = float64(as.parseNanos.Load()) / float64(parsed) / 1e3
	}

	as.patternMu.Lock()
	for k, v := range as.byPattern {
		stats.ByPattern[k] = v
	}
	as.patternMu.Unlock()
	return stats
}
