package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/normalizer"
	"github.com/mn-address-parser/internal/search"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	adminUnitsCollection     = "admin_units"
	learnedAliasesCollection = "learned_aliases"
)

var (
	// ErrUnknownDistrict is returned when an alias names no known district.
	ErrUnknownDistrict = errors.New("unknown district")
	// ErrUnsupportedExport is returned for unknown export types or formats.
	ErrUnsupportedExport = errors.New("unsupported export")
	// ErrStorageDisabled is returned when an operation needs MongoDB.
	ErrStorageDisabled = errors.New("mongo storage is disabled")
)

// Export formats.
const (
	ExportFormatJSON = "json"
	ExportFormatYAML = "yaml"
)

// GazetteerValidation reports problems with the alias table.
type GazetteerValidation struct {
	Passed   bool     `json:"passed"`
	Warnings []string `json:"warnings"`
	Units    int      `json:"units"`
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	GazetteerVersion string   `json:"gazetteer_version"`
	UnitsProcessed   int      `json:"units_processed"`
	IndexesBuilt     int      `json:"indexes_built"`
	Warnings         []string `json:"warnings,omitempty"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// SystemStats is the admin view of the running service.
type SystemStats struct {
	GazetteerVersion string                 `json:"gazetteer_version"`
	Parse            ParseStats             `json:"parse"`
	Cache            *CacheStats            `json:"cache,omitempty"`
	CacheTiers       map[string]interface{} `json:"cache_tiers,omitempty"`
	Reviews          map[string]int64       `json:"reviews,omitempty"`
	Database         *DatabaseStats         `json:"database,omitempty"`
	Uptime           string                 `json:"uptime"`
	MemoryUsage      map[string]interface{} `json:"memory_usage"`
	Goroutines       int                    `json:"goroutines"`
}

// DatabaseStats counts documents per collection.
type DatabaseStats struct {
	AdminUnits     int64 `json:"admin_units"`
	AddressCache   int64 `json:"address_cache"`
	AddressReview  int64 `json:"address_review"`
	LearnedAliases int64 `json:"learned_aliases"`
}

// AdminService maintains the search index, learned aliases and caches.
// db and searcher may be nil; learned aliases then live in memory.
type AdminService struct {
	db       *mongo.Database
	searcher DistrictIndex
	table    *gazetteer.Table
	cache    ICacheService
	reviews  *ReviewService
	address  *AddressService
	logger   *zap.Logger

	mu      sync.RWMutex
	learned []models.LearnedAliases
}

func NewAdminService(db *mongo.Database, searcher DistrictIndex, table *gazetteer.Table, cache ICacheService, reviews *ReviewService, address *AddressService, logger *zap.Logger) *AdminService {
	if cache == nil {
		cache = NoopCacheService{}
	}
	return &AdminService{
		db:       db,
		searcher: searcher,
		table:    table,
		cache:    cache,
		reviews:  reviews,
		address:  address,
		logger:   logger,
	}
}

// Table is the alias table the parser runs with.
func (as *AdminService) Table() *gazetteer.Table {
	return as.table
}

// ValidateGazetteer checks the documents a seed would write.
func (as *AdminService) ValidateGazetteer() *GazetteerValidation {
	units := search.BuildDocuments(as.table, time.Now())
	warnings := append([]string{}, as.table.Warnings()...)

	seenIDs := make(map[string]bool, len(units))
	for i, unit := range units {
		if unit.AdminID == "" {
			warnings = append(warnings, fmt.Sprintf("missing code for %q at index %d", unit.Name, i))
		} else if seenIDs[unit.AdminID] {
			warnings = append(warnings, fmt.Sprintf("duplicate code %s", unit.AdminID))
		}
		seenIDs[unit.AdminID] = true

		if !unit.IsValidLevel() {
			warnings = append(warnings, fmt.Sprintf("invalid level %d for %s", unit.Level, unit.AdminID))
		}
		if !unit.IsValidAdminSubtype() {
			warnings = append(warnings, fmt.Sprintf("invalid subtype %q for %s", unit.AdminSubtype, unit.AdminID))
		}
	}

	return &GazetteerValidation{
		Passed:   len(warnings) == 0,
		Warnings: warnings,
		Units:    len(units),
	}
}

// SeedGazetteer writes the city and its districts to admin_units and the
// search index. Alias overlaps are reported as warnings, not failures.
func (as *AdminService) SeedGazetteer(ctx context.Context) (*SeedResult, error) {
	if as.db == nil && as.searcher == nil {
		return nil, errors.New("neither mongo nor meilisearch is configured")
	}

	startTime := time.Now()
	version := as.table.Version()
	units := search.BuildDocuments(as.table, startTime)

	result := &SeedResult{
		GazetteerVersion: version,
		UnitsProcessed:   len(units),
		Warnings:         as.table.Warnings(),
	}

	if as.db != nil {
		collection := as.db.Collection(adminUnitsCollection)

		deleted, err := collection.DeleteMany(ctx, bson.M{"gazetteer_version": version})
		if err != nil {
			return nil, fmt.Errorf("failed to delete old admin units: %w", err)
		}

		documents := make([]interface{}, len(units))
		for i := range units {
			documents[i] = units[i]
		}
		if _, err := collection.InsertMany(ctx, documents); err != nil {
			return nil, fmt.Errorf("failed to insert admin units: %w", err)
		}

		as.logger.Info("replaced admin units",
			zap.String("gazetteer_version", version),
			zap.Int64("deleted_count", deleted.DeletedCount),
			zap.Int("inserted_count", len(units)))
	}

	if as.searcher != nil {
		if err := as.applyIndexSettings(ctx); err != nil {
			as.logger.Warn("failed to build meilisearch index", zap.Error(err))
		} else {
			result.IndexesBuilt++
		}

		if _, err := as.searcher.SeedData(units); err != nil {
			as.logger.Warn("failed to seed meilisearch", zap.Error(err))
		} else {
			result.IndexesBuilt++
		}
	}

	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	as.logger.Info("gazetteer seed completed",
		zap.String("gazetteer_version", version),
		zap.Int("units_processed", result.UnitsProcessed),
		zap.Int("indexes_built", result.IndexesBuilt),
		zap.Int64("processing_time_ms", result.ProcessingTimeMs))
	return result, nil
}

// BuildIndexes applies the search index settings, synonyms included.
func (as *AdminService) BuildIndexes(ctx context.Context) error {
	if as.searcher == nil {
		return ErrSearchDisabled
	}
	if err := as.applyIndexSettings(ctx); err != nil {
		return err
	}
	as.logger.Info("search indexes built")
	return nil
}

// RebuildSynonyms pushes table aliases plus learned aliases to the index
// and returns the number of synonym groups.
func (as *AdminService) RebuildSynonyms(ctx context.Context) (int, error) {
	if as.searcher == nil {
		return 0, ErrSearchDisabled
	}

	learned, err := as.LearnedAliases(ctx, 0)
	if err != nil {
		return 0, err
	}
	synonyms := search.Synonyms(as.table, learned)
	if _, err := as.searcher.BuildIndexes(synonyms); err != nil {
		return 0, fmt.Errorf("failed to update synonyms: %w", err)
	}

	as.logger.Info("synonyms rebuilt",
		zap.Int("synonym_groups", len(synonyms)),
		zap.Int("learned_aliases", len(learned)))
	return len(synonyms), nil
}

func (as *AdminService) applyIndexSettings(ctx context.Context) error {
	learned, err := as.LearnedAliases(ctx, 0)
	if err != nil {
		as.logger.Warn("building index without learned aliases", zap.Error(err))
		learned = nil
	}
	if _, err := as.searcher.BuildIndexes(search.Synonyms(as.table, learned)); err != nil {
		return fmt.Errorf("failed to build search index: %w", err)
	}
	return nil
}

// AddLearnedAlias records alias as another spelling of district. A repeated
// alias bumps its usage count. The running parser is not affected.
func (as *AdminService) AddLearnedAlias(ctx context.Context, alias, district string, confidence float64, source string) (*models.LearnedAliases, error) {
	d, ok := as.table.Lookup(normalizer.Normalize(district))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistrict, district)
	}
	token := normalizer.Normalize(alias)
	if token == "" {
		return nil, errors.New("alias is empty")
	}
	if source == "" {
		source = models.SourceManual
	}

	la := models.NewLearnedAliases(token, d.Name, models.LevelDistrict, d.Code, source)
	if confidence > 0 {
		la.UpdateConfidence(confidence)
	}
	if !la.IsValidSource() {
		return nil, fmt.Errorf("unknown alias source %q", source)
	}

	if as.db == nil {
		return as.addLearnedInMemory(la), nil
	}

	collection := as.db.Collection(learnedAliasesCollection)
	filter := bson.M{"original_token": la.OriginalToken, "canonical_form": la.CanonicalForm}
	update := bson.M{
		"$setOnInsert": bson.M{
			"admin_level": la.AdminLevel,
			"admin_id":    la.AdminID,
			"source":      la.Source,
			"created_at":  la.CreatedAt,
		},
		"$set": bson.M{"confidence": la.Confidence, "last_used": la.LastUsed},
		"$inc": bson.M{"usage_count": 1},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.LearnedAliases
	if err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to store learned alias: %w", err)
	}
	return &stored, nil
}

func (as *AdminService) addLearnedInMemory(la *models.LearnedAliases) *models.LearnedAliases {
	as.mu.Lock()
	defer as.mu.Unlock()

	for i := range as.learned {
		existing := &as.learned[i]
		if existing.OriginalToken == la.OriginalToken && existing.CanonicalForm == la.CanonicalForm {
			existing.UpdateUsage()
			existing.UpdateConfidence(la.Confidence)
			stored := *existing
			return &stored
		}
	}
	as.learned = append(as.learned, *la)
	return la
}

// LearnedAliases lists stored aliases, most used first. limit <= 0 means all.
func (as *AdminService) LearnedAliases(ctx context.Context, limit int) ([]models.LearnedAliases, error) {
	if as.db == nil {
		as.mu.RLock()
		defer as.mu.RUnlock()

		out := append([]models.LearnedAliases(nil), as.learned...)
		if limit > 0 && limit < len(out) {
			out = out[:limit]
		}
		return out, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "usage_count", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := as.db.Collection(learnedAliasesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load learned aliases: %w", err)
	}
	defer cursor.Close(ctx)

	var aliases []models.LearnedAliases
	if err := cursor.All(ctx, &aliases); err != nil {
		return nil, fmt.Errorf("failed to decode learned aliases: %w", err)
	}
	return aliases, nil
}

// InvalidateCache drops cache entries parsed against other table versions.
func (as *AdminService) InvalidateCache(ctx context.Context) (string, error) {
	version := as.table.Version()
	if err := as.cache.InvalidateByGazetteerVersion(ctx, version); err != nil {
		return version, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return version, nil
}

// GetSystemStats gathers parse, cache, review and database counters. Parts
// that fail are left out and logged.
func (as *AdminService) GetSystemStats(ctx context.Context) *SystemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		GazetteerVersion: as.table.Version(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
	}

	if as.address != nil {
		stats.Parse = as.address.GetStats()
		stats.Uptime = time.Since(as.address.GetStartTime()).Round(time.Second).String()
	}

	if cacheStats, err := as.cache.GetStats(ctx); err != nil {
		as.logger.Warn("failed to read cache stats", zap.Error(err))
	} else {
		stats.Cache = cacheStats
	}
	if tiered, ok := as.cache.(*MongoCacheService); ok {
		stats.CacheTiers = tiered.GetL1Stats()
	}

	if as.reviews != nil {
		if counts, err := as.reviews.Counts(ctx); err != nil {
			as.logger.Warn("failed to count reviews", zap.Error(err))
		} else {
			stats.Reviews = counts
		}
	}

	if as.db != nil {
		if dbStats, err := as.getDatabaseStats(ctx); err != nil {
			as.logger.Warn("failed to read database stats", zap.Error(err))
		} else {
			stats.Database = dbStats
		}
	}
	return stats
}

func (as *AdminService) getDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{}
	for name, dst := range map[string]*int64{
		adminUnitsCollection:     &stats.AdminUnits,
		addressCacheCollection:   &stats.AddressCache,
		addressReviewCollection:  &stats.AddressReview,
		learnedAliasesCollection: &stats.LearnedAliases,
	} {
		count, err := as.db.Collection(name).EstimatedDocumentCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		*dst = count
	}
	return stats, nil
}

// ExportData renders districts, learned_aliases or address_cache as JSON or
// YAML. It returns the body and its content type.
func (as *AdminService) ExportData(ctx context.Context, dataType, format string, limit int) ([]byte, string, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = ExportFormatJSON
	}
	if format != ExportFormatJSON && format != ExportFormatYAML {
		return nil, "", fmt.Errorf("%w: format %q", ErrUnsupportedExport, format)
	}

	var payload interface{}
	switch dataType {
	case "districts":
		if format == ExportFormatYAML {
			return encodeExport(as.table, format)
		}
		payload = map[string]interface{}{
			"version":      as.table.Version(),
			"city":         as.table.City(),
			"city_markers": as.table.CityMarkers(),
			"districts":    as.table.Districts(),
		}

	case "learned_aliases":
		aliases, err := as.LearnedAliases(ctx, limit)
		if err != nil {
			return nil, "", err
		}
		payload = aliases

	case "address_cache":
		if as.db == nil {
			return nil, "", ErrStorageDisabled
		}
		opts := options.Find().SetLimit(int64(limit))
		cursor, err := as.db.Collection(addressCacheCollection).Find(ctx, bson.M{}, opts)
		if err != nil {
			return nil, "", fmt.Errorf("failed to query address cache: %w", err)
		}
		defer cursor.Close(ctx)

		var entries []models.AddressCache
		if err := cursor.All(ctx, &entries); err != nil {
			return nil, "", fmt.Errorf("failed to decode address cache: %w", err)
		}
		payload = entries

	default:
		return nil, "", fmt.Errorf("%w: type %q", ErrUnsupportedExport, dataType)
	}
	return encodeExport(payload, format)
}

func encodeExport(payload interface{}, format string) ([]byte, string, error) {
	if format == ExportFormatYAML {
		data, err := yaml.Marshal(payload)
		return data, "application/yaml", err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	return data, "application/json", err
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
