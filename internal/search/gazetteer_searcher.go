package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/normalizer"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned for blank suggestion queries.
var ErrEmptyQuery = errors.New("search query is empty")

const seedBatchSize = 1000

// GazetteerSearcher serves district suggestions from Meilisearch.
type GazetteerSearcher struct {
	client    *ClientWrapper
	logger    *zap.Logger
	indexName string
	timeout   time.Duration
}

// SearchConfig configures the Meilisearch connection.
type SearchConfig struct {
	Host      string
	APIKey    string
	IndexName string
	Timeout   time.Duration
}

// NewGazetteerSearcher connects and checks the server health.
func NewGazetteerSearcher(config SearchConfig, logger *zap.Logger) (*GazetteerSearcher, error) {
	client := NewClientWrapper(config.Host, config.APIKey)
	if err := client.Healthy(); err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &GazetteerSearcher{
		client:    client,
		logger:    logger,
		indexName: config.IndexName,
		timeout:   config.Timeout,
	}, nil
}

// Health checks the server.
func (gs *GazetteerSearcher) Health() error {
	return gs.client.Healthy()
}

// Suggest returns up to limit districts resembling query, best first.
func (gs *GazetteerSearcher) Suggest(ctx context.Context, query string, limit int) ([]models.AdminUnit, error) {
	query = normalizer.Normalize(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := gs.client.SearchIndex(gs.indexName, query, FilterLevel(models.LevelDistrict), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("district search failed: %w", err)
	}
	return unitsFromHits(result.Hits), nil
}

// BuildIndexes applies the index settings. synonyms maps a word to the words
// Meilisearch should treat as equivalent.
func (gs *GazetteerSearcher) BuildIndexes(synonyms map[string][]string) (int64, error) {
	index := gs.client.cli.Index(gs.indexName)

	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"name", "latin_name", "aliases", "latin_aliases", "normalized_name"},
		FilterableAttributes: []string{"admin_id", "level", "parent_id", "admin_subtype", "gazetteer_version"},
		SortableAttributes:   []string{"level", "admin_id"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		Synonyms:             synonyms,
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  3,
				TwoTypos: 7,
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update index settings: %w", err)
	}

	gs.logger.Info("updated meilisearch index settings",
		zap.String("index", gs.indexName),
		zap.Int("synonym_groups", len(synonyms)),
		zap.Int64("task_uid", task.TaskUID))
	return task.TaskUID, nil
}

// SeedData adds units to the index in batches and returns the task ids.
func (gs *GazetteerSearcher) SeedData(units []models.AdminUnit) ([]int64, error) {
	if len(units) == 0 {
		return nil, errors.New("no admin units to seed")
	}

	index := gs.client.cli.Index(gs.indexName)

	documents := make([]map[string]interface{}, 0, len(units))
	for i := range units {
		documents = append(documents, unitDocument(&units[i]))
	}

	var tasks []int64
	for i := 0; i < len(documents); i += seedBatchSize {
		end := i + seedBatchSize
		if end > len(documents) {
			end = len(documents)
		}

		task, err := index.AddDocuments(documents[i:end], "id")
		if err != nil {
			return tasks, fmt.Errorf("failed to add documents %d-%d: %w", i, end, err)
		}
		tasks = append(tasks, task.TaskUID)

		gs.logger.Info("queued admin unit documents",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}
	return tasks, nil
}

// WaitForTask polls a task until it settles or ctx ends.
func (gs *GazetteerSearcher) WaitForTask(ctx context.Context, taskUID int64) error {
	ctx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		task, err := gs.client.cli.GetTask(taskUID)
		if err != nil {
			return fmt.Errorf("failed to get task %d: %w", taskUID, err)
		}
		switch task.Status {
		case meilisearch.TaskStatusSucceeded:
			return nil
		case meilisearch.TaskStatusFailed, meilisearch.TaskStatusCanceled:
			return fmt.Errorf("task %d ended with status %s", taskUID, task.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for task %d: %w", taskUID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// BuildDocuments turns the alias table into one city unit followed by its
// districts, in table order.
func BuildDocuments(table *gazetteer.Table, now time.Time) []models.AdminUnit {
	city := table.City()
	units := make([]models.AdminUnit, 0, len(table.Districts())+1)

	units = append(units, models.AdminUnit{
		AdminID:          city.Code,
		Level:            models.LevelCity,
		Name:             city.Name,
		NormalizedName:   normalizer.Normalize(city.Name),
		LatinName:        normalizer.Latin(city.Name),
		AdminSubtype:     models.AdminSubtypeCapital,
		Aliases:          table.CityMarkers(),
		LatinAliases:     latinAll(table.CityMarkers()),
		Path:             []string{},
		GazetteerVersion: table.Version(),
		CreatedAt:        now,
		UpdatedAt:        now,
	})

	for _, d := range table.Districts() {
		units = append(units, models.AdminUnit{
			AdminID:          d.Code,
			ParentID:         city.Code,
			Level:            models.LevelDistrict,
			Name:             d.Name,
			NormalizedName:   normalizer.Normalize(d.Name),
			LatinName:        normalizer.Latin(d.Name),
			AdminSubtype:     models.AdminSubtypeDistrict,
			Aliases:          d.Aliases,
			LatinAliases:     latinAll(d.Aliases),
			Path:             []string{city.Name},
			GazetteerVersion: table.Version(),
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return units
}

// Synonyms maps each district name to its aliases and learned spellings.
// Learned spellings below the high-confidence mark are left out.
func Synonyms(table *gazetteer.Table, learned []models.LearnedAliases) map[string][]string {
	synonyms := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	add := func(canonical, token string) {
		if token == "" || token == canonical {
			return
		}
		if seen[canonical] == nil {
			seen[canonical] = make(map[string]bool)
		}
		if seen[canonical][token] {
			return
		}
		seen[canonical][token] = true
		synonyms[canonical] = append(synonyms[canonical], token)
	}

	for _, d := range table.Districts() {
		for _, alias := range d.Aliases {
			add(d.Name, alias)
		}
	}
	for _, la := range learned {
		if !la.IsHighConfidence() || !la.IsValidAdminLevel() {
			continue
		}
		add(normalizer.Normalize(la.CanonicalForm), normalizer.Normalize(la.OriginalToken))
	}
	return synonyms
}

func latinAll(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		l := normalizer.Latin(w)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func unitDocument(unit *models.AdminUnit) map[string]interface{} {
	return map[string]interface{}{
		"id":                unit.AdminID,
		"admin_id":          unit.AdminID,
		"parent_id":         unit.ParentID,
		"level":             unit.Level,
		"name":              unit.Name,
		"normalized_name":   unit.NormalizedName,
		"latin_name":        unit.LatinName,
		"admin_subtype":     unit.AdminSubtype,
		"aliases":           unit.Aliases,
		"latin_aliases":     unit.LatinAliases,
		"path":              unit.Path,
		"gazetteer_version": unit.GazetteerVersion,
	}
}

func unitsFromHits(hits []interface{}) []models.AdminUnit {
	units := make([]models.AdminUnit, 0, len(hits))
	for _, hit := range hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		unit := models.AdminUnit{
			AdminID:          stringField(hitMap, "admin_id"),
			ParentID:         stringField(hitMap, "parent_id"),
			Name:             stringField(hitMap, "name"),
			NormalizedName:   stringField(hitMap, "normalized_name"),
			LatinName:        stringField(hitMap, "latin_name"),
			AdminSubtype:     stringField(hitMap, "admin_subtype"),
			GazetteerVersion: stringField(hitMap, "gazetteer_version"),
			Aliases:          stringsField(hitMap, "aliases"),
			LatinAliases:     stringsField(hitMap, "latin_aliases"),
			Path:             stringsField(hitMap, "path"),
		}
		// JSON numbers decode as float64
		if level, ok := hitMap["level"].(float64); ok {
			unit.Level = int(level)
		}
		units = append(units, unit)
	}
	return units
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringsField(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
