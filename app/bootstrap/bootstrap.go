// Package bootstrap builds the shared components of the api and worker
// binaries from an AppConfig.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/mn-address-parser/app/config"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/parser"
	"github.com/mn-address-parser/internal/search"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// InitLogger returns a production logger for env "production" and a
// development logger otherwise.
func InitLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// LoadTable returns the built-in alias table, or the one at
// parser.districts_file when set. Overlap warnings are logged.
func LoadTable(cfg *config.AppConfig, logger *zap.Logger) (*gazetteer.Table, error) {
	table := gazetteer.Default()
	if path := cfg.Parser.DistrictsFile; path != "" {
		var err error
		if table, err = gazetteer.LoadFile(path); err != nil {
			return nil, err
		}
	}

	for _, w := range table.Warnings() {
		logger.Warn("alias table overlap", zap.String("warning", w))
	}
	logger.Info("alias table loaded",
		zap.String("version", table.Version()),
		zap.Int("districts", len(table.Districts())),
		zap.Int("aliases", table.AliasCount()))
	return table, nil
}

// NewParser builds the address parser from the parser section.
func NewParser(cfg *config.AppConfig, table *gazetteer.Table, logger *zap.Logger) (*parser.AddressParser, error) {
	return parser.NewAddressParser(table, parser.Options{
		FuzzyThreshold: cfg.Parser.FuzzyThreshold,
		Similarity:     cfg.Parser.Similarity,
		Confidence:     cfg.Parser.Confidence,
	}, logger)
}

// ConnectMongo connects and pings. The caller disconnects the client.
func ConnectMongo(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info("connected to mongo", zap.String("database", cfg.Mongo.Database))
	return client.Database(cfg.Mongo.Database), nil
}

// NewSearcher connects to Meilisearch.
func NewSearcher(cfg *config.AppConfig, logger *zap.Logger) (*search.GazetteerSearcher, error) {
	return search.NewGazetteerSearcher(search.SearchConfig{
		Host:      cfg.Meilisearch.URL,
		APIKey:    cfg.Meilisearch.MasterKey,
		IndexName: cfg.Meilisearch.Index,
		Timeout:   cfg.Meilisearch.Timeout,
	}, logger)
}
