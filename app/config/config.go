package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the full service configuration.
type AppConfig struct {
	App         AppSection `mapstructure:"app" yaml:"app" json:"app"`
	Parser      ParserCfg  `mapstructure:"parser" yaml:"parser" json:"parser"`
	Cache       CacheCfg   `mapstructure:"cache" yaml:"cache" json:"cache"`
	Redis       RedisCfg   `mapstructure:"redis" yaml:"redis" json:"redis"`
	Mongo       MongoCfg   `mapstructure:"mongo" yaml:"mongo" json:"mongo"`
	Meilisearch MeiliCfg   `mapstructure:"meilisearch" yaml:"meilisearch" json:"meilisearch"`
	Batch       BatchCfg   `mapstructure:"batch" yaml:"batch" json:"batch"`
	Review      ReviewCfg  `mapstructure:"review" yaml:"review" json:"review"`
}

type AppSection struct {
	Port string `mapstructure:"port" yaml:"port" json:"port"`
	Env  string `mapstructure:"env" yaml:"env" json:"env"`
	// RateLimit is requests per second across /v1; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst" json:"rate_burst"`
}

// ParserCfg tunes the address parser.
type ParserCfg struct {
	FuzzyThreshold       float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
	Similarity           string  `mapstructure:"similarity" yaml:"similarity" json:"similarity"`
	Confidence           float64 `mapstructure:"confidence" yaml:"confidence" json:"confidence"`
	TrustedMinConfidence float64 `mapstructure:"trusted_min_confidence" yaml:"trusted_min_confidence" json:"trusted_min_confidence"`
	DistrictsFile        string  `mapstructure:"districts_file" yaml:"districts_file" json:"districts_file"`
}

type CacheCfg struct {
	Backend string        `mapstructure:"backend" yaml:"backend" json:"backend"`
	L1Size  int           `mapstructure:"l1_size" yaml:"l1_size" json:"l1_size"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

type RedisCfg struct {
	URL string `mapstructure:"url" yaml:"url" json:"url"`
}

// MongoCfg is used whenever Enabled is set or the cache backend needs it.
type MongoCfg struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	URL      string `mapstructure:"url" yaml:"url" json:"url"`
	Database string `mapstructure:"database" yaml:"database" json:"database"`
}

type MeiliCfg struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	URL       string        `mapstructure:"url" yaml:"url" json:"url"`
	MasterKey string        `mapstructure:"master_key" yaml:"master_key" json:"-"`
	Index     string        `mapstructure:"index" yaml:"index" json:"index"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

type BatchCfg struct {
	MaxAddresses int `mapstructure:"max_addresses" yaml:"max_addresses" json:"max_addresses"`
	Workers      int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

type ReviewCfg struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// C is the configuration loaded by Load.
var C AppConfig

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.rate_limit", 0)
	v.SetDefault("app.rate_burst", 50)

	v.SetDefault("parser.fuzzy_threshold", 0.85)
	v.SetDefault("parser.similarity", "lcs")
	v.SetDefault("parser.confidence", 0.98)
	v.SetDefault("parser.trusted_min_confidence", 0.95)
	v.SetDefault("parser.districts_file", "")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.l1_size", 10000)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("mongo.enabled", false)
	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "address_parser")

	v.SetDefault("meilisearch.enabled", false)
	v.SetDefault("meilisearch.url", "http://localhost:7700")
	v.SetDefault("meilisearch.master_key", "")
	v.SetDefault("meilisearch.index", "admin_units")
	v.SetDefault("meilisearch.timeout", 30*time.Second)

	v.SetDefault("batch.max_addresses", 20000)
	v.SetDefault("batch.workers", runtime.NumCPU())

	v.SetDefault("review.enabled", false)
}

// New reads app.yaml from ./config or the working directory (or path, when
// set) and applies environment overrides such as PARSER_FUZZY_THRESHOLD or
// REDIS_URL. A missing file is not an error.
func New(path string) (*AppConfig, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load populates C.
func Load(path string) error {
	cfg, err := New(path)
	if err != nil {
		return err
	}
	C = *cfg
	return nil
}

// Validate rejects settings the services cannot run with.
func (c *AppConfig) Validate() error {
	if c.Parser.FuzzyThreshold < 0 || c.Parser.FuzzyThreshold > 1 {
		return fmt.Errorf("parser.fuzzy_threshold must be within [0, 1], got %v", c.Parser.FuzzyThreshold)
	}
	if c.Parser.Confidence <= 0 || c.Parser.Confidence > 1 {
		return fmt.Errorf("parser.confidence must be within (0, 1], got %v", c.Parser.Confidence)
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis", "mongo", "hybrid":
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.App.RateLimit < 0 {
		return fmt.Errorf("app.rate_limit must not be negative, got %v", c.App.RateLimit)
	}
	if c.Batch.MaxAddresses <= 0 {
		return fmt.Errorf("batch.max_addresses must be positive, got %d", c.Batch.MaxAddresses)
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = runtime.NumCPU()
	}
	return nil
}

// NeedsMongo reports whether any configured component stores data in MongoDB.
func (c *AppConfig) NeedsMongo() bool {
	return c.Mongo.Enabled || c.Cache.Backend == "mongo" || c.Cache.Backend == "hybrid"
}

// IsProduction reports whether app.env is "production".
func (c *AppConfig) IsProduction() bool {
	return c.App.Env == "production"
}

// RequestTimeout bounds one parse request including cache round trips.
func RequestTimeout() time.Duration { return 1500 * time.Millisecond }
