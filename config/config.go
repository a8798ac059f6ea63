package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Search     SearchConfig     `mapstructure:"search"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Resolution ResolutionConfig `mapstructure:"resolution"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Lexicon    LexiconConfig    `mapstructure:"lexicon"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the catalog store
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "memory", "postgres" or "sqlite"
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SearchConfig holds the optional Meilisearch pre-filter configuration
type SearchConfig struct {
	MeiliURL       string `mapstructure:"meili_url"`
	MeiliAPIKey    string `mapstructure:"meili_api_key"`
	Index          string `mapstructure:"index"`
	CandidateLimit int    `mapstructure:"candidate_limit"`
}

// ClassifierConfig holds the optional same-product classifier configuration.
// An empty API key disables it.
type ClassifierConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Debug             bool          `mapstructure:"debug"`
}

// ResolutionConfig holds entity resolution batch settings
type ResolutionConfig struct {
	BatchSize              int           `mapstructure:"batch_size"`
	AutoMergeThreshold     float64       `mapstructure:"auto_merge_threshold"`
	AIMinScore             float64       `mapstructure:"ai_min_score"`
	MaxAICallsPerItem      int           `mapstructure:"max_ai_calls_per_item"`
	MaxAICallsPerBatch     int           `mapstructure:"max_ai_calls_per_batch"`
	FallbackCandidateLimit int           `mapstructure:"fallback_candidate_limit"`
	MaxIdleBatches         int           `mapstructure:"max_idle_batches"`
	MaxBatches             int           `mapstructure:"max_batches"`
	Interval               time.Duration `mapstructure:"interval"`
}

// ScoringConfig holds the similarity weights
type ScoringConfig struct {
	EditWeight    float64 `mapstructure:"edit_weight"`
	JaccardWeight float64 `mapstructure:"jaccard_weight"`
}

// LexiconConfig points at an optional YAML lexicon overlay
type LexiconConfig struct {
	Path string `mapstructure:"path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load loads configuration from an optional .env file, environment variables
// and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/primerjalnik/")

	// Environment variable settings: server.port -> PRIMERJALNIK_SERVER_PORT
	v.SetEnvPrefix("PRIMERJALNIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key gets a default so
// that environment variables are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "15m")

	// Search index defaults (disabled without a URL)
	v.SetDefault("search.meili_url", "")
	v.SetDefault("search.meili_api_key", "")
	v.SetDefault("search.index", "products")
	v.SetDefault("search.candidate_limit", 200)

	// Classifier defaults (disabled without an API key)
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.base_url", "https://api.openai.com/v1")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.requests_per_minute", 60)
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.debug", false)

	// Resolution defaults
	v.SetDefault("resolution.batch_size", 25)
	v.SetDefault("resolution.auto_merge_threshold", 0.75)
	v.SetDefault("resolution.ai_min_score", 0.5)
	v.SetDefault("resolution.max_ai_calls_per_item", 2)
	v.SetDefault("resolution.max_ai_calls_per_batch", 5)
	v.SetDefault("resolution.fallback_candidate_limit", 5)
	v.SetDefault("resolution.max_idle_batches", 3)
	v.SetDefault("resolution.max_batches", 1000)
	v.SetDefault("resolution.interval", "1h")

	// Scoring defaults
	v.SetDefault("scoring.edit_weight", 0.6)
	v.SetDefault("scoring.jaccard_weight", 0.4)

	v.SetDefault("lexicon.path", "")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if config.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for driver %q (set PRIMERJALNIK_DATABASE_DSN)", config.Database.Driver)
		}
	default:
		return fmt.Errorf("database driver must be 'memory', 'postgres' or 'sqlite', got: %s", config.Database.Driver)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	r := config.Resolution
	if r.BatchSize <= 0 {
		return fmt.Errorf("resolution batch size must be positive, got: %d", r.BatchSize)
	}
	if r.AutoMergeThreshold <= 0 || r.AutoMergeThreshold > 1 {
		return fmt.Errorf("auto-merge threshold must be in (0, 1], got: %v", r.AutoMergeThreshold)
	}
	if r.AIMinScore < 0 || r.AIMinScore > r.AutoMergeThreshold {
		return fmt.Errorf("AI minimum score must be in [0, auto-merge threshold], got: %v", r.AIMinScore)
	}
	if r.MaxAICallsPerItem < 0 || r.MaxAICallsPerBatch < 0 {
		return fmt.Errorf("AI call limits must not be negative")
	}

	s := config.Scoring
	if s.EditWeight <= 0 || s.JaccardWeight <= 0 {
		return fmt.Errorf("scoring weights must be positive, got: edit=%v jaccard=%v", s.EditWeight, s.JaccardWeight)
	}

	if config.Log.Format != "json" && config.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}

	return nil
}

// ClassifierEnabled reports whether an external classifier is configured
func (c *Config) ClassifierEnabled() bool {
	return c.Classifier.APIKey != ""
}

// SearchIndexEnabled reports whether a Meilisearch pre-filter is configured
func (c *Config) SearchIndexEnabled() bool {
	return c.Search.MeiliURL != ""
}
