// Package config loads and validates application configuration from YAML or
// TOML files with environment-variable overrides. It provides typed structs
// for every subsystem (Server, Redis, Postgres, Source, Kafka, Search,
// Suggest, Sync, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres" toml:"postgres"`
	Source    SourceConfig    `yaml:"source" toml:"source"`
	Kafka     KafkaConfig     `yaml:"kafka" toml:"kafka"`
	Search    SearchConfig    `yaml:"search" toml:"search"`
	Suggest   SuggestConfig   `yaml:"suggest" toml:"suggest"`
	Sync      SyncConfig      `yaml:"sync" toml:"sync"`
	RateLimit RateLimitConfig `yaml:"rateLimit" toml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" toml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" toml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins" toml:"corsOrigins"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Addr         string        `yaml:"addr" toml:"addr"`
	Password     string        `yaml:"password" toml:"password"`
	DB           int           `yaml:"db" toml:"db"`
	PoolSize     int           `yaml:"poolSize" toml:"poolSize"`
	DialTimeout  time.Duration `yaml:"dialTimeout" toml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout" toml:"readTimeout"`
	CacheEnabled bool          `yaml:"cacheEnabled" toml:"cacheEnabled"`
	CacheTTL     time.Duration `yaml:"cacheTTL" toml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters for the product
// catalog source.
type PostgresConfig struct {
	Host            string        `yaml:"host" toml:"host"`
	Port            int           `yaml:"port" toml:"port"`
	Database        string        `yaml:"database" toml:"database"`
	User            string        `yaml:"user" toml:"user"`
	Password        string        `yaml:"password" toml:"password"`
	SSLMode         string        `yaml:"sslMode" toml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns" toml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns" toml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" toml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SourceConfig selects the relational catalog the sync job reads from.
// Driver is "postgres" or "sqlite3"; SQLitePath is only used by the latter.
type SourceConfig struct {
	Driver     string `yaml:"driver" toml:"driver"`
	Table      string `yaml:"table" toml:"table"`
	SQLitePath string `yaml:"sqlitePath" toml:"sqlitePath"`
	Name       string `yaml:"name" toml:"name"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers" toml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup" toml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics" toml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest  string `yaml:"documentIngest" toml:"documentIngest"`
	AnalyticsEvents string `yaml:"analyticsEvents" toml:"analyticsEvents"`
}

// SearchConfig controls the search engine key layout and query limits.
type SearchConfig struct {
	KeyPrefix        string        `yaml:"keyPrefix" toml:"keyPrefix"`
	DefaultLimit     int           `yaml:"defaultLimit" toml:"defaultLimit"`
	MaxResults       int           `yaml:"maxResults" toml:"maxResults"`
	DefaultDistance  int           `yaml:"defaultDistance" toml:"defaultDistance"`
	MaxFuzzyDistance int           `yaml:"maxFuzzyDistance" toml:"maxFuzzyDistance"`
	FuzzyTimeout     time.Duration `yaml:"fuzzyTimeout" toml:"fuzzyTimeout"`

	// SlowQueryThreshold logs the stage breakdown of slower searches; 0 disables.
	SlowQueryThreshold time.Duration `yaml:"slowQueryThreshold" toml:"slowQueryThreshold"`
}

// SuggestConfig controls the suggestion dictionary.
type SuggestConfig struct {
	Key          string `yaml:"key" toml:"key"`
	DefaultLimit int    `yaml:"defaultLimit" toml:"defaultLimit"`
	MaxLimit     int    `yaml:"maxLimit" toml:"maxLimit"`
}

// SyncConfig controls bulk synchronisation from the catalog source.
type SyncConfig struct {
	BatchSize        int     `yaml:"batchSize" toml:"batchSize"`
	MaxBatchSize     int     `yaml:"maxBatchSize" toml:"maxBatchSize"`
	SKUWeight        float64 `yaml:"skuWeight" toml:"skuWeight"`
	ProgressInterval int     `yaml:"progressInterval" toml:"progressInterval"`
}

// RateLimitConfig bounds per-client request rates on expensive endpoints.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" toml:"enabled"`
	FuzzyRequests int           `yaml:"fuzzyRequests" toml:"fuzzyRequests"`
	Window        time.Duration `yaml:"window" toml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	Port    int  `yaml:"port" toml:"port"`
}

// Load reads a config file from the OS filesystem. See LoadFs.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads a YAML or TOML config file (if provided) from fs and applies
// environment-variable overrides. The format is chosen by file extension.
// Any value missing from the file keeps its default.
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case ".toml":
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("config file %s: unsupported extension %q (want .yaml, .yml or .toml)", path, ext)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Source.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("source.driver must be postgres or sqlite3, got %q", c.Source.Driver)
	}
	if c.Search.KeyPrefix == "" {
		return fmt.Errorf("search.keyPrefix must not be empty")
	}
	if c.Suggest.Key == "" {
		return fmt.Errorf("suggest.key must not be empty")
	}
	if c.Search.MaxFuzzyDistance < 1 {
		return fmt.Errorf("search.maxFuzzyDistance must be positive, got %d", c.Search.MaxFuzzyDistance)
	}
	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > c.Sync.MaxBatchSize {
		return fmt.Errorf("sync.batchSize must be between 1 and %d, got %d", c.Sync.MaxBatchSize, c.Sync.BatchSize)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  5 * time.Second,
			CacheEnabled: true,
			CacheTTL:     60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "catalog",
			User:            "catalog",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Source: SourceConfig{
			Driver:     "postgres",
			Table:      "zando_images",
			SQLitePath: "catalog.db",
			Name:       "zando_images",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "catalog-search-indexer",
			Topics: KafkaTopics{
				DocumentIngest:  "document-ingest",
				AnalyticsEvents: "analytics-events",
			},
		},
		Search: SearchConfig{
			KeyPrefix:          "search",
			DefaultLimit:       10,
			MaxResults:         100,
			DefaultDistance:    2,
			MaxFuzzyDistance:   5,
			FuzzyTimeout:       10 * time.Second,
			SlowQueryThreshold: 500 * time.Millisecond,
		},
		Suggest: SuggestConfig{
			Key:          "suggestions",
			DefaultLimit: 10,
			MaxLimit:     50,
		},
		Sync: SyncConfig{
			BatchSize:        100,
			MaxBatchSize:     1000,
			SKUWeight:        2.0,
			ProgressInterval: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			FuzzyRequests: 120,
			Window:        time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("CS_SERVER_PORT", &cfg.Server.Port)
	if v := os.Getenv("CS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	setString("CS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("CS_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("CS_REDIS_DB", &cfg.Redis.DB)
	if v := os.Getenv("CS_REDIS_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.CacheEnabled = b
		}
	}
	setString("CS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("CS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("CS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("CS_POSTGRES_USER", &cfg.Postgres.User)
	setString("CS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("CS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setString("CS_SOURCE_DRIVER", &cfg.Source.Driver)
	setString("CS_SOURCE_TABLE", &cfg.Source.Table)
	setString("CS_SOURCE_SQLITE_PATH", &cfg.Source.SQLitePath)
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("CS_SEARCH_KEY_PREFIX", &cfg.Search.KeyPrefix)
	setString("CS_SUGGEST_KEY", &cfg.Suggest.Key)
	setString("CS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("CS_LOGGING_FORMAT", &cfg.Logging.Format)
	setInt("CS_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(env string, dst *string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(env string, dst *int) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
