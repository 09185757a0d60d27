package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFs(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Search.KeyPrefix != "search" {
		t.Errorf("expected key prefix 'search', got %q", cfg.Search.KeyPrefix)
	}
	if cfg.Suggest.Key != "suggestions" {
		t.Errorf("expected suggest key 'suggestions', got %q", cfg.Suggest.Key)
	}
	if cfg.Search.MaxFuzzyDistance != 5 {
		t.Errorf("expected max fuzzy distance 5, got %d", cfg.Search.MaxFuzzyDistance)
	}
	if cfg.Sync.BatchSize != 100 || cfg.Sync.MaxBatchSize != 1000 {
		t.Errorf("unexpected sync defaults: %+v", cfg.Sync)
	}
}

func TestLoadYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := []byte(`
server:
  port: 9001
redis:
  addr: redis:6379
  cacheTTL: 30s
search:
  keyPrefix: catalog
  maxResults: 50
source:
  driver: sqlite3
  sqlitePath: /tmp/catalog.db
`)
	if err := afero.WriteFile(fs, "/etc/cs/config.yaml", data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFs(fs, "/etc/cs/config.yaml")
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("expected port 9001, got %d", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Search.KeyPrefix != "catalog" || cfg.Search.MaxResults != 50 {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	// values absent from the file keep their defaults
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("expected default limit to survive, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Source.Driver != "sqlite3" {
		t.Errorf("expected sqlite3 driver, got %q", cfg.Source.Driver)
	}
}

func TestLoadTOML(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := []byte(`
[suggest]
key = "autocomplete"
maxLimit = 25

[sync]
batchSize = 250
`)
	if err := afero.WriteFile(fs, "config.toml", data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFs(fs, "config.toml")
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Suggest.Key != "autocomplete" || cfg.Suggest.MaxLimit != 25 {
		t.Errorf("unexpected suggest config: %+v", cfg.Suggest)
	}
	if cfg.Sync.BatchSize != 250 {
		t.Errorf("expected batch size 250, got %d", cfg.Sync.BatchSize)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "config.ini", []byte("x=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFs(fs, "config.ini"); err == nil {
		t.Fatal("expected error for .ini config")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFs(afero.NewMemMapFs(), "nope.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CS_REDIS_ADDR", "cache.internal:6380")
	t.Setenv("CS_SERVER_PORT", "7000")
	t.Setenv("CS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CS_SEARCH_KEY_PREFIX", "shop")

	cfg, err := LoadFs(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redis.Addr != "cache.internal:6380" {
		t.Errorf("redis addr override not applied: %q", cfg.Redis.Addr)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port override not applied: %d", cfg.Server.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("broker override not applied: %v", cfg.Kafka.Brokers)
	}
	if cfg.Search.KeyPrefix != "shop" {
		t.Errorf("key prefix override not applied: %q", cfg.Search.KeyPrefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Source.Driver = "mysql" }},
		{"empty prefix", func(c *Config) { c.Search.KeyPrefix = "" }},
		{"empty suggest key", func(c *Config) { c.Suggest.Key = "" }},
		{"zero fuzzy distance", func(c *Config) { c.Search.MaxFuzzyDistance = 0 }},
		{"batch too large", func(c *Config) { c.Sync.BatchSize = 5000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
