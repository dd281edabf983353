package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
google:
  client_id: client
  client_secret: shh
  refresh_tokens:
    searchconsole: rt-sc
    indexing: rt-idx
ratelimit:
  services:
    searchconsole:
      window: 10s
      max_calls: 5
sync:
  lookback_days: 3
  catalog: ["query", "query,device"]
  row_limit: 5000
  call_delay: 100ms
  workers: 2
storage:
  backend: sqlite
  sqlite_path: /tmp/gsc.db
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if !cfg.Google.UsesOAuth() || cfg.Google.RefreshTokens[gsc.ServiceIndexing] != "rt-idx" {
		t.Fatalf("expected oauth credentials to load: %+v", cfg.Google)
	}
	if cfg.Sync.LookbackDays != 3 || cfg.Sync.RowLimit != 5000 || cfg.Sync.Workers != 2 {
		t.Fatalf("expected sync overrides to apply: %+v", cfg.Sync)
	}
	if cfg.Sync.CallDelay != 100*time.Millisecond {
		t.Fatalf("expected call delay 100ms, got %v", cfg.Sync.CallDelay)
	}
	sets, err := cfg.Sync.DimensionSets()
	if err != nil {
		t.Fatalf("DimensionSets() error = %v", err)
	}
	if len(sets) != 2 || sets[1].Key() != "query,device" {
		t.Fatalf("unexpected catalog: %v", sets)
	}
	limits := cfg.RateLimit.Limiter()
	if w := limits.Services[gsc.ServiceSearchConsole]; w.Length != 10*time.Second || w.MaxCalls != 5 {
		t.Fatalf("expected searchconsole window override, got %+v", w)
	}
	if w := limits.Services[gsc.ServiceIndexing]; w.Length != 24*time.Hour || w.MaxCalls != 200 {
		t.Fatalf("expected indexing default window, got %+v", w)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.SQLitePath != "/tmp/gsc.db" {
		t.Fatalf("expected sqlite storage, got %+v", cfg.Storage)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Fatalf("expected memory backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.Sync.LookbackDays != 1 || cfg.Sync.RowLimit != gsc.DefaultRowLimit {
		t.Fatalf("unexpected sync defaults: %+v", cfg.Sync)
	}
	if cfg.Sync.CallDelay != 250*time.Millisecond || cfg.Sync.PropertyDelay != 2*time.Second {
		t.Fatalf("unexpected delay defaults: %+v", cfg.Sync)
	}
	if cfg.Cache.PropertyTTL != time.Hour {
		t.Fatalf("expected property ttl 1h, got %v", cfg.Cache.PropertyTTL)
	}
	sets, err := cfg.Sync.DimensionSets()
	if err != nil || len(sets) != len(gsc.DefaultCatalogKeys) {
		t.Fatalf("expected default catalog, got %v (%v)", sets, err)
	}
	if cfg.Schedule.DailyInterval != 24*time.Hour || cfg.Schedule.HourlyInterval != time.Hour {
		t.Fatalf("unexpected schedule defaults: %+v", cfg.Schedule)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GSCSYNC_SERVER_PORT", "7070")
	t.Setenv("GSCSYNC_GOOGLE_ACCESS_TOKENS_SEARCHCONSOLE", "static-token")
	t.Setenv("GSCSYNC_SYNC_WORKERS", "4")
	t.Setenv("GSCSYNC_STORAGE_BACKEND", "postgres")
	t.Setenv("GSCSYNC_STORAGE_POSTGRES_DSN", "postgres://localhost/gsc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Google.AccessTokens[gsc.ServiceSearchConsole] != "static-token" {
		t.Fatalf("expected static token from env, got %+v", cfg.Google.AccessTokens)
	}
	if cfg.Sync.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Sync.Workers)
	}
	if cfg.Storage.Backend != BackendPostgres || cfg.Storage.Postgres.DSN != "postgres://localhost/gsc" {
		t.Fatalf("expected postgres storage, got %+v", cfg.Storage)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"client secret", func(c *Config) { c.Google.ClientID = "id" }, "google.client_secret"},
		{"lookback", func(c *Config) { c.Sync.LookbackDays = 0 }, "sync.lookback_days"},
		{"row limit", func(c *Config) { c.Sync.RowLimit = gsc.MaxRowLimit + 1 }, "sync.row_limit"},
		{"workers", func(c *Config) { c.Sync.Workers = 0 }, "sync.workers"},
		{"data state", func(c *Config) { c.Sync.DataState = "hourly" }, "sync.data_state"},
		{"catalog", func(c *Config) { c.Sync.Catalog = []string{"query,keyword"} }, "sync.catalog"},
		{"window", func(c *Config) { c.RateLimit.Default.Window = 0 }, "ratelimit.default"},
		{"backend", func(c *Config) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"sqlite path", func(c *Config) {
			c.Storage.Backend = BackendSQLite
			c.Storage.SQLitePath = ""
		}, "storage.sqlite_path"},
		{"dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }, "storage.postgres.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
