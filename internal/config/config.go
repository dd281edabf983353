// Package config loads runtime configuration for the sync service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/policy/ratelimit"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config captures all runtime configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Google    GoogleConfig    `mapstructure:"google"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig configures API key auth for the HTTP surface.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles development logging and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// GoogleConfig holds OAuth credentials and remote endpoints.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
	// RefreshTokens holds one stored refresh token per service name.
	RefreshTokens map[string]string `mapstructure:"refresh_tokens"`
	// AccessTokens are used verbatim when no client id is configured.
	AccessTokens         map[string]string `mapstructure:"access_tokens"`
	WebmastersBaseURL    string            `mapstructure:"webmasters_base_url"`
	SearchConsoleBaseURL string            `mapstructure:"searchconsole_base_url"`
	IndexingBaseURL      string            `mapstructure:"indexing_base_url"`
	ReadTimeout          time.Duration     `mapstructure:"read_timeout"`
	QueryTimeout         time.Duration     `mapstructure:"query_timeout"`
}

// UsesOAuth reports whether refresh-token credentials are configured.
func (g GoogleConfig) UsesOAuth() bool {
	return g.ClientID != ""
}

// WindowConfig is one fixed-window budget.
type WindowConfig struct {
	Window   time.Duration `mapstructure:"window"`
	MaxCalls int           `mapstructure:"max_calls"`
}

// RateLimitConfig holds the per-service call budgets. Disabling it grants
// every call locally.
type RateLimitConfig struct {
	Enabled  bool                    `mapstructure:"enabled"`
	Default  WindowConfig            `mapstructure:"default"`
	Services map[string]WindowConfig `mapstructure:"services"`
}

// Limiter converts the section into ratelimit.Config.
func (r RateLimitConfig) Limiter() ratelimit.Config {
	out := ratelimit.Config{
		Default:  ratelimit.Window{Length: r.Default.Window, MaxCalls: r.Default.MaxCalls},
		Services: make(map[string]ratelimit.Window, len(r.Services)),
	}
	for name, w := range r.Services {
		out.Services[name] = ratelimit.Window{Length: w.Window, MaxCalls: w.MaxCalls}
	}
	return out
}

// CacheConfig controls the property listing cache.
type CacheConfig struct {
	PropertyTTL time.Duration `mapstructure:"property_ttl"`
}

// SyncConfig tunes the analytics sync.
type SyncConfig struct {
	LookbackDays  int           `mapstructure:"lookback_days"`
	Catalog       []string      `mapstructure:"catalog"`
	RowLimit      int           `mapstructure:"row_limit"`
	MaxPages      int           `mapstructure:"max_pages"`
	DataState     string        `mapstructure:"data_state"`
	CallDelay     time.Duration `mapstructure:"call_delay"`
	PropertyDelay time.Duration `mapstructure:"property_delay"`
	Workers       int           `mapstructure:"workers"`
}

// DimensionSets parses the configured catalog.
func (s SyncConfig) DimensionSets() ([]gsc.DimensionSet, error) {
	if len(s.Catalog) == 0 {
		return gsc.DefaultCatalog(), nil
	}
	return gsc.ParseCatalog(s.Catalog)
}

// ScheduleConfig controls the in-process job ticker.
type ScheduleConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	DailyInterval  time.Duration `mapstructure:"daily_interval"`
	HourlyInterval time.Duration `mapstructure:"hourly_interval"`
	RunOnStart     bool          `mapstructure:"run_on_start"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend    string         `mapstructure:"backend"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds the pgx pool settings.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// Load reads configuration from an optional file and GSCSYNC_ environment
// variables. A .env file in the working directory is applied first when
// present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("GSCSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.token_url", "")
	// Per-service keys are declared so the env overrides are picked up on unmarshal.
	v.SetDefault("google.refresh_tokens."+gsc.ServiceSearchConsole, "")
	v.SetDefault("google.refresh_tokens."+gsc.ServiceIndexing, "")
	v.SetDefault("google.access_tokens."+gsc.ServiceSearchConsole, "")
	v.SetDefault("google.access_tokens."+gsc.ServiceIndexing, "")
	v.SetDefault("google.webmasters_base_url", "https://www.googleapis.com/webmasters/v3")
	v.SetDefault("google.searchconsole_base_url", "https://searchconsole.googleapis.com/v1")
	v.SetDefault("google.indexing_base_url", "https://indexing.googleapis.com/v3")
	v.SetDefault("google.read_timeout", "30s")
	v.SetDefault("google.query_timeout", "60s")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.default.window", "1m")
	v.SetDefault("ratelimit.default.max_calls", 600)
	v.SetDefault("ratelimit.services."+gsc.ServiceSearchConsole+".window", "1m")
	v.SetDefault("ratelimit.services."+gsc.ServiceSearchConsole+".max_calls", 1200)
	v.SetDefault("ratelimit.services."+gsc.ServiceIndexing+".window", "24h")
	v.SetDefault("ratelimit.services."+gsc.ServiceIndexing+".max_calls", 200)

	v.SetDefault("cache.property_ttl", "1h")

	v.SetDefault("sync.lookback_days", 1)
	v.SetDefault("sync.catalog", gsc.DefaultCatalogKeys)
	v.SetDefault("sync.row_limit", gsc.DefaultRowLimit)
	v.SetDefault("sync.max_pages", 1)
	v.SetDefault("sync.data_state", "")
	v.SetDefault("sync.call_delay", "250ms")
	v.SetDefault("sync.property_delay", "2s")
	v.SetDefault("sync.workers", 1)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.daily_interval", "24h")
	v.SetDefault("schedule.hourly_interval", "1h")
	v.SetDefault("schedule.run_on_start", false)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.sqlite_path", "data/gscsync.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.postgres.max_conn_lifetime", "30m")
	v.SetDefault("storage.postgres.migrate", true)
}

// Validate ensures required fields are present and sane.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key required when auth.enabled is true")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Google.UsesOAuth() && c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_secret required when google.client_id is set")
	}
	if c.Google.ReadTimeout <= 0 || c.Google.QueryTimeout <= 0 {
		return fmt.Errorf("google timeouts must be > 0")
	}
	if err := c.RateLimit.validate(); err != nil {
		return err
	}
	if c.Cache.PropertyTTL <= 0 {
		return fmt.Errorf("cache.property_ttl must be > 0")
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}
	if c.Schedule.Enabled && (c.Schedule.DailyInterval <= 0 || c.Schedule.HourlyInterval <= 0) {
		return fmt.Errorf("schedule intervals must be > 0 when schedule.enabled is true")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn required for the postgres backend")
		}
		if c.Storage.Postgres.MinConns > c.Storage.Postgres.MaxConns {
			return fmt.Errorf("storage.postgres.min_conns must not exceed max_conns")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, sqlite, postgres", c.Storage.Backend)
	}
	return nil
}

func (r RateLimitConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Default.Window <= 0 || r.Default.MaxCalls < 0 {
		return fmt.Errorf("ratelimit.default needs a positive window and non-negative max_calls")
	}
	for name, w := range r.Services {
		if w.Window <= 0 || w.MaxCalls < 0 {
			return fmt.Errorf("ratelimit.services.%s needs a positive window and non-negative max_calls", name)
		}
	}
	return nil
}

func (s SyncConfig) validate() error {
	if s.LookbackDays < 1 {
		return fmt.Errorf("sync.lookback_days must be >= 1")
	}
	if s.RowLimit < 1 || s.RowLimit > gsc.MaxRowLimit {
		return fmt.Errorf("sync.row_limit must be between 1 and %d", gsc.MaxRowLimit)
	}
	if s.MaxPages < 1 {
		return fmt.Errorf("sync.max_pages must be >= 1")
	}
	if s.Workers < 1 {
		return fmt.Errorf("sync.workers must be >= 1")
	}
	if s.CallDelay < 0 || s.PropertyDelay < 0 {
		return fmt.Errorf("sync delays must not be negative")
	}
	switch s.DataState {
	case "", "final", "all":
	default:
		return fmt.Errorf("sync.data_state %q is not one of final, all", s.DataState)
	}
	if _, err := s.DimensionSets(); err != nil {
		return fmt.Errorf("sync.catalog: %w", err)
	}
	return nil
}
