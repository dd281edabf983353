// Package sqlite stores statistics, usage and properties in a local SQLite
// file using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/hash/sha256"
)

// Times are stored as fixed-width UTC text so they compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements gsc.StatStore, gsc.UsageStore and gsc.PropertyStore.
type Store struct {
	db     *sql.DB
	path   string
	hasher *sha256.Hasher
	logger *zap.Logger
}

var (
	_ gsc.StatStore     = (*Store)(nil)
	_ gsc.UsageStore    = (*Store)(nil)
	_ gsc.PropertyStore = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.sqlite_path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	s := &Store{db: db, path: path, hasher: sha256.New(), logger: logger}
	if err := s.configure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("sqlite store ready", zap.String("path", path))
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) configure(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stat_records (
		key_hash          TEXT PRIMARY KEY,
		site_key          TEXT NOT NULL,
		dimension_set     TEXT NOT NULL,
		query             TEXT,
		page              TEXT,
		country           TEXT,
		device            TEXT,
		search_appearance TEXT,
		data_date         TEXT,
		recorded_date     TEXT NOT NULL,
		impressions       INTEGER NOT NULL DEFAULT 0,
		clicks            INTEGER NOT NULL DEFAULT 0,
		ctr               REAL NOT NULL DEFAULT 0,
		position          REAL NOT NULL DEFAULT 0,
		window_start      TEXT NOT NULL,
		window_end        TEXT NOT NULL,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stat_records_site_date
		ON stat_records(site_key, recorded_date, dimension_set)`,
	`CREATE TABLE IF NOT EXISTS api_usage (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		service       TEXT NOT NULL,
		operation     TEXT NOT NULL,
		success       INTEGER NOT NULL,
		response_code INTEGER NOT NULL,
		timestamp     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_usage_service_ts ON api_usage(service, timestamp)`,
	`CREATE TABLE IF NOT EXISTS properties (
		site_url         TEXT PRIMARY KEY,
		permission_level TEXT NOT NULL,
		site_type        TEXT NOT NULL,
		position         INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS property_listing (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		fetched_at TEXT NOT NULL
	)`,
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatDay(t time.Time) string {
	return gsc.Day(t).Format(gsc.DateLayout)
}

func rollback(tx *sql.Tx, logger *zap.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn("sqlite rollback failed", zap.Error(err))
	}
}
