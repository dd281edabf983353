// Package propertycache caches the verified property list with a TTL.
package propertycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// DefaultTTL applies when Config.TTL is unset.
const DefaultTTL = time.Hour

// Lister fetches the property list from the remote API.
type Lister interface {
	ListProperties(ctx context.Context) ([]gsc.Property, error)
}

// Config controls the cache.
type Config struct {
	TTL time.Duration
}

// Cache holds the last successful listing. A failed refresh never clears it.
type Cache struct {
	lister    Lister
	store     gsc.PropertyStore
	clock     gsc.Clock
	ttl       time.Duration
	logger    *zap.Logger
	refreshMu sync.Mutex

	mu        sync.RWMutex
	props     []gsc.Property
	fetchedAt time.Time
	loaded    bool
}

// New creates a Cache. store may be nil.
func New(cfg Config, lister Lister, store gsc.PropertyStore, clock gsc.Clock, logger *zap.Logger) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		lister: lister,
		store:  store,
		clock:  clock,
		ttl:    ttl,
		logger: logger,
	}
}

// Warm loads the last persisted listing, keeping its original fetch time so
// the TTL still applies. A missing listing is not an error.
func (c *Cache) Warm(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	props, fetchedAt, err := c.store.LoadProperties(ctx)
	if errors.Is(err, gsc.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.props = props
		c.fetchedAt = fetchedAt
		c.loaded = true
	}
	c.logger.Info("property cache warmed", zap.Int("count", len(props)), zap.Time("fetched_at", fetchedAt))
	return nil
}

// Properties returns the cached list, refreshing it when forceRefresh is set
// or the TTL has elapsed. When the refresh fails the previous list (possibly
// nil) is returned together with the error.
func (c *Cache) Properties(ctx context.Context, forceRefresh bool) ([]gsc.Property, error) {
	if !forceRefresh {
		if props, ok := c.fresh(); ok {
			return props, nil
		}
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while this one waited.
	if !forceRefresh {
		if props, ok := c.fresh(); ok {
			return props, nil
		}
	}

	props, err := c.lister.ListProperties(ctx)
	if err != nil {
		stale := c.snapshot()
		c.logger.Warn("property refresh failed, keeping cached list",
			zap.Int("cached", len(stale)), zap.Error(err))
		return stale, fmt.Errorf("refresh properties: %w", err)
	}

	now := c.clock.Now()
	c.mu.Lock()
	c.props = append([]gsc.Property(nil), props...)
	c.fetchedAt = now
	c.loaded = true
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveProperties(ctx, props, now); err != nil {
			c.logger.Warn("persist properties failed", zap.Error(err))
		}
	}
	return append([]gsc.Property(nil), props...), nil
}

// Syncable returns the owner and full-user properties.
func (c *Cache) Syncable(ctx context.Context, forceRefresh bool) ([]gsc.Property, error) {
	props, err := c.Properties(ctx, forceRefresh)
	return gsc.SyncableProperties(props), err
}

// FetchedAt reports when the cached list was fetched.
func (c *Cache) FetchedAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt, c.loaded
}

func (c *Cache) fresh() ([]gsc.Property, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.clock.Now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return append([]gsc.Property(nil), c.props...), true
}

func (c *Cache) snapshot() []gsc.Property {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.props == nil {
		return nil
	}
	return append([]gsc.Property(nil), c.props...)
}
