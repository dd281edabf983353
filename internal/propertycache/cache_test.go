package propertycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeLister struct {
	mu    sync.Mutex
	props []gsc.Property
	err   error
	calls int
}

func (f *fakeLister) ListProperties(context.Context) ([]gsc.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]gsc.Property(nil), f.props...), nil
}

func (f *fakeLister) set(props []gsc.Property, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props = props
	f.err = err
}

func (f *fakeLister) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var sampleProps = []gsc.Property{
	{SiteURL: "sc-domain:example.com", PermissionLevel: gsc.PermissionOwner, SiteType: gsc.SiteTypeDomain},
	{SiteURL: "https://ro.example.com/", PermissionLevel: gsc.PermissionRestrictedUser, SiteType: gsc.SiteTypeURLPrefix},
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func TestPropertiesServesFromCacheWithinTTL(t *testing.T) {
	t.Parallel()

	clock := newClock()
	lister := &fakeLister{props: sampleProps}
	cache := New(Config{TTL: time.Hour}, lister, nil, clock, zap.NewNop())

	got, err := cache.Properties(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, sampleProps, got)

	clock.Advance(59 * time.Minute)
	_, err = cache.Properties(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, lister.count())

	clock.Advance(time.Minute)
	_, err = cache.Properties(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 2, lister.count())
}

func TestForceRefreshBypassesCache(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{props: sampleProps}
	cache := New(Config{}, lister, nil, newClock(), zap.NewNop())

	_, err := cache.Properties(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.Properties(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 2, lister.count())
}

func TestRefreshFailurePreservesCachedList(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{props: sampleProps}
	cache := New(Config{}, lister, nil, newClock(), zap.NewNop())
	_, err := cache.Properties(context.Background(), false)
	require.NoError(t, err)

	lister.set(nil, &gsc.TransportError{Operation: "sites.list", Err: errors.New("connection reset")})
	got, err := cache.Properties(context.Background(), true)
	var transport *gsc.TransportError
	require.ErrorAs(t, err, &transport)
	require.Equal(t, sampleProps, got)

	lister.set(sampleProps, nil)
	got, err = cache.Properties(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, sampleProps, got)
	require.Equal(t, 2, lister.count(), "cached list still fresh after failed refresh")
}

func TestRefreshFailureWithEmptyCache(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{err: errors.New("boom")}
	cache := New(Config{}, lister, nil, newClock(), zap.NewNop())

	got, err := cache.Properties(context.Background(), false)
	require.Error(t, err)
	require.Nil(t, got)
}

func TestSyncableFiltersRestricted(t *testing.T) {
	t.Parallel()

	cache := New(Config{}, &fakeLister{props: sampleProps}, nil, newClock(), zap.NewNop())
	got, err := cache.Syncable(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "sc-domain:example.com", got[0].SiteURL)
}

func TestWarmFromStoreHonoursTTL(t *testing.T) {
	t.Parallel()

	clock := newClock()
	store := memory.NewPropertyStore()
	require.NoError(t, store.SaveProperties(context.Background(), sampleProps, clock.Now().Add(-30*time.Minute)))

	lister := &fakeLister{props: sampleProps[:1]}
	cache := New(Config{TTL: time.Hour}, lister, store, clock, zap.NewNop())
	require.NoError(t, cache.Warm(context.Background()))

	got, err := cache.Properties(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, sampleProps, got)
	require.Zero(t, lister.count())

	clock.Advance(31 * time.Minute)
	got, err = cache.Properties(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, sampleProps[:1], got)

	persisted, fetchedAt, err := store.LoadProperties(context.Background())
	require.NoError(t, err)
	require.Equal(t, sampleProps[:1], persisted)
	require.Equal(t, clock.Now(), fetchedAt)
}

func TestWarmWithEmptyStore(t *testing.T) {
	t.Parallel()

	cache := New(Config{}, &fakeLister{}, memory.NewPropertyStore(), newClock(), zap.NewNop())
	require.NoError(t, cache.Warm(context.Background()))
	_, ok := cache.FetchedAt()
	require.False(t, ok)
}
