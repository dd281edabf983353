package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type failingStore struct{ panics bool }

func (f failingStore) AppendUsage(context.Context, gsc.UsageEntry) error {
	if f.panics {
		panic("boom")
	}
	return errors.New("disk full")
}

func (failingStore) ListUsage(context.Context, string, time.Time) ([]gsc.UsageEntry, error) {
	return nil, errors.New("disk full")
}

type fakeRestorer struct {
	length  time.Duration
	service string
	start   time.Time
	calls   int
}

func (f *fakeRestorer) Restore(service string, start time.Time, calls int) {
	f.service, f.start, f.calls = service, start, calls
}

func (f *fakeRestorer) WindowLength(string) time.Duration { return f.length }

func TestRecorderAppendsEntries(t *testing.T) {
	t.Parallel()

	store := memory.NewUsageStore()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	rec := NewRecorder(store, clk, zap.NewNop())

	rec.Record(context.Background(), gsc.ServiceSearchConsole, "sites.list", true, 200)
	rec.Record(context.Background(), gsc.ServiceSearchConsole, "searchAnalytics.query", false, 0)

	entries, err := store.ListUsage(context.Background(), gsc.ServiceSearchConsole, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "sites.list", entries[0].Operation)
	require.True(t, entries[0].Success)
	require.Equal(t, 200, entries[0].ResponseCode)
	require.Equal(t, clk.now, entries[0].Timestamp)
	require.False(t, entries[1].Success)
	require.Equal(t, 0, entries[1].ResponseCode)
}

func TestRecorderSwallowsStoreFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	clk := &fakeClock{now: time.Now()}

	rec := NewRecorder(failingStore{}, clk, zap.New(core))
	require.NotPanics(t, func() {
		rec.Record(context.Background(), gsc.ServiceIndexing, "urlNotifications.publish", true, 200)
	})
	require.Equal(t, 1, logs.FilterMessage("usage record failed").Len())

	panicking := NewRecorder(failingStore{panics: true}, clk, zap.New(core))
	require.NotPanics(t, func() {
		panicking.Record(context.Background(), gsc.ServiceIndexing, "urlNotifications.publish", true, 200)
	})
	require.Equal(t, 1, logs.FilterMessage("usage record panicked").Len())
}

func TestRecorderNilStoreIsNoop(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(nil, &fakeClock{}, nil)
	rec.Record(context.Background(), "svc", "op", true, 200)
	summary, err := rec.Summary(context.Background(), "svc", time.Time{})
	require.NoError(t, err)
	require.Zero(t, summary.Total)
}

func TestRecorderSummary(t *testing.T) {
	t.Parallel()

	store := memory.NewUsageStore()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	rec := NewRecorder(store, clk, zap.NewNop())
	ctx := context.Background()
	rec.Record(ctx, gsc.ServiceSearchConsole, "sites.list", true, 200)
	rec.Record(ctx, gsc.ServiceSearchConsole, "sites.list", true, 200)
	rec.Record(ctx, gsc.ServiceSearchConsole, "sites.list", true, 200)
	rec.Record(ctx, gsc.ServiceSearchConsole, "sites.list", false, 500)
	rec.Record(ctx, gsc.ServiceIndexing, "urlNotifications.publish", false, 429)

	summary, err := rec.Summary(ctx, gsc.ServiceSearchConsole, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 4, summary.Total)
	require.Equal(t, 3, summary.Successes)
	require.Equal(t, 1, summary.Failures)
	require.InDelta(t, 0.75, summary.SuccessRate, 1e-9)

	all, err := rec.Summary(ctx, "", time.Time{})
	require.NoError(t, err)
	require.Equal(t, 5, all.Total)

	_, err = NewRecorder(failingStore{}, clk, zap.NewNop()).Summary(ctx, "", time.Time{})
	require.Error(t, err)
}

func TestSeedLimiterReplaysLastWindow(t *testing.T) {
	t.Parallel()

	store := memory.NewUsageStore()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	rec := NewRecorder(store, clk, zap.NewNop())
	ctx := context.Background()

	clk.now = time.Date(2024, 1, 1, 9, 58, 0, 0, time.UTC)
	rec.Record(ctx, gsc.ServiceSearchConsole, "old", true, 200)
	clk.now = time.Date(2024, 1, 1, 9, 59, 20, 0, time.UTC)
	rec.Record(ctx, gsc.ServiceSearchConsole, "recent", true, 200)
	clk.now = time.Date(2024, 1, 1, 9, 59, 40, 0, time.UTC)
	rec.Record(ctx, gsc.ServiceSearchConsole, "recent", false, 500)
	clk.now = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	restorer := &fakeRestorer{length: time.Minute}
	require.NoError(t, rec.SeedLimiter(ctx, restorer, gsc.ServiceSearchConsole, gsc.ServiceIndexing))
	require.Equal(t, gsc.ServiceSearchConsole, restorer.service)
	require.Equal(t, 2, restorer.calls)
	require.Equal(t, time.Date(2024, 1, 1, 9, 59, 20, 0, time.UTC), restorer.start)
}
