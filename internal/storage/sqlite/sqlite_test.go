package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "gscsync.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func scenarioRecord(now time.Time) gsc.StatRecord {
	day := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	return gsc.StatRecord{
		SiteKey:      "example.com",
		DimensionSet: "query",
		Query:        strPtr("shoes"),
		RecordedDate: gsc.Day(now),
		Impressions:  100,
		Clicks:       5,
		CTR:          0.05,
		Position:     8.2,
		WindowStart:  day,
		WindowEnd:    day,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUpsertStatsIsIdempotentPerDay(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	first := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	res, err := store.UpsertStats(ctx, []gsc.StatRecord{scenarioRecord(first)})
	require.NoError(t, err)
	require.Equal(t, gsc.UpsertResult{Inserted: 1}, res)

	later := first.Add(2 * time.Hour)
	again := scenarioRecord(later)
	again.Clicks = 9
	res, err = store.UpsertStats(ctx, []gsc.StatRecord{again})
	require.NoError(t, err)
	require.Equal(t, gsc.UpsertResult{Updated: 1}, res)

	recs, err := store.QueryStats(ctx, gsc.StatFilter{SiteURL: "sc-domain:example.com"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, int64(9), recs[0].Clicks)
	require.Equal(t, first, recs[0].CreatedAt)
	require.Equal(t, later, recs[0].UpdatedAt)
	require.Equal(t, "shoes", *recs[0].Query)
	require.Nil(t, recs[0].Page)
	require.Nil(t, recs[0].DataDate)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), recs[0].RecordedDate)
}

func TestUpsertStatsNullVersusEmpty(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	withNil := scenarioRecord(now)
	withNil.Query = nil
	withEmpty := scenarioRecord(now)
	withEmpty.Query = strPtr("")

	res, err := store.UpsertStats(ctx, []gsc.StatRecord{withNil, withEmpty})
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
}

func TestUpsertStatsConcurrentWritersSameKey(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := scenarioRecord(now.Add(time.Duration(i) * time.Minute))
			rec.Clicks = int64(i)
			_, err := store.UpsertStats(context.Background(), []gsc.StatRecord{rec})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	recs, err := store.QueryStats(context.Background(), gsc.StatFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestQueryStatsFilters(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	day1 := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	a := scenarioRecord(day1)
	b := scenarioRecord(day2)
	c := scenarioRecord(day2)
	c.DimensionSet = "query,date"
	dd := time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC)
	c.DataDate = &dd
	other := scenarioRecord(day2)
	other.SiteKey = "https://other.example/"

	_, err := store.UpsertStats(ctx, []gsc.StatRecord{a, b, c, other})
	require.NoError(t, err)

	recs, err := store.QueryStats(ctx, gsc.StatFilter{SiteURL: "sc-domain:example.com", From: day2, To: day2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "query", recs[0].DimensionSet)
	require.Equal(t, "query,date", recs[1].DimensionSet)
	require.Equal(t, dd, *recs[1].DataDate)

	recs, err = store.QueryStats(ctx, gsc.StatFilter{DimensionSet: "query", Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, gsc.Day(day1), recs[0].RecordedDate)

	_, err = store.QueryStats(ctx, gsc.StatFilter{From: day2, To: day1})
	require.ErrorIs(t, err, gsc.ErrInvalidRequest)
}

func TestUsageAppendAndList(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []gsc.UsageEntry{
		{Service: gsc.ServiceSearchConsole, Operation: "sites.list", Success: true, ResponseCode: 200, Timestamp: base},
		{Service: gsc.ServiceIndexing, Operation: "urlNotifications.publish", Success: false, ResponseCode: 429, Timestamp: base.Add(time.Second)},
		{Service: gsc.ServiceSearchConsole, Operation: "searchAnalytics.query", Success: false, ResponseCode: 0, Timestamp: base.Add(1500 * time.Millisecond)},
	}
	for _, e := range entries {
		require.NoError(t, store.AppendUsage(ctx, e))
	}

	got, err := store.ListUsage(ctx, gsc.ServiceSearchConsole, base.Add(time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, entries[2:], got)

	all, err := store.ListUsage(ctx, "", time.Time{})
	require.NoError(t, err)
	require.Equal(t, entries, all)
}

func TestPropertiesSaveLoad(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	_, _, err := store.LoadProperties(ctx)
	require.ErrorIs(t, err, gsc.ErrNotFound)

	props := []gsc.Property{
		{SiteURL: "sc-domain:example.com", PermissionLevel: gsc.PermissionOwner, SiteType: gsc.SiteTypeDomain},
		{SiteURL: "https://a.example.com/", PermissionLevel: gsc.PermissionFullUser, SiteType: gsc.SiteTypeURLPrefix},
	}
	fetched := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveProperties(ctx, props, fetched))
	require.NoError(t, store.SaveProperties(ctx, props[1:], fetched.Add(time.Hour)))

	got, at, err := store.LoadProperties(ctx)
	require.NoError(t, err)
	require.Equal(t, props[1:], got)
	require.Equal(t, fetched.Add(time.Hour), at)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", nil)
	require.Error(t, err)
}
