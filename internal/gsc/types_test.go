package gsc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSiteTypeOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, SiteTypeDomain, SiteTypeOf("sc-domain:example.com"))
	require.Equal(t, SiteTypeURLPrefix, SiteTypeOf("https://example.com/"))
	require.Equal(t, "example.com", SiteKey("sc-domain:example.com"))
	require.Equal(t, "https://example.com/", SiteKey("https://example.com/"))
}

func TestParsePermissionLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]PermissionLevel{
		"siteOwner":          PermissionOwner,
		"siteFullUser":       PermissionFullUser,
		"siteRestrictedUser": PermissionRestrictedUser,
		"siteUnverifiedUser": PermissionNone,
		"":                   PermissionNone,
	}
	for remote, want := range cases {
		require.Equal(t, want, ParsePermissionLevel(remote), remote)
	}
	require.True(t, PermissionOwner.Syncable())
	require.True(t, PermissionFullUser.Syncable())
	require.False(t, PermissionRestrictedUser.Syncable())
	require.False(t, PermissionNone.Syncable())
}

func TestSyncableProperties(t *testing.T) {
	t.Parallel()

	props := []Property{
		{SiteURL: "a", PermissionLevel: PermissionOwner},
		{SiteURL: "b", PermissionLevel: PermissionRestrictedUser},
		{SiteURL: "c", PermissionLevel: PermissionFullUser},
		{SiteURL: "d", PermissionLevel: PermissionNone},
	}
	got := SyncableProperties(props)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].SiteURL)
	require.Equal(t, "c", got[1].SiteURL)
}

func TestDimensionSetValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DimensionSet{DimensionQuery, DimensionPage}.Validate())
	require.ErrorIs(t, DimensionSet{}.Validate(), ErrInvalidDimension)
	require.ErrorIs(t, DimensionSet{"keyword"}.Validate(), ErrInvalidDimension)
	require.ErrorIs(t, DimensionSet{DimensionQuery, DimensionQuery}.Validate(), ErrInvalidDimension)
}

func TestParseDimensionSet(t *testing.T) {
	t.Parallel()

	set, err := ParseDimensionSet("query, device")
	require.NoError(t, err)
	require.Equal(t, DimensionSet{DimensionQuery, DimensionDevice}, set)
	require.Equal(t, "query,device", set.Key())
	require.Equal(t, 1, set.Index(DimensionDevice))
	require.Equal(t, -1, set.Index(DimensionPage))

	_, err = ParseDimensionSet("query,keyword")
	require.ErrorIs(t, err, ErrInvalidDimension)
}

func TestDefaultCatalogMatchesKeys(t *testing.T) {
	t.Parallel()

	parsed, err := ParseCatalog(DefaultCatalogKeys)
	require.NoError(t, err)
	require.Equal(t, DefaultCatalog(), parsed)
	require.Len(t, parsed, 7)
}

func TestLookbackWindow(t *testing.T) {
	t.Parallel()

	today := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)
	w, err := LookbackWindow(today, 1)
	require.NoError(t, err)
	require.Equal(t, "2024-01-01..2024-01-01", w.String())
	require.Equal(t, 1, w.Days())

	w, err = LookbackWindow(today, 7)
	require.NoError(t, err)
	require.Equal(t, "2023-12-26..2024-01-01", w.String())
	require.Equal(t, 7, w.Days())

	_, err = LookbackWindow(today, 0)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestQueryRequestValidate(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := QueryRequest{
		SiteURL:    "sc-domain:example.com",
		Window:     DateWindow{Start: day, End: day},
		Dimensions: DimensionSet{DimensionQuery},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Dimensions = DimensionSet{"nope"}
	require.ErrorIs(t, bad.Validate(), ErrInvalidDimension)

	bad = base
	bad.StartRow = -1
	require.ErrorIs(t, bad.Validate(), ErrInvalidRequest)

	bad = base
	bad.Window = DateWindow{Start: day, End: day.AddDate(0, 0, -1)}
	require.ErrorIs(t, bad.Validate(), ErrInvalidRequest)

	bad = base
	bad.DataState = "hourly"
	require.ErrorIs(t, bad.Validate(), ErrInvalidRequest)
}

func TestEffectiveRowLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultRowLimit, QueryRequest{}.EffectiveRowLimit())
	require.Equal(t, 10, QueryRequest{RowLimit: 10}.EffectiveRowLimit())
	require.Equal(t, MaxRowLimit, QueryRequest{RowLimit: 100000}.EffectiveRowLimit())
}

func TestNaturalKeyDistinguishesNilFromEmpty(t *testing.T) {
	t.Parallel()

	empty := ""
	day := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := StatRecord{SiteKey: "example.com", DimensionSet: "query", RecordedDate: day}
	b := a
	b.Query = &empty
	require.NotEqual(t, a.NaturalKey(), b.NaturalKey())

	c := a
	c.RecordedDate = day.Add(6 * time.Hour)
	require.Equal(t, a.NaturalKey(), c.NaturalKey())
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	var err error = &NotIndexableError{URL: "https://example.com/a", Reason: "Excluded by noindex tag"}
	require.ErrorIs(t, err, ErrNotIndexable)
	require.Contains(t, err.Error(), "Excluded by noindex tag")

	transport := &TransportError{Operation: "sites.list", Err: errors.New("dial tcp: refused")}
	var te *TransportError
	require.ErrorAs(t, fmt.Errorf("wrap: %w", transport), &te)

	remote := &RemoteAPIError{Operation: "sites.list", Code: 403, Message: "forbidden"}
	require.Equal(t, "sites.list: remote api error 403: forbidden", remote.Error())

	require.True(t, IsFatal(fmt.Errorf("token: %w", ErrNoValidToken)))
	require.False(t, IsFatal(ErrRateLimitExceeded))
	require.False(t, IsFatal(remote))
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	require.Equal(t, VerdictPass, ParseVerdict("PASS"))
	require.Equal(t, VerdictFail, ParseVerdict("FAIL"))
	require.Equal(t, VerdictUnknown, ParseVerdict("NEUTRAL"))
	require.Equal(t, VerdictUnknown, ParseVerdict("VERDICT_UNSPECIFIED"))
}
