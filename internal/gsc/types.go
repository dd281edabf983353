package gsc

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on the wire and in stores.
const DateLayout = "2006-01-02"

// DomainPrefix marks a domain property site URL.
const DomainPrefix = "sc-domain:"

// MaxRowLimit is the largest page the analytics query endpoint returns.
const MaxRowLimit = 25000

// DefaultRowLimit is used when a query leaves RowLimit unset.
const DefaultRowLimit = 1000

// PermissionLevel is the caller's access to a property.
type PermissionLevel string

// Permission levels.
const (
	PermissionOwner          PermissionLevel = "owner"
	PermissionFullUser       PermissionLevel = "fullUser"
	PermissionRestrictedUser PermissionLevel = "restrictedUser"
	PermissionNone           PermissionLevel = "none"
)

// ParsePermissionLevel maps the remote permissionLevel value.
func ParsePermissionLevel(remote string) PermissionLevel {
	switch remote {
	case "siteOwner":
		return PermissionOwner
	case "siteFullUser":
		return PermissionFullUser
	case "siteRestrictedUser":
		return PermissionRestrictedUser
	default:
		return PermissionNone
	}
}

// Syncable reports whether analytics can be meaningfully synced at this level.
func (p PermissionLevel) Syncable() bool {
	return p == PermissionOwner || p == PermissionFullUser
}

// SiteType distinguishes domain properties from URL-prefix properties.
type SiteType string

// Site types.
const (
	SiteTypeDomain    SiteType = "domainProperty"
	SiteTypeURLPrefix SiteType = "urlPrefix"
)

// SiteTypeOf derives the site type lexically from the site URL.
func SiteTypeOf(siteURL string) SiteType {
	if strings.HasPrefix(siteURL, DomainPrefix) {
		return SiteTypeDomain
	}
	return SiteTypeURLPrefix
}

// SiteKey is the site identifier used in stored records: the site URL with
// the domain-property prefix removed.
func SiteKey(siteURL string) string {
	return strings.TrimPrefix(siteURL, DomainPrefix)
}

// Property is a verified site registered with Search Console.
type Property struct {
	SiteURL         string          `json:"site_url"`
	PermissionLevel PermissionLevel `json:"permission_level"`
	SiteType        SiteType        `json:"site_type"`
}

// SyncableProperties keeps owner and full-user properties.
func SyncableProperties(props []Property) []Property {
	out := make([]Property, 0, len(props))
	for _, p := range props {
		if p.PermissionLevel.Syncable() {
			out = append(out, p)
		}
	}
	return out
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a DateLayout string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidRequest, s, err)
	}
	return t, nil
}

// DateWindow is an inclusive range of calendar days.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LookbackWindow returns [today-lookbackDays, yesterday]. The current day is
// never included because its data may be incomplete.
func LookbackWindow(today time.Time, lookbackDays int) (DateWindow, error) {
	if lookbackDays < 1 {
		return DateWindow{}, fmt.Errorf("%w: lookback days must be >= 1, got %d", ErrInvalidRequest, lookbackDays)
	}
	day := Day(today)
	return DateWindow{
		Start: day.AddDate(0, 0, -lookbackDays),
		End:   day.AddDate(0, 0, -1),
	}, nil
}

// Validate rejects empty or inverted windows.
func (w DateWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: window start and end are required", ErrInvalidRequest)
	}
	if Day(w.End).Before(Day(w.Start)) {
		return fmt.Errorf("%w: window end %s before start %s", ErrInvalidRequest,
			w.End.Format(DateLayout), w.Start.Format(DateLayout))
	}
	return nil
}

// Days is the number of calendar days covered.
func (w DateWindow) Days() int {
	return int(Day(w.End).Sub(Day(w.Start))/(24*time.Hour)) + 1
}

func (w DateWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// AggregationType controls how the remote API aggregates results.
type AggregationType string

// Aggregation types.
const (
	AggregationAuto       AggregationType = "auto"
	AggregationByPage     AggregationType = "byPage"
	AggregationByProperty AggregationType = "byProperty"
)

// DataState selects final-only or fresh data.
type DataState string

// Data states.
const (
	DataStateFinal DataState = "final"
	DataStateAll   DataState = "all"
)

// QueryRequest describes one search analytics query.
type QueryRequest struct {
	SiteURL         string
	Window          DateWindow
	Dimensions      DimensionSet
	RowLimit        int
	StartRow        int
	AggregationType AggregationType
	DataState       DataState
}

// Validate performs every local check that must pass before a network call.
func (r QueryRequest) Validate() error {
	if err := r.Dimensions.Validate(); err != nil {
		return err
	}
	if r.SiteURL == "" {
		return fmt.Errorf("%w: site url is required", ErrInvalidRequest)
	}
	if err := r.Window.Validate(); err != nil {
		return err
	}
	if r.StartRow < 0 {
		return fmt.Errorf("%w: start row must be >= 0", ErrInvalidRequest)
	}
	if r.RowLimit < 0 {
		return fmt.Errorf("%w: row limit must be >= 0", ErrInvalidRequest)
	}
	switch r.AggregationType {
	case "", AggregationAuto, AggregationByPage, AggregationByProperty:
	default:
		return fmt.Errorf("%w: aggregation type %q", ErrInvalidRequest, r.AggregationType)
	}
	switch r.DataState {
	case "", DataStateFinal, DataStateAll:
	default:
		return fmt.Errorf("%w: data state %q", ErrInvalidRequest, r.DataState)
	}
	return nil
}

// EffectiveRowLimit applies the default and clamps to MaxRowLimit.
func (r QueryRequest) EffectiveRowLimit() int {
	switch {
	case r.RowLimit <= 0:
		return DefaultRowLimit
	case r.RowLimit > MaxRowLimit:
		return MaxRowLimit
	default:
		return r.RowLimit
	}
}

// AnalyticsRow is one result row. DimensionValues align positionally with
// the DimensionSet that was queried.
type AnalyticsRow struct {
	DimensionValues []string `json:"dimension_values"`
	Impressions     int64    `json:"impressions"`
	Clicks          int64    `json:"clicks"`
	CTR             float64  `json:"ctr"`
	Position        float64  `json:"position"`
}

// StatRecord is the durable, deduplicated form of an AnalyticsRow.
//
// The natural key is SiteKey, DimensionSet, the five optional dimension
// values, DataDate and RecordedDate.
type StatRecord struct {
	SiteKey          string     `json:"site_key"`
	DimensionSet     string     `json:"dimension_set"`
	Query            *string    `json:"query,omitempty"`
	Page             *string    `json:"page,omitempty"`
	Country          *string    `json:"country,omitempty"`
	Device           *string    `json:"device,omitempty"`
	SearchAppearance *string    `json:"search_appearance,omitempty"`
	DataDate         *time.Time `json:"data_date,omitempty"`
	RecordedDate     time.Time  `json:"recorded_date"`

	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	CTR         float64   `json:"ctr"`
	Position    float64   `json:"position"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NaturalKey renders the natural key as a single string. Nil values render
// as "\x00" so they never collide with an empty string value.
func (r StatRecord) NaturalKey() string {
	parts := []string{
		r.SiteKey,
		r.DimensionSet,
		optional(r.Query),
		optional(r.Page),
		optional(r.Country),
		optional(r.Device),
		optional(r.SearchAppearance),
		optionalDay(r.DataDate),
		Day(r.RecordedDate).Format(DateLayout),
	}
	return strings.Join(parts, "\x1f")
}

func optional(s *string) string {
	if s == nil {
		return "\x00"
	}
	return *s
}

func optionalDay(t *time.Time) string {
	if t == nil {
		return "\x00"
	}
	return Day(*t).Format(DateLayout)
}

// UpsertResult counts how a batch was applied.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Total is Inserted plus Updated.
func (r UpsertResult) Total() int {
	return r.Inserted + r.Updated
}

// Add accumulates another result.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
}

// StatFilter selects stored records. Zero values leave a field unbounded.
type StatFilter struct {
	SiteURL      string
	From         time.Time
	To           time.Time
	DimensionSet string
	Limit        int
}

// Validate rejects an inverted date range.
func (f StatFilter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && Day(f.To).Before(Day(f.From)) {
		return fmt.Errorf("%w: to %s before from %s", ErrInvalidRequest,
			f.To.Format(DateLayout), f.From.Format(DateLayout))
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0", ErrInvalidRequest)
	}
	return nil
}

// Matches reports whether rec passes the filter. From and To bound the
// recorded date inclusively.
func (f StatFilter) Matches(rec StatRecord) bool {
	if f.SiteURL != "" && rec.SiteKey != SiteKey(f.SiteURL) {
		return false
	}
	if f.DimensionSet != "" && rec.DimensionSet != f.DimensionSet {
		return false
	}
	day := Day(rec.RecordedDate)
	if !f.From.IsZero() && day.Before(Day(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(Day(f.To)) {
		return false
	}
	return true
}

// Verdict is the simplified inspection verdict.
type Verdict string

// Verdicts.
const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictUnknown Verdict = "unknown"
)

// ParseVerdict maps the remote verdict enum.
func ParseVerdict(remote string) Verdict {
	switch remote {
	case "PASS":
		return VerdictPass
	case "FAIL":
		return VerdictFail
	default:
		return VerdictUnknown
	}
}

// InspectionResult is the typed outcome of one URL inspection.
type InspectionResult struct {
	URL                string    `json:"url"`
	IndexVerdict       Verdict   `json:"index_verdict"`
	CanBeIndexed       bool      `json:"can_be_indexed"`
	CoverageState      string    `json:"coverage_state"`
	GoogleCanonical    string    `json:"google_canonical"`
	UserCanonical      string    `json:"user_canonical"`
	MobileFriendly     bool      `json:"mobile_friendly"`
	MobileIssues       []string  `json:"mobile_issues"`
	RichResultsVerdict bool      `json:"rich_results_verdict"`
	RichResultsItems   []string  `json:"rich_results_items"`
	LastCrawlTime      time.Time `json:"last_crawl_time"`
}

// IndexingResult is returned by an accepted indexing request.
type IndexingResult struct {
	Accepted   bool      `json:"accepted"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	NotifyTime time.Time `json:"notify_time"`
}

// Sitemap is the status of one submitted sitemap.
type Sitemap struct {
	Path            string    `json:"path"`
	Type            string    `json:"type"`
	LastSubmitted   time.Time `json:"last_submitted"`
	LastDownloaded  time.Time `json:"last_downloaded"`
	IsPending       bool      `json:"is_pending"`
	IsSitemapsIndex bool      `json:"is_sitemaps_index"`
	Warnings        int64     `json:"warnings"`
	Errors          int64     `json:"errors"`
}

// UsageEntry is one append-only audit record of an external call.
type UsageEntry struct {
	Service      string    `json:"service"`
	Operation    string    `json:"operation"`
	Success      bool      `json:"success"`
	ResponseCode int       `json:"response_code"`
	Timestamp    time.Time `json:"timestamp"`
}

// UsageSummary aggregates usage entries for dashboards.
type UsageSummary struct {
	Service     string    `json:"service"`
	Since       time.Time `json:"since"`
	Total       int       `json:"total"`
	Successes   int       `json:"successes"`
	Failures    int       `json:"failures"`
	SuccessRate float64   `json:"success_rate"`
}

// RateLimitState snapshots one service's fixed window.
type RateLimitState struct {
	Service           string        `json:"service"`
	WindowStart       time.Time     `json:"window_start"`
	CallsInWindow     int           `json:"calls_in_window"`
	WindowLength      time.Duration `json:"window_length"`
	MaxCallsPerWindow int           `json:"max_calls_per_window"`
}
