// Package upsert turns analytics rows into deduplicated stat records.
package upsert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
)

// Upserter writes rows into a gsc.StatStore keyed by natural key per day.
type Upserter struct {
	store  gsc.StatStore
	clock  gsc.Clock
	logger *zap.Logger
}

// New creates an Upserter.
func New(store gsc.StatStore, clock gsc.Clock, logger *zap.Logger) *Upserter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upserter{store: store, clock: clock, logger: logger}
}

// Store upserts rows returned for one dimension set. Rows whose value count
// does not match the set are skipped. Re-running with the same rows on the
// same day updates metrics in place.
func (u *Upserter) Store(
	ctx context.Context,
	siteURL string,
	set gsc.DimensionSet,
	window gsc.DateWindow,
	rows []gsc.AnalyticsRow,
) (gsc.UpsertResult, error) {
	if err := set.Validate(); err != nil {
		return gsc.UpsertResult{}, err
	}
	if len(rows) == 0 {
		return gsc.UpsertResult{}, nil
	}
	now := u.clock.Now().UTC()
	records := make([]gsc.StatRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, err := buildRecord(siteURL, set, window, row, now)
		if err != nil {
			skipped++
			u.logger.Debug("skipping row", zap.String("site_url", siteURL),
				zap.String("dimension_set", set.Key()), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		u.logger.Warn("skipped malformed rows",
			zap.String("site_url", siteURL),
			zap.String("dimension_set", set.Key()),
			zap.Int("skipped", skipped))
	}
	if len(records) == 0 {
		return gsc.UpsertResult{}, nil
	}
	res, err := u.store.UpsertStats(ctx, records)
	if err != nil {
		return gsc.UpsertResult{}, fmt.Errorf("upsert %s %s: %w", siteURL, set.Key(), err)
	}
	metrics.ObserveRowsUpserted(siteURL, res.Inserted, res.Updated)
	return res, nil
}

func buildRecord(
	siteURL string,
	set gsc.DimensionSet,
	window gsc.DateWindow,
	row gsc.AnalyticsRow,
	now time.Time,
) (gsc.StatRecord, error) {
	if len(row.DimensionValues) != len(set) {
		return gsc.StatRecord{}, fmt.Errorf("row has %d values for %d dimensions",
			len(row.DimensionValues), len(set))
	}
	rec := gsc.StatRecord{
		SiteKey:      gsc.SiteKey(siteURL),
		DimensionSet: set.Key(),
		RecordedDate: gsc.Day(now),
		Impressions:  row.Impressions,
		Clicks:       row.Clicks,
		CTR:          row.CTR,
		Position:     row.Position,
		WindowStart:  gsc.Day(window.Start),
		WindowEnd:    gsc.Day(window.End),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i, dim := range set {
		value := row.DimensionValues[i]
		switch dim {
		case gsc.DimensionQuery:
			rec.Query = &value
		case gsc.DimensionPage:
			rec.Page = &value
		case gsc.DimensionCountry:
			rec.Country = &value
		case gsc.DimensionDevice:
			rec.Device = &value
		case gsc.DimensionSearchAppearance:
			rec.SearchAppearance = &value
		case gsc.DimensionDate:
			day, err := gsc.ParseDay(value)
			if err != nil {
				return gsc.StatRecord{}, err
			}
			rec.DataDate = &day
		}
	}
	return rec, nil
}
