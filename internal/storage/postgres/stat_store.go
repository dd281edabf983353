package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// xmax is zero only for rows inserted by this statement.
const upsertStat = `
INSERT INTO stat_records (
	key_hash, site_key, dimension_set, query, page, country, device,
	search_appearance, data_date, recorded_date, impressions, clicks, ctr,
	position, window_start, window_end, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (key_hash) DO UPDATE SET
	impressions  = EXCLUDED.impressions,
	clicks       = EXCLUDED.clicks,
	ctr          = EXCLUDED.ctr,
	position     = EXCLUDED.position,
	window_start = EXCLUDED.window_start,
	window_end   = EXCLUDED.window_end,
	updated_at   = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`

// UpsertStats writes the batch in one transaction using ON CONFLICT on the
// natural key hash.
func (s *Store) UpsertStats(ctx context.Context, records []gsc.StatRecord) (gsc.UpsertResult, error) {
	var res gsc.UpsertResult
	if len(records) == 0 {
		return res, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin upsert: %w", err)
	}
	defer s.rollback(ctx, tx)

	for _, rec := range records {
		var inserted bool
		if err := tx.QueryRow(ctx, upsertStat, statArgs(s.hasher.Key(rec.NaturalKey()), rec)...).Scan(&inserted); err != nil {
			return gsc.UpsertResult{}, fmt.Errorf("upsert stat: %w", err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return gsc.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return res, nil
}

func statArgs(key string, rec gsc.StatRecord) []any {
	var dataDate any
	if rec.DataDate != nil {
		dataDate = gsc.Day(*rec.DataDate)
	}
	return []any{
		key,
		rec.SiteKey,
		rec.DimensionSet,
		rec.Query,
		rec.Page,
		rec.Country,
		rec.Device,
		rec.SearchAppearance,
		dataDate,
		gsc.Day(rec.RecordedDate),
		rec.Impressions,
		rec.Clicks,
		rec.CTR,
		rec.Position,
		gsc.Day(rec.WindowStart),
		gsc.Day(rec.WindowEnd),
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	}
}

const selectStats = `SELECT site_key, dimension_set, query, page, country, device,
	search_appearance, data_date, recorded_date, impressions, clicks, ctr,
	position, window_start, window_end, created_at, updated_at
FROM stat_records`

// QueryStats returns matching records ordered by recorded date, dimension set
// and clicks descending.
func (s *Store) QueryStats(ctx context.Context, filter gsc.StatFilter) ([]gsc.StatRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.SiteURL != "" {
		add("site_key = $%d", gsc.SiteKey(filter.SiteURL))
	}
	if filter.DimensionSet != "" {
		add("dimension_set = $%d", filter.DimensionSet)
	}
	if !filter.From.IsZero() {
		add("recorded_date >= $%d", gsc.Day(filter.From))
	}
	if !filter.To.IsZero() {
		add("recorded_date <= $%d", gsc.Day(filter.To))
	}
	query := selectStats
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_date, dimension_set, clicks DESC, key_hash"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []gsc.StatRecord
	for rows.Next() {
		var rec gsc.StatRecord
		if err := rows.Scan(
			&rec.SiteKey, &rec.DimensionSet, &rec.Query, &rec.Page, &rec.Country, &rec.Device,
			&rec.SearchAppearance, &rec.DataDate, &rec.RecordedDate, &rec.Impressions, &rec.Clicks,
			&rec.CTR, &rec.Position, &rec.WindowStart, &rec.WindowEnd, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return out, nil
}

