package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

const updateStat = `UPDATE stat_records
SET impressions = ?, clicks = ?, ctr = ?, position = ?,
	window_start = ?, window_end = ?, updated_at = ?
WHERE key_hash = ?`

const insertStat = `INSERT INTO stat_records (
	key_hash, site_key, dimension_set, query, page, country, device,
	search_appearance, data_date, recorded_date, impressions, clicks, ctr,
	position, window_start, window_end, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// UpsertStats writes the batch in one transaction: update by natural key
// hash, insert when nothing was updated.
func (s *Store) UpsertStats(ctx context.Context, records []gsc.StatRecord) (gsc.UpsertResult, error) {
	var res gsc.UpsertResult
	if len(records) == 0 {
		return res, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin upsert: %w", err)
	}
	defer rollback(tx, s.logger)

	for _, rec := range records {
		key := s.hasher.Key(rec.NaturalKey())
		out, err := tx.ExecContext(ctx, updateStat,
			rec.Impressions, rec.Clicks, rec.CTR, rec.Position,
			formatDay(rec.WindowStart), formatDay(rec.WindowEnd), formatTime(rec.UpdatedAt),
			key,
		)
		if err != nil {
			return gsc.UpsertResult{}, fmt.Errorf("update stat: %w", err)
		}
		affected, err := out.RowsAffected()
		if err != nil {
			return gsc.UpsertResult{}, fmt.Errorf("update stat rows: %w", err)
		}
		if affected > 0 {
			res.Updated++
			continue
		}
		if _, err := tx.ExecContext(ctx, insertStat,
			key, rec.SiteKey, rec.DimensionSet,
			nullString(rec.Query), nullString(rec.Page), nullString(rec.Country),
			nullString(rec.Device), nullString(rec.SearchAppearance), nullDay(rec),
			formatDay(rec.RecordedDate),
			rec.Impressions, rec.Clicks, rec.CTR, rec.Position,
			formatDay(rec.WindowStart), formatDay(rec.WindowEnd),
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
		); err != nil {
			return gsc.UpsertResult{}, fmt.Errorf("insert stat: %w", err)
		}
		res.Inserted++
	}
	if err := tx.Commit(); err != nil {
		return gsc.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return res, nil
}

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
	if filter.SiteURL != "" {
		where = append(where, "site_key = ?")
		args = append(args, gsc.SiteKey(filter.SiteURL))
	}
	if filter.DimensionSet != "" {
		where = append(where, "dimension_set = ?")
		args = append(args, filter.DimensionSet)
	}
	if !filter.From.IsZero() {
		where = append(where, "recorded_date >= ?")
		args = append(args, formatDay(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "recorded_date <= ?")
		args = append(args, formatDay(filter.To))
	}
	query := `SELECT site_key, dimension_set, query, page, country, device,
	search_appearance, data_date, recorded_date, impressions, clicks, ctr,
	position, window_start, window_end, created_at, updated_at
FROM stat_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_date, dimension_set, clicks DESC, key_hash"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []gsc.StatRecord
	for rows.Next() {
		rec, err := scanStat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return out, nil
}

func scanStat(rows *sql.Rows) (gsc.StatRecord, error) {
	var (
		rec                                               gsc.StatRecord
		query, page, country, device, appearance, dataDay sql.NullString
		recorded, winStart, winEnd, created, updated      string
	)
	if err := rows.Scan(
		&rec.SiteKey, &rec.DimensionSet, &query, &page, &country, &device,
		&appearance, &dataDay, &recorded, &rec.Impressions, &rec.Clicks, &rec.CTR,
		&rec.Position, &winStart, &winEnd, &created, &updated,
	); err != nil {
		return gsc.StatRecord{}, fmt.Errorf("scan stat: %w", err)
	}
	rec.Query = stringPtr(query)
	rec.Page = stringPtr(page)
	rec.Country = stringPtr(country)
	rec.Device = stringPtr(device)
	rec.SearchAppearance = stringPtr(appearance)

	var err error
	if dataDay.Valid {
		d, perr := gsc.ParseDay(dataDay.String)
		if perr != nil {
			return gsc.StatRecord{}, perr
		}
		rec.DataDate = &d
	}
	if rec.RecordedDate, err = gsc.ParseDay(recorded); err != nil {
		return gsc.StatRecord{}, err
	}
	if rec.WindowStart, err = gsc.ParseDay(winStart); err != nil {
		return gsc.StatRecord{}, err
	}
	if rec.WindowEnd, err = gsc.ParseDay(winEnd); err != nil {
		return gsc.StatRecord{}, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return gsc.StatRecord{}, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return gsc.StatRecord{}, err
	}
	return rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullDay(rec gsc.StatRecord) sql.NullString {
	if rec.DataDate == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDay(*rec.DataDate), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
