package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// AppendUsage appends one usage entry.
func (s *Store) AppendUsage(ctx context.Context, entry gsc.UsageEntry) error {
	success := 0
	if entry.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_usage (service, operation, success, response_code, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.Service, entry.Operation, success, entry.ResponseCode, formatTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// ListUsage returns entries at or after since, oldest first. An empty
// service matches all services.
func (s *Store) ListUsage(ctx context.Context, service string, since time.Time) ([]gsc.UsageEntry, error) {
	query := `SELECT service, operation, success, response_code, timestamp FROM api_usage WHERE timestamp >= ?`
	args := []any{formatTime(since)}
	if service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}
	query += " ORDER BY timestamp, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []gsc.UsageEntry
	for rows.Next() {
		var (
			entry   gsc.UsageEntry
			success int
			ts      string
		)
		if err := rows.Scan(&entry.Service, &entry.Operation, &success, &entry.ResponseCode, &ts); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		entry.Success = success == 1
		if entry.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return out, nil
}
