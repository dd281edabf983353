package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

const insertUsage = `INSERT INTO api_usage (service, operation, success, response_code, called_at)
VALUES ($1, $2, $3, $4, $5)`

// AppendUsage appends one usage entry.
func (s *Store) AppendUsage(ctx context.Context, entry gsc.UsageEntry) error {
	if _, err := s.pool.Exec(ctx, insertUsage,
		entry.Service, entry.Operation, entry.Success, entry.ResponseCode, entry.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// ListUsage returns entries at or after since, oldest first. An empty
// service matches all services.
func (s *Store) ListUsage(ctx context.Context, service string, since time.Time) ([]gsc.UsageEntry, error) {
	query := `SELECT service, operation, success, response_code, called_at FROM api_usage WHERE called_at >= $1`
	args := []any{since.UTC()}
	if service != "" {
		query += " AND service = $2"
		args = append(args, service)
	}
	query += " ORDER BY called_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var out []gsc.UsageEntry
	for rows.Next() {
		var e gsc.UsageEntry
		if err := rows.Scan(&e.Service, &e.Operation, &e.Success, &e.ResponseCode, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return out, nil
}
