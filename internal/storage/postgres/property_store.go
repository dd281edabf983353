package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// SaveProperties replaces the stored listing in one transaction.
func (s *Store) SaveProperties(ctx context.Context, props []gsc.Property, fetchedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save properties: %w", err)
	}
	defer s.rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `DELETE FROM properties`); err != nil {
		return fmt.Errorf("clear properties: %w", err)
	}
	for i, p := range props {
		if _, err := tx.Exec(ctx,
			`INSERT INTO properties (site_url, permission_level, site_type, position) VALUES ($1, $2, $3, $4)`,
			p.SiteURL, string(p.PermissionLevel), string(p.SiteType), i,
		); err != nil {
			return fmt.Errorf("insert property %s: %w", p.SiteURL, err)
		}
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO property_listing (id, fetched_at) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET fetched_at = EXCLUDED.fetched_at`, fetchedAt.UTC()); err != nil {
		return fmt.Errorf("save listing time: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit properties: %w", err)
	}
	return nil
}

// LoadProperties returns the stored listing or gsc.ErrNotFound.
func (s *Store) LoadProperties(ctx context.Context) ([]gsc.Property, time.Time, error) {
	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT fetched_at FROM property_listing WHERE id = 1`).Scan(&fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, gsc.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load listing time: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT site_url, permission_level, site_type FROM properties ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load properties: %w", err)
	}
	defer rows.Close()

	props := []gsc.Property{}
	for rows.Next() {
		var p gsc.Property
		var level, siteType string
		if err := rows.Scan(&p.SiteURL, &level, &siteType); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan property: %w", err)
		}
		p.PermissionLevel = gsc.PermissionLevel(level)
		p.SiteType = gsc.SiteType(siteType)
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate properties: %w", err)
	}
	return props, fetchedAt.UTC(), nil
}
