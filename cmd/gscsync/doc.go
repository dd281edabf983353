// Package main hosts the sync service entrypoint.
//
// Architecture overview:
//   - Remote client: internal/searchconsole.Client talks to the Search Console, URL Inspection and Indexing APIs.
//     Every call goes through a token provider, a non-blocking fixed-window rate limiter and the usage recorder,
//     in that order, so a denied call never reaches the network.
//   - Sync engine: internal/syncer.Syncer walks every syncable property and every configured dimension set over
//     the lookback window, paging the analytics query and handing each page to internal/upsert, which writes
//     deduplicated rows keyed by site, dimension set, dimension values and recorded day.
//   - Persistence: stats, the usage log and the last property listing live in memory, SQLite or Postgres
//     (config.Storage.Backend). Postgres migrations are embedded and applied on start when enabled.
//   - Scheduling: internal/scheduler registers the daily sync and the hourly sitemap check as suture services next
//     to the HTTP server; an overlapping tick is skipped.
//
// Operational notes:
//   - A missing token stops a batch; any other failure is logged and contained to its dimension set or property.
//   - Restarting mid-window does not reset the call budget: the limiter is seeded from the usage log.
//   - Observability: zap logs carry site, dimension set and run id; Prometheus collectors are served on /metrics.
//
// Quick checklist:
//   - Configure env vars: GSCSYNC_GOOGLE_CLIENT_ID, GSCSYNC_GOOGLE_CLIENT_SECRET,
//     GSCSYNC_GOOGLE_REFRESH_TOKENS_SEARCHCONSOLE, GSCSYNC_GOOGLE_REFRESH_TOKENS_INDEXING, GSCSYNC_STORAGE_BACKEND and
//     GSCSYNC_STORAGE_POSTGRES_DSN or GSCSYNC_STORAGE_SQLITE_PATH. A .env file in the working directory is read first.
//   - Run the service: go run ./cmd/gscsync -config config.yaml
//   - Run one job from cron: go run ./cmd/gscsync -run daily (or -run hourly)
package main
