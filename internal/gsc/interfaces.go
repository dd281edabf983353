package gsc

import (
	"context"
	"time"
)

// Service names with independent quotas.
const (
	ServiceSearchConsole = "searchconsole"
	ServiceIndexing      = "indexing"
)

// Clock abstracts time for deterministic testing.
type Clock interface {
	Now() time.Time
}

// TokenProvider supplies a currently valid access token for a named service.
// Failures wrap ErrNoValidToken. Refresh is the provider's concern.
type TokenProvider interface {
	Token(ctx context.Context, service string) (string, error)
}

// RateLimiter grants or denies a call for a service. It never blocks.
type RateLimiter interface {
	TryAcquire(service string) bool
}

// UsageRecorder appends an audit entry for each external call attempt.
// Implementations must not fail the caller.
type UsageRecorder interface {
	Record(ctx context.Context, service, operation string, success bool, responseCode int)
}

// StatStore persists deduplicated statistics rows.
type StatStore interface {
	// UpsertStats writes records transactionally. A record whose natural key
	// already exists for the same recorded day updates metrics and UpdatedAt
	// in place; otherwise it is inserted.
	UpsertStats(ctx context.Context, records []StatRecord) (UpsertResult, error)
	// QueryStats returns stored records matching the filter.
	QueryStats(ctx context.Context, filter StatFilter) ([]StatRecord, error)
}

// UsageStore is the append-only usage log.
type UsageStore interface {
	AppendUsage(ctx context.Context, entry UsageEntry) error
	ListUsage(ctx context.Context, service string, since time.Time) ([]UsageEntry, error)
}

// PropertyStore persists the last successful property listing.
type PropertyStore interface {
	SaveProperties(ctx context.Context, props []Property, fetchedAt time.Time) error
	// LoadProperties returns ErrNotFound when nothing has been saved yet.
	LoadProperties(ctx context.Context) ([]Property, time.Time, error)
}
