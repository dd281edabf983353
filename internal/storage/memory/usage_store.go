package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// UsageStore is an append-only in-memory usage log.
type UsageStore struct {
	mu      sync.RWMutex
	entries []gsc.UsageEntry
}

var _ gsc.UsageStore = (*UsageStore)(nil)

// NewUsageStore constructs a UsageStore.
func NewUsageStore() *UsageStore {
	return &UsageStore{}
}

// AppendUsage appends one entry.
func (s *UsageStore) AppendUsage(_ context.Context, entry gsc.UsageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// ListUsage returns entries for service (all services when empty) with a
// timestamp at or after since, oldest first.
func (s *UsageStore) ListUsage(_ context.Context, service string, since time.Time) ([]gsc.UsageEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []gsc.UsageEntry
	for _, e := range s.entries {
		if service != "" && e.Service != service {
			continue
		}
		if e.Timestamp.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
