package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// PropertyStore keeps the last property listing.
type PropertyStore struct {
	mu        sync.RWMutex
	props     []gsc.Property
	fetchedAt *time.Time
}

var _ gsc.PropertyStore = (*PropertyStore)(nil)

// NewPropertyStore constructs a PropertyStore.
func NewPropertyStore() *PropertyStore {
	return &PropertyStore{}
}

// SaveProperties replaces the stored listing.
func (s *PropertyStore) SaveProperties(_ context.Context, props []gsc.Property, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = append([]gsc.Property(nil), props...)
	s.fetchedAt = pointerTime(fetchedAt)
	return nil
}

// LoadProperties returns the stored listing or gsc.ErrNotFound.
func (s *PropertyStore) LoadProperties(_ context.Context) ([]gsc.Property, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fetchedAt == nil {
		return nil, time.Time{}, gsc.ErrNotFound
	}
	return append([]gsc.Property(nil), s.props...), *s.fetchedAt, nil
}
