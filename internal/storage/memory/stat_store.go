// Package memory keeps statistics, usage and properties in process memory for
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// StatStore is an in-memory gsc.StatStore keyed by natural key.
type StatStore struct {
	mu      sync.RWMutex
	records map[string]gsc.StatRecord
}

var _ gsc.StatStore = (*StatStore)(nil)

// NewStatStore constructs a StatStore.
func NewStatStore() *StatStore {
	return &StatStore{records: make(map[string]gsc.StatRecord)}
}

// UpsertStats applies the batch under a single lock, so concurrent writers to
// the same key never interleave within a row.
func (s *StatStore) UpsertStats(_ context.Context, records []gsc.StatRecord) (gsc.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res gsc.UpsertResult
	for _, rec := range records {
		key := rec.NaturalKey()
		existing, ok := s.records[key]
		if !ok {
			s.records[key] = cloneRecord(rec)
			res.Inserted++
			continue
		}
		existing.Impressions = rec.Impressions
		existing.Clicks = rec.Clicks
		existing.CTR = rec.CTR
		existing.Position = rec.Position
		existing.WindowStart = rec.WindowStart
		existing.WindowEnd = rec.WindowEnd
		existing.UpdatedAt = rec.UpdatedAt
		s.records[key] = existing
		res.Updated++
	}
	return res, nil
}

// QueryStats returns matching records ordered by recorded date, dimension set
// and clicks descending.
func (s *StatStore) QueryStats(_ context.Context, filter gsc.StatFilter) ([]gsc.StatRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]gsc.StatRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Matches(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.RecordedDate.Equal(b.RecordedDate) {
			return a.RecordedDate.Before(b.RecordedDate)
		}
		if a.DimensionSet != b.DimensionSet {
			return a.DimensionSet < b.DimensionSet
		}
		if a.Clicks != b.Clicks {
			return a.Clicks > b.Clicks
		}
		return a.NaturalKey() < b.NaturalKey()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len reports how many records are stored.
func (s *StatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(rec gsc.StatRecord) gsc.StatRecord {
	cp := rec
	cp.Query = cloneString(rec.Query)
	cp.Page = cloneString(rec.Page)
	cp.Country = cloneString(rec.Country)
	cp.Device = cloneString(rec.Device)
	cp.SearchAppearance = cloneString(rec.SearchAppearance)
	if rec.DataDate != nil {
		d := *rec.DataDate
		cp.DataDate = &d
	}
	return cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func pointerTime(t time.Time) *time.Time {
	return &t
}
