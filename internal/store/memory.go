package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore holds series in process memory. It backs tests and throwaway
// runs (`store.backend: memory`); series names equal peer IDs.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string][]RawRecord
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[string][]RawRecord)}
}

// Append adds a record to the peer's series.
func (s *MemoryStore) Append(ctx context.Context, rec RawRecord) error {
	if rec.PeerID == "" {
		return fmt.Errorf("append: peer id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[rec.PeerID] = append(s.series[rec.PeerID], rec)
	return nil
}

// Series lists peer IDs in lexical order.
func (s *MemoryStore) Series(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadSeries returns a copy of the series in append order.
func (s *MemoryStore) ReadSeries(ctx context.Context, name string) ([]RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.series[name]
	if !ok {
		return nil, fmt.Errorf("unknown series %q", name)
	}
	out := make([]RawRecord, len(records))
	copy(out, records)
	return out, nil
}

var _ ObservationStore = (*MemoryStore)(nil)
