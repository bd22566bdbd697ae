package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvcompare/internal/report"
)

// MemoryStore keeps the last Capacity runs in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	order    []uuid.UUID // oldest first
	records  map[uuid.UUID]*Record
}

// NewMemoryStore creates a store holding up to capacity runs.
// A non-positive capacity keeps DefaultListLimit runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultListLimit
	}
	return &MemoryStore{
		capacity: capacity,
		records:  make(map[uuid.UUID]*Record),
	}
}

func (s *MemoryStore) Save(ctx context.Context, run *report.Run) error {
	data, err := report.Marshal(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.records[run.ID] = &Record{Summary: Summarize(run), Report: data}

	for len(s.order) > s.capacity {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Summary, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[s.order[i]].Summary)
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	kept := s.order[:0]
	for _, id := range s.order {
		if s.records[id].StartedAt.Before(cutoff) {
			delete(s.records, id)
			pruned++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return pruned, nil
}
