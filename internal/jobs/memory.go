package jobs

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/pkg/pagination"
)

// MemoryStore is an in-process System implementation. It backs tests and
// broker-less deployments; the engine's concurrency contract (optimistic
// versioning, deep-copied reads) matches the PostgreSQL store.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[uuid.UUID]*Job
	pagination pagination.Config
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore(pageCfg pagination.Config) *MemoryStore {
	return &MemoryStore{
		records:    make(map[uuid.UUID]*Job),
		pagination: pageCfg,
	}
}

func (s *MemoryStore) Create(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[j.ID]; exists {
		return ErrConflict
	}

	j.Version = 1
	s.records[j.ID] = j.Snapshot()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[j.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != j.Version {
		return ErrConflict
	}

	j.Version++
	s.records[j.ID] = j.Snapshot()
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id uuid.UUID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.Snapshot(), nil
}

func (s *MemoryStore) List(
	_ context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	page.Normalize(s.pagination)

	s.mu.RLock()
	matched := make([]*Job, 0, len(s.records))
	for _, j := range s.records {
		if filters.Status != "" && j.Status != filters.Status {
			continue
		}
		matched = append(matched, j)
	}
	s.mu.RUnlock()

	// Newest first, matching the PostgreSQL store's default sort.
	sort.Slice(matched, func(i, k int) bool {
		return matched[i].CreatedAt.After(matched[k].CreatedAt)
	})

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PageSize
	if end > total {
		end = total
	}

	data := make([]Job, 0, end-start)
	for _, j := range matched[start:end] {
		data = append(data, *j.Snapshot())
	}

	result := pagination.NewPageResult(data, total, page.Page, page.PageSize)
	return &result, nil
}
