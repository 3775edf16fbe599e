package idempotency

import (
	"context"
	"sync"
)

type memoryEntry struct {
	completed bool
	result    Result
}

// MemoryStore is an in-process Store. Single-node deployments and tests use
// it directly; clustered deployments use the Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Begin(ctx context.Context, key string) (*Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		if entry.completed {
			result := entry.result
			return &result, true, nil
		}
		return nil, true, nil
	}

	s.entries[key] = &memoryEntry{}
	return nil, false, nil
}

func (s *MemoryStore) Complete(ctx context.Context, key string, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{completed: true, result: result}
	return nil
}

func (s *MemoryStore) Abort(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
