package history

import (
	"context"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Record)}
}

func (m *MemoryStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Winners = slices.Clone(rec.Winners)
	m.records[rec.SessionCode] = append(m.records[rec.SessionCode], rec)
	return nil
}

func (m *MemoryStore) List(_ context.Context, sessionCode string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, len(m.records[sessionCode]))
	for i, rec := range m.records[sessionCode] {
		rec.Winners = slices.Clone(rec.Winners)
		out[i] = rec
	}
	slices.SortStableFunc(out, func(a, b Record) int { return a.Sequence - b.Sequence })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
