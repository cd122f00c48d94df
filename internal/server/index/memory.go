package index

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]models.IndexRecord
	removed map[string]struct{}
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		records: make(map[string]models.IndexRecord),
		removed: make(map[string]struct{}),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, rec models.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, gone := m.removed[rec.ID]; gone {
		return nil
	}
	if cur, ok := m.records[rec.ID]; ok && cur.UpdatedAt.After(rec.UpdatedAt) {
		return nil
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryIndex) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	m.removed[id] = struct{}{}
	return nil
}

func (m *MemoryIndex) Find(ctx context.Context, id string) (*models.IndexRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (m *MemoryIndex) IDs(ctx context.Context, creatorID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id, rec := range m.records {
		if creatorID == "" || rec.CreatorID == creatorID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
