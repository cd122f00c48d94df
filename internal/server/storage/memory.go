package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

type memObject struct {
	content      []byte
	contentType  string
	lastModified time.Time
}

type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memObject
	// now stamps LastModified; tests move it to age objects.
	now func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memObject), now: time.Now}
}

func (m *MemoryStorage) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{
		content:      append([]byte(nil), content...),
		contentType:  contentType,
		lastModified: m.now().UTC(),
	}
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, notFound(key)
	}
	return append([]byte(nil), obj.content...), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStorage) List(ctx context.Context, prefix string) ([]models.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, models.ObjectInfo{Key: k, Size: int64(len(obj.content)), LastModified: obj.lastModified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SetClock replaces the time source used for LastModified.
func (m *MemoryStorage) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
