package repomanager

import (
	"context"

	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/books"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/memory"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/outbox"
)

// MemoryRepositoryManager serves both repositories from one memory.Store.
type MemoryRepositoryManager struct {
	store *memory.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: memory.NewStore()}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Books() books.Repository {
	return m.store
}

func (m *MemoryRepositoryManager) Outbox() outbox.Repository {
	return m.store
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}
