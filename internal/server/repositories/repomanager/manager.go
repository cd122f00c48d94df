// Package repomanager selects and wires the repository backends: PostgreSQL
// with embedded goose migrations, or the in-process memory store.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/books"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/outbox"
)

// MemoryDSN selects the memory backend in Open.
const MemoryDSN = "memory"

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Books() books.Repository
	Outbox() outbox.Repository
	Close() error
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open returns a migrated manager for dsn. MemoryDSN gives a fresh memory
// store; anything else is handed to the pgx driver.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	if dsn == MemoryDSN {
		return NewMemoryRepositoryManager(), nil
	}

	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return m, nil
}
