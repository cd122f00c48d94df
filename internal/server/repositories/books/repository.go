// Package books is the canonical store of book records.
package books

import (
	"context"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

// Repository persists books. Every successful write also enqueues an index
// event atomically with the row change.
type Repository interface {
	Create(ctx context.Context, b *models.Book) error
	// GetByID returns *common.NotFoundError when no row matches.
	GetByID(ctx context.Context, id string) (*models.Book, error)
	// Update overwrites every mutable column of an existing row.
	Update(ctx context.Context, b *models.Book) error
	Delete(ctx context.Context, id string) error
	// List returns matching books ordered by title, then id.
	List(ctx context.Context, f models.Filter) ([]*models.Book, error)
}
