// Package index is the eventually-consistent secondary index of books. It is
// written only by the indexer and read by listing and visibility waits.
package index

import (
	"context"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

// Index writes may race between propagators, so they are ordered by the
// record itself: Upsert ignores a record older than the stored one, and a
// removed id is never indexed again. Book ids are never reused.
type Index interface {
	// Upsert stores rec unless a newer UpdatedAt is stored or rec.ID was
	// removed.
	Upsert(ctx context.Context, rec models.IndexRecord) error
	// Remove is idempotent and final.
	Remove(ctx context.Context, id string) error
	// Find reports false without error when id is not indexed.
	Find(ctx context.Context, id string) (*models.IndexRecord, bool, error)
	// IDs lists indexed ids, sorted. An empty creatorID lists every id.
	IDs(ctx context.Context, creatorID string) ([]string, error)
}
