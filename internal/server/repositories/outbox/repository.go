// Package outbox stores index events written in the same transaction as the
// book change they describe. The indexer drains it.
package outbox

import (
	"context"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

type Repository interface {
	// Enqueue records that bookID changed.
	Enqueue(ctx context.Context, bookID string, op models.IndexOp) error
	// Pending returns up to limit events with fewer than maxAttempts failed
	// attempts, oldest first.
	Pending(ctx context.Context, limit, maxAttempts int) ([]*models.IndexEvent, error)
	// Ack removes processed events.
	Ack(ctx context.Context, ids ...int64) error
	// Fail records a failed attempt for one event.
	Fail(ctx context.Context, id int64, cause error) error
}
