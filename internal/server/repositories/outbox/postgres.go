package outbox

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/bookshelf/internal/dbx"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

const table = "index_outbox"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements Repository over a dbx.DBTX. Bound to a
// *sql.Tx it enqueues events atomically with the caller's own writes.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Enqueue(ctx context.Context, bookID string, op models.IndexOp) error {
	query, args, err := psql.Insert(table).
		Columns("book_id", "op").
		Values(bookID, string(op)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Pending(ctx context.Context, limit, maxAttempts int) ([]*models.IndexEvent, error) {
	b := psql.Select("id", "book_id", "op", "attempts", "created_at").
		From(table).
		OrderBy("id")
	if maxAttempts > 0 {
		b = b.Where(sq.Lt{"attempts": maxAttempts})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	var result []*models.IndexEvent
	for rows.Next() {
		var (
			ev models.IndexEvent
			op string
		)
		if err := rows.Scan(&ev.ID, &ev.BookID, &op, &ev.Attempts, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Op = models.IndexOp(op)
		result = append(result, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Ack(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := psql.Delete(table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to ack events: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Fail(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	query, args, err := psql.Update(table).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", msg).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	// zero rows is fine: a concurrent propagator may have acked it already
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
