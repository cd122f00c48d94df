package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/dbx"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/outbox"
)

const table = "books"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	columns = []string{
		"id", "title", "author", "published_on", "description", "creator_id",
		"cover_key", "cover_file_name", "cover_content_type", "created_at", "updated_at",
	}
)

// PostgresRepository implements Repository on PostgreSQL. Writes run in a
// transaction together with the outbox insert.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, b *models.Book) error {
	key, name, ctype := coverColumns(b)
	query, args, err := psql.Insert(table).
		Columns(columns...).
		Values(b.ID, b.Title, b.Author, nullDate(b.PublishedOn), b.Description, b.CreatorID,
			key, name, ctype, b.CreatedAt, b.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return outbox.NewPostgresRepository(tx).Enqueue(ctx, b.ID, models.IndexOpUpsert)
	})
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	query, args, err := psql.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	b, err := scanBook(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{Kind: "book", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select book: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) Update(ctx context.Context, b *models.Book) error {
	key, name, ctype := coverColumns(b)
	query, args, err := psql.Update(table).
		Set("title", b.Title).
		Set("author", b.Author).
		Set("published_on", nullDate(b.PublishedOn)).
		Set("description", b.Description).
		Set("cover_key", key).
		Set("cover_file_name", name).
		Set("cover_content_type", ctype).
		Set("updated_at", b.UpdatedAt).
		Where(sq.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := execOne(ctx, tx, b.ID, query, args...); err != nil {
			return err
		}
		return outbox.NewPostgresRepository(tx).Enqueue(ctx, b.ID, models.IndexOpUpsert)
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := execOne(ctx, tx, id, query, args...); err != nil {
			return err
		}
		return outbox.NewPostgresRepository(tx).Enqueue(ctx, id, models.IndexOpDelete)
	})
}

func (r *PostgresRepository) List(ctx context.Context, f models.Filter) ([]*models.Book, error) {
	b := psql.Select(columns...).From(table).OrderBy("title", "id")
	if f.CreatorID != "" {
		b = b.Where(sq.Eq{"creator_id": f.CreatorID})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select books: %w", err)
	}
	defer rows.Close()

	var result []*models.Book
	for rows.Next() {
		item, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// execOne runs a statement that must touch exactly one book row.
func execOne(ctx context.Context, tx dbx.DBTX, id, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return &common.NotFoundError{Kind: "book", ID: id}
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(s scanner) (*models.Book, error) {
	var (
		b                models.Book
		published        sql.NullTime
		key, name, ctype string
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &published, &b.Description, &b.CreatorID,
		&key, &name, &ctype, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if published.Valid {
		d := models.DateOnly(published.Time)
		b.PublishedOn = &d
	}
	if key != "" {
		b.Cover = &models.BlobRef{Key: key, FileName: name, ContentType: ctype}
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func coverColumns(b *models.Book) (key, name, ctype string) {
	if b.Cover == nil {
		return "", "", ""
	}
	return b.Cover.Key, b.Cover.FileName, b.Cover.ContentType
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: models.DateOnly(*t), Valid: true}
}
