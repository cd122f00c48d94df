package books

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertBook  = `^INSERT INTO books \(id,title,author,published_on,description,creator_id,cover_key,cover_file_name,cover_content_type,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8,\$9,\$10,\$11\)$`
	insertEvent = `^INSERT INTO index_outbox \(book_id,op\) VALUES \(\$1,\$2\)$`
	selectBook  = `^SELECT id, title, author, published_on, description, creator_id, cover_key, cover_file_name, cover_content_type, created_at, updated_at FROM books`
	updateBook  = `^UPDATE books SET title = \$1, author = \$2, published_on = \$3, description = \$4, cover_key = \$5, cover_file_name = \$6, cover_content_type = \$7, updated_at = \$8 WHERE id = \$9$`
	deleteBook  = `^DELETE FROM books WHERE id = \$1$`
)

var bookColumns = []string{
	"id", "title", "author", "published_on", "description", "creator_id",
	"cover_key", "cover_file_name", "cover_content_type", "created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func sampleBook() *models.Book {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 123000, time.UTC)
	published := time.Date(1859, 4, 30, 0, 0, 0, 0, time.UTC)
	return &models.Book{
		ID:          "0b0c8f4e-4b5c-4c1a-9d7e-2f1a3c4d5e6f",
		Title:       "A Tale of Two Cities",
		Author:      "Charles Dickens",
		PublishedOn: &published,
		Description: "novel",
		CreatorID:   "u1",
		Cover: &models.BlobRef{
			Key:         "cover_images/0b0c8f4e-4b5c-4c1a-9d7e-2f1a3c4d5e6f/cover.png",
			FileName:    "cover.png",
			ContentType: "image/png",
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestCreate_InsertsRowAndEventInOneTx(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	b := sampleBook()

	mock.ExpectBegin()
	mock.ExpectExec(insertBook).
		WithArgs(b.ID, b.Title, b.Author, sqlmock.AnyArg(), b.Description, b.CreatorID,
			b.Cover.Key, "cover.png", "image/png", b.CreatedAt, b.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvent).
		WithArgs(b.ID, "upsert").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_WithoutCoverWritesEmptyColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	b := sampleBook()
	b.Cover = nil
	b.PublishedOn = nil

	mock.ExpectBegin()
	mock.ExpectExec(insertBook).
		WithArgs(b.ID, b.Title, b.Author, nil, b.Description, b.CreatorID,
			"", "", "", b.CreatedAt, b.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvent).WithArgs(b.ID, "upsert").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_InsertErrorRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(insertBook).WillReturnError(errors.New("check violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleBook())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: check violation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_OutboxErrorRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(insertBook).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvent).WillReturnError(errors.New("outbox down"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleBook())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	want := sampleBook()
	rows := sqlmock.NewRows(bookColumns).AddRow(
		want.ID, want.Title, want.Author, *want.PublishedOn, want.Description, want.CreatorID,
		want.Cover.Key, want.Cover.FileName, want.Cover.ContentType, want.CreatedAt, want.UpdatedAt)

	mock.ExpectQuery(selectBook + ` WHERE id = \$1$`).WithArgs(want.ID).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NullableColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Now().UTC()
	rows := sqlmock.NewRows(bookColumns).AddRow("id1", "Emma", "", nil, "", "", "", "", "", ts, ts)
	mock.ExpectQuery(selectBook).WithArgs("id1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "id1")
	require.NoError(t, err)
	assert.Nil(t, got.PublishedOn)
	assert.Nil(t, got.Cover)
	assert.Empty(t, got.CreatorID)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectBook).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)

	var nf *common.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectBook).WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByID(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), "failed to select book")
}

func TestUpdate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	b := sampleBook()

	mock.ExpectBegin()
	mock.ExpectExec(updateBook).
		WithArgs(b.Title, b.Author, sqlmock.AnyArg(), b.Description, b.Cover.Key, "cover.png", "image/png", b.UpdatedAt, b.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvent).WithArgs(b.ID, "upsert").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFoundRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(updateBook).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), sampleBook())
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_RowsAffectedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(updateBook).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), sampleBook())
	require.Error(t, err)
	assert.Regexp(t, `rows affected error: .*rows-err`, err.Error())
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(deleteBook).WithArgs("id1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvent).WithArgs("id1", "delete").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "id1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(deleteBook).WithArgs("id1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "id1")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_UnexpectedRowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(deleteBook).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "id1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected rows affected: 2")
}

func TestList_FilteredAndLimited(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Now().UTC()
	rows := sqlmock.NewRows(bookColumns).
		AddRow("a", "Emma", "Jane Austen", nil, "", "u1", "", "", "", ts, ts).
		AddRow("b", "Persuasion", "Jane Austen", nil, "", "u1", "", "", "", ts, ts)

	mock.ExpectQuery(selectBook + ` WHERE creator_id = \$1 ORDER BY title, id LIMIT 5$`).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), models.Filter{CreatorID: "u1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Emma", got[0].Title)
	assert.Equal(t, "Persuasion", got[1].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_All(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectBook + ` ORDER BY title, id$`).
		WillReturnRows(sqlmock.NewRows(bookColumns))

	got, err := repo.List(context.Background(), models.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectBook).WillReturnError(errors.New("boom"))

	_, err := repo.List(context.Background(), models.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select books")
}

func TestList_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Now().UTC()
	rows := sqlmock.NewRows(bookColumns).
		AddRow("a", "Emma", "", nil, "", "", "", "", "", ts, ts).
		RowError(0, errors.New("row broke"))
	mock.ExpectQuery(selectBook).WillReturnRows(rows)

	_, err := repo.List(context.Background(), models.Filter{})
	require.Error(t, err)
}
