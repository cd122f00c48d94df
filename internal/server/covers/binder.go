// Package covers ties a book's cover image blob to the book's lifecycle.
//
// Binder owns the ordering rules: a replacement blob is written before the
// book references it, and the old blob is removed only after the new
// reference is committed. Reaper removes whatever a failed cleanup left
// behind.
package covers

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/logging"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
	"github.com/dmitrijs2005/bookshelf/internal/server/storage"
)

// CommitFunc persists the book change that makes ref the live cover.
type CommitFunc func(ctx context.Context, ref models.BlobRef) error

type Binder struct {
	storage storage.ObjectStorage
	baseURL string
	logger  logging.Logger
}

func NewBinder(st storage.ObjectStorage, publicURL string, logger logging.Logger) *Binder {
	return &Binder{
		storage: st,
		baseURL: strings.TrimRight(publicURL, "/"),
		logger:  logger.With("module", "covers"),
	}
}

// Key returns cover_images/{bookID}/{fileName}.
func Key(bookID, fileName string) string {
	return common.CoverImagesPrefix + "/" + bookID + "/" + fileName
}

func (b *Binder) Key(bookID, fileName string) string {
	return Key(bookID, fileName)
}

// BookIDFromKey extracts the book id from a cover key. ok is false for keys
// Key could not have produced.
func BookIDFromKey(key string) (id string, ok bool) {
	rest, found := strings.CutPrefix(key, common.CoverImagesPrefix+"/")
	if !found {
		return "", false
	}
	id, name, found := strings.Cut(rest, "/")
	if !found || id == "" || validateFileName(name) != nil {
		return "", false
	}
	return id, true
}

func validateFileName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return &common.ValidationError{Field: "cover_image", Reason: "invalid_name"}
	}
	return nil
}

// URL is the public address of key.
func (b *Binder) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return b.baseURL + "/" + strings.Join(parts, "/")
}

// Resolve fills ref.URL. A nil ref stays nil.
func (b *Binder) Resolve(ref *models.BlobRef) *models.BlobRef {
	if ref == nil {
		return nil
	}
	ref.URL = b.URL(ref.Key)
	return ref
}

// Attach writes content under the book's key and returns the reference. The
// caller still has to persist it.
func (b *Binder) Attach(ctx context.Context, bookID, fileName string, content []byte) (models.BlobRef, error) {
	if err := validateFileName(fileName); err != nil {
		return models.BlobRef{}, err
	}

	key := Key(bookID, fileName)
	contentType := mimetype.Detect(content).String()

	if err := b.storage.Put(ctx, key, content, contentType); err != nil {
		return models.BlobRef{}, &common.StorageError{Op: "put", Key: key, Err: err}
	}

	b.logger.Debug(ctx, "cover stored", "key", key, "content_type", contentType, "size", len(content))

	return models.BlobRef{
		Key:         key,
		FileName:    fileName,
		ContentType: contentType,
		URL:         b.URL(key),
	}, nil
}

// Replace writes the new blob, runs commit, and only then removes old.
//
// A failed write returns before commit runs. A failed commit leaves old in
// place and the new blob unreferenced; that is logged and left to the
// reaper. When the new blob lands on old's key, old's bytes are kept aside
// and written back if commit fails. A failed delete of old is logged and not
// returned.
func (b *Binder) Replace(ctx context.Context, bookID string, old *models.BlobRef, fileName string, content []byte, commit CommitFunc) (models.BlobRef, error) {
	var saved []byte
	sameKey := old != nil && old.Key == Key(bookID, fileName)
	if sameKey {
		data, err := b.storage.Get(ctx, old.Key)
		switch {
		case errors.Is(err, common.ErrorNotFound):
		case err != nil:
			return models.BlobRef{}, &common.StorageError{Op: "get", Key: old.Key, Err: err}
		default:
			saved = data
		}
	}

	ref, err := b.Attach(ctx, bookID, fileName, content)
	if err != nil {
		return models.BlobRef{}, err
	}

	if err := commit(ctx, ref); err != nil {
		if !sameKey {
			b.logger.Warn(ctx, "cover written but not referenced", "book_id", bookID, "key", ref.Key, "error", err)
			return models.BlobRef{}, err
		}
		b.restore(ctx, bookID, old, saved)
		return models.BlobRef{}, err
	}

	if old != nil && !sameKey {
		if err := b.storage.Delete(ctx, old.Key); err != nil {
			b.logger.Warn(ctx, "old cover not deleted", "book_id", bookID, "key", old.Key, "error", err)
		}
	}
	return ref, nil
}

// restore puts saved back under old.Key after a failed same-key replace.
func (b *Binder) restore(ctx context.Context, bookID string, old *models.BlobRef, saved []byte) {
	if saved == nil {
		b.logger.Warn(ctx, "cover overwritten but book update failed", "book_id", bookID, "key", old.Key)
		return
	}
	if err := b.storage.Put(ctx, old.Key, saved, old.ContentType); err != nil {
		b.logger.Error(ctx, "cover not restored after failed book update", "book_id", bookID, "key", old.Key, "error", err)
		return
	}
	b.logger.Warn(ctx, "cover restored after failed book update", "book_id", bookID, "key", old.Key)
}

// Detach deletes the blob behind ref. Nil refs and missing blobs are not
// errors.
func (b *Binder) Detach(ctx context.Context, ref *models.BlobRef) error {
	if ref == nil || ref.Key == "" {
		return nil
	}
	if err := b.storage.Delete(ctx, ref.Key); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return &common.StorageError{Op: "delete", Key: ref.Key, Err: err}
	}
	b.logger.Debug(ctx, "cover deleted", "key", ref.Key)
	return nil
}

// Content reads the blob behind ref.
func (b *Binder) Content(ctx context.Context, ref *models.BlobRef) ([]byte, error) {
	if ref == nil {
		return nil, &common.NotFoundError{Kind: "cover", ID: ""}
	}
	data, err := b.storage.Get(ctx, ref.Key)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, &common.NotFoundError{Kind: "cover", ID: ref.Key}
	}
	if err != nil {
		return nil, &common.StorageError{Op: "get", Key: ref.Key, Err: err}
	}
	return data, nil
}
