// Package services contains server-side business logic. BookService is the
// canonical entity store of the catalog: it validates input, orders cover
// blob writes around row commits and exposes index-visibility waits.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/logging"
	"github.com/dmitrijs2005/bookshelf/internal/server/config"
	"github.com/dmitrijs2005/bookshelf/internal/server/covers"
	"github.com/dmitrijs2005/bookshelf/internal/server/index"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/books"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookshelf/internal/waiter"
)

// Kicker is notified after every committed write. The indexer's Propagator
// implements it.
type Kicker interface {
	Kick()
}

type BookService struct {
	books    books.Repository
	index    index.Index
	binder   *covers.Binder
	kicker   Kicker
	validate *validator.Validate
	waiter   *waiter.Waiter
	logger   logging.Logger
	now      func() time.Time
}

// NewBookService wires the service. kicker may be nil when nothing
// propagates in-process.
func NewBookService(m repomanager.RepositoryManager, idx index.Index, binder *covers.Binder, kicker Kicker, cfg *config.Config, logger logging.Logger) *BookService {
	return &BookService{
		books:    m.Books(),
		index:    idx,
		binder:   binder,
		kicker:   kicker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		waiter: waiter.New(
			waiter.WithMaxAttempts(cfg.WaitMaxAttempts),
			waiter.WithInterval(cfg.WaitInterval),
		),
		logger: logger.With("module", "books"),
		now:    time.Now,
	}
}

// timestamp is UTC with microsecond precision so it survives a Postgres
// round trip and compares equal in the index.
func (s *BookService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *BookService) kick() {
	if s.kicker != nil {
		s.kicker.Kick()
	}
}

// Create validates in, stores the cover first when one is given and then
// commits the book. A nil caller creates an anonymous book.
func (s *BookService) Create(ctx context.Context, caller *models.Caller, in models.BookInput) (*models.Book, error) {
	b := &models.Book{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Author:      in.Author,
		PublishedOn: normalizeDate(in.PublishedOn),
		Description: in.Description,
	}
	if caller != nil {
		b.CreatorID = caller.ID
	}
	if err := s.validateBook(b); err != nil {
		return nil, err
	}

	ts := s.timestamp()
	b.CreatedAt, b.UpdatedAt = ts, ts

	if in.Cover != nil {
		ref, err := s.binder.Attach(ctx, b.ID, in.Cover.FileName, in.Cover.Content)
		if err != nil {
			return nil, err
		}
		b.Cover = &ref
	}

	if err := s.books.Create(ctx, b); err != nil {
		if b.Cover != nil {
			if derr := s.binder.Detach(ctx, b.Cover); derr != nil {
				s.logger.Warn(ctx, "cover of failed create not deleted", "book_id", b.ID, "key", b.Cover.Key, "error", derr)
			}
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.kick()
	s.logger.Info(ctx, "book created", "book_id", b.ID, "creator_id", b.CreatorID, "has_cover", b.Cover != nil)

	b.Cover = s.binder.Resolve(b.Cover)
	return b, nil
}

// Update applies the non-nil fields of f. The stored book is unchanged when
// validation fails.
func (s *BookService) Update(ctx context.Context, id string, f models.BookFields) (*models.Book, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if f.Cover != nil && f.RemoveCover {
		return nil, &common.ValidationError{Field: "cover_image", Reason: "conflict"}
	}

	cur, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	if f.Title != nil {
		next.Title = *f.Title
	}
	if f.Author != nil {
		next.Author = *f.Author
	}
	if f.Description != nil {
		next.Description = *f.Description
	}
	if f.PublishedOn != nil {
		next.PublishedOn = normalizeDate(f.PublishedOn)
	}
	if err := s.validateBook(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.timestamp()

	switch {
	case f.Cover != nil:
		_, err = s.binder.Replace(ctx, id, cur.Cover, f.Cover.FileName, f.Cover.Content,
			func(ctx context.Context, ref models.BlobRef) error {
				next.Cover = &ref
				return s.books.Update(ctx, next)
			})
		if err != nil {
			return nil, err
		}

	case f.RemoveCover && cur.Cover != nil:
		next.Cover = nil
		if err := s.books.Update(ctx, next); err != nil {
			return nil, err
		}
		if err := s.binder.Detach(ctx, cur.Cover); err != nil {
			s.logger.Warn(ctx, "removed cover not deleted", "book_id", id, "key", cur.Cover.Key, "error", err)
		}

	default:
		if err := s.books.Update(ctx, next); err != nil {
			return nil, err
		}
	}

	s.kick()
	s.logger.Info(ctx, "book updated", "book_id", id)

	next.Cover = s.binder.Resolve(next.Cover)
	return next, nil
}

// Delete removes the book, then its cover blob. A failed blob delete is
// logged and left to the reaper.
func (s *BookService) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	cur, err := s.books.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.books.Delete(ctx, id); err != nil {
		return err
	}
	s.kick()

	if err := s.binder.Detach(ctx, cur.Cover); err != nil {
		s.logger.Warn(ctx, "cover of deleted book not deleted", "book_id", id, "key", cur.Cover.Key, "error", err)
	}

	s.logger.Info(ctx, "book deleted", "book_id", id)
	return nil
}

func (s *BookService) Get(ctx context.Context, id string) (*models.Book, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Cover = s.binder.Resolve(b.Cover)
	return b, nil
}

func (s *BookService) List(ctx context.Context, f models.Filter) ([]*models.Book, error) {
	list, err := s.books.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		b.Cover = s.binder.Resolve(b.Cover)
	}
	return list, nil
}

// CoverContent returns the cover bytes of book id.
func (s *BookService) CoverContent(ctx context.Context, id string) ([]byte, *models.BlobRef, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if b.Cover == nil {
		return nil, nil, &common.NotFoundError{Kind: "cover", ID: id}
	}
	data, err := s.binder.Content(ctx, b.Cover)
	if err != nil {
		return nil, nil, err
	}
	return data, b.Cover, nil
}

// FindIndexed reads the secondary index directly. The result may lag behind
// Get.
func (s *BookService) FindIndexed(ctx context.Context, id string) (*models.IndexRecord, bool, error) {
	return s.index.Find(ctx, id)
}

// AwaitIndexed blocks until the index holds b at its version or a later one,
// or returns *common.TimeoutError.
func (s *BookService) AwaitIndexed(ctx context.Context, b *models.Book) error {
	return s.waiter.Await(ctx, func(ctx context.Context) bool {
		rec, ok, err := s.index.Find(ctx, b.ID)
		if err != nil {
			s.logger.Debug(ctx, "index lookup failed", "book_id", b.ID, "error", err)
			return false
		}
		return ok && !rec.UpdatedAt.Before(b.UpdatedAt)
	})
}

// AwaitRemoved blocks until id is gone from the index.
func (s *BookService) AwaitRemoved(ctx context.Context, id string) error {
	return s.waiter.Await(ctx, func(ctx context.Context) bool {
		_, ok, err := s.index.Find(ctx, id)
		return err == nil && !ok
	})
}

func (s *BookService) validateBook(b *models.Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return &common.ValidationError{Field: "title", Reason: "blank"}
	}
	if err := s.validate.Struct(b); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return &common.ValidationError{Field: strings.ToLower(ve[0].Field()), Reason: reasonFor(ve[0].Tag())}
		}
		return err
	}
	return nil
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return "blank"
	case "max":
		return "too_long"
	default:
		return "invalid"
	}
}

// checkID rejects ids that cannot exist before any backend is asked.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &common.NotFoundError{Kind: "book", ID: id}
	}
	return nil
}

// normalizeDate maps nil and the zero time to nil and truncates to the day.
func normalizeDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := models.DateOnly(*t)
	return &d
}
