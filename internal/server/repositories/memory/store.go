// Package memory is an in-process implementation of the books and outbox
// repositories. One mutex guards both, so a book write and its index event
// are atomic just like in the Postgres transaction.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/books"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/outbox"
)

var (
	_ books.Repository  = (*Store)(nil)
	_ outbox.Repository = (*Store)(nil)
)

type event struct {
	models.IndexEvent
	lastError string
}

type Store struct {
	mu     sync.Mutex
	books  map[string]*models.Book
	events []*event
	nextID int64
}

func NewStore() *Store {
	return &Store{books: make(map[string]*models.Book)}
}

func (s *Store) Create(ctx context.Context, b *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[b.ID]; ok {
		return fmt.Errorf("book %q already exists", b.ID)
	}
	s.books[b.ID] = b.Clone()
	s.enqueue(b.ID, models.IndexOpUpsert)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "book", ID: id}
	}
	return b.Clone(), nil
}

func (s *Store) Update(ctx context.Context, b *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.books[b.ID]
	if !ok {
		return &common.NotFoundError{Kind: "book", ID: b.ID}
	}
	next := b.Clone()
	// creator and creation time are immutable, as in the SQL update
	next.CreatorID = cur.CreatorID
	next.CreatedAt = cur.CreatedAt
	s.books[b.ID] = next
	s.enqueue(b.ID, models.IndexOpUpsert)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return &common.NotFoundError{Kind: "book", ID: id}
	}
	delete(s.books, id)
	s.enqueue(id, models.IndexOpDelete)
	return nil
}

func (s *Store) List(ctx context.Context, f models.Filter) ([]*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Book
	for _, b := range s.books {
		if f.Match(b) {
			result = append(result, b.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Title != result[j].Title {
			return result[i].Title < result[j].Title
		}
		return result[i].ID < result[j].ID
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

// Enqueue adds an event without a book change. Book writes enqueue on their
// own.
func (s *Store) Enqueue(ctx context.Context, bookID string, op models.IndexOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enqueue(bookID, op)
	return nil
}

func (s *Store) enqueue(bookID string, op models.IndexOp) {
	s.nextID++
	s.events = append(s.events, &event{IndexEvent: models.IndexEvent{
		ID:        s.nextID,
		BookID:    bookID,
		Op:        op,
		CreatedAt: time.Now().UTC(),
	}})
}

func (s *Store) Pending(ctx context.Context, limit, maxAttempts int) ([]*models.IndexEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.IndexEvent
	for _, e := range s.events {
		if maxAttempts > 0 && e.Attempts >= maxAttempts {
			continue
		}
		ev := e.IndexEvent
		result = append(result, &ev)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) Ack(ctx context.Context, ids ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.events[:0]
	for _, e := range s.events {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	// release acked events still referenced by the tail of the array
	clear(s.events[len(kept):])
	s.events = kept
	return nil
}

func (s *Store) Fail(ctx context.Context, id int64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			e.Attempts++
			if cause != nil {
				e.lastError = cause.Error()
			}
			break
		}
	}
	return nil
}
