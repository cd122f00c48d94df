// Package indexer propagates committed book changes from the outbox into the
// secondary index.
//
// Events carry only a book id. The propagator re-reads the book, so replaying
// an event or processing events out of order converges on the current state.
package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/logging"
	"github.com/dmitrijs2005/bookshelf/internal/server/index"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/outbox"
)

type BookGetter interface {
	GetByID(ctx context.Context, id string) (*models.Book, error)
}

type Options struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

type Propagator struct {
	outbox outbox.Repository
	books  BookGetter
	index  index.Index
	opts   Options
	logger logging.Logger
	kick   chan struct{}
}

func NewPropagator(ob outbox.Repository, books BookGetter, idx index.Index, opts Options, logger logging.Logger) *Propagator {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Propagator{
		outbox: ob,
		books:  books,
		index:  idx,
		opts:   opts,
		logger: logger.With("module", "indexer"),
		kick:   make(chan struct{}, 1),
	}
}

// Kick asks Run to flush now. It never blocks.
func (p *Propagator) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Flush processes one batch of pending events and returns how many were
// applied. Failed events stay in the outbox with their attempt count raised.
func (p *Propagator) Flush(ctx context.Context) (int, error) {
	events, err := p.outbox.Pending(ctx, p.opts.BatchSize, p.opts.MaxAttempts)
	if err != nil {
		return 0, err
	}

	results := make(map[string]error, len(events))
	var done []int64

	for _, ev := range events {
		applyErr, seen := results[ev.BookID]
		if !seen {
			applyErr = p.apply(ctx, ev.BookID)
			results[ev.BookID] = applyErr
		}

		if applyErr == nil {
			done = append(done, ev.ID)
			continue
		}

		p.logger.Warn(ctx, "index update failed", "book_id", ev.BookID, "event_id", ev.ID, "attempt", ev.Attempts+1, "error", applyErr)
		if err := p.outbox.Fail(ctx, ev.ID, applyErr); err != nil {
			return len(done), err
		}
		if p.opts.MaxAttempts > 0 && ev.Attempts+1 >= p.opts.MaxAttempts {
			p.logger.Error(ctx, "index event dead-lettered", "book_id", ev.BookID, "event_id", ev.ID, "attempts", ev.Attempts+1)
		}
	}

	if err := p.outbox.Ack(ctx, done...); err != nil {
		return 0, err
	}
	return len(done), nil
}

func (p *Propagator) apply(ctx context.Context, bookID string) error {
	b, err := p.books.GetByID(ctx, bookID)
	if errors.Is(err, common.ErrorNotFound) {
		return p.index.Remove(ctx, bookID)
	}
	if err != nil {
		return err
	}
	return p.index.Upsert(ctx, models.NewIndexRecord(b))
}

// Run flushes on every tick and every Kick until ctx ends.
func (p *Propagator) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.logger.Info(ctx, "indexer started", "interval", p.opts.Interval.String(), "batch", p.opts.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "indexer stopped")
			return nil
		case <-ticker.C:
		case <-p.kick:
		}

		n, err := p.Flush(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error(ctx, "outbox flush failed", "error", err)
			continue
		}
		// a full batch means there may be more waiting
		if n == p.opts.BatchSize {
			p.Kick()
		}
	}
}
