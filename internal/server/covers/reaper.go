package covers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/logging"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
	"github.com/dmitrijs2005/bookshelf/internal/server/storage"
)

// BookGetter is the read side of books.Repository the reaper needs.
type BookGetter interface {
	GetByID(ctx context.Context, id string) (*models.Book, error)
}

// Reaper deletes cover blobs that no book references. Blobs younger than
// minAge are skipped so uploads whose book row is not committed yet survive.
type Reaper struct {
	storage  storage.ObjectStorage
	books    BookGetter
	minAge   time.Duration
	schedule string
	logger   logging.Logger
	now      func() time.Time
}

func NewReaper(st storage.ObjectStorage, books BookGetter, minAge time.Duration, schedule string, logger logging.Logger) *Reaper {
	return &Reaper{
		storage:  st,
		books:    books,
		minAge:   minAge,
		schedule: schedule,
		logger:   logger.With("module", "reaper"),
		now:      time.Now,
	}
}

// Sweep makes one pass over cover_images/ and returns how many blobs it
// deleted. A lookup failure aborts the pass; delete failures are logged and
// retried on the next pass.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	objects, err := r.storage.List(ctx, common.CoverImagesPrefix+"/")
	if err != nil {
		return 0, &common.StorageError{Op: "list", Key: common.CoverImagesPrefix + "/", Err: err}
	}

	cutoff := r.now().Add(-r.minAge)
	deleted := 0

	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}

		orphan, err := r.isOrphan(ctx, obj.Key)
		if err != nil {
			return deleted, err
		}
		if !orphan {
			continue
		}

		if err := r.storage.Delete(ctx, obj.Key); err != nil {
			r.logger.Warn(ctx, "orphan cover not deleted", "key", obj.Key, "error", err)
			continue
		}
		deleted++
		r.logger.Info(ctx, "orphan cover deleted", "key", obj.Key)
	}
	return deleted, nil
}

func (r *Reaper) isOrphan(ctx context.Context, key string) (bool, error) {
	id, ok := BookIDFromKey(key)
	if !ok {
		return true, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return true, nil
	}

	b, err := r.books.GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup book %s: %w", id, err)
	}
	return b.Cover == nil || b.Cover.Key != key, nil
}

// Start runs Sweep on the cron schedule until stop is called or ctx ends.
// Overlapping runs are skipped.
func (r *Reaper) Start(ctx context.Context) (stop func(), err error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(r.schedule, func() {
		n, err := r.Sweep(ctx)
		if err != nil {
			r.logger.Error(ctx, "cover sweep failed", "error", err, "deleted", n)
			return
		}
		r.logger.Debug(ctx, "cover sweep done", "deleted", n)
	}); err != nil {
		return nil, fmt.Errorf("reaper schedule %q: %w", r.schedule, err)
	}

	c.Start()
	r.logger.Info(ctx, "reaper started", "schedule", r.schedule, "min_age", r.minAge.String())

	return func() { <-c.Stop().Done() }, nil
}
