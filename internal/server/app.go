// Package server wires the bookshelf components from configuration and runs
// the background workers: the index propagator and the orphan cover reaper.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/bookshelf/internal/logging"
	"github.com/dmitrijs2005/bookshelf/internal/server/config"
	"github.com/dmitrijs2005/bookshelf/internal/server/covers"
	"github.com/dmitrijs2005/bookshelf/internal/server/index"
	"github.com/dmitrijs2005/bookshelf/internal/server/indexer"
	"github.com/dmitrijs2005/bookshelf/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookshelf/internal/server/services"
	"github.com/dmitrijs2005/bookshelf/internal/server/storage"
)

var (
	openRepositories = repomanager.Open
	openStorage      = storage.New
	dialRedis        = func(ctx context.Context, c *config.Config) (index.Index, error) {
		idx, err := index.DialRedis(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	repos      repomanager.RepositoryManager
	index      index.Index
	storage    storage.ObjectStorage
	propagator *indexer.Propagator
	reaper     *covers.Reaper
	books      *services.BookService
}

// NewApp opens every backend named by c. Backends opened before a failure are
// closed again.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (_ *App, err error) {
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	repos, err := openRepositories(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.repos = repos

	idx, err := openIndex(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("index init error: %w", err)
	}
	app.index = idx

	st, err := openStorage(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	app.storage = st

	app.propagator = indexer.NewPropagator(app.repos.Outbox(), app.repos.Books(), app.index, indexer.Options{
		Interval:    c.IndexInterval,
		BatchSize:   c.IndexBatchSize,
		MaxAttempts: c.IndexMaxAttempts,
	}, logger)

	binder := covers.NewBinder(app.storage, c.S3PublicURL, logger)
	app.reaper = covers.NewReaper(app.storage, app.repos.Books(), c.ReaperMinAge, c.ReaperSchedule, logger)
	app.books = services.NewBookService(app.repos, app.index, binder, app.propagator, c, logger)

	return app, nil
}

func openIndex(ctx context.Context, c *config.Config) (index.Index, error) {
	if c.RedisAddr == config.MemoryBackend {
		return index.NewMemoryIndex(), nil
	}
	return dialRedis(ctx, c)
}

// Books returns the entity store.
func (app *App) Books() *services.BookService {
	return app.books
}

func (app *App) Config() *config.Config {
	return app.config
}

// Close releases the database and index connections.
func (app *App) Close() error {
	var errs []error
	if app.repos != nil {
		if err := app.repos.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := app.index.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %v", errs)
	}
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// StartPropagator runs the propagator in the background until ctx is done.
// The returned func waits for it to exit.
func (app *App) StartPropagator(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.propagator.Run(ctx); err != nil {
			app.logger.Error(ctx, "propagator stopped", "error", err)
		}
	}()
	return wg.Wait
}

// Run starts the propagator and the reaper and blocks until ctx is cancelled
// or the process receives SIGINT, SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	stopReaper, err := app.reaper.Start(ctx)
	if err != nil {
		return fmt.Errorf("reaper: %w", err)
	}

	waitPropagator := app.StartPropagator(ctx)

	<-ctx.Done()

	stopReaper()
	waitPropagator()

	app.logger.Info(context.Background(), "app stopped")
	return nil
}
