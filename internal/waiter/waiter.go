// Package waiter polls a caller-supplied condition until it holds, giving up
// after a fixed number of evaluations. It is used wherever a write has to be
// observed through an eventually-consistent read path.
package waiter

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 5
	DefaultInterval    = time.Second
)

// Predicate reports whether the awaited state has been reached. It is opaque
// to the waiter.
type Predicate func(ctx context.Context) bool

type Option func(*Waiter)

// WithMaxAttempts sets the total number of evaluations. Values below 1 mean 1.
func WithMaxAttempts(n int) Option {
	return func(w *Waiter) {
		if n < 1 {
			n = 1
		}
		w.maxAttempts = n
	}
}

// WithInterval sets the pause between evaluations. Negative values mean 0.
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d < 0 {
			d = 0
		}
		w.interval = d
	}
}

// Waiter is immutable after New and safe for concurrent use.
type Waiter struct {
	maxAttempts int
	interval    time.Duration
}

func New(opts ...Option) *Waiter {
	w := &Waiter{maxAttempts: DefaultMaxAttempts, interval: DefaultInterval}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var errNotYet = errors.New("condition not met")

// Await evaluates p until it returns true. The first evaluation is attempt 1;
// after the last failed attempt a *common.TimeoutError is returned. A
// cancelled ctx interrupts the pause and its error is returned.
func (w *Waiter) Await(ctx context.Context, p Predicate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	attempts := 0

	interval := w.interval
	backoff := retry.WithMaxRetries(uint64(w.maxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		return interval, false
	}))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if p(ctx) {
			return nil
		}
		return retry.RetryableError(errNotYet)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotYet):
		return &common.TimeoutError{Attempts: attempts, Elapsed: time.Since(start)}
	default:
		return err
	}
}

// Await is New(opts...).Await(ctx, p).
func Await(ctx context.Context, p Predicate, opts ...Option) error {
	return New(opts...).Await(ctx, p)
}
