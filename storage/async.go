package storage

import (
	"context"
	"time"

	"github.com/go-mkcal/mkcal/internal/worker"
)

// Async runs Save, MarkDeleted and PurgeDeleted on one background
// goroutine, the same single-worker-mailbox split the original engine
// ran its database thread on. Every other method of the embedded
// Storage, including loads and notebook changes, runs synchronously
// on the caller's goroutine.
type Async struct {
	*Storage
	w *worker.Worker
}

// NewAsync wraps s with a worker mailbox of the given depth (0 for the
// worker package's default).
func NewAsync(s *Storage, depth int) *Async {
	return &Async{Storage: s, w: worker.New(depth)}
}

// Post queues fn to run on the worker goroutine without waiting for it.
func (a *Async) Post(fn func(ctx context.Context) error) {
	a.w.Post(fn)
}

// Save enqueues inc for a worker-goroutine Save and blocks until it
// commits (or fails).
func (a *Async) Save(ctx context.Context, inc *Incidence) error {
	return a.w.PostWait(ctx, func(ctx context.Context) error {
		return a.Storage.Save(ctx, inc)
	})
}

// MarkDeleted enqueues a worker-goroutine soft-delete and blocks until
// it commits.
func (a *Async) MarkDeleted(ctx context.Context, key InstanceKey) error {
	return a.w.PostWait(ctx, func(ctx context.Context) error {
		return a.Storage.MarkDeleted(ctx, key)
	})
}

// PurgeDeleted enqueues a worker-goroutine purge and blocks for its
// result.
func (a *Async) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := a.w.PostWait(ctx, func(ctx context.Context) error {
		var err error
		n, err = a.Storage.PurgeDeleted(ctx, cutoff)
		return err
	})
	return n, err
}

// Cancel makes every task that starts afterwards fail with
// context.Canceled until Resume; a task already running is not
// interrupted.
func (a *Async) Cancel() { a.w.Cancel() }

// Resume clears a prior Cancel.
func (a *Async) Resume() { a.w.Resume() }

// Close stops the worker goroutine, then closes the underlying
// storage engine.
func (a *Async) Close() error {
	a.w.Close()
	return a.Storage.Close()
}
