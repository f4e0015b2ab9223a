// Package worker runs storage operations on a single background
// goroutine, mirroring the Qt worker-thread split the original engine
// used: Post queues a task and returns immediately (the
// Qt::QueuedConnection analogue), PostWait queues a task and blocks
// until it finishes (the Qt::BlockingQueuedConnection analogue).
package worker

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// task is one unit of work submitted to the worker loop.
type task struct {
	fn   func(ctx context.Context) error
	done chan error // nil for a Post task; non-nil for a PostWait task
}

// Worker serializes calendar mutations onto one goroutine so
// concurrent Post/PostWait callers never race inside the storage
// facade.
type Worker struct {
	tasks     chan task
	cancelled atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// New starts the worker loop with a mailbox of the given depth.
func New(depth int) *Worker {
	if depth <= 0 {
		depth = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		tasks:  make(chan task, depth),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case t := <-w.tasks:
			w.run(t)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case t := <-w.tasks:
			if t.done != nil {
				t.done <- context.Canceled
			}
		default:
			return
		}
	}
}

func (w *Worker) run(t task) {
	if w.cancelled.Load() {
		if t.done != nil {
			t.done <- context.Canceled
		}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("worker: task panicked")
			if t.done != nil {
				t.done <- nil
			}
		}
	}()
	err := t.fn(w.ctx)
	if t.done != nil {
		t.done <- err
	}
}

// Post enqueues fn to run on the worker goroutine and returns
// immediately without waiting for it to run.
func (w *Worker) Post(fn func(ctx context.Context) error) {
	select {
	case w.tasks <- task{fn: fn}:
	case <-w.ctx.Done():
	}
}

// PostWait enqueues fn and blocks until it has run, returning its
// error (or context.Canceled if the worker was cancelled first).
func (w *Worker) PostWait(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	select {
	case w.tasks <- task{fn: fn, done: done}:
	case <-w.ctx.Done():
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel marks the worker so any task not yet started is skipped with
// context.Canceled. A task already running is not interrupted: the
// context it receives is not cancelled by this call.
func (w *Worker) Cancel() {
	w.cancelled.Store(true)
}

// Resume clears a prior Cancel, allowing new tasks to run again.
func (w *Worker) Resume() {
	w.cancelled.Store(false)
}

// Close stops the loop, failing any task still queued with
// context.Canceled, and waits for the goroutine to exit.
func (w *Worker) Close() {
	w.cancel()
	<-w.done
}
