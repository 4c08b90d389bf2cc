package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Task is a unit of work run on the executor's worker goroutine.
// The ctx passed to a task carries the worker token (see OnWorker).
type Task func(ctx context.Context)

var (
	// ErrStopped is returned when work is offered to a stopped executor.
	ErrStopped = errors.New("executor: stopped")

	// ErrAlreadyRunning is returned by Run when another Run is active.
	ErrAlreadyRunning = errors.New("executor: already running")
)

// workerKey marks contexts handed to tasks by a specific executor.
type workerKey struct{}

// token is stamped on the context of one task. It is only valid while that
// task runs, so a context retained past the task no longer counts as the
// worker.
type token struct {
	owner  *Executor
	active atomic.Bool
}

// Executor is a single-worker FIFO task runner.
//
// Submit may be called from any goroutine. Run drains the queue on exactly one
// goroutine, one task at a time, in submission order. State owned by the
// worker therefore needs no further locking as long as it is only touched from
// inside tasks.
//
// The queue is unbounded so that a task may submit follow-up tasks without
// blocking on its own worker.
type Executor struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{} // buffered, size 1; coalesces wakeups

	running   atomic.Bool
	processed atomic.Int64
	logger    *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for task panics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an idle executor. Call Run to start the worker.
func New(opts ...Option) *Executor {
	e := &Executor{
		tasks:  make([]Task, 0, 64),
		signal: make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit appends t to the back of the queue.
// Returns false if the executor has been stopped.
func (e *Executor) Submit(t Task) bool {
	if t == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.tasks = append(e.tasks, t)

	select {
	case e.signal <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of submitted tasks not yet started.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// Processed returns the number of tasks run so far.
func (e *Executor) Processed() int64 {
	return e.processed.Load()
}

// OnWorker reports whether ctx is the context of a task running on this
// executor. Code that may be called both from inside and outside the worker
// uses it to decide between running synchronously and submitting a task.
func (e *Executor) OnWorker(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	tok, _ := ctx.Value(workerKey{}).(*token)
	return tok != nil && tok.owner == e && tok.active.Load()
}

// Stop closes the queue. Tasks already submitted still run; Run returns once
// they are done.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	close(e.signal)
}

// Run processes tasks until ctx is cancelled or Stop is called and the queue
// is empty. It must be called from exactly one goroutine.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	for {
		if t, ok := e.tryDequeue(); ok {
			e.runTask(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case _, open := <-e.signal:
			if !open && e.Len() == 0 {
				return nil
			}
		}
	}
}

func (e *Executor) tryDequeue() (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tasks) == 0 {
		return nil, false
	}
	t := e.tasks[0]
	e.tasks[0] = nil // release the closure for GC
	if len(e.tasks) == 1 {
		e.tasks = e.tasks[:0]
	} else {
		e.tasks = e.tasks[1:]
	}
	return t, true
}

// runTask runs t with a fresh worker token, logging a panic instead of
// letting it kill the worker.
func (e *Executor) runTask(ctx context.Context, t Task) {
	tok := &token{owner: e}
	tok.active.Store(true)
	defer func() {
		tok.active.Store(false)
		e.processed.Add(1)
		if r := recover(); r != nil {
			e.logger.Error("executor task panicked", "panic", fmt.Sprint(r))
		}
	}()
	t(context.WithValue(ctx, workerKey{}, tok))
}
