package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/executor"
	"github.com/roach88/runq/internal/future"
	"github.com/roach88/runq/internal/store"
)

// DefaultIdlePoll is how often WaitIdle re-checks a busy drain.
const DefaultIdlePoll = 10 * time.Millisecond

// tracerName is the instrumentation scope for command spans.
const tracerName = "github.com/roach88/runq/internal/scheduler"

// State is the drain state of the scheduler.
type State int32

const (
	// StateIdle means no drain is active.
	StateIdle State = iota
	// StateLoading means a pending scan is in progress.
	StateLoading
	// StateExecuting means a row is claimed and its command is in flight.
	StateExecuting
	// StateSettling means follow-ons are being persisted.
	StateSettling
)

// String returns a lowercase name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExecuting:
		return "executing"
	case StateSettling:
		return "settling"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Scheduler runs queued commands one at a time in (batch, id) order.
//
// All scheduler state is owned by a single executor worker. Public methods
// are safe from any goroutine; they submit a task and return a future.
//
// Thread-safety model:
//   - ExecuteQueue, Append*, Purge*: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - CurrentBatch, State: safe from any goroutine (atomic mirrors)
type Scheduler struct {
	store    *store.Store
	registry *command.Registry
	exec     *executor.Executor
	logger   *slog.Logger
	tracer   trace.Tracer
	ids      IDGenerator
	observer Observer

	deleteExecuted bool
	idlePoll       time.Duration

	// Worker-owned. Only touched from tasks running on exec.
	drain        string
	snapshot     []store.Record
	cursor       int
	stale        bool
	currentBatch int
	executed     int

	// Mirrors for readers off the worker.
	state atomic.Int32
	batch atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDeleteExecuted controls whether finished rows are deleted (true, the
// default) or kept with status Executed for auditing (false).
func WithDeleteExecuted(del bool) Option {
	return func(s *Scheduler) {
		s.deleteExecuted = del
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracerProvider enables a span per executed command.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithIDGenerator sets the drain id generator.
//
// Default: UUIDv7Generator.
// Use NewFixedGenerator in tests that compare traces.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithExecutor supplies the worker. The caller remains responsible for
// running it if it is shared; Scheduler.Run runs it otherwise.
func WithExecutor(e *executor.Executor) Option {
	return func(s *Scheduler) {
		if e != nil {
			s.exec = e
		}
	}
}

// WithObserver registers fn to receive scheduler events on the worker.
func WithObserver(fn Observer) Option {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

// WithIdlePoll sets how often WaitIdle re-checks a busy drain.
func WithIdlePoll(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.idlePoll = d
		}
	}
}

// New creates a Scheduler over st, resolving command names through reg.
// Call Run to start processing.
func New(st *store.Store, reg *command.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:          st,
		registry:       reg,
		logger:         slog.Default(),
		tracer:         tracenoop.NewTracerProvider().Tracer(tracerName),
		ids:            UUIDv7Generator{},
		deleteExecuted: true,
		idlePoll:       DefaultIdlePoll,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = executor.New(executor.WithLogger(s.logger))
	}
	return s
}

// Run starts the worker and blocks until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting", "delete_executed", s.deleteExecuted)
	err := s.exec.Run(ctx)
	s.logger.Info("scheduler stopped")
	return err
}

// Stop closes the worker queue. Tasks already submitted still run.
// A command still in flight will not be settled.
func (s *Scheduler) Stop() {
	s.exec.Stop()
}

// State returns the current drain state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// CurrentBatch returns the batch that appends and priority-0 follow-ons
// target.
func (s *Scheduler) CurrentBatch() int {
	return int(s.batch.Load())
}

// ExecuteQueue starts draining the queue. If a drain is already active the
// call is a no-op. The decision is made on the worker, after every task
// submitted before this call, so rows appended just before are never missed.
//
// Returns false if the scheduler has been stopped.
func (s *Scheduler) ExecuteQueue() bool {
	return s.exec.Submit(s.kick)
}

// WaitIdle blocks until no drain is active and all previously submitted work
// has run, or ctx is done.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		idle := future.New[bool]()
		if !s.exec.Submit(func(context.Context) { idle.Resolve(s.State() == StateIdle) }) {
			return executor.ErrStopped
		}
		ok, err := idle.Await(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.idlePoll):
		}
	}
}

// onWorker runs fn synchronously if ctx belongs to a task on s's worker,
// otherwise submits it. Either way the result arrives through the future.
func onWorker[T any](s *Scheduler, ctx context.Context, fn func(context.Context) (T, error)) *future.Future[T] {
	if ctx != nil && s.exec.OnWorker(ctx) {
		v, err := fn(ctx)
		if err != nil {
			return future.Rejected[T](err)
		}
		return future.Resolved(v)
	}

	f := future.New[T]()
	ok := s.exec.Submit(func(wctx context.Context) {
		v, err := fn(wctx)
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	})
	if !ok {
		f.Reject(executor.ErrStopped)
	}
	return f
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Scheduler) setBatch(b int) {
	s.currentBatch = b
	s.batch.Store(int64(b))
}

func (s *Scheduler) emit(ev Event) {
	if s.observer == nil {
		return
	}
	ev.Drain = s.drain
	s.observer(ev)
}
