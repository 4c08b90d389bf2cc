package future

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State is the settlement state of a Future.
type State int

const (
	// StatePending means neither Resolve nor Reject has taken effect yet.
	StatePending State = iota
	// StateResolved means the future settled with a value.
	StateResolved
	// StateRejected means the future settled with an error.
	StateRejected
)

// String returns a lowercase name for the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrPanicked wraps a panic recovered from a Then/ThenAsync continuation.
	ErrPanicked = errors.New("future: continuation panicked")

	// ErrSelfResolve is the rejection used when a future is resolved with itself.
	ErrSelfResolve = errors.New("future: resolved with itself")

	errNilRejection = errors.New("future: rejected with nil error")
	errNilFuture    = errors.New("future: continuation returned nil future")
)

// Future is a single-assignment deferred value.
//
// A Future settles exactly once, either with a value (Resolve) or an error
// (Reject). Continuations registered before settlement run synchronously on the
// goroutine that settles the future; continuations registered afterwards run
// immediately on the registering goroutine.
//
// Thread-safety: all methods are safe for concurrent use.
type Future[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	conts []func(T, error)
	done  chan struct{}
}

// New creates a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with v.
// Returns false if the future was already settled.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(StateResolved, v, nil)
}

// Reject settles the future with err.
// A nil err is replaced with a generic rejection so that a rejected future
// always carries a non-nil error.
// Returns false if the future was already settled.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		err = errNilRejection
	}
	var zero T
	return f.settle(StateRejected, zero, err)
}

// ResolveWith adopts the outcome of inner: f settles when inner settles, with
// the same value or error. f still settles at most once; if it is settled by
// other means first, inner's outcome is ignored.
func (f *Future[T]) ResolveWith(inner *Future[T]) {
	if inner == nil {
		f.Reject(errNilFuture)
		return
	}
	if inner == f {
		f.Reject(ErrSelfResolve)
		return
	}
	if f.State() != StatePending {
		return
	}
	inner.subscribe(func(v T, err error) {
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	})
}

// OnSuccess registers fn to run with the value once the future resolves.
// Returns f for chaining.
func (f *Future[T]) OnSuccess(fn func(T)) *Future[T] {
	f.subscribe(func(v T, err error) {
		if err == nil {
			guard(func() { fn(v) })
		}
	})
	return f
}

// OnError registers fn to run with the error once the future rejects.
// Registering an error handler does not consume the rejection: continuations
// created with Then still observe it.
// Returns f for chaining.
func (f *Future[T]) OnError(fn func(error)) *Future[T] {
	f.subscribe(func(_ T, err error) {
		if err != nil {
			guard(func() { fn(err) })
		}
	})
	return f
}

// Done returns a channel that is closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// State returns the current settlement state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

func (f *Future[T]) settle(state State, v T, err error) bool {
	f.mu.Lock()
	if f.state != StatePending {
		f.mu.Unlock()
		return false
	}
	f.state = state
	f.value = v
	f.err = err
	conts := f.conts
	f.conts = nil
	close(f.done)
	f.mu.Unlock()

	for _, c := range conts {
		c(v, err)
	}
	return true
}

// subscribe registers c to run on settlement, or runs it now if already settled.
func (f *Future[T]) subscribe(c func(T, error)) {
	f.mu.Lock()
	if f.state == StatePending {
		f.conts = append(f.conts, c)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	c(v, err)
}

// guard runs a terminal callback, logging instead of propagating a panic into
// whichever goroutine settled the future.
func guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("future callback panicked", "panic", r)
		}
	}()
	fn()
}
