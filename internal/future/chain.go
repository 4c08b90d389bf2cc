package future

import (
	"fmt"
	"sync"
)

// Then returns a future that resolves with fn applied to f's value.
// If f rejects, the returned future rejects with the same error without
// calling fn. If fn returns an error or panics, the returned future rejects.
func Then[T, R any](f *Future[T], fn func(T) (R, error)) *Future[R] {
	next := New[R]()
	f.subscribe(func(v T, err error) {
		if err != nil {
			next.Reject(err)
			return
		}
		r, err := call(fn, v)
		if err != nil {
			next.Reject(err)
			return
		}
		next.Resolve(r)
	})
	return next
}

// ThenAsync is Then for continuations that produce another future. The
// returned future adopts the outcome of the future fn returns.
func ThenAsync[T, R any](f *Future[T], fn func(T) (*Future[R], error)) *Future[R] {
	next := New[R]()
	f.subscribe(func(v T, err error) {
		if err != nil {
			next.Reject(err)
			return
		}
		inner, err := call(fn, v)
		if err != nil {
			next.Reject(err)
			return
		}
		next.ResolveWith(inner)
	})
	return next
}

// All resolves with the values of fs, in the order given, once every future
// has resolved. It rejects with the first rejection observed.
func All[T any](fs ...*Future[T]) *Future[[]T] {
	out := New[[]T]()
	if len(fs) == 0 {
		out.Resolve([]T{})
		return out
	}

	var mu sync.Mutex
	results := make([]T, len(fs))
	remaining := len(fs)

	for i, f := range fs {
		f.subscribe(func(v T, err error) {
			if err != nil {
				out.Reject(err)
				return
			}
			mu.Lock()
			results[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Resolve(results)
			}
		})
	}
	return out
}

// call invokes fn, converting a panic into an ErrPanicked error.
func call[T, R any](fn func(T) (R, error), v T) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, p)
		}
	}()
	return fn(v)
}
