// Package future provides a write-once result container that can be awaited without blocking the producer.
package future

import (
	"context"
	"sync"
)

// Future holds the eventual outcome of an asynchronous operation: either a value or an error.
// It can be completed exactly once; later attempts are ignored.
type Future[T any] struct {
	mu    sync.Mutex
	done  chan struct{}
	value T
	err   error
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future that is already resolved with v.
func Completed[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

// Failed returns a future that is already resolved with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Complete resolves the future with v. Returns false if the future was already resolved.
func (f *Future[T]) Complete(v T) bool {
	return f.resolve(v, nil)
}

// Fail resolves the future with err. Returns false if the future was already resolved.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.resolve(zero, err)
}

func (f *Future[T]) resolve(v T, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return false
	default:
	}
	f.value = v
	f.err = err
	close(f.done)
	return true
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get waits for the future to resolve or for ctx to be done, whichever happens first.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the outcome without blocking. done is false if the future is still pending.
func (f *Future[T]) TryGet() (value T, done bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Then returns a future resolved by applying fn to the outcome of f.
func Then[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	out := New[U]()
	go func() {
		<-f.done
		v, err := fn(f.value, f.err)
		if err != nil {
			out.Fail(err)
		} else {
			out.Complete(v)
		}
	}()
	return out
}
