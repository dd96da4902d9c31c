package workers

import (
	"context"

	"github.com/pkg/errors"
)

// Pool bounds how many blocking backend calls run at once. Calls are
// executed on their own goroutine and the result is handed back over a
// channel, so the caller can give up on ctx without leaking a slot: the
// slot is released only when the call itself returns.
type Pool struct {
	slots chan struct{}
}

func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{slots: make(chan struct{}, capacity)}
}

// Cap returns the maximum number of concurrent calls.
func (p *Pool) Cap() int {
	return cap(p.slots)
}

type outcome[T any] struct {
	value T
	err   error
}

// Submit runs fn on p and waits for its result or for ctx to end.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	result := make(chan outcome[T], 1)
	go func() {
		defer func() { <-p.slots }()
		v, err := safely(ctx, fn)
		result <- outcome[T]{value: v, err: err}
	}()

	select {
	case out := <-result:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// safely calls fn and turns a panic into an error.
func safely[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("backend panic: %v", r)
		}
	}()
	return fn(ctx)
}
