package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue after Close, and by Dequeue once a closed
// queue has been drained.
var ErrClosed = errors.New("queue closed")

// Queue is a generic FIFO queue that is safe for concurrent producers and
// consumers. Dequeue blocks until an item is available.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	closed   bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}
}

// New creates and returns a new Queue instance. A capacity of zero or less
// makes the queue unbounded.
func New[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{
		items:    []T{},
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue adds an element to the end of the queue. It only blocks when the
// queue is bounded and full.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, item)
			hasRoom := q.capacity == 0 || len(q.items) < q.capacity
			q.mu.Unlock()
			signal(q.notEmpty)
			if hasRoom {
				signal(q.notFull)
			}
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-q.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Dequeue removes and returns the front element of the queue, waiting until
// one is available, ctx is done, or the queue is closed and empty.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			signal(q.notFull)
			if remaining > 0 {
				signal(q.notEmpty)
			}
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-q.notEmpty:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting new items. Items already queued can
// still be dequeued.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
