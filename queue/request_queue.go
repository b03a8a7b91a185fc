package queue

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// RequestQueue caps the number of concurrent outbound requests. Callers beyond the
// cap wait and are admitted in strict FIFO order. There are no priorities.
type RequestQueue struct {
	sem      *semaphore.Weighted
	capacity int
	pending  atomic.Int64
	active   atomic.Int64
}

func NewRequestQueue(concurrency int) *RequestQueue {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RequestQueue{
		sem:      semaphore.NewWeighted(int64(concurrency)),
		capacity: concurrency,
	}
}

// Do runs fn once a slot is free. A caller whose context ends while waiting
// leaves the queue without running fn.
func (q *RequestQueue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	q.pending.Add(1)
	err := q.sem.Acquire(ctx, 1)
	q.pending.Add(-1)
	if err != nil {
		return err
	}
	defer q.sem.Release(1)

	q.active.Add(1)
	defer q.active.Add(-1)
	return fn(ctx)
}

// Run is Do for functions producing a value
func Run[T any](ctx context.Context, q *RequestQueue, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		out, fnErr = fn(ctx)
		return fnErr
	})
	return out, err
}

// Pending is the number of callers waiting for a slot
func (q *RequestQueue) Pending() int {
	return int(q.pending.Load())
}

// Active is the number of callers currently running
func (q *RequestQueue) Active() int {
	return int(q.active.Load())
}

func (q *RequestQueue) Capacity() int {
	return q.capacity
}
