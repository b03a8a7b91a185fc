package queue

import (
	"context"
	"time"
)

// Debouncer delays each call by a fixed trailing delay. A newer call for the same
// key during the delay (or while the previous call runs) supersedes the older one,
// so bursts of calls result in a single execution with the last input.
type Debouncer[T any] struct {
	delay  time.Duration
	latest *Latest[T]
}

func NewDebouncer[T any](delay time.Duration) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, latest: NewLatest[T]()}
}

func (d *Debouncer[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	return d.latest.Do(ctx, key, func(ctx context.Context) (T, error) {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
		return fn(ctx)
	})
}
