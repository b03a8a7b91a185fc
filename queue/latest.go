package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned to a caller whose request was replaced by a newer one with the same key
var ErrSuperseded = errors.New("superseded by a newer request")

type inflightCall struct {
	id     uint64
	cancel context.CancelFunc
}

// Latest keeps one in-flight call per key. Starting a call cancels the previous
// call for that key and only the most recent result is honored.
type Latest[T any] struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]*inflightCall
}

func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{inflight: make(map[string]*inflightCall)}
}

func (l *Latest[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	l.seq++
	id := l.seq
	if prev, ok := l.inflight[key]; ok {
		prev.cancel()
	}
	l.inflight[key] = &inflightCall{id: id, cancel: cancel}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if c, ok := l.inflight[key]; ok && c.id == id {
			delete(l.inflight, key)
		}
		l.mu.Unlock()
		cancel()
	}()

	res, err := fn(cctx)

	l.mu.Lock()
	c, ok := l.inflight[key]
	current := ok && c.id == id
	l.mu.Unlock()
	if !current {
		var zero T
		return zero, ErrSuperseded
	}
	return res, err
}

// InFlight is the number of keys with a running call
func (l *Latest[T]) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
