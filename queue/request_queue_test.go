package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueueCapsConcurrency(t *testing.T) {
	q := NewRequestQueue(5)
	var running, maxRunning atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Do(context.Background(), func(ctx context.Context) error {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, maxRunning.Load(), int64(5))
	assert.Equal(t, 0, q.Active())
	assert.Equal(t, 0, q.Pending())
}

func TestRequestQueueFIFO(t *testing.T) {
	q := NewRequestQueue(1)
	release := make(chan struct{})
	started := make(chan struct{})

	go q.Do(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		// wait until the caller is queued before adding the next one
		require.Eventually(t, func() bool { return q.Pending() == i+1 }, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRequestQueueCancelledWhileWaiting(t *testing.T) {
	q := NewRequestQueue(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go q.Do(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := q.Do(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}

func TestRunReturnsValue(t *testing.T) {
	q := NewRequestQueue(2)
	v, err := Run(context.Background(), q, func(ctx context.Context) (string, error) {
		return "did:plc:abc", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "did:plc:abc", v)

	boom := errors.New("boom")
	_, err = Run(context.Background(), q, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}
