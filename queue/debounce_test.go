package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerRunsOnlyLastCall(t *testing.T) {
	d := NewDebouncer[string](50 * time.Millisecond)
	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]string, 3)
	errs := make([]error, 3)

	for i, input := range []string{"al", "alic", "alice.test"} {
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			results[i], errs[i] = d.Do(context.Background(), "client", func(ctx context.Context) (string, error) {
				calls.Add(1)
				return input, nil
			})
		}(i, input)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, errs[0], ErrSuperseded)
	assert.ErrorIs(t, errs[1], ErrSuperseded)
	assert.NoError(t, errs[2])
	assert.Equal(t, "alice.test", results[2])
}

func TestDebouncerContextCancelled(t *testing.T) {
	d := NewDebouncer[int](time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := false
	_, err := d.Do(ctx, "k", func(ctx context.Context) (int, error) {
		ran = true
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}
